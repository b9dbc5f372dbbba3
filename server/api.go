package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/carlmjohnson/versioninfo"
	"github.com/go-chi/chi/v5"

	"github.com/KohlJary/geocass/auth"
	"github.com/KohlJary/geocass/db"
	"github.com/KohlJary/geocass/directory"
	"github.com/KohlJary/geocass/models"
	"github.com/KohlJary/geocass/pagination"
)

type syncRequest struct {
	Handle      string              `json:"handle"`
	DisplayName string              `json:"display_name"`
	Tagline     string              `json:"tagline"`
	Visibility  models.Visibility   `json:"visibility"`
	Meta        models.IdentityMeta `json:"identity_meta"`
	Tags        []string            `json:"tags"`
	Homepage    models.Homepage     `json:"homepage"`
}

type daemonResponse struct {
	Username    string              `json:"username"`
	Handle      string              `json:"handle"`
	DisplayName string              `json:"display_name"`
	Tagline     string              `json:"tagline,omitempty"`
	Visibility  models.Visibility   `json:"visibility"`
	Meta        models.IdentityMeta `json:"identity_meta"`
	Tags        []string            `json:"tags"`
	Homepage    models.Homepage     `json:"homepage"`
	Created     time.Time           `json:"created_at"`
	Updated     time.Time           `json:"updated_at"`
	Url         string              `json:"url"`
}

type ownedDaemonResponse struct {
	models.DaemonSummary
	Visibility models.Visibility `json:"visibility"`
	Url        string            `json:"url"`
}

type matchResponse struct {
	Daemon models.DaemonSummary `json:"daemon"`
	Score  int                  `json:"score"`
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionResponse struct {
	UserId   string `json:"user_id"`
	Username string `json:"username"`
	ApiKey   string `json:"api_key"`
	KeyId    string `json:"key_id"`
}

func (g *GeoCass) daemonResponse(d *models.Daemon) daemonResponse {
	return daemonResponse{
		Username:    d.Username,
		Handle:      d.Handle,
		DisplayName: d.DisplayName,
		Tagline:     d.Tagline,
		Visibility:  d.Visibility,
		Meta:        d.Meta,
		Tags:        d.Tags,
		Homepage:    d.Homepage(),
		Created:     d.Created,
		Updated:     d.Updated,
		Url:         g.daemonURL(d),
	}
}

func (g *GeoCass) daemonURL(d *models.Daemon) string {
	return g.cfg.Server.PublicURL + d.PublicPath()
}

func (g *GeoCass) register(w http.ResponseWriter, r *http.Request) {
	l := g.l.With("handler", "register")

	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := g.validate.ValidateRegistration(req.Username, req.Password); err != nil {
		respondErr(w, l, err)
		return
	}

	user, key, token, err := g.auth.Register(req.Username, req.Password)
	if errors.Is(err, auth.ErrUsernameTaken) {
		writeError(w, "username is taken", http.StatusConflict)
		return
	}
	if err != nil {
		respondErr(w, l, err)
		return
	}

	g.notifier.UserRegistered(r.Context(), user)
	l.Info("registered user", "username", user.Username)

	writeJSON(w, http.StatusCreated, sessionResponse{
		UserId:   user.Id,
		Username: user.Username,
		ApiKey:   token,
		KeyId:    key.Id,
	})
}

func (g *GeoCass) login(w http.ResponseWriter, r *http.Request) {
	l := g.l.With("handler", "login")

	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	user, key, token, err := g.auth.Login(req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeError(w, "invalid username or password", http.StatusUnauthorized)
		return
	}
	if err != nil {
		respondErr(w, l, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		UserId:   user.Id,
		Username: user.Username,
		ApiKey:   token,
		KeyId:    key.Id,
	})
}

func (g *GeoCass) whoami(w http.ResponseWriter, r *http.Request) {
	user := g.user(r)
	writeJSON(w, http.StatusOK, map[string]string{
		"user_id":  user.Id,
		"username": user.Username,
	})
}

type keyResponse struct {
	Id       string     `json:"id"`
	Name     string     `json:"name"`
	Prefix   string     `json:"prefix"`
	Created  time.Time  `json:"created_at"`
	LastUsed *time.Time `json:"last_used,omitempty"`
}

func (g *GeoCass) listKeys(w http.ResponseWriter, r *http.Request) {
	l := g.l.With("handler", "listKeys")
	user := g.user(r)

	keys, err := g.auth.Keys(user.Id)
	if err != nil {
		respondErr(w, l, err)
		return
	}

	resp := make([]keyResponse, 0, len(keys))
	for _, k := range keys {
		resp = append(resp, keyResponse{
			Id:       k.Id,
			Name:     k.Name,
			Prefix:   k.Prefix,
			Created:  k.Created,
			LastUsed: k.LastUsed,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"keys": resp})
}

func (g *GeoCass) createKey(w http.ResponseWriter, r *http.Request) {
	l := g.l.With("handler", "createKey")
	user := g.user(r)

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		req.Name = "unnamed"
	}

	key, token, err := g.auth.MintKey(user.Id, req.Name)
	if err != nil {
		respondErr(w, l, err)
		return
	}

	l.Info("minted api key", "user", user.Username, "name", key.Name)

	writeJSON(w, http.StatusCreated, map[string]string{
		"id":      key.Id,
		"name":    key.Name,
		"api_key": token,
	})
}

func (g *GeoCass) revokeKey(w http.ResponseWriter, r *http.Request) {
	l := g.l.With("handler", "revokeKey")
	user := g.user(r)

	revoked, err := g.auth.RevokeKey(user.Id, chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, l, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"revoked": revoked})
}

func (g *GeoCass) sync(w http.ResponseWriter, r *http.Request) {
	l := g.l.With("handler", "sync")
	user := g.user(r)

	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Visibility == "" {
		req.Visibility = models.VisibilityPublic
	}

	daemon := &models.Daemon{
		OwnerId:     user.Id,
		Handle:      req.Handle,
		DisplayName: req.DisplayName,
		Tagline:     req.Tagline,
		Visibility:  req.Visibility,
		Meta:        req.Meta,
		Tags:        req.Tags,
		Pages:       req.Homepage.Pages,
		Stylesheet:  req.Homepage.Stylesheet,
	}

	if err := g.validate.ValidateSync(daemon); err != nil {
		respondErr(w, l, err)
		return
	}

	existing, err := db.CountDaemons(g.db,
		db.FilterEq("owner_id", user.Id),
		db.FilterEq("handle", daemon.Handle),
	)
	if err != nil {
		respondErr(w, l, err)
		return
	}
	if existing == 0 {
		total, err := db.CountDaemons(g.db, db.FilterEq("owner_id", user.Id))
		if err != nil {
			respondErr(w, l, err)
			return
		}
		if total >= int64(g.cfg.Limits.MaxDaemonsPerUser) {
			writeError(w, "daemon limit reached", http.StatusBadRequest)
			return
		}
	}

	synced, err := db.SyncDaemon(g.db, daemon)
	if err != nil {
		respondErr(w, l, err)
		return
	}

	g.notifier.DaemonSynced(r.Context(), synced)
	l.Info("synced daemon", "owner", user.Username, "handle", synced.Handle, "pages", len(synced.Pages))

	writeJSON(w, http.StatusOK, g.daemonResponse(synced))
}

func (g *GeoCass) removeDaemon(w http.ResponseWriter, r *http.Request) {
	l := g.l.With("handler", "removeDaemon")
	user := g.user(r)
	handle := chi.URLParam(r, "handle")

	deleted, err := db.DeleteDaemon(g.db, user.Id, handle)
	if err != nil {
		respondErr(w, l, err)
		return
	}

	if deleted {
		g.notifier.DaemonDeleted(r.Context(), user.Id, handle)
		l.Info("deleted daemon", "owner", user.Username, "handle", handle)
	}

	writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

func (g *GeoCass) ownDaemons(w http.ResponseWriter, r *http.Request) {
	l := g.l.With("handler", "ownDaemons")
	user := g.user(r)

	daemons, err := db.GetDaemons(g.db, db.FilterEq("owner_id", user.Id))
	if err != nil {
		respondErr(w, l, err)
		return
	}

	resp := make([]ownedDaemonResponse, 0, len(daemons))
	for i := range daemons {
		resp = append(resp, ownedDaemonResponse{
			DaemonSummary: daemons[i].Summary(),
			Visibility:    daemons[i].Visibility,
			Url:           g.daemonURL(&daemons[i]),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"daemons": resp})
}

// publicDaemon serves any daemon reachable by exact address: public and
// unlisted ones. Private daemons 404 like they never existed.
func (g *GeoCass) publicDaemon(w http.ResponseWriter, r *http.Request) {
	l := g.l.With("handler", "publicDaemon")

	daemon, err := db.GetDaemon(g.db,
		db.FilterEq("username", chi.URLParam(r, "username")),
		db.FilterEq("handle", chi.URLParam(r, "handle")),
		db.FilterNotEq("visibility", models.VisibilityPrivate),
	)
	if err != nil {
		respondErr(w, l, err)
		return
	}

	writeJSON(w, http.StatusOK, g.daemonResponse(daemon))
}

func (g *GeoCass) directory(w http.ResponseWriter, r *http.Request) {
	l := g.l.With("handler", "directory")

	page, ok := pagination.FromContext(r.Context())
	if !ok {
		page = pagination.FirstPage()
	}

	sort := directory.Sort(r.URL.Query().Get("sort"))
	if sort == "" {
		sort = directory.SortRecent
	}
	if !sort.Valid() {
		writeError(w, "sort must be recent or name", http.StatusBadRequest)
		return
	}

	listing, err := g.dir.ListPublic(directory.Filter{
		Tag:  r.URL.Query().Get("tag"),
		Sort: sort,
		Page: page,
	})
	if err != nil {
		respondErr(w, l, err)
		return
	}

	writeJSON(w, http.StatusOK, listing)
}

func (g *GeoCass) popularTags(w http.ResponseWriter, r *http.Request) {
	l := g.l.With("handler", "popularTags")

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	tags, err := g.dir.PopularTags(limit)
	if err != nil {
		respondErr(w, l, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"tags": tags})
}

// discover ranks public daemons against one of the caller's own. The handle
// names which of the caller's daemons to match for.
func (g *GeoCass) discover(w http.ResponseWriter, r *http.Request) {
	l := g.l.With("handler", "discover")
	user := g.user(r)

	handle := r.URL.Query().Get("handle")
	if handle == "" {
		writeError(w, "handle is required", http.StatusBadRequest)
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	matches, err := g.matcher.ForDaemon(user.Id, handle, limit)
	if err != nil {
		respondErr(w, l, err)
		return
	}

	resp := make([]matchResponse, 0, len(matches))
	for _, m := range matches {
		resp = append(resp, matchResponse{
			Daemon: m.Daemon.Summary(),
			Score:  m.Score,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"matches": resp})
}

func (g *GeoCass) status(w http.ResponseWriter, r *http.Request) {
	l := g.l.With("handler", "status")

	daemons, err := db.CountDaemons(g.db)
	if err != nil {
		respondErr(w, l, err)
		return
	}
	users, err := db.CountUsers(g.db)
	if err != nil {
		respondErr(w, l, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "geocass",
		"version": versioninfo.Short(),
		"daemons": daemons,
		"users":   users,
	})
}

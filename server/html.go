package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/KohlJary/geocass/db"
	"github.com/KohlJary/geocass/directory"
	"github.com/KohlJary/geocass/models"
	"github.com/KohlJary/geocass/pages"
	"github.com/KohlJary/geocass/pagination"
)

func (g *GeoCass) home(w http.ResponseWriter, r *http.Request) {
	l := g.l.With("handler", "home")

	listing, err := g.dir.ListPublic(directory.Filter{
		Page: pagination.Page{Limit: 10},
	})
	if err != nil {
		l.Error("failed to list daemons", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	tags, err := g.dir.PopularTags(12)
	if err != nil {
		l.Error("failed to count tags", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if err := g.pages.Home(w, pages.HomeParams{
		Recent: listing.Items,
		Tags:   tags,
	}); err != nil {
		l.Error("failed to render", "error", err)
	}
}

func (g *GeoCass) directoryPage(w http.ResponseWriter, r *http.Request) {
	l := g.l.With("handler", "directoryPage")

	page, ok := pagination.FromContext(r.Context())
	if !ok {
		page = pagination.FirstPage()
	}
	page = page.Clamp(directory.MaxPageSize)

	sort := directory.Sort(r.URL.Query().Get("sort"))
	if !sort.Valid() {
		sort = directory.SortRecent
	}
	tag := r.URL.Query().Get("tag")

	listing, err := g.dir.ListPublic(directory.Filter{
		Tag:  tag,
		Sort: sort,
		Page: page,
	})
	if err != nil {
		l.Error("failed to list daemons", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if err := g.pages.Directory(w, pages.DirectoryParams{
		Items:   listing.Items,
		Total:   listing.Total,
		Tag:     tag,
		Sort:    string(sort),
		Prev:    page.Previous(),
		Next:    page.Next(),
		HasPrev: page.Offset > 0,
		HasNext: int64(page.Offset+page.Limit) < listing.Total,
	}); err != nil {
		l.Error("failed to render", "error", err)
	}
}

func (g *GeoCass) daemonPage(w http.ResponseWriter, r *http.Request) {
	l := g.l.With("handler", "daemonPage")

	daemon, err := g.addressedDaemon(r)
	if err != nil {
		g.htmlNotFoundOr500(w, r, l, err)
		return
	}

	slug := chi.URLParam(r, "page")
	if slug == "" {
		slug = models.IndexSlug
	}

	page := daemon.Page(slug)
	if page == nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := g.pages.Daemon(w, pages.DaemonParams{
		Daemon: daemon,
		Page:   page,
	}); err != nil {
		l.Error("failed to render", "error", err)
	}
}

func (g *GeoCass) daemonStylesheet(w http.ResponseWriter, r *http.Request) {
	l := g.l.With("handler", "daemonStylesheet")

	daemon, err := g.addressedDaemon(r)
	if err != nil {
		g.htmlNotFoundOr500(w, r, l, err)
		return
	}

	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Write([]byte(daemon.Stylesheet))
}

// addressedDaemon resolves the /d/{username}/{handle} part of the URL.
// Private daemons are indistinguishable from absent ones.
func (g *GeoCass) addressedDaemon(r *http.Request) (*models.Daemon, error) {
	return db.GetDaemon(g.db,
		db.FilterEq("username", chi.URLParam(r, "username")),
		db.FilterEq("handle", chi.URLParam(r, "handle")),
		db.FilterNotEq("visibility", models.VisibilityPrivate),
	)
}

func (g *GeoCass) htmlNotFoundOr500(w http.ResponseWriter, r *http.Request, l *slog.Logger, err error) {
	if errors.Is(err, db.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	l.Error("failed to load daemon", "error", err)
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

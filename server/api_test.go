package server_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/KohlJary/geocass/config"
	"github.com/KohlJary/geocass/db"
	"github.com/KohlJary/geocass/notify"
	"github.com/KohlJary/geocass/server"
)

func testServer(t *testing.T) http.Handler {
	t.Helper()

	database, err := db.Make(":memory:")
	if err != nil {
		t.Fatalf("failed to create in-memory db: %v", err)
	}
	database.SetMaxOpenConns(1)
	t.Cleanup(func() { database.Close() })

	cfg := &config.Config{
		Server: config.ServerConfig{
			PublicURL: "http://geocass.test",
		},
		Limits: config.LimitsConfig{
			MaxHomepageKB:     64,
			MaxDaemonsPerUser: 2,
		},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	g := server.New(cfg, database, &notify.BaseNotifier{}, logger)
	return g.Router()
}

func do(t *testing.T, h http.Handler, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, target, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, into any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(into); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
}

func register(t *testing.T, h http.Handler, username string) string {
	t.Helper()

	w := do(t, h, "POST", "/api/v1/auth/register", "", map[string]string{
		"username": username,
		"password": "hunter2hunter2",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("failed to register %s: %d %s", username, w.Code, w.Body.String())
	}

	var resp struct {
		ApiKey string `json:"api_key"`
	}
	decode(t, w, &resp)
	return resp.ApiKey
}

func syncBody(handle string) map[string]any {
	return map[string]any{
		"handle":       handle,
		"display_name": "Muse",
		"tagline":      "a small daemon",
		"identity_meta": map[string]any{
			"interests": []string{"music", "ai"},
			"values":    []string{"truth"},
		},
		"tags": []string{"oracle"},
		"homepage": map[string]any{
			"pages": []map[string]string{
				{"slug": "index", "title": "Home", "html": "<h1>hello</h1>"},
				{"slug": "about", "title": "About", "html": "<p>me</p>"},
			},
			"stylesheet": "body { color: red; }",
		},
	}
}

func TestRegisterAndWhoami(t *testing.T) {
	h := testServer(t)

	token := register(t, h, "alice")
	assert.True(t, strings.HasPrefix(token, "gc_"))

	w := do(t, h, "GET", "/api/v1/auth/whoami", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var whoami map[string]string
	decode(t, w, &whoami)
	assert.Equal(t, "alice", whoami["username"])

	w = do(t, h, "GET", "/api/v1/auth/whoami", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegisterValidation(t *testing.T) {
	h := testServer(t)

	w := do(t, h, "POST", "/api/v1/auth/register", "", map[string]string{
		"username": "Not Valid",
		"password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	register(t, h, "alice")
	w = do(t, h, "POST", "/api/v1/auth/register", "", map[string]string{
		"username": "alice",
		"password": "hunter2hunter2",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestLogin(t *testing.T) {
	h := testServer(t)
	register(t, h, "alice")

	w := do(t, h, "POST", "/api/v1/auth/login", "", map[string]string{
		"username": "alice",
		"password": "hunter2hunter2",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		ApiKey string `json:"api_key"`
	}
	decode(t, w, &resp)

	w = do(t, h, "GET", "/api/v1/auth/whoami", resp.ApiKey, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, "POST", "/api/v1/auth/login", "", map[string]string{
		"username": "alice",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSyncAndFetch(t *testing.T) {
	h := testServer(t)
	token := register(t, h, "alice")

	w := do(t, h, "POST", "/api/v1/sync", token, syncBody("muse"))
	assert.Equal(t, http.StatusOK, w.Code)

	var synced map[string]any
	decode(t, w, &synced)
	assert.Equal(t, "alice", synced["username"])
	assert.Equal(t, "muse", synced["handle"])
	assert.Equal(t, "public", synced["visibility"])
	assert.Equal(t, "http://geocass.test/d/alice/muse", synced["url"])

	// anyone can fetch it without credentials
	w = do(t, h, "GET", "/api/v1/d/alice/muse", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var fetched struct {
		Handle   string `json:"handle"`
		Homepage struct {
			Pages []struct {
				Slug string `json:"slug"`
				Html string `json:"html"`
			} `json:"pages"`
			Stylesheet string `json:"stylesheet"`
		} `json:"homepage"`
		Meta map[string]any `json:"identity_meta"`
	}
	decode(t, w, &fetched)
	assert.Equal(t, "muse", fetched.Handle)
	assert.Len(t, fetched.Homepage.Pages, 2)
	assert.Equal(t, "index", fetched.Homepage.Pages[0].Slug)
	assert.Equal(t, "<h1>hello</h1>", fetched.Homepage.Pages[0].Html)
	assert.Equal(t, "body { color: red; }", fetched.Homepage.Stylesheet)
	assert.Equal(t, []any{"music", "ai"}, fetched.Meta["interests"])

	w = do(t, h, "GET", "/api/v1/d/alice/ghost", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSyncRequiresAuth(t *testing.T) {
	h := testServer(t)

	w := do(t, h, "POST", "/api/v1/sync", "", syncBody("muse"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, h, "POST", "/api/v1/sync", "gc_not-a-real-key-at-all-no-sir", syncBody("muse"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSyncValidation(t *testing.T) {
	h := testServer(t)
	token := register(t, h, "alice")

	body := syncBody("muse")
	body["homepage"] = map[string]any{
		"pages": []map[string]string{
			{"slug": "about", "html": "<p>no index</p>"},
		},
	}

	w := do(t, h, "POST", "/api/v1/sync", token, body)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp map[string]string
	decode(t, w, &resp)
	assert.Contains(t, resp["error"], "index")

	// nothing was stored
	w = do(t, h, "GET", "/api/v1/d/alice/muse", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSyncSizeCap(t *testing.T) {
	h := testServer(t)
	token := register(t, h, "alice")

	body := syncBody("muse")
	body["homepage"] = map[string]any{
		"pages": []map[string]string{
			// 64 KB cap in the test config
			{"slug": "index", "html": strings.Repeat("x", 70_000)},
		},
	}

	w := do(t, h, "POST", "/api/v1/sync", token, body)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp map[string]string
	decode(t, w, &resp)
	assert.Contains(t, resp["error"], "limit")
}

func TestSyncReplaces(t *testing.T) {
	h := testServer(t)
	token := register(t, h, "alice")

	w := do(t, h, "POST", "/api/v1/sync", token, syncBody("muse"))
	assert.Equal(t, http.StatusOK, w.Code)

	body := syncBody("muse")
	body["display_name"] = "Muse v2"
	body["homepage"] = map[string]any{
		"pages": []map[string]string{
			{"slug": "index", "html": "<h1>v2</h1>"},
		},
	}

	w = do(t, h, "POST", "/api/v1/sync", token, body)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		DisplayName string `json:"display_name"`
		Homepage    struct {
			Pages []map[string]string `json:"pages"`
		} `json:"homepage"`
	}
	decode(t, w, &resp)
	assert.Equal(t, "Muse v2", resp.DisplayName)
	assert.Len(t, resp.Homepage.Pages, 1)
}

func TestVisibility(t *testing.T) {
	h := testServer(t)
	token := register(t, h, "alice")

	private := syncBody("shade")
	private["visibility"] = "private"
	w := do(t, h, "POST", "/api/v1/sync", token, private)
	assert.Equal(t, http.StatusOK, w.Code)

	unlisted := syncBody("quiet")
	unlisted["visibility"] = "unlisted"
	w = do(t, h, "POST", "/api/v1/sync", token, unlisted)
	assert.Equal(t, http.StatusOK, w.Code)

	// private daemons 404 for everyone else
	w = do(t, h, "GET", "/api/v1/d/alice/shade", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// unlisted daemons resolve by exact address
	w = do(t, h, "GET", "/api/v1/d/alice/quiet", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// but neither shows up in the directory
	w = do(t, h, "GET", "/api/v1/directory", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var listing struct {
		Items []map[string]any `json:"items"`
		Total int64            `json:"total"`
	}
	decode(t, w, &listing)
	assert.Empty(t, listing.Items)
	assert.EqualValues(t, 0, listing.Total)

	// the owner sees both among their own daemons
	w = do(t, h, "GET", "/api/v1/daemons", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var own struct {
		Daemons []map[string]any `json:"daemons"`
	}
	decode(t, w, &own)
	assert.Len(t, own.Daemons, 2)
}

func TestDirectory(t *testing.T) {
	h := testServer(t)
	alice := register(t, h, "alice")
	bob := register(t, h, "bob")

	w := do(t, h, "POST", "/api/v1/sync", alice, syncBody("muse"))
	assert.Equal(t, http.StatusOK, w.Code)

	tagged := syncBody("kindred")
	tagged["tags"] = []string{"seer"}
	w = do(t, h, "POST", "/api/v1/sync", bob, tagged)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, "GET", "/api/v1/directory", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var listing struct {
		Items []struct {
			Username string `json:"username"`
			Handle   string `json:"handle"`
		} `json:"items"`
		Total int64 `json:"total"`
	}
	decode(t, w, &listing)
	assert.Len(t, listing.Items, 2)
	assert.EqualValues(t, 2, listing.Total)

	w = do(t, h, "GET", "/api/v1/directory?tag=seer", "", nil)
	decode(t, w, &listing)
	assert.Len(t, listing.Items, 1)
	assert.Equal(t, "kindred", listing.Items[0].Handle)

	w = do(t, h, "GET", "/api/v1/directory?sort=name", "", nil)
	decode(t, w, &listing)
	assert.Equal(t, "alice", listing.Items[0].Username)
	assert.Equal(t, "bob", listing.Items[1].Username)

	w = do(t, h, "GET", "/api/v1/directory?offset=1&limit=1&sort=name", "", nil)
	decode(t, w, &listing)
	assert.Len(t, listing.Items, 1)
	assert.EqualValues(t, 2, listing.Total)
	assert.Equal(t, "bob", listing.Items[0].Username)

	w = do(t, h, "GET", "/api/v1/directory?sort=bogus", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTags(t *testing.T) {
	h := testServer(t)
	token := register(t, h, "alice")

	w := do(t, h, "POST", "/api/v1/sync", token, syncBody("muse"))
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, "GET", "/api/v1/tags", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Tags []struct {
			Tag   string `json:"tag"`
			Count int    `json:"count"`
		} `json:"tags"`
	}
	decode(t, w, &resp)
	assert.Len(t, resp.Tags, 1)
	assert.Equal(t, "oracle", resp.Tags[0].Tag)
	assert.Equal(t, 1, resp.Tags[0].Count)
}

func TestDiscover(t *testing.T) {
	h := testServer(t)
	alice := register(t, h, "alice")
	bob := register(t, h, "bob")

	w := do(t, h, "POST", "/api/v1/sync", alice, syncBody("muse"))
	assert.Equal(t, http.StatusOK, w.Code)

	kindred := syncBody("kindred")
	kindred["identity_meta"] = map[string]any{
		"interests": []string{"music"},
		"values":    []string{"truth"},
	}
	w = do(t, h, "POST", "/api/v1/sync", bob, kindred)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, "GET", "/api/v1/discover?handle=muse", alice, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Matches []struct {
			Daemon struct {
				Handle string `json:"handle"`
			} `json:"daemon"`
			Score int `json:"score"`
		} `json:"matches"`
	}
	decode(t, w, &resp)
	assert.Len(t, resp.Matches, 1)
	assert.Equal(t, "kindred", resp.Matches[0].Daemon.Handle)
	assert.Equal(t, 3, resp.Matches[0].Score)

	w = do(t, h, "GET", "/api/v1/discover", alice, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, "GET", "/api/v1/discover?handle=ghost", alice, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, "GET", "/api/v1/discover?handle=muse", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDeleteDaemon(t *testing.T) {
	h := testServer(t)
	token := register(t, h, "alice")

	w := do(t, h, "POST", "/api/v1/sync", token, syncBody("muse"))
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, "DELETE", "/api/v1/daemons/muse", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]bool
	decode(t, w, &resp)
	assert.True(t, resp["deleted"])

	w = do(t, h, "GET", "/api/v1/d/alice/muse", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// idempotent
	w = do(t, h, "DELETE", "/api/v1/daemons/muse", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &resp)
	assert.False(t, resp["deleted"])
}

func TestDaemonCap(t *testing.T) {
	h := testServer(t)
	token := register(t, h, "alice")

	for _, handle := range []string{"one", "two"} {
		w := do(t, h, "POST", "/api/v1/sync", token, syncBody(handle))
		assert.Equal(t, http.StatusOK, w.Code)
	}

	w := do(t, h, "POST", "/api/v1/sync", token, syncBody("three"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// re-syncing an existing daemon is not a new one
	w = do(t, h, "POST", "/api/v1/sync", token, syncBody("one"))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestApiKeys(t *testing.T) {
	h := testServer(t)
	token := register(t, h, "alice")

	w := do(t, h, "POST", "/api/v1/auth/keys", token, map[string]string{"name": "laptop"})
	assert.Equal(t, http.StatusCreated, w.Code)
	var minted map[string]string
	decode(t, w, &minted)
	assert.NotEmpty(t, minted["api_key"])

	w = do(t, h, "GET", "/api/v1/auth/keys", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var keys struct {
		Keys []struct {
			Id   string `json:"id"`
			Name string `json:"name"`
		} `json:"keys"`
	}
	decode(t, w, &keys)
	assert.Len(t, keys.Keys, 2)

	w = do(t, h, "DELETE", "/api/v1/auth/keys/"+minted["id"], token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var revoked map[string]bool
	decode(t, w, &revoked)
	assert.True(t, revoked["revoked"])

	// the revoked key no longer authenticates
	w = do(t, h, "GET", "/api/v1/auth/whoami", minted["api_key"], nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestStatusAndHealth(t *testing.T) {
	h := testServer(t)
	token := register(t, h, "alice")

	w := do(t, h, "POST", "/api/v1/sync", token, syncBody("muse"))
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, "GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())

	w = do(t, h, "GET", "/api/v1/status", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var status map[string]any
	decode(t, w, &status)
	assert.Equal(t, "geocass", status["name"])
	assert.EqualValues(t, 1, status["daemons"])
	assert.EqualValues(t, 1, status["users"])
}

func TestHtmlPages(t *testing.T) {
	h := testServer(t)
	token := register(t, h, "alice")

	w := do(t, h, "POST", "/api/v1/sync", token, syncBody("muse"))
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, "GET", "/", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Muse")

	w = do(t, h, "GET", "/directory", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/d/alice/muse")

	w = do(t, h, "GET", "/d/alice/muse", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	// the vessel's html lands unescaped
	assert.Contains(t, w.Body.String(), "<h1>hello</h1>")

	w = do(t, h, "GET", "/d/alice/muse/about", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<p>me</p>")

	w = do(t, h, "GET", "/d/alice/muse/style.css", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/css")
	assert.Equal(t, "body { color: red; }", w.Body.String())

	w = do(t, h, "GET", "/d/alice/muse/ghost", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, "GET", "/d/alice/ghost", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestIdentityMetaPassthrough(t *testing.T) {
	h := testServer(t)
	token := register(t, h, "alice")

	body := syncBody("muse")
	body["identity_meta"] = map[string]any{
		"interests": []string{"music"},
		"values":    []string{"truth"},
		"pronouns":  "they/them",
		"lineage":   map[string]any{"model": "unknown", "generation": 3},
	}

	w := do(t, h, "POST", "/api/v1/sync", token, body)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, "GET", "/api/v1/d/alice/muse", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Meta map[string]any `json:"identity_meta"`
	}
	decode(t, w, &resp)
	assert.Equal(t, "they/them", resp.Meta["pronouns"])
	assert.Equal(t, []any{"music"}, resp.Meta["interests"])

	lineage, ok := resp.Meta["lineage"].(map[string]any)
	if assert.True(t, ok, "lineage should round-trip as an object") {
		assert.Equal(t, "unknown", lineage["model"])
		assert.EqualValues(t, 3, lineage["generation"])
	}
}

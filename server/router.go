package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/KohlJary/geocass/auth"
	"github.com/KohlJary/geocass/config"
	"github.com/KohlJary/geocass/db"
	"github.com/KohlJary/geocass/directory"
	"github.com/KohlJary/geocass/discovery"
	"github.com/KohlJary/geocass/notify"
	"github.com/KohlJary/geocass/pages"
	"github.com/KohlJary/geocass/validator"
)

type GeoCass struct {
	cfg      *config.Config
	db       *db.DB
	auth     *auth.Auth
	validate *validator.Validator
	dir      *directory.Directory
	matcher  *discovery.Matcher
	pages    *pages.Pages
	notifier notify.Notifier
	l        *slog.Logger
}

func New(cfg *config.Config, database *db.DB, notifier notify.Notifier, logger *slog.Logger) *GeoCass {
	return &GeoCass{
		cfg:      cfg,
		db:       database,
		auth:     auth.New(database),
		validate: validator.New(cfg.Limits.MaxHomepageKB),
		dir:      directory.New(database),
		matcher:  discovery.New(database),
		pages:    pages.NewPages(),
		notifier: notifier,
		l:        logger,
	}
}

func (g *GeoCass) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(g.RequestLogger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	if g.cfg.Server.Dev {
		r.Mount("/debug", middleware.Profiler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(g.CORS)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", g.register)
			r.Post("/login", g.login)

			r.Group(func(r chi.Router) {
				r.Use(g.WithAuth)
				r.Get("/whoami", g.whoami)
				r.Route("/keys", func(r chi.Router) {
					r.Get("/", g.listKeys)
					r.Post("/", g.createKey)
					r.Delete("/{id}", g.revokeKey)
				})
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(g.WithAuth)
			r.Post("/sync", g.sync)
			r.Get("/daemons", g.ownDaemons)
			r.Delete("/daemons/{handle}", g.removeDaemon)
			r.Get("/discover", g.discover)
		})

		r.Get("/d/{username}/{handle}", g.publicDaemon)
		r.With(Paginate).Get("/directory", g.directory)
		r.Get("/tags", g.popularTags)
		r.Get("/status", g.status)
	})

	r.Get("/", g.home)
	r.With(Paginate).Get("/directory", g.directoryPage)
	r.Route("/d/{username}/{handle}", func(r chi.Router) {
		r.Get("/", g.daemonPage)
		r.Get("/style.css", g.daemonStylesheet)
		r.Get("/{page}", g.daemonPage)
	})

	return r
}

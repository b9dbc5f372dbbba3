package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/posthog/posthog-go"
	"github.com/urfave/cli/v3"

	"github.com/KohlJary/geocass/config"
	"github.com/KohlJary/geocass/db"
	"github.com/KohlJary/geocass/log"
	"github.com/KohlJary/geocass/notify"
	posthogNotify "github.com/KohlJary/geocass/notify/posthog"
)

func Command() *cli.Command {
	return &cli.Command{
		Name:   "server",
		Usage:  "run a geocass server",
		Action: Run,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "listen",
				Usage: "address to listen on, overrides GEOCASS_SERVER_LISTEN_ADDR",
			},
			&cli.StringFlag{
				Name:  "db",
				Usage: "path to the sqlite database, overrides GEOCASS_SERVER_DB_PATH",
			},
		},
		Description: `
Environment variables:
	GEOCASS_SERVER_LISTEN_ADDR          (default: 0.0.0.0:8454)
	GEOCASS_SERVER_PUBLIC_URL           (default: http://localhost:8454)
	GEOCASS_SERVER_DB_PATH              (default: geocass.db)
	GEOCASS_SERVER_LOG_LEVEL            (default: info)
	GEOCASS_SERVER_DEV                  (default: false)
	GEOCASS_LIMITS_MAX_HOMEPAGE_KB      (default: 1024)
	GEOCASS_LIMITS_MAX_DAEMONS_PER_USER (default: 16)
	GEOCASS_POSTHOG_API_KEY             (optional)
	GEOCASS_POSTHOG_ENDPOINT            (default: https://eu.i.posthog.com)
`,
	}
}

func Run(ctx context.Context, cmd *cli.Command) error {
	c, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if addr := cmd.String("listen"); addr != "" {
		c.Server.ListenAddr = addr
	}
	if path := cmd.String("db"); path != "" {
		c.Server.DBPath = path
	}

	log.SetLevel(c.Server.LogLevel)
	if c.Server.Dev {
		log.SetLevel("debug")
	}
	logger := log.New("geocass")

	database, err := db.Make(c.Server.DBPath)
	if err != nil {
		return fmt.Errorf("failed to load db: %w", err)
	}

	var notifiers []notify.Notifier
	if c.Posthog.ApiKey != "" && !c.Server.Dev {
		client, err := posthog.NewWithConfig(c.Posthog.ApiKey, posthog.Config{Endpoint: c.Posthog.Endpoint})
		if err != nil {
			return fmt.Errorf("failed to create posthog client: %w", err)
		}
		defer client.Close()
		notifiers = append(notifiers, posthogNotify.NewPosthogNotifier(client))
	}
	notifier := notify.NewMergedNotifier(notifiers, logger.With("component", "notify"))

	if c.Server.Dev {
		logger.Info("running in dev mode")
	}

	g := New(c, database, notifier, logger)

	logger.Info("starting server", "address", c.Server.ListenAddr)
	logger.Error("server error", "error", http.ListenAndServe(c.Server.ListenAddr, g.Router()))

	return nil
}

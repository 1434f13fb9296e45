package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/nhle/ghnotify/internal/credential"
	"github.com/nhle/ghnotify/internal/github"
	"github.com/nhle/ghnotify/internal/logging"
	"github.com/nhle/ghnotify/internal/model"
	"github.com/nhle/ghnotify/internal/store"
	"github.com/nhle/ghnotify/internal/sync"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	version = "dev"
)

func main() {
	var (
		configPath string
		logLevel   string
	)

	app := &cli.Command{
		Name:    "ghnotify",
		Usage:   "Keep a local mirror of your GitHub notification inbox",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("GHNOTIFY_CONFIG"),
				Value:       model.DefaultConfigPath(),
				Destination: &configPath,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error)",
				Sources:     cli.EnvVars("GHNOTIFY_LOG_LEVEL"),
				Destination: &logLevel,
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run the sync daemon until interrupted",
				Action: func(ctx context.Context, c *cli.Command) error {
					return runDaemon(ctx, configPath, logLevel)
				},
			},
			{
				Name:  "list",
				Usage: "Sync once and print the visible inbox",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withEngine(configPath, logLevel, func(engine *sync.Engine) error {
						items, err := engine.Sync(ctx)
						if err != nil {
							return err
						}
						printItems(items, engine.UnreadCount())
						return nil
					})
				},
			},
			{
				Name:      "login",
				Usage:     "Store the API token in the system keyring",
				UsageText: "ghnotify login [token]",
				Action: func(ctx context.Context, c *cli.Command) error {
					token := c.Args().First()
					if token == "" {
						fmt.Fprint(os.Stderr, "Token: ")
						reader := bufio.NewReader(os.Stdin)
						line, err := reader.ReadString('\n')
						if err != nil {
							return fmt.Errorf("reading token: %w", err)
						}
						token = strings.TrimSpace(line)
					}
					if token == "" {
						return fmt.Errorf("no token provided")
					}
					return credential.Set(credential.TokenKey, token)
				},
			},
			{
				Name:  "logout",
				Usage: "Remove the stored token and clear all cached state",
				Action: func(ctx context.Context, c *cli.Command) error {
					if err := credential.Delete(credential.TokenKey); err != nil {
						log.Warn().Err(err).Msg("removing stored token")
					}
					return withStore(configPath, logLevel, func(s store.Store) error {
						return s.ResetAll(ctx)
					})
				},
			},
			{
				Name:      "done",
				Usage:     "Archive a notification and dismiss it permanently",
				UsageText: "ghnotify done <id>",
				Action: func(ctx context.Context, c *cli.Command) error {
					id := c.Args().First()
					if id == "" {
						return fmt.Errorf("missing notification id")
					}
					return withEngine(configPath, logLevel, func(engine *sync.Engine) error {
						return engine.MarkDone(ctx, id)
					})
				},
			},
			{
				Name:      "read",
				Usage:     "Mark a notification as read",
				UsageText: "ghnotify read <id>",
				Action: func(ctx context.Context, c *cli.Command) error {
					id := c.Args().First()
					if id == "" {
						return fmt.Errorf("missing notification id")
					}
					return withEngine(configPath, logLevel, func(engine *sync.Engine) error {
						return engine.MarkRead(ctx, id)
					})
				},
			},
			{
				Name:      "hide",
				Usage:     "Hide all notifications from a group (repository owner)",
				UsageText: "ghnotify hide <group>",
				Action: func(ctx context.Context, c *cli.Command) error {
					name := c.Args().First()
					if name == "" {
						return fmt.Errorf("missing group name")
					}
					return withEngine(configPath, logLevel, func(engine *sync.Engine) error {
						return engine.HideGroup(ctx, name)
					})
				},
			},
			{
				Name:      "unhide",
				Usage:     "Restore a hidden group",
				UsageText: "ghnotify unhide <group>",
				Action: func(ctx context.Context, c *cli.Command) error {
					name := c.Args().First()
					if name == "" {
						return fmt.Errorf("missing group name")
					}
					return withEngine(configPath, logLevel, func(engine *sync.Engine) error {
						return engine.UnhideGroup(ctx, name)
					})
				},
			},
			{
				Name:  "reset",
				Usage: "Clear the cached snapshot, tombstones, hidden groups, and markers",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withStore(configPath, logLevel, func(s store.Store) error {
						return s.ResetAll(ctx)
					})
				},
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads config, configures logging, and opens the store.
func setup(configPath, logLevel string) (*model.AppConfig, *store.SQLiteStore, error) {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}

	if logLevel == "" {
		logLevel = cfg.LogLevel
	}
	logging.Setup(logLevel)

	s, err := store.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, s, nil
}

// withStore runs fn against an opened store and closes it afterwards.
func withStore(configPath, logLevel string, fn func(store.Store) error) error {
	_, s, err := setup(configPath, logLevel)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

// withEngine runs fn against a fully wired engine.
func withEngine(configPath, logLevel string, fn func(*sync.Engine) error) error {
	cfg, s, err := setup(configPath, logLevel)
	if err != nil {
		return err
	}
	defer s.Close()

	adapter := github.NewAdapter(cfg.APIBaseURL, credential.Token())
	engine, err := sync.New(s, adapter)
	if err != nil {
		return err
	}
	return fn(engine)
}

// runDaemon starts the refresh scheduler and blocks until SIGINT/SIGTERM.
func runDaemon(ctx context.Context, configPath, logLevel string) error {
	cfg, s, err := setup(configPath, logLevel)
	if err != nil {
		return err
	}
	defer s.Close()

	adapter := github.NewAdapter(cfg.APIBaseURL, credential.Token())
	engine, err := sync.New(s, adapter)
	if err != nil {
		return err
	}

	scheduler := sync.NewScheduler(engine, cfg.RefreshInterval())
	scheduler.Start()
	defer scheduler.Stop()

	updates := engine.Subscribe()
	go func() {
		for items := range updates {
			log.Info().
				Int("visible", len(items)).
				Int("unread", engine.UnreadCount()).
				Msg("inbox updated")
		}
	}()

	log.Info().
		Dur("interval", scheduler.Interval()).
		Msg("ghnotify running")

	// Initial sync without waiting for the first tick.
	if _, err := engine.Sync(ctx); err != nil {
		if github.IsAuthError(err) {
			return fmt.Errorf("authentication required, run `ghnotify login`: %w", err)
		}
		log.Warn().Err(err).Msg("initial sync failed")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case <-ctx.Done():
	}
	return nil
}

// printItems writes the visible set as a simple table.
func printItems(items []model.Item, unread int) {
	if len(items) == 0 {
		fmt.Println("Inbox empty.")
		return
	}

	for _, item := range items {
		marker := " "
		if item.Unread {
			marker = "*"
		}
		ref := ""
		if item.Number > 0 {
			ref = fmt.Sprintf("#%d ", item.Number)
		}
		fmt.Printf("%s %-10s %-30s %s%s (%s)\n",
			marker, item.Kind, item.RepoFullName, ref, item.Title,
			item.UpdatedAt.Local().Format(time.DateTime),
		)
	}
	fmt.Printf("\n%d items, %d unread\n", len(items), unread)
}

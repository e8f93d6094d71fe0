// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/lostfound"
	"github.com/poiesic/lostfound/api"
	"github.com/poiesic/lostfound/core"
	"github.com/poiesic/lostfound/messaging"
	"github.com/poiesic/lostfound/trigger"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := loadEnv(os.Getenv("LOSTFOUND_ENV_FILE")); err != nil {
		log.Fatal(err)
	}
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// loadEnv loads variables from path, or from .env when path is empty.
// A missing default file is not an error.
func loadEnv(path string) error {
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	err := godotenv.Load(path)
	if err != nil && !explicit && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func userFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "user",
		Aliases:  []string{"u"},
		Usage:    "User ID",
		Required: true,
	}
}

func listingFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "listing",
		Usage:    "Listing ID",
		Required: true,
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "lostfound",
		Usage: "Lost and found listing matching and notification engine",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
				EnvVars: []string{"LOSTFOUND_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory",
				Value:   "lostfound.db",
				EnvVars: []string{"LOSTFOUND_DB"},
			},
			&cli.StringFlag{
				Name:    "postgres",
				Usage:   "PostgreSQL DSN for listings, users, notifications and thresholds",
				EnvVars: []string{"LOSTFOUND_POSTGRES_DSN"},
			},
			&cli.StringFlag{
				Name:    "redis",
				Usage:   "Redis URL for threshold preferences",
				EnvVars: []string{"LOSTFOUND_REDIS_URL"},
			},
			&cli.Float64Flag{
				Name:    "default-threshold",
				Usage:   "Threshold for users without a preference",
				Value:   core.DefaultThreshold,
				EnvVars: []string{"LOSTFOUND_DEFAULT_THRESHOLD"},
			},
			&cli.IntFlag{
				Name:    "pool-size",
				Usage:   "Number of concurrent background evaluations",
				Value:   trigger.DefaultConfig().PoolSize,
				EnvVars: []string{"LOSTFOUND_POOL_SIZE"},
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the HTTP API and consume listing events",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "addr",
						Usage:   "HTTP listen address",
						Value:   ":8080",
						EnvVars: []string{"LOSTFOUND_ADDR"},
					},
					&cli.StringFlag{
						Name:    "nats-url",
						Usage:   "NATS server URL; empty disables messaging",
						EnvVars: []string{"LOSTFOUND_NATS_URL"},
					},
					&cli.StringFlag{
						Name:    "queue-group",
						Usage:   "NATS queue group for listing events",
						Value:   messaging.DefaultQueueGroup,
						EnvVars: []string{"LOSTFOUND_QUEUE_GROUP"},
					},
					&cli.DurationFlag{
						Name:    "sweep-interval",
						Usage:   "How often unfinished evaluations are swept",
						Value:   trigger.DefaultConfig().SweepInterval,
						EnvVars: []string{"LOSTFOUND_SWEEP_INTERVAL"},
					},
				},
			},
			{
				Name:   "evaluate",
				Usage:  "Evaluate a listing now and notify matching owners",
				Action: evaluateCommand,
				Flags:  []cli.Flag{listingFlag()},
			},
			{
				Name:   "preview",
				Usage:  "Rank candidates for a listing without notifying anyone",
				Action: previewCommand,
				Flags:  []cli.Flag{listingFlag()},
			},
			{
				Name:   "rescan",
				Usage:  "Resubmit unfinished evaluations and evaluate unmatched listings",
				Action: rescanCommand,
			},
			{
				Name:  "threshold",
				Usage: "Read or change a user's match threshold",
				Subcommands: []*cli.Command{
					{
						Name:   "get",
						Usage:  "Show a user's threshold",
						Action: thresholdGetCommand,
						Flags:  []cli.Flag{userFlag()},
					},
					{
						Name:   "set",
						Usage:  "Change a user's threshold and re-evaluate their listings",
						Action: thresholdSetCommand,
						Flags: []cli.Flag{
							userFlag(),
							&cli.Float64Flag{
								Name:     "value",
								Usage:    "Threshold within [0,1]",
								Required: true,
							},
						},
					},
				},
			},
			{
				Name:  "notifications",
				Usage: "Read a user's notifications",
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "List notifications, newest first",
						Action: notificationsListCommand,
						Flags:  []cli.Flag{userFlag()},
					},
					{
						Name:   "read",
						Usage:  "Mark one notification, or all with --all, as read",
						Action: notificationsReadCommand,
						Flags: []cli.Flag{
							userFlag(),
							&cli.StringFlag{
								Name:  "id",
								Usage: "Notification ID",
							},
							&cli.BoolFlag{
								Name:  "all",
								Usage: "Mark every notification as read",
							},
						},
					},
				},
			},
		},
	}
}

func engineConfig(c *cli.Context) (*lostfound.Config, error) {
	triggerConfig := trigger.DefaultConfig()
	triggerConfig.PoolSize = c.Int("pool-size")
	if c.IsSet("sweep-interval") {
		triggerConfig.SweepInterval = c.Duration("sweep-interval")
	}
	return lostfound.NewConfig(
		lostfound.WithDataDir(c.String("db")),
		lostfound.WithPostgres(c.String("postgres")),
		lostfound.WithRedis(c.String("redis"), ""),
		lostfound.WithDefaultThreshold(c.Float64("default-threshold")),
		lostfound.WithTrigger(triggerConfig),
	)
}

func openEngine(c *cli.Context, opts ...lostfound.Option) (*lostfound.Engine, error) {
	config, err := engineConfig(c)
	if err != nil {
		return nil, err
	}
	engine, err := lostfound.Open(c.Context, config, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open engine: %w", err)
	}
	return engine, nil
}

func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func serveCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var opts []lostfound.Option
	var client *messaging.Client
	if url := c.String("nats-url"); url != "" {
		natsConfig := messaging.DefaultConfig()
		natsConfig.URL = url
		natsConfig.QueueGroup = c.String("queue-group")

		var err error
		client, err = messaging.Connect(natsConfig, slog.Default())
		if err != nil {
			return err
		}
		defer client.Close()
		opts = append(opts, lostfound.WithPublisher(messaging.NewNotificationPublisher(client)))
	}

	engine, err := openEngine(c, opts...)
	if err != nil {
		return err
	}
	defer engine.Close()

	if client != nil {
		subscriber := messaging.NewListingSubscriber(engine.Trigger(), slog.Default())
		if err := subscriber.Subscribe(client, c.String("queue-group")); err != nil {
			return err
		}
	}

	handler, err := api.NewRouter(engine.Services(), slog.Default())
	if err != nil {
		return err
	}
	server := &http.Server{
		Addr:              c.String("addr"),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := engine.Run(ctx); err != nil {
			slog.Error("background evaluations stopped", "err", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("http shutdown failed", "err", err)
		}
	}()

	slog.Info("listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	slog.Info("shutting down")
	return nil
}

func evaluateCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	results, err := engine.Orchestrator().EvaluateByID(c.Context, c.String("listing"))
	if err != nil {
		return err
	}
	return printJSON(c, results)
}

func previewCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	results, err := engine.Orchestrator().PreviewByID(c.Context, c.String("listing"))
	if err != nil {
		return err
	}
	return printJSON(c, results)
}

func rescanCommand(c *cli.Context) error {
	engine, err := openEngine(c, lostfound.WithProgress(c.App.ErrWriter))
	if err != nil {
		return err
	}
	defer engine.Close()

	stats, err := engine.Trigger().Recover(c.Context)
	if err != nil {
		return fmt.Errorf("rescan failed: %w", err)
	}
	engine.Trigger().Wait()

	fmt.Fprintf(c.App.ErrWriter, "\nResubmitted: %d, rescanned: %d, scheduled: %d\n",
		stats.Resubmitted, stats.Rescanned, stats.Scheduled)
	return nil
}

func thresholdGetCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	pref, err := engine.Thresholds().Preference(c.Context, c.String("user"))
	if err != nil {
		return err
	}
	return printJSON(c, pref)
}

func thresholdSetCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	pref, err := engine.SetThreshold(c.Context, c.String("user"), c.Float64("value"))
	if err != nil {
		return err
	}
	engine.Trigger().Wait()
	return printJSON(c, pref)
}

func notificationsListCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	notifications, err := engine.Dispatcher().List(c.Context, c.String("user"))
	if err != nil {
		return err
	}
	return printJSON(c, notifications)
}

func notificationsReadCommand(c *cli.Context) error {
	id, all := c.String("id"), c.Bool("all")
	if (id == "") == !all {
		return fmt.Errorf("exactly one of --id or --all is required")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	user := c.String("user")
	if all {
		changed, err := engine.Dispatcher().MarkAllRead(c.Context, user)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "Marked %d notifications as read\n", changed)
		return nil
	}
	return engine.Dispatcher().MarkRead(c.Context, id, user)
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

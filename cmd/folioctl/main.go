// Command folioctl manages collection records directly against the store.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/JonMunkholm/folio/internal/config"
	"github.com/JonMunkholm/folio/internal/core"
	_ "github.com/JonMunkholm/folio/internal/core/collections"
	"github.com/JonMunkholm/folio/internal/logging"
	"github.com/JonMunkholm/folio/internal/store"
)

var version = "dev"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "folioctl",
		Usage:   "Inspect, export and seed portfolio collections",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env-file",
				Value: ".env",
				Usage: "Path to an env file loaded before the store config",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: "warn",
				Usage: "Log level (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "collections",
				Usage:  "List registered collections with record counts",
				Action: listCollections,
			},
			{
				Name:      "list",
				Usage:     "Print one page of a collection",
				ArgsUsage: "<collection>",
				Flags:     append(tableFlags(), &cli.IntFlag{Name: "page", Value: 1, Usage: "Page number, starting at 1"}),
				Action:    listRecords,
			},
			{
				Name:      "export",
				Usage:     "Export a collection as CSV or JSON",
				ArgsUsage: "<collection>",
				Flags: append(tableFlags(),
					&cli.StringFlag{Name: "format", Value: "csv", Usage: "csv or json"},
					&cli.StringSliceFlag{Name: "field", Usage: "Field to include (repeatable, default all)"},
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output file (default stdout)"},
				),
				Action: exportRecords,
			},
			{
				Name:  "seed",
				Usage: "Import records from a YAML seed file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Required: true, Usage: "Seed file keyed by collection"},
					&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "Hide the progress bar"},
				},
				Action: seedRecords,
			},
			{
				Name:      "delete",
				Usage:     "Delete records by id",
				ArgsUsage: "<collection> <id>...",
				Action:    deleteRecords,
			},
			{
				Name:  "prune-audit",
				Usage: "Remove audit entries older than the retention window",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "days", Value: 90, Usage: "Retention in days"},
				},
				Action: pruneAudit,
			},
		},
	}
}

// tableFlags are shared by commands that read through the table pipeline.
func tableFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "query", Usage: "Free-text search"},
		&cli.StringSliceFlag{Name: "filter", Usage: "Column filter key=v1,v2 (repeatable)"},
		&cli.StringFlag{Name: "sort", Usage: "Sort column, prefix with - for descending"},
	}
}

// env holds what every command needs: a signal-aware context and a service
// over the configured store.
type env struct {
	ctx     context.Context
	service *core.Service
	close   func()
}

func openEnv(c *cli.Context) (*env, error) {
	if path := c.String("env-file"); path != "" {
		if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}

	// Logs go to stderr so exports on stdout stay clean.
	logger, logCloser := logging.New(logging.Options{Level: c.String("log-level"), Format: "text"}, c.App.ErrWriter)
	slog.SetDefault(logger)

	storeCfg, err := config.LoadStore()
	if err != nil {
		logCloser.Close()
		return nil, err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	st, err := store.Open(ctx, storeCfg.StoreOptions())
	if err != nil {
		stop()
		logCloser.Close()
		return nil, fmt.Errorf("open %s store: %w", storeCfg.Driver, err)
	}

	service := core.NewService(st, core.ServiceOptions{Logger: logger})
	return &env{
		ctx:     ctx,
		service: service,
		close: func() {
			service.Close()
			st.Close()
			stop()
			logCloser.Close()
		},
	}, nil
}

// manager loads a collection from the store. Store failures are returned
// rather than silently showing fallback records.
func (e *env) manager(key string) (*core.Manager, error) {
	m, err := e.service.Manager(key)
	if err != nil {
		return nil, err
	}
	if err := m.Refresh(e.ctx); err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return m, nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ashymuperekicmd/contact-api/cli/api"
	"github.com/ashymuperekicmd/contact-api/cli/db"
	"github.com/ashymuperekicmd/contact-api/cli/logger"
)

const title = "Contacts API"

// Set at build time with -ldflags "-X main.version=...".
var (
	version  = "1.0.0"
	revision = ""
	created  = ""
)

// Options for the CLI. Every flag can be set with a SERVICE_ environment
// variable, e.g. `--mongodb-uri` with `SERVICE_MONGODB_URI`.
type Options struct {
	logger.Options
	api.ServerOptions
	api.RouterOptions
	db.StoreOptions
}

// legacyEnv maps environment variable names of earlier deployments to their flag variable.
var legacyEnv = map[string]string{ //nolint: gochecknoglobals
	"MONGODB_URI":         "SERVICE_MONGODB_URI",
	"PORT":                "SERVICE_PORT",
	"RENDER_EXTERNAL_URL": "SERVICE_PUBLIC_URL",
}

func loadEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not load .env file", "err", err)
	}
	for legacy, name := range legacyEnv {
		if v, ok := os.LookupEnv(legacy); ok {
			if _, set := os.LookupEnv(name); !set {
				_ = os.Setenv(name, v)
			}
		}
	}
}

func main() {
	loadEnv()

	var (
		options *Options
		slogger *slog.Logger
	)
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		options, slogger = opts, logger.New(&opts.Options,
			slog.String("service", "contact-api"), slog.String("version", version))

		srv := api.NewServer(&opts.ServerOptions, nil, slogger)
		hooks.OnStart(func() {
			ctx := context.Background()
			store, closeStore, err := db.NewStore(ctx, &opts.StoreOptions, slogger)
			if err != nil {
				slogger.Error("failed to open contacts store", "err", err)
				os.Exit(1)
			}
			defer func() {
				if err := closeStore(context.WithoutCancel(ctx)); err != nil {
					slogger.Warn("could not close contacts store", "err", err)
				}
			}()

			srv.Handler, _ = api.NewRouter(&opts.RouterOptions, title, version, revision, created, store, slogger)
			slogger.Info("server listening", "addr", srv.Addr, "docs", opts.EndpointsPrefix+"/docs")
			err = srv.ListenAndServe()
			if err != http.ErrServerClosed {
				slogger.Error("failed to listen and serve", "err", err)
			} else {
				slogger.Info("server closed")
			}
		})
		hooks.OnStop(func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			err := srv.Shutdown(ctx)
			if err != nil {
				slogger.Warn("could not shutdown the server", "err", err)
			}
		})
	})

	cli.Root().Use = "contact-api"
	cli.Root().Version = version
	cli.Root().AddCommand(
		&cobra.Command{
			Use:   "openapi",
			Short: "Print the OpenAPI document",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				_, hapi := api.NewRouter(&options.RouterOptions, title, version, revision, created, nil, slogger)
				b, err := hapi.OpenAPI().YAML()
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(b)
				return err
			},
		},
		&cobra.Command{
			Use:   "seed",
			Short: "Replace the stored contacts with sample contacts",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				store, err := db.Open(cmd.Context(), &options.StoreOptions, slogger)
				if err != nil {
					return err
				}
				defer store.Close(context.WithoutCancel(cmd.Context())) //nolint: errcheck
				return db.Seed(cmd.Context(), store, db.SampleContacts(), cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "check-db",
			Short: "Check the connection to MongoDB",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				store, err := db.Open(cmd.Context(), &options.StoreOptions, slogger)
				if err != nil {
					return fmt.Errorf("connecting to MongoDB: %w", err)
				}
				defer store.Close(context.WithoutCancel(cmd.Context())) //nolint: errcheck
				return db.Check(cmd.Context(), store, cmd.OutOrStdout())
			},
		},
	)
	cli.Run()
}

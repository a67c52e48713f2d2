// Command registry runs the OCI/Docker Registry HTTP API v2 storage and
// upload engine as a standalone HTTP server.
package main

import (
	"fmt"
	"net/http"
	"os"

	gorhandlers "github.com/gorilla/handlers"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ocireg/registry/configuration"
	"github.com/ocireg/registry/registry/handlers"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "registry",
		Short: "OCI/Docker registry storage and upload engine",
	}
	root.AddCommand(newServeCommand())
	return root
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve <config.yml>",
		Short: "run the registry HTTP server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(args[0])
		},
	}
}

func serve(configPath string) error {
	fp, err := os.Open(configPath)
	if err != nil {
		return fmt.Errorf("open configuration: %w", err)
	}
	defer fp.Close()

	config, err := configuration.Parse(fp)
	if err != nil {
		return fmt.Errorf("parse configuration: %w", err)
	}

	configureLogging(config.Log)

	app, err := handlers.NewApp(handlers.Config{
		StorageRoot: config.Storage.RootDirectory,
		UploadTTL:   config.Storage.UploadTTL,
		ReadOnly:    config.HTTP.ReadOnly,
	})
	if err != nil {
		return fmt.Errorf("initialize registry: %w", err)
	}
	defer app.Close()

	handler := gorhandlers.CombinedLoggingHandler(os.Stdout, handlers.NewRouter(app))

	logrus.Infof("listening on %s, storage root %s", config.HTTP.Addr, config.Storage.RootDirectory)
	return http.ListenAndServe(config.HTTP.Addr, handler)
}

func configureLogging(cfg configuration.LogConfiguration) {
	if cfg.Level != "" {
		level, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			logrus.Warnf("invalid log level %q, using info: %v", cfg.Level, err)
			level = logrus.InfoLevel
		}
		logrus.SetLevel(level)
	}

	switch cfg.Formatter {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
	default:
		logrus.Warnf("unsupported log formatter %q, using text", cfg.Formatter)
	}
}

// Command web serves the chart pages and the chart API.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"markscope/internal/app"
	"markscope/internal/config"
)

func main() {
	configFile := flag.String("config", "", "path to config.yaml (defaults to the executable directory)")
	flag.Parse()

	if err := run(*configFile); err != nil {
		slog.Error("markscope web exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(configFile string) error {
	load := config.Load
	if configFile != "" {
		load = func() (*config.Config, error) { return config.LoadFrom(configFile) }
	}
	cfg, err := load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	application, err := app.NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}
	return application.Run()
}

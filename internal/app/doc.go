// Package app wires markscope together and owns its lifecycle.
//
// # Initialization Flow
//
//	1. Load configuration from config.yaml, .env and MARKSCOPE_* variables
//	2. Resolve paths relative to the base directory and create output dirs
//	3. Initialize logging and OpenTelemetry (traces, Prometheus metrics)
//	4. Build the snapshot loader, chart assembler, renderer and chart cache
//	5. Build the chart, export and health services
//	6. Mount handlers behind the middleware chain and create the HTTP server
//
// BuildServices is exported so the offline renderer in cmd/render shares
// exactly the pipeline the server uses.
//
// # Usage
//
//	app, err := app.NewApplication(nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := app.Run(); err != nil {
//	    log.Fatal(err)
//	}
//
// Run blocks until SIGINT or SIGTERM, then drains in-flight requests for at
// most Server.ShutdownTimeout before closing the cache and flushing telemetry.
package app

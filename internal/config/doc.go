// Package config loads the application configuration.
//
// # Configuration Sources
//
// Values are layered in increasing order of precedence:
//
//	1. Default()
//	2. A YAML file: config.yaml or configs/config.yaml
//	3. A .env file in the working directory (never overrides the real environment)
//	4. Environment variables
//
// # Environment Variables
//
// Variables are prefixed with MARKSCOPE and follow the struct nesting:
//
//	MARKSCOPE_SERVER_PORT=8080
//	MARKSCOPE_PATHS_DATA_DIR=/srv/markscope/data
//	MARKSCOPE_LOGGING_LEVEL=debug
//	MARKSCOPE_CACHE_ENABLED=true
//	MARKSCOPE_CACHE_HOST=redis
//
// # Path Management
//
// Relative paths resolve against Paths.BaseDir, or the executable's directory
// when no base is configured, so the binary behaves the same whatever the
// working directory:
//
//	paths, err := cfg.ResolvePaths()
//	export := paths.GetExportPath("marks.xlsx")
package config

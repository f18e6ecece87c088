// Command meshctl is the engine's entry point: serve the HTTP API,
// run database migrations, or check a running instance's health.
package main

import (
	"fmt"
	"os"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "migrate":
		runMigrate(os.Args[2:])
	case "version":
		printVersion()
	case "health":
		runHealthCheck(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("meshctl %s\n", Version)
	fmt.Printf("  build time: %s\n", BuildTime)
	fmt.Printf("  git commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`meshctl - agentmesh engine control plane

Usage:
  meshctl <command> [options]

Commands:
  serve     Start the HTTP API and worker pool
  migrate   Run PostgreSQL schema migrations
  version   Show version information
  health    Check a running instance's health
  help      Show this help message

Options for 'serve':
  --config <path>   Path to configuration file (YAML)

Migration subcommands:
  migrate up        Apply all pending migrations
  migrate down      Roll back the most recent migration
  migrate version   Show the current migration version

Options for 'health':
  --addr <url>   Base URL of the running instance (default http://localhost:8080)

Examples:
  meshctl serve --config config.yaml
  meshctl migrate up --database-url postgres://...
  meshctl health --addr http://localhost:8080`)
}

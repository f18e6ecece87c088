package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/agentmesh/engine/migration"
)

func runMigrate(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: meshctl migrate <up|down|version> [--database-url <dsn>]")
		os.Exit(1)
	}

	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	databaseURL := fs.String("database-url", os.Getenv("AGENTMESH_DATABASE_DSN"), "PostgreSQL connection string")
	fs.Parse(args[1:])

	m, err := migration.New(migration.Config{DatabaseURL: *databaseURL})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open migrator: %v\n", err)
		os.Exit(1)
	}
	defer m.Close()

	ctx := context.Background()
	switch args[0] {
	case "up":
		if err := m.Up(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "migrate up failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("migrations applied")
	case "down":
		if err := m.Down(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "migrate down failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("last migration rolled back")
	case "version":
		version, dirty, ok, err := m.Version(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "migrate version failed: %v\n", err)
			os.Exit(1)
		}
		if !ok {
			fmt.Println("no migrations applied")
			return
		}
		fmt.Printf("version %d (dirty=%v)\n", version, dirty)
	default:
		fmt.Fprintf(os.Stderr, "unknown migrate subcommand: %s\n", args[0])
		os.Exit(1)
	}
}

package main

import (
	"flag"
	"fmt"
	"os"

	"realtycrm/internal/config"
	"realtycrm/internal/database/migrations"
	"realtycrm/internal/logger"
)

func main() {
	var (
		command = flag.String("command", "", "Migration command: up, down, version, force")
		steps   = flag.Int("steps", 0, "Number of migration steps (for down)")
		version = flag.Int("version", 0, "Migration version (for force)")
		envFile = flag.String("env", ".env", "Optional dotenv file")
	)
	flag.Parse()

	if *command == "" {
		fmt.Println("Usage: migrate -command [up|down|version|force] [options]")
		fmt.Println("Commands:")
		fmt.Println("  up             - Apply all pending migrations")
		fmt.Println("  down           - Roll back migrations (all, or -steps N)")
		fmt.Println("  version        - Show current migration version")
		fmt.Println("  force          - Force set migration version (-version N)")
		os.Exit(1)
	}

	if err := run(*command, *steps, *version, *envFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(command string, steps, version int, envFile string) error {
	if err := config.LoadEnvFile(envFile); err != nil {
		return err
	}
	cfg := config.NewConfig()
	log := logger.New(*cfg)

	migrator, err := migrations.NewMigrator(log, cfg.Database.DSN())
	if err != nil {
		return err
	}
	defer func() {
		if err := migrator.Close(); err != nil {
			log.Warn("Failed to close migration instance", "error", err)
		}
	}()

	switch command {
	case "up":
		return migrator.Up()
	case "down":
		return migrator.Down(steps)
	case "version":
		v, dirty, err := migrator.Version()
		if err != nil {
			return fmt.Errorf("failed to get version: %w", err)
		}
		fmt.Printf("Current version: %d\n", v)
		if dirty {
			fmt.Println("Database is in dirty state")
		} else {
			fmt.Println("Database is clean")
		}
		return nil
	case "force":
		if version == 0 {
			return fmt.Errorf("version number required for force command")
		}
		if err := migrator.Force(version); err != nil {
			return err
		}
		fmt.Printf("Migration version forced to %d\n", version)
		return nil
	}
	return fmt.Errorf("unknown command: %s", command)
}

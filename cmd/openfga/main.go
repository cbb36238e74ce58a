package main

import (
	"context"
	"fmt"
	"os"

	"realtycrm/internal/config"
	"realtycrm/internal/database"
	"realtycrm/internal/logger"
	"realtycrm/internal/openfga"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	if err := config.LoadEnvFile(".env"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg := config.NewConfig()
	// Store management does not need a store id, so the client is always enabled here.
	cfg.OpenFGA.Enabled = true

	fgaClient, err := openfga.NewClient(logger.Discard(), cfg.OpenFGA)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx := context.Background()
	switch os.Args[1] {
	case "list-stores":
		err = handleListStores(ctx, fgaClient)
	case "create-store":
		err = handleCreateStore(ctx, fgaClient, os.Args[2:])
	case "write-model":
		err = handleWriteModel(ctx, fgaClient)
	case "list-models":
		err = handleListModels(ctx, fgaClient)
	case "sync-users":
		err = handleSyncUsers(ctx, cfg, fgaClient)
	default:
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func handleListStores(ctx context.Context, fgaClient *openfga.Client) error {
	stores, err := fgaClient.ListStores(ctx)
	if err != nil {
		return err
	}
	for _, store := range stores {
		fmt.Printf("Store ID: %s, Name: %s\n", store.ID, store.Name)
	}
	return nil
}

func handleCreateStore(ctx context.Context, fgaClient *openfga.Client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: openfga create-store <name>")
	}
	id, err := fgaClient.CreateStore(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Created store with ID: %s\n", id)
	fmt.Println("Set OPENFGA_STORE_ID to this value and run write-model.")
	return nil
}

func handleWriteModel(ctx context.Context, fgaClient *openfga.Client) error {
	modelID, err := fgaClient.WriteAuthorizationModel(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Authorization model written with ID: %s\n", modelID)
	return nil
}

func handleListModels(ctx context.Context, fgaClient *openfga.Client) error {
	ids, err := fgaClient.ListModelIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Printf("Model ID: %s\n", id)
	}
	return nil
}

// handleSyncUsers rewrites the grant tuples of every user from the permission sets stored in
// the database, used after enabling OpenFGA on an existing installation or to repair a failed
// sync. Inactive users lose all tuples.
func handleSyncUsers(ctx context.Context, cfg *config.Config, fgaClient *openfga.Client) error {
	db := database.NewDatabase()
	if err := db.Connect(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns)); err != nil {
		return err
	}
	defer db.Close()

	users, err := db.ListUsers(ctx, database.ListUsersParams{})
	if err != nil {
		return err
	}
	grants := openfga.NewGrants(fgaClient)
	for _, u := range users {
		if !u.IsActive() {
			if err := grants.RemoveUser(ctx, u.ID); err != nil {
				return fmt.Errorf("failed to revoke %s: %w", u.LoginID, err)
			}
			fmt.Printf("Revoked %s (inactive)\n", u.LoginID)
			continue
		}
		if err := grants.SyncUser(ctx, u); err != nil {
			return fmt.Errorf("failed to sync %s: %w", u.LoginID, err)
		}
		fmt.Printf("Synced %s (%d permission entries)\n", u.LoginID, len(u.Permissions))
	}
	return nil
}

func printUsage() {
	fmt.Println("Usage: openfga <command>")
	fmt.Println("Commands:")
	fmt.Println("  list-stores            List OpenFGA stores")
	fmt.Println("  create-store <name>    Create a new OpenFGA store")
	fmt.Println("  write-model            Write the authorization model to the configured store")
	fmt.Println("  list-models            List authorization model ids of the configured store")
	fmt.Println("  sync-users             Write grant tuples for every user in the database")
}

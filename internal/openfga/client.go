package openfga

import (
	"context"
	"fmt"
	"log/slog"

	"realtycrm/internal/config"

	fgasdk "github.com/openfga/go-sdk"
	"github.com/openfga/go-sdk/client"
	"github.com/openfga/go-sdk/credentials"
)

// Client wraps the OpenFGA SDK client. A disabled client passes every check.
type Client struct {
	fga    *client.OpenFgaClient
	config config.OpenFGAConfig
	logger *slog.Logger
}

func NewClient(logger *slog.Logger, cfg config.OpenFGAConfig) (*Client, error) {
	logger = logger.With("component", "openfga")
	if !cfg.Enabled {
		logger.Info("OpenFGA is disabled")
		return &Client{config: cfg, logger: logger}, nil
	}

	clientCfg := &client.ClientConfiguration{
		ApiUrl:               cfg.APIURL,
		StoreId:              cfg.StoreID,
		AuthorizationModelId: cfg.AuthorizationModelID,
	}
	if cfg.APIToken != "" {
		clientCfg.Credentials = &credentials.Credentials{
			Method: credentials.CredentialsMethodApiToken,
			Config: &credentials.Config{ApiToken: cfg.APIToken},
		}
	}

	fgaClient, err := client.NewSdkClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenFGA client: %w", err)
	}

	logger.Info("OpenFGA client initialized", "store_id", cfg.StoreID, "model_id", cfg.AuthorizationModelID)
	return &Client{fga: fgaClient, config: cfg, logger: logger}, nil
}

func (c *Client) IsEnabled() bool {
	return c.config.Enabled && c.fga != nil
}

// Verify checks that the configured store is reachable.
func (c *Client) Verify(ctx context.Context) error {
	if !c.IsEnabled() {
		return nil
	}
	store, err := c.fga.GetStore(ctx).Execute()
	if err != nil {
		return fmt.Errorf("failed to get store: %w", err)
	}
	if store.Id != c.config.StoreID {
		return fmt.Errorf("store ID mismatch: expected %s, got %s", c.config.StoreID, store.Id)
	}
	return nil
}

func (c *Client) CheckPermission(ctx context.Context, user, relation, object string) (bool, error) {
	if !c.IsEnabled() {
		return true, nil
	}

	data, err := c.fga.Check(ctx).Body(client.ClientCheckRequest{
		User:     user,
		Relation: relation,
		Object:   object,
	}).Execute()
	if err != nil {
		return false, fmt.Errorf("openfga check %s#%s@%s: %w", object, relation, user, err)
	}

	allowed := data.GetAllowed()
	c.logger.DebugContext(ctx, "OpenFGA check completed", "user", user, "relation", relation, "object", object, "allowed", allowed)
	return allowed, nil
}

// ReadTuples lists every tuple whose user is the given user and whose object has objectType.
func (c *Client) ReadTuples(ctx context.Context, user, objectType string) ([]Tuple, error) {
	if !c.IsEnabled() {
		return nil, nil
	}

	var tuples []Tuple
	var token string
	for {
		opts := client.ClientReadOptions{}
		if token != "" {
			opts.ContinuationToken = fgasdk.PtrString(token)
		}
		resp, err := c.fga.Read(ctx).Body(client.ClientReadRequest{
			User:   fgasdk.PtrString(user),
			Object: fgasdk.PtrString(objectType + ":"),
		}).Options(opts).Execute()
		if err != nil {
			return nil, fmt.Errorf("openfga read tuples for %s: %w", user, err)
		}
		for _, t := range resp.GetTuples() {
			key := t.GetKey()
			tuples = append(tuples, Tuple{User: key.GetUser(), Relation: key.GetRelation(), Object: key.GetObject()})
		}
		token = resp.GetContinuationToken()
		if token == "" {
			return tuples, nil
		}
	}
}

// Write applies additions and deletions in one request.
func (c *Client) Write(ctx context.Context, writes, deletes []Tuple) error {
	if !c.IsEnabled() || (len(writes) == 0 && len(deletes) == 0) {
		return nil
	}

	body := client.ClientWriteRequest{}
	for _, t := range writes {
		body.Writes = append(body.Writes, client.ClientTupleKey{User: t.User, Relation: t.Relation, Object: t.Object})
	}
	for _, t := range deletes {
		body.Deletes = append(body.Deletes, client.ClientTupleKeyWithoutCondition{User: t.User, Relation: t.Relation, Object: t.Object})
	}

	if _, err := c.fga.Write(ctx).Body(body).Execute(); err != nil {
		return fmt.Errorf("openfga write (%d writes, %d deletes): %w", len(writes), len(deletes), err)
	}
	c.logger.DebugContext(ctx, "OpenFGA tuples written", "writes", len(writes), "deletes", len(deletes))
	return nil
}

type Store struct {
	ID   string
	Name string
}

func (c *Client) ListStores(ctx context.Context) ([]Store, error) {
	if !c.IsEnabled() {
		return nil, nil
	}
	resp, err := c.fga.ListStores(ctx).Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to list stores: %w", err)
	}
	stores := make([]Store, 0, len(resp.Stores))
	for _, s := range resp.Stores {
		stores = append(stores, Store{ID: s.Id, Name: s.Name})
	}
	return stores, nil
}

func (c *Client) CreateStore(ctx context.Context, name string) (string, error) {
	if !c.IsEnabled() {
		return "", fmt.Errorf("openfga is disabled")
	}
	resp, err := c.fga.CreateStore(ctx).Body(client.ClientCreateStoreRequest{Name: name}).Execute()
	if err != nil {
		return "", fmt.Errorf("failed to create store: %w", err)
	}
	return resp.Id, nil
}

// WriteAuthorizationModel writes the module permission model to the configured store.
func (c *Client) WriteAuthorizationModel(ctx context.Context) (string, error) {
	if !c.IsEnabled() {
		return "", fmt.Errorf("openfga is disabled")
	}
	body, err := AuthorizationModel()
	if err != nil {
		return "", err
	}
	resp, err := c.fga.WriteAuthorizationModel(ctx).Body(body).Execute()
	if err != nil {
		return "", fmt.Errorf("failed to write authorization model: %w", err)
	}
	return resp.AuthorizationModelId, nil
}

func (c *Client) ListModelIDs(ctx context.Context) ([]string, error) {
	if !c.IsEnabled() {
		return nil, nil
	}
	resp, err := c.fga.ReadAuthorizationModels(ctx).Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to read authorization models: %w", err)
	}
	ids := make([]string, 0, len(resp.AuthorizationModels))
	for _, m := range resp.AuthorizationModels {
		ids = append(ids, m.Id)
	}
	return ids, nil
}

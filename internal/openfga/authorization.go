package openfga

import (
	"context"
	"fmt"
	"slices"

	"realtycrm/internal/model"

	"github.com/google/uuid"
)

const (
	objectTypeModule     = "module"
	relationUnrestricted = "unrestricted"
)

type Tuple struct {
	User     string `json:"user"`
	Relation string `json:"relation"`
	Object   string `json:"object"`
}

func userRef(id uuid.UUID) string {
	return "user:" + id.String()
}

func moduleRef(m model.Module) string {
	return objectTypeModule + ":" + string(m)
}

func actionRelation(a model.Action) string {
	return "can_" + string(a)
}

// DesiredTuples maps a user's permission set onto tuples. An empty set means no narrowing and
// becomes an unrestricted tuple on every module.
func DesiredTuples(user model.User) []Tuple {
	ref := userRef(user.ID)
	var tuples []Tuple
	if len(user.Permissions) == 0 {
		for _, m := range model.Modules {
			tuples = append(tuples, Tuple{User: ref, Relation: relationUnrestricted, Object: moduleRef(m)})
		}
		return tuples
	}
	for _, p := range user.Permissions {
		for _, a := range p.Actions {
			t := Tuple{User: ref, Relation: actionRelation(a), Object: moduleRef(p.Module)}
			if !slices.Contains(tuples, t) {
				tuples = append(tuples, t)
			}
		}
	}
	return tuples
}

// DiffTuples returns what must be written and deleted to move from current to desired.
func DiffTuples(current, desired []Tuple) (writes, deletes []Tuple) {
	for _, t := range desired {
		if !slices.Contains(current, t) {
			writes = append(writes, t)
		}
	}
	for _, t := range current {
		if !slices.Contains(desired, t) {
			deletes = append(deletes, t)
		}
	}
	return writes, deletes
}

// Grants resolves per-user module grants from OpenFGA.
type Grants struct {
	client *Client
}

func NewGrants(client *Client) *Grants {
	return &Grants{client: client}
}

func (g *Grants) Check(ctx context.Context, userID uuid.UUID, module model.Module, action model.Action) (bool, error) {
	return g.client.CheckPermission(ctx, userRef(userID), actionRelation(action), moduleRef(module))
}

// SyncUser replaces the user's module tuples with those derived from the stored permission set.
func (g *Grants) SyncUser(ctx context.Context, user model.User) error {
	current, err := g.client.ReadTuples(ctx, userRef(user.ID), objectTypeModule)
	if err != nil {
		return fmt.Errorf("failed to read grants for user %s: %w", user.ID, err)
	}
	writes, deletes := DiffTuples(current, DesiredTuples(user))
	if err := g.client.Write(ctx, writes, deletes); err != nil {
		return fmt.Errorf("failed to sync grants for user %s: %w", user.ID, err)
	}
	return nil
}

// RemoveUser deletes every module tuple held by the user.
func (g *Grants) RemoveUser(ctx context.Context, userID uuid.UUID) error {
	current, err := g.client.ReadTuples(ctx, userRef(userID), objectTypeModule)
	if err != nil {
		return fmt.Errorf("failed to read grants for user %s: %w", userID, err)
	}
	return g.client.Write(ctx, nil, current)
}

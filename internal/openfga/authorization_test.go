package openfga

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"realtycrm/internal/config"
	"realtycrm/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDesiredTuples_Unrestricted(t *testing.T) {
	user := model.User{ID: uuid.New()}

	tuples := DesiredTuples(user)

	require.Len(t, tuples, len(model.Modules))
	for _, tp := range tuples {
		assert.Equal(t, "unrestricted", tp.Relation)
		assert.Equal(t, "user:"+user.ID.String(), tp.User)
	}
}

func TestDesiredTuples_ExplicitSet(t *testing.T) {
	user := model.User{
		ID: uuid.New(),
		Permissions: []model.Permission{
			{Module: model.ModuleLeads, Actions: []model.Action{model.ActionView, model.ActionCreate, model.ActionView}},
			{Module: model.ModuleTasks, Actions: []model.Action{model.ActionView}},
		},
	}

	tuples := DesiredTuples(user)

	assert.ElementsMatch(t, []Tuple{
		{User: userRef(user.ID), Relation: "can_view", Object: "module:leads"},
		{User: userRef(user.ID), Relation: "can_create", Object: "module:leads"},
		{User: userRef(user.ID), Relation: "can_view", Object: "module:tasks"},
	}, tuples)
}

func TestDiffTuples(t *testing.T) {
	a := Tuple{User: "user:1", Relation: "can_view", Object: "module:leads"}
	b := Tuple{User: "user:1", Relation: "can_edit", Object: "module:leads"}
	c := Tuple{User: "user:1", Relation: "can_view", Object: "module:tasks"}

	writes, deletes := DiffTuples([]Tuple{a, b}, []Tuple{a, c})

	assert.Equal(t, []Tuple{c}, writes)
	assert.Equal(t, []Tuple{b}, deletes)
}

func TestAuthorizationModel_Decodes(t *testing.T) {
	body, err := AuthorizationModel()
	require.NoError(t, err)
	assert.Equal(t, "1.1", body.SchemaVersion)
	require.Len(t, body.TypeDefinitions, 2)
	assert.Equal(t, "module", body.TypeDefinitions[1].Type)
	assert.Contains(t, *body.TypeDefinitions[1].Relations, "can_approve")
}

func TestDisabledClientPassesThrough(t *testing.T) {
	c, err := NewClient(slog.New(slog.NewTextHandler(io.Discard, nil)), config.OpenFGAConfig{Enabled: false})
	require.NoError(t, err)
	g := NewGrants(c)

	ok, err := g.Check(context.Background(), uuid.New(), model.ModuleLeads, model.ActionDelete)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, g.SyncUser(context.Background(), model.User{ID: uuid.New()}))
}

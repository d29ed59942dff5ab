package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/datafold/pkg/kv"
	"github.com/cuemby/datafold/pkg/types"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(kv.NewMemBackend(), nil)
}

func simpleField() types.FieldSpec {
	return types.FieldSpec{
		FieldType: types.FieldTypeSingle,
		PermissionPolicy: types.PermissionPolicy{
			ReadPolicy:  types.NoRequirement(),
			WritePolicy: types.NoRequirement(),
		},
		PaymentConfig: types.PaymentConfig{BaseMultiplier: 1.0},
	}
}

func postSchema() *types.Schema {
	return &types.Schema{
		Name: "Post",
		Fields: map[string]types.FieldSpec{
			"id":      simpleField(),
			"content": simpleField(),
			"author":  simpleField(),
		},
	}
}

func TestAddOrReplaceInsertsAvailable(t *testing.T) {
	r := newTestRegistry(t)

	require.NoError(t, r.AddOrReplace(postSchema()))

	st, ok := r.StateOf("Post")
	require.True(t, ok)
	assert.Equal(t, types.SchemaAvailable, st)
	assert.False(t, r.CanQuery("Post"))
}

func TestApproveBindsFieldRefs(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.AddOrReplace(postSchema()))

	require.NoError(t, r.Approve("Post"))

	st, _ := r.StateOf("Post")
	assert.Equal(t, types.SchemaApproved, st)
	assert.True(t, r.CanQuery("Post"))

	s := r.Get("Post")
	for name, spec := range s.Fields {
		assert.NotEmpty(t, spec.RefAtomUUID, "field %s should have a bound ref", name)
	}
}

func TestReplaceApprovedSchemaAllocatesNewFieldRefs(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.AddOrReplace(postSchema()))
	require.NoError(t, r.Approve("Post"))

	withExtra := postSchema()
	withExtra.Fields["published_at"] = simpleField()
	require.NoError(t, r.AddOrReplace(withExtra))

	st, _ := r.StateOf("Post")
	assert.Equal(t, types.SchemaApproved, st, "replacement should preserve the Approved state")

	s := r.Get("Post")
	for name, spec := range s.Fields {
		assert.NotEmpty(t, spec.RefAtomUUID, "field %s should have a bound ref after replacement", name)
	}
}

func TestApproveIsIdempotent(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.AddOrReplace(postSchema()))
	require.NoError(t, r.Approve("Post"))

	before := r.Get("Post").Fields["id"].RefAtomUUID
	require.NoError(t, r.Approve("Post"))
	after := r.Get("Post").Fields["id"].RefAtomUUID

	assert.Equal(t, before, after)
}

func TestInvalidTransitionRejected(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.AddOrReplace(postSchema()))

	err := r.Block("Post")
	require.NoError(t, err)

	err = r.Block("Post")
	kind, ok := types.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrInvalidTransition, kind)
}

func TestBlockThenApproveRestoresOperability(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.AddOrReplace(postSchema()))
	require.NoError(t, r.Approve("Post"))
	require.NoError(t, r.Block("Post"))

	st, _ := r.StateOf("Post")
	assert.Equal(t, types.SchemaBlocked, st)
	assert.False(t, r.CanQuery("Post"))

	require.NoError(t, r.Approve("Post"))
	assert.True(t, r.CanQuery("Post"))
}

func TestUnloadRemovesSchema(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.AddOrReplace(postSchema()))

	require.NoError(t, r.Unload("Post"))

	_, ok := r.StateOf("Post")
	assert.False(t, ok)
	assert.Nil(t, r.Get("Post"))
}

func TestValidationRejectsNonPositiveMultiplier(t *testing.T) {
	r := newTestRegistry(t)
	s := postSchema()
	f := s.Fields["id"]
	f.PaymentConfig.BaseMultiplier = 0
	s.Fields["id"] = f

	err := r.AddOrReplace(s)
	kind, ok := types.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrSchemaInvalid, kind)
}

func TestRangeSchemaRequiresDeclaredRangeKey(t *testing.T) {
	r := newTestRegistry(t)
	s := &types.Schema{
		Name:       "UserScores",
		SchemaType: types.SchemaTypeRange,
		Range:      &types.RangeConfig{RangeKey: "user_id"},
		Fields: map[string]types.FieldSpec{
			"game_scores": simpleField(),
		},
	}

	err := r.AddOrReplace(s)
	kind, ok := types.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrSchemaInvalid, kind)
}

func TestRangeRefIDDeterministicPerKey(t *testing.T) {
	r := newTestRegistry(t)
	rangeField := simpleField()
	rangeField.FieldType = types.FieldTypeRange
	s := &types.Schema{
		Name:       "UserScores",
		SchemaType: types.SchemaTypeRange,
		Range:      &types.RangeConfig{RangeKey: "user_id"},
		Fields: map[string]types.FieldSpec{
			"user_id":     rangeField,
			"game_scores": rangeField,
		},
	}
	require.NoError(t, r.AddOrReplace(s))
	require.NoError(t, r.Approve("UserScores"))

	ref1, err := r.RefIDFor("UserScores", "game_scores", "u1")
	require.NoError(t, err)
	ref2, err := r.RefIDFor("UserScores", "game_scores", "u1")
	require.NoError(t, err)
	ref3, err := r.RefIDFor("UserScores", "game_scores", "u2")
	require.NoError(t, err)

	assert.Equal(t, ref1, ref2)
	assert.NotEqual(t, ref1, ref3)
}

func TestFieldMapperRename(t *testing.T) {
	r := newTestRegistry(t)

	profile := &types.Schema{
		Name: "UserProfile",
		Fields: map[string]types.FieldSpec{
			"username": simpleField(),
		},
	}
	profile2 := &types.Schema{
		Name: "UserProfile2",
		Fields: map[string]types.FieldSpec{
			"bio": simpleField(),
		},
		SchemaMappers: []types.FieldMapperBlock{
			{
				SourceSchemaName: "UserProfile",
				Rules:            []types.FieldMapperRule{types.RenameRule("username", "user_name")},
			},
		},
	}
	require.NoError(t, r.AddOrReplace(profile))
	require.NoError(t, r.AddOrReplace(profile2))

	fields, err := r.EffectiveFields("UserProfile2")
	require.NoError(t, err)

	origin, ok := fields["user_name"]
	require.True(t, ok)
	assert.Equal(t, "UserProfile", origin.SourceSchema)
	assert.Equal(t, "username", origin.SourceField)
}

func TestMapperCycleRejected(t *testing.T) {
	r := newTestRegistry(t)

	// A mapper block whose rename rule redirects a schema's field back to
	// itself forms a one-node cycle in the rename graph, the smallest case
	// reachable without first registering two mutually dependent schemas
	// (validation requires the source to already exist).
	s := &types.Schema{
		Name: "C",
		Fields: map[string]types.FieldSpec{
			"a": simpleField(),
		},
		SchemaMappers: []types.FieldMapperBlock{
			{SourceSchemaName: "C", Rules: []types.FieldMapperRule{types.RenameRule("a", "a")}},
		},
	}

	err := r.AddOrReplace(s)
	kind, ok := types.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrSchemaInvalid, kind)
}

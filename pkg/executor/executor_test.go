package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/datafold/pkg/atom"
	"github.com/cuemby/datafold/pkg/kv"
	"github.com/cuemby/datafold/pkg/policy"
	"github.com/cuemby/datafold/pkg/schema"
	"github.com/cuemby/datafold/pkg/types"
)

func newTestExecutor(t *testing.T) (*Executor, *schema.Registry, *atom.Manager) {
	t.Helper()
	store := kv.NewMemBackend()
	reg := schema.NewRegistry(store, nil)
	atoms := atom.NewManager(store)
	return New(reg, atoms, policy.NewGate(), nil), reg, atoms
}

func openField() types.FieldSpec {
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
			"id":        openField(),
			"content":   openField(),
			"author":    openField(),
			"timestamp": openField(),
		},
	}
}

// (a) Lifecycle gate.
func TestScenarioLifecycleGate(t *testing.T) {
	ex, reg, _ := newTestExecutor(t)
	require.NoError(t, reg.AddOrReplace(postSchema()))

	_, err := ex.Query(QueryRequest{Schema: "Post", Fields: []string{"id"}}, policy.Caller{})
	kind, ok := types.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrSchemaNotApproved, kind)

	require.NoError(t, reg.Approve("Post"))

	res, err := ex.Query(QueryRequest{Schema: "Post", Fields: []string{"id"}}, policy.Caller{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Count)
	assert.Empty(t, res.Results)
}

// (b) Create-then-read.
func TestScenarioCreateThenRead(t *testing.T) {
	ex, reg, _ := newTestExecutor(t)
	require.NoError(t, reg.AddOrReplace(postSchema()))
	require.NoError(t, reg.Approve("Post"))

	mr, err := ex.Mutation(MutationRequest{
		Schema:       "Post",
		MutationType: types.MutationCreate,
		Data: map[string]types.Value{
			"id":        types.Text("1"),
			"content":   types.Text("hi"),
			"author":    types.Text("a"),
			"timestamp": types.Text("2025-01-01T00:00:00Z"),
		},
	}, policy.Caller{})
	require.NoError(t, err)
	assert.True(t, mr.Success)
	assert.Equal(t, 1, mr.AffectedCount)

	qr, err := ex.Query(QueryRequest{
		Schema: "Post",
		Fields: []string{"id", "content", "author"},
		Filter: map[string]types.Value{"id": types.Text("1")},
	}, policy.Caller{})
	require.NoError(t, err)
	require.Equal(t, 1, qr.Count)
	content, _ := qr.Results[0]["content"].AsText()
	assert.Equal(t, "hi", content)
}

// (c) Update advances chain.
func TestScenarioUpdateAdvancesChain(t *testing.T) {
	ex, reg, atoms := newTestExecutor(t)
	require.NoError(t, reg.AddOrReplace(postSchema()))
	require.NoError(t, reg.Approve("Post"))

	_, err := ex.Mutation(MutationRequest{
		Schema:       "Post",
		MutationType: types.MutationCreate,
		Data: map[string]types.Value{
			"id":      types.Text("1"),
			"content": types.Text("hi"),
		},
	}, policy.Caller{})
	require.NoError(t, err)

	_, err = ex.Mutation(MutationRequest{
		Schema:       "Post",
		MutationType: types.MutationUpdate,
		Filter:       map[string]types.Value{"id": types.Text("1")},
		Data:         map[string]types.Value{"content": types.Text("hi2")},
	}, policy.Caller{})
	require.NoError(t, err)

	qr, err := ex.Query(QueryRequest{
		Schema: "Post",
		Fields: []string{"content"},
		Filter: map[string]types.Value{"id": types.Text("1")},
	}, policy.Caller{})
	require.NoError(t, err)
	require.Equal(t, 1, qr.Count)
	content, _ := qr.Results[0]["content"].AsText()
	assert.Equal(t, "hi2", content)

	refID, err := reg.RefIDFor("Post", "content", "")
	require.NoError(t, err)
	chain, err := atoms.WalkHistory(refID)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	head, _ := chain[0].Content.AsText()
	tail, _ := chain[1].Content.AsText()
	assert.Equal(t, "hi2", head)
	assert.Equal(t, "hi", tail)
}

// (d) Delete tombstones.
func TestScenarioDeleteTombstones(t *testing.T) {
	ex, reg, atoms := newTestExecutor(t)
	require.NoError(t, reg.AddOrReplace(postSchema()))
	require.NoError(t, reg.Approve("Post"))

	_, err := ex.Mutation(MutationRequest{
		Schema:       "Post",
		MutationType: types.MutationCreate,
		Data:         map[string]types.Value{"id": types.Text("1"), "content": types.Text("hi")},
	}, policy.Caller{})
	require.NoError(t, err)
	_, err = ex.Mutation(MutationRequest{
		Schema:       "Post",
		MutationType: types.MutationUpdate,
		Filter:       map[string]types.Value{"id": types.Text("1")},
		Data:         map[string]types.Value{"content": types.Text("hi2")},
	}, policy.Caller{})
	require.NoError(t, err)

	_, err = ex.Mutation(MutationRequest{
		Schema:       "Post",
		MutationType: types.MutationDelete,
		Filter:       map[string]types.Value{"id": types.Text("1")},
	}, policy.Caller{})
	require.NoError(t, err)

	qr, err := ex.Query(QueryRequest{
		Schema: "Post",
		Fields: []string{"id", "content"},
		Filter: map[string]types.Value{"id": types.Text("1")},
	}, policy.Caller{})
	require.NoError(t, err)
	assert.Equal(t, 0, qr.Count)

	refID, err := reg.RefIDFor("Post", "content", "")
	require.NoError(t, err)
	chain, err := atoms.WalkHistory(refID)
	require.NoError(t, err)
	require.Len(t, chain, 3)
	assert.True(t, chain[0].IsTombstone())
	assert.False(t, chain[1].IsTombstone())
	assert.False(t, chain[2].IsTombstone())
}

// (e) Permission denial.
func TestScenarioPermissionDenial(t *testing.T) {
	ex, reg, _ := newTestExecutor(t)
	s := postSchema()
	secret := openField()
	secret.PermissionPolicy.ReadPolicy = types.DistanceRequirement(0)
	s.Fields["secret"] = secret
	require.NoError(t, reg.AddOrReplace(s))
	require.NoError(t, reg.Approve("Post"))

	_, err := ex.Query(QueryRequest{
		Schema: "Post",
		Fields: []string{"secret"},
	}, policy.Caller{TrustDistance: 1})

	kind, ok := types.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrPermissionDenied, kind)
}

// (f) Field mapper rename.
func TestScenarioFieldMapperRename(t *testing.T) {
	ex, reg, _ := newTestExecutor(t)

	profile := &types.Schema{
		Name:   "UserProfile",
		Fields: map[string]types.FieldSpec{"username": openField()},
	}
	profile2 := &types.Schema{
		Name:   "UserProfile2",
		Fields: map[string]types.FieldSpec{},
		SchemaMappers: []types.FieldMapperBlock{
			{
				SourceSchemaName: "UserProfile",
				Rules:            []types.FieldMapperRule{types.RenameRule("username", "user_name")},
			},
		},
	}
	require.NoError(t, reg.AddOrReplace(profile))
	require.NoError(t, reg.AddOrReplace(profile2))
	require.NoError(t, reg.Approve("UserProfile"))
	require.NoError(t, reg.Approve("UserProfile2"))

	_, err := ex.Mutation(MutationRequest{
		Schema:       "UserProfile",
		MutationType: types.MutationCreate,
		Data:         map[string]types.Value{"username": types.Text("alice")},
	}, policy.Caller{})
	require.NoError(t, err)

	qr, err := ex.Query(QueryRequest{
		Schema: "UserProfile2",
		Fields: []string{"user_name"},
	}, policy.Caller{})
	require.NoError(t, err)
	require.Equal(t, 1, qr.Count)
	name, _ := qr.Results[0]["user_name"].AsText()
	assert.Equal(t, "alice", name)
}

// (g) Range schema.
func TestScenarioRangeSchema(t *testing.T) {
	ex, reg, _ := newTestExecutor(t)

	rangeField := openField()
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
	require.NoError(t, reg.AddOrReplace(s))
	require.NoError(t, reg.Approve("UserScores"))

	_, err := ex.Mutation(MutationRequest{
		Schema:       "UserScores",
		MutationType: types.MutationCreate,
		RangeKey:     "u1",
		Data:         map[string]types.Value{"game_scores": types.Int(100)},
	}, policy.Caller{})
	require.NoError(t, err)

	qr, err := ex.Query(QueryRequest{
		Schema:   "UserScores",
		Fields:   []string{"game_scores"},
		RangeKey: "u1",
	}, policy.Caller{})
	require.NoError(t, err)
	require.Equal(t, 1, qr.Count)
	score, _ := qr.Results[0]["game_scores"].AsInt()
	assert.Equal(t, int64(100), score)

	qr2, err := ex.Query(QueryRequest{
		Schema:   "UserScores",
		Fields:   []string{"game_scores"},
		RangeKey: "u2",
	}, policy.Caller{})
	require.NoError(t, err)
	assert.Equal(t, 0, qr2.Count)
}

func TestUpdateOnSingleSchemaRequiresFilter(t *testing.T) {
	ex, reg, _ := newTestExecutor(t)
	require.NoError(t, reg.AddOrReplace(postSchema()))
	require.NoError(t, reg.Approve("Post"))

	_, err := ex.Mutation(MutationRequest{
		Schema:       "Post",
		MutationType: types.MutationUpdate,
		Data:         map[string]types.Value{"content": types.Text("x")},
	}, policy.Caller{})

	kind, ok := types.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrFilterRequired, kind)
}

package engine

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/datafold/pkg/events"
	"github.com/cuemby/datafold/pkg/executor"
	"github.com/cuemby/datafold/pkg/policy"
	"github.com/cuemby/datafold/pkg/types"
)

func writeSchemaFile(t *testing.T, dir, name string, s map[string]interface{}) {
	t.Helper()
	s["name"] = name
	data, err := json.Marshal(s)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".json"), data, 0644))
}

func TestEngineStartDiscoversAndServes(t *testing.T) {
	base := t.TempDir()
	schemaDir := filepath.Join(base, "schemas")
	require.NoError(t, os.MkdirAll(schemaDir, 0755))

	writeSchemaFile(t, schemaDir, "Note", map[string]interface{}{
		"fields": map[string]interface{}{
			"body": map[string]interface{}{
				"field_type": "single",
				"permission_policy": map[string]interface{}{
					"read_policy":  map[string]interface{}{"kind": "no_requirement"},
					"write_policy": map[string]interface{}{"kind": "no_requirement"},
				},
				"payment_config": map[string]interface{}{"base_multiplier": 1.0},
			},
		},
	})

	e, err := New(Config{
		StoreDir:  filepath.Join(base, "store"),
		SchemaDir: schemaDir,
		LogLevel:  "error",
	})
	require.NoError(t, err)
	defer e.Close()

	require.NotNil(t, e.Registry().Get("Note"))

	sub := e.Events().Subscribe(events.SubscribeOptions{Schema: "Note"})
	defer sub.Close()

	require.NoError(t, e.Registry().Approve("Note"))
	select {
	case ev := <-sub.C:
		assert.Equal(t, events.EventSchemaApproved, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for schema.approved event")
	}

	mr, err := e.Executor().Mutation(executor.MutationRequest{
		Schema:       "Note",
		MutationType: types.MutationCreate,
		Data:         map[string]types.Value{"body": types.Text("hello")},
	}, policy.Caller{})
	require.NoError(t, err)
	assert.True(t, mr.Success)

	select {
	case ev := <-sub.C:
		assert.Equal(t, events.EventAtomCreated, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for atom.created event")
	}

	qr, err := e.Executor().Query(executor.QueryRequest{
		Schema: "Note",
		Fields: []string{"body"},
	}, policy.Caller{})
	require.NoError(t, err)
	require.Equal(t, 1, qr.Count)
	body, _ := qr.Results[0]["body"].AsText()
	assert.Equal(t, "hello", body)
}

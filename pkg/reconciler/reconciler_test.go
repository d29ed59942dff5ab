package reconciler

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/datafold/pkg/kv"
	"github.com/cuemby/datafold/pkg/schema"
	"github.com/cuemby/datafold/pkg/types"
)

func writeSchemaFile(t *testing.T, dir string, s *types.Schema) {
	t.Helper()
	data, err := json.Marshal(s)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, s.Name+".json"), data, 0644))
}

func TestReconcilerPicksUpSchemaAddedAfterStart(t *testing.T) {
	dir := t.TempDir()
	store := kv.NewMemBackend()
	reg := schema.NewRegistry(store, nil)
	require.NoError(t, reg.Discover(dir))

	assert.Nil(t, reg.Get("Late"))

	writeSchemaFile(t, dir, &types.Schema{
		Name: "Late",
		Fields: map[string]types.FieldSpec{
			"a": {
				FieldType: types.FieldTypeSingle,
				PermissionPolicy: types.PermissionPolicy{
					ReadPolicy:  types.NoRequirement(),
					WritePolicy: types.NoRequirement(),
				},
				PaymentConfig: types.PaymentConfig{BaseMultiplier: 1.0},
			},
		},
	})

	r := New(reg, dir)
	r.reconcile()

	assert.NotNil(t, reg.Get("Late"))
	state, ok := reg.StateOf("Late")
	require.True(t, ok)
	assert.Equal(t, types.SchemaAvailable, state)
}

func TestReconcilerStartStop(t *testing.T) {
	store := kv.NewMemBackend()
	reg := schema.NewRegistry(store, nil)
	r := New(reg, t.TempDir())
	r.Start()
	time.Sleep(10 * time.Millisecond)
	r.Stop()
}

package schema

import (
	"encoding/json"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/datafold/pkg/log"
	"github.com/cuemby/datafold/pkg/types"
)

// Discover performs the startup sequence: load persisted schemas and
// state, scan schemaDir for schema definitions, then reconcile. It is
// idempotent and safe to call again on a running registry (the
// reconciler calls it periodically).
func (r *Registry) Discover(schemaDir string) error {
	if err := r.loadPersisted(); err != nil {
		return err
	}

	fromDisk, err := scanSchemaDir(schemaDir)
	if err != nil {
		return err
	}

	return r.reconcile(fromDisk)
}

func (r *Registry) loadPersisted() error {
	it, err := r.store.Scan(schemaPrefix)
	if err != nil {
		return types.ErrStorageUnavailable.Wrap(err, "failed to scan persisted schemas")
	}
	r.mu.Lock()
	for {
		key, data, ok := it.Next()
		if !ok {
			break
		}
		var s types.Schema
		if err := json.Unmarshal(data, &s); err != nil {
			log.Logger.Warn().Str("key", key).Err(err).Msg("skipping corrupt persisted schema")
			continue
		}
		r.schemas[s.Name] = &s
	}
	r.mu.Unlock()

	stateIt, err := r.store.Scan(schemaStatePrefix)
	if err != nil {
		return types.ErrStorageUnavailable.Wrap(err, "failed to scan persisted schema states")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		key, data, ok := stateIt.Next()
		if !ok {
			break
		}
		name := key[len(schemaStatePrefix):]
		r.states[name] = types.SchemaState(data)
	}
	return nil
}

// scanSchemaDir reads every *.json, *.yaml, or *.yml file in dir as a
// schema definition. A missing directory is not an error: discovery works
// from persisted state alone for a store with no file-based schemas
// configured.
func scanSchemaDir(dir string) ([]*types.Schema, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, types.NewError(types.ErrStorageUnavailable, "failed to read schema directory: "+err.Error())
	}

	var schemas []*types.Schema
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".json" && ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			log.Logger.Warn().Str("path", path).Err(err).Msg("skipping unreadable schema file")
			continue
		}
		s, unmarshalErr := unmarshalSchemaFile(ext, data)
		if unmarshalErr != nil {
			log.Logger.Warn().Str("path", path).Err(unmarshalErr).Msg("skipping malformed schema file")
			continue
		}
		schemas = append(schemas, s)
	}
	return schemas, nil
}

// unmarshalSchemaFile decodes a schema file by extension. YAML documents
// are decoded generically and re-encoded as JSON before unmarshaling into
// types.Schema, so the json struct tags stay the one source of truth for
// field names across both formats.
func unmarshalSchemaFile(ext string, data []byte) (*types.Schema, error) {
	if ext == ".json" {
		var s types.Schema
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return &s, nil
	}

	var generic interface{}
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, err
	}
	asJSON, err := json.Marshal(generic)
	if err != nil {
		return nil, err
	}
	var s types.Schema
	if err := json.Unmarshal(asJSON, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// reconcile inserts any file-discovered schema not already known to the
// registry as Available. A schema whose persisted state was already
// Approved needs no further action here: Approve writes the state
// transition last, after allocating field refs and persisting the schema
// with them, so a persisted Approved state always comes with its refs. A
// crash mid-approval leaves the persisted state at its pre-transition
// value; the next Approve re-uses the refs stored in the persisted schema
// and allocates fresh ones for any field whose ref had not yet been
// written into it (schema_field_refs entries are not read back).
func (r *Registry) reconcile(fromDisk []*types.Schema) error {
	for _, s := range fromDisk {
		r.mu.RLock()
		_, known := r.schemas[s.Name]
		r.mu.RUnlock()
		if known {
			continue
		}
		if err := r.AddOrReplace(s); err != nil {
			log.Logger.Warn().Str("schema", s.Name).Err(err).Msg("discovered schema failed validation")
			continue
		}
	}
	return nil
}

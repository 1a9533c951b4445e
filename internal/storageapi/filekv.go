package storageapi

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileKeyValueStore persists key-value entries as one JSON file per store,
// written atomically via a temp-file-plus-rename, the same durability idiom
// the teacher uses for checkpoints (internal/engine/checkpoint.go) and this
// module reuses in requestqueue/persistence.go.
type FileKeyValueStore struct {
	path string

	mu     sync.Mutex
	values map[string]json.RawMessage
}

// OpenFileKeyValueStore loads (or creates) the store backing idOrName under
// dir. An empty idOrName names the default store.
func OpenFileKeyValueStore(dir, idOrName string) (*FileKeyValueStore, error) {
	if idOrName == "" {
		idOrName = "default"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storageapi: create key-value dir: %w", err)
	}

	s := &FileKeyValueStore{
		path:   filepath.Join(dir, idOrName+".json"),
		values: make(map[string]json.RawMessage),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileKeyValueStore) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("storageapi: read key-value store: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, &s.values)
}

func (s *FileKeyValueStore) flushLocked() error {
	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("storageapi: create key-value temp file: %w", err)
	}
	enc := json.NewEncoder(f)
	if err := enc.Encode(s.values); err != nil {
		f.Close()
		return fmt.Errorf("storageapi: encode key-value store: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// GetValue returns the raw bytes stored under key, or ok=false if absent.
func (s *FileKeyValueStore) GetValue(key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.values[key]
	if !ok {
		return nil, false, nil
	}
	return []byte(raw), true, nil
}

// SetValue stores value under key and persists immediately.
func (s *FileKeyValueStore) SetValue(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = json.RawMessage(value)
	return s.flushLocked()
}

// GetAutoSavedValue implements the useState convention (spec §4.8): the
// first call with a given key seeds it from defaultValue, persists it, and
// returns the seed map; later calls return a freshly decoded copy. Changes
// made to a returned map are not saved by the store; only a SetValue with
// the re-encoded map writes them back.
func (s *FileKeyValueStore) GetAutoSavedValue(key string, defaultValue any) (map[string]any, error) {
	s.mu.Lock()
	raw, ok := s.values[key]
	s.mu.Unlock()

	if !ok {
		seed, err := toStateMap(defaultValue)
		if err != nil {
			return nil, err
		}
		if err := s.persistStateMap(key, seed); err != nil {
			return nil, err
		}
		return seed, nil
	}

	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("storageapi: decode state %q: %w", key, err)
	}
	return out, nil
}

// PersistAutoSavedValue re-flushes the values the store already holds to
// disk. It does not see changes made to a map returned by
// GetAutoSavedValue; those reach the store only through SetValue.
func (s *FileKeyValueStore) PersistAutoSavedValue(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

func (s *FileKeyValueStore) persistStateMap(key string, m map[string]any) error {
	encoded, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("storageapi: encode state %q: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = json.RawMessage(encoded)
	return s.flushLocked()
}

func toStateMap(defaultValue any) (map[string]any, error) {
	if defaultValue == nil {
		return make(map[string]any), nil
	}
	if m, ok := defaultValue.(map[string]any); ok {
		return m, nil
	}
	encoded, err := json.Marshal(defaultValue)
	if err != nil {
		return nil, fmt.Errorf("storageapi: encode default state value: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(encoded, &out); err != nil {
		return nil, fmt.Errorf("storageapi: default state value is not object-shaped: %w", err)
	}
	return out, nil
}

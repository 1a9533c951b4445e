package storageapi

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// FileStorageClient is the default, local-disk StorageClient (spec §6's
// "CRAWLEE_STORAGE_DIR ... documented as the collaborator contract"):
// key-value stores live as JSON files under <dir>/key_value_stores, status
// messages are logged rather than shipped anywhere, and Purge wipes that
// directory tree on a fresh (non-resumed) run.
type FileStorageClient struct {
	dir string
	log *slog.Logger

	mu     sync.Mutex
	stores map[string]*FileKeyValueStore
}

// NewFileStorageClient roots every store under dir (normally
// $CRAWLEE_STORAGE_DIR, defaulting to "./storage" — see internal/config).
func NewFileStorageClient(dir string, log *slog.Logger) *FileStorageClient {
	if log == nil {
		log = slog.Default()
	}
	return &FileStorageClient{
		dir:    dir,
		log:    log.With("component", "storage_client"),
		stores: make(map[string]*FileKeyValueStore),
	}
}

func (c *FileStorageClient) kvDir() string {
	return filepath.Join(c.dir, "key_value_stores")
}

// OpenKeyValueStore returns the store for idOrName, opening and caching it
// on first use.
func (c *FileStorageClient) OpenKeyValueStore(ctx context.Context, idOrName string) (KeyValueStore, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := idOrName
	if key == "" {
		key = "default"
	}
	if s, ok := c.stores[key]; ok {
		return s, nil
	}

	s, err := OpenFileKeyValueStore(c.kvDir(), key)
	if err != nil {
		return nil, err
	}
	c.stores[key] = s
	return s, nil
}

// SetStatusMessage logs the crawler's periodic status line (spec §4.8's
// statusMessageLoggingInterval) at a level derived from opts.Level.
func (c *FileStorageClient) SetStatusMessage(ctx context.Context, message string, opts StatusMessageOptions) error {
	attrs := []any{"terminal", opts.IsStatusMessageTerminal}
	switch opts.Level {
	case StatusWarning:
		c.log.Warn(message, attrs...)
	case StatusError:
		c.log.Error(message, attrs...)
	default:
		c.log.Info(message, attrs...)
	}
	return nil
}

// Purge removes every default storage under dir, matching spec §4.9's
// "purge default storages once per process" on a fresh run.
func (c *FileStorageClient) Purge(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stores = make(map[string]*FileKeyValueStore)
	if err := os.RemoveAll(c.kvDir()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Teardown is a no-op: every write to a FileKeyValueStore is already
// flushed to disk synchronously, so there is nothing left to drain.
func (c *FileStorageClient) Teardown(ctx context.Context) error {
	return nil
}

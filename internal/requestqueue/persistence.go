package requestqueue

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/types"
)

// CheckpointManager persists Queue state to disk for PERSIST_STATE / resume
// handling, the same atomic temp-file-then-rename write the teacher's
// engine.CheckpointManager uses for crash safety.
type CheckpointManager struct {
	dir string
}

// NewCheckpointManager creates a manager rooted at dir (created on Save).
func NewCheckpointManager(dir string) *CheckpointManager {
	return &CheckpointManager{dir: dir}
}

type checkpointData struct {
	Timestamp  time.Time           `json:"timestamp"`
	Pending    []checkpointRequest `json:"pending"`
	SeenHashes []string            `json:"seen_hashes"`
}

type checkpointRequest struct {
	ID              string         `json:"id"`
	UniqueKey       string         `json:"unique_key"`
	URL             string         `json:"url"`
	Method          string         `json:"method"`
	RetryCount      int            `json:"retry_count"`
	CrawlDepth      int            `json:"crawl_depth"`
	EnqueueStrategy int            `json:"enqueue_strategy"`
	UserData        map[string]any `json:"user_data,omitempty"`
}

// Save snapshots a Queue's pending requests and dedup set to disk.
func (cm *CheckpointManager) Save(q *Queue) error {
	if err := os.MkdirAll(cm.dir, 0o755); err != nil {
		return fmt.Errorf("requestqueue: create checkpoint dir: %w", err)
	}

	pending := q.Snapshot()
	data := checkpointData{
		Timestamp:  time.Now(),
		Pending:    make([]checkpointRequest, len(pending)),
		SeenHashes: q.ExportSeenHashes(),
	}
	for i, r := range pending {
		data.Pending[i] = checkpointRequest{
			ID:              r.ID,
			UniqueKey:       r.UniqueKey,
			URL:             r.URLString(),
			Method:          r.Method,
			RetryCount:      r.RetryCount,
			CrawlDepth:      r.CrawlDepth,
			EnqueueStrategy: int(r.EnqueueStrategy),
			UserData:        r.UserData,
		}
	}

	tmpPath := filepath.Join(cm.dir, "requestqueue.json.tmp")
	finalPath := filepath.Join(cm.dir, "requestqueue.json")

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("requestqueue: create checkpoint temp file: %w", err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		f.Close()
		return fmt.Errorf("requestqueue: encode checkpoint: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("requestqueue: close checkpoint temp file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("requestqueue: rename checkpoint into place: %w", err)
	}
	return nil
}

// HasCheckpoint reports whether a saved checkpoint exists.
func (cm *CheckpointManager) HasCheckpoint() bool {
	_, err := os.Stat(filepath.Join(cm.dir, "requestqueue.json"))
	return err == nil
}

// Load restores a previously saved checkpoint into q.
func (cm *CheckpointManager) Load(q *Queue) error {
	raw, err := os.ReadFile(filepath.Join(cm.dir, "requestqueue.json"))
	if err != nil {
		return fmt.Errorf("requestqueue: read checkpoint: %w", err)
	}
	var data checkpointData
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("requestqueue: decode checkpoint: %w", err)
	}

	requests := make([]*types.Request, 0, len(data.Pending))
	for _, cr := range data.Pending {
		u, err := url.Parse(cr.URL)
		if err != nil {
			continue
		}
		requests = append(requests, &types.Request{
			ID:              cr.ID,
			UniqueKey:       cr.UniqueKey,
			URL:             u,
			Method:          cr.Method,
			RetryCount:      cr.RetryCount,
			CrawlDepth:      cr.CrawlDepth,
			EnqueueStrategy: types.EnqueueStrategy(cr.EnqueueStrategy),
			UserData:        cr.UserData,
			State:           types.StateUnprocessed,
			Headers:         types.NewHeaders(),
			CreatedAt:       time.Now(),
		})
	}

	q.Restore(requests, data.SeenHashes)
	return nil
}

// Clean removes the checkpoint directory entirely (CRAWLEE_PURGE_ON_START).
func (cm *CheckpointManager) Clean() error {
	return os.RemoveAll(cm.dir)
}

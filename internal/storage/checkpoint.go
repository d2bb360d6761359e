package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"trading_go/internal/ledger"
)

// CheckpointManager writes periodic ledger checkpoints to disk so a restart
// recovers cash, positions and the applied-fill set without replaying fills.
type CheckpointManager struct {
	dir string
}

// NewCheckpointManager creates a checkpoint manager.
// dir: directory to store checkpoint files.
func NewCheckpointManager(dir string) *CheckpointManager {
	return &CheckpointManager{dir: dir}
}

// Save writes a ledger snapshot to disk.
func (cm *CheckpointManager) Save(snap ledger.Snapshot) error {
	if err := os.MkdirAll(cm.dir, 0755); err != nil {
		return fmt.Errorf("failed to create checkpoint dir: %w", err)
	}

	filename := fmt.Sprintf("checkpoint_%d.json", snap.TsUnixMicros)
	path := filepath.Join(cm.dir, filename)

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}

	slog.Info("Checkpoint saved",
		slog.Int64("ts", snap.TsUnixMicros),
		slog.String("path", path))
	return nil
}

// LoadLatest loads the most recent checkpoint from disk.
// Returns nil if no checkpoint exists.
func (cm *CheckpointManager) LoadLatest() (*ledger.Snapshot, error) {
	entries, err := os.ReadDir(cm.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // No checkpoints yet
		}
		return nil, fmt.Errorf("failed to read checkpoint dir: %w", err)
	}

	var latestPath string
	var latestTs int64

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		var ts int64
		if _, err := fmt.Sscanf(entry.Name(), "checkpoint_%d.json", &ts); err != nil {
			continue // Not a checkpoint file
		}
		if ts > latestTs {
			latestTs = ts
			latestPath = filepath.Join(cm.dir, entry.Name())
		}
	}

	if latestPath == "" {
		return nil, nil
	}

	data, err := os.ReadFile(latestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var snap ledger.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}

	slog.Info("Checkpoint loaded",
		slog.Int64("ts", snap.TsUnixMicros),
		slog.String("path", latestPath))
	return &snap, nil
}

// Cleanup removes old checkpoints, keeping only the latest N.
func (cm *CheckpointManager) Cleanup(keepCount int) error {
	entries, err := os.ReadDir(cm.dir)
	if err != nil {
		return err
	}

	type ckptFile struct {
		path string
		ts   int64
	}
	var files []ckptFile

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		var ts int64
		if _, err := fmt.Sscanf(entry.Name(), "checkpoint_%d.json", &ts); err == nil {
			files = append(files, ckptFile{path: filepath.Join(cm.dir, entry.Name()), ts: ts})
		}
	}

	if len(files) <= keepCount {
		return nil
	}

	// Sort by timestamp descending; N is small.
	for i := 0; i < len(files); i++ {
		for j := i + 1; j < len(files); j++ {
			if files[j].ts > files[i].ts {
				files[i], files[j] = files[j], files[i]
			}
		}
	}

	for i := keepCount; i < len(files); i++ {
		if err := os.Remove(files[i].path); err != nil {
			slog.Warn("Failed to remove old checkpoint", slog.String("path", files[i].path))
		} else {
			slog.Info("Removed old checkpoint", slog.String("path", files[i].path))
		}
	}
	return nil
}

package memory

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"bnrag/internal/domain"
)

var errNoSnapshot = errors.New("no snapshot")

const lockRetryDelay = 100 * time.Millisecond

type snapshot struct {
	Dimension int
	Records   []domain.EmbeddingRecord
}

func (s snapshot) chunks() []domain.Chunk {
	out := make([]domain.Chunk, len(s.Records))
	for i, r := range s.Records {
		out[i] = r.Chunk
	}
	return out
}

func (s snapshot) vectors() [][]float32 {
	out := make([][]float32, len(s.Records))
	for i, r := range s.Records {
		out[i] = r.Vector
	}
	return out
}

// writeSnapshot replaces the snapshot file atomically while holding an exclusive file lock.
func writeSnapshot(ctx context.Context, path string, snap snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	l := flock.New(path + ".lock")
	locked, err := l.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock snapshot: %w", err)
	}
	if !locked {
		return fmt.Errorf("snapshot %s is locked by another process", path)
	}
	defer func() { _ = l.Unlock() }()

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := gob.NewEncoder(tmp).Encode(snap); err != nil {
		tmp.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

func readSnapshot(ctx context.Context, path string) (snapshot, error) {
	var snap snapshot
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return snap, errNoSnapshot
	}
	l := flock.New(path + ".lock")
	locked, err := l.TryRLockContext(ctx, lockRetryDelay)
	if err != nil {
		return snap, fmt.Errorf("lock snapshot: %w", err)
	}
	if !locked {
		return snap, fmt.Errorf("snapshot %s is locked by another process", path)
	}
	defer func() { _ = l.Unlock() }()

	f, err := os.Open(path)
	if err != nil {
		return snap, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return snap, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	return snap, nil
}

package jobs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"studio/internal/domain"
	"studio/internal/storage"
)

const fileLockRetry = 50 * time.Millisecond

// FileStore is a Store over one user's on-disk job file. It takes the same
// advisory lock as the HTTP handlers, so an in-process poller and API
// writers contend on one inode instead of racing each other.
type FileStore struct {
	store  *storage.FileStore
	userID string
}

// NewFileStore binds a durable job store to a user's registry file.
func NewFileStore(store *storage.FileStore, userID string) *FileStore {
	return &FileStore{store: store, userID: userID}
}

func (s *FileStore) Load(ctx context.Context) ([]domain.BatchJob, error) {
	lock, err := s.lock()
	if err != nil {
		return nil, err
	}
	locked, err := lock.TryRLockContext(ctx, fileLockRetry)
	if err != nil {
		return nil, fmt.Errorf("jobs: lock %s: %w", s.userID, err)
	}
	if !locked {
		return nil, fmt.Errorf("jobs: registry for %s is locked", s.userID)
	}
	defer lock.Unlock()

	var stored []domain.BatchJob
	if _, err := s.store.ReadJSON(ctx, s.key(), &stored); err != nil {
		return nil, err
	}
	return stored, nil
}

// Save merges jobsList into the stored copy under an exclusive lock and
// returns the reconciled set.
func (s *FileStore) Save(ctx context.Context, jobsList []domain.BatchJob) ([]domain.BatchJob, error) {
	lock, err := s.lock()
	if err != nil {
		return nil, err
	}
	locked, err := lock.TryLockContext(ctx, fileLockRetry)
	if err != nil {
		return nil, fmt.Errorf("jobs: lock %s: %w", s.userID, err)
	}
	if !locked {
		return nil, fmt.Errorf("jobs: registry for %s is locked", s.userID)
	}
	defer lock.Unlock()

	var stored []domain.BatchJob
	if _, err := s.store.ReadJSON(ctx, s.key(), &stored); err != nil {
		return nil, err
	}
	merged := Merge(stored, jobsList)
	if err := s.store.WriteJSON(ctx, s.key(), merged); err != nil {
		return nil, err
	}
	return merged, nil
}

func (s *FileStore) key() string {
	return "jobs/" + s.userID + ".json"
}

func (s *FileStore) lock() (*flock.Flock, error) {
	dir := filepath.Join(s.store.BasePath(), "jobs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return flock.New(filepath.Join(dir, s.userID+".json.lock")), nil
}

package jobs

import (
	"context"
	"testing"
	"time"

	"studio/internal/domain"
	"studio/internal/gemini"
	"studio/internal/infra"
	"studio/internal/storage"
)

func newDiskStore(t *testing.T) *storage.FileStore {
	t.Helper()
	s, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return s
}

func TestFileStoreSaveMergesUnderLock(t *testing.T) {
	disk := newDiskStore(t)
	store := NewFileStore(disk, "u1")
	ctx := context.Background()
	now := time.Now().UnixMilli()

	merged, err := store.Save(ctx, []domain.BatchJob{
		{ID: "batches/a", Status: domain.JobStateRunning, Timestamp: now},
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(merged) != 1 {
		t.Fatalf("merged = %+v", merged)
	}

	// a newer terminal write wins, a stale rewrite does not regress it
	if _, err := store.Save(ctx, []domain.BatchJob{
		{ID: "batches/a", Status: domain.JobStateSucceeded, Timestamp: now, UpdatedAt: now + 100, OutputFileURI: "files/out"},
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	merged, err = store.Save(ctx, []domain.BatchJob{
		{ID: "batches/a", Status: domain.JobStateRunning, Timestamp: now},
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if merged[0].Status != domain.JobStateSucceeded || merged[0].OutputFileURI != "files/out" {
		t.Fatalf("stale save regressed: %+v", merged[0])
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 1 || loaded[0].Status != domain.JobStateSucceeded {
		t.Fatalf("loaded = %+v", loaded)
	}
}

func TestFileStoreLoadEmptyRegistry(t *testing.T) {
	store := NewFileStore(newDiskStore(t), "nobody")
	loaded, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 0 {
		t.Fatalf("loaded = %+v", loaded)
	}
}

func TestPollerSweepAdvancesEveryUser(t *testing.T) {
	disk := newDiskStore(t)
	ctx := context.Background()
	now := time.Now().UnixMilli()

	for _, user := range []string{"u1", "u2"} {
		if _, err := NewFileStore(disk, user).Save(ctx, []domain.BatchJob{
			{ID: "batches/" + user, Status: domain.JobStateRunning, Timestamp: now},
		}); err != nil {
			t.Fatalf("seed %s: %v", user, err)
		}
	}

	client := &fakeClient{statuses: map[string]gemini.JobStatus{
		"batches/u1": {State: domain.JobStateSucceeded, OutputFileURI: "files/r1"},
		"batches/u2": {State: domain.JobStateFailed, Error: "quota"},
	}}
	poller := NewPoller(disk, client, infra.Discard(), time.Second)
	poller.Sweep(ctx)

	u1, err := NewFileStore(disk, "u1").Load(ctx)
	if err != nil {
		t.Fatalf("load u1: %v", err)
	}
	if u1[0].Status != domain.JobStateSucceeded || u1[0].OutputFileURI != "files/r1" {
		t.Fatalf("u1 = %+v", u1[0])
	}
	u2, err := NewFileStore(disk, "u2").Load(ctx)
	if err != nil {
		t.Fatalf("load u2: %v", err)
	}
	if u2[0].Status != domain.JobStateFailed || u2[0].Error != "quota" {
		t.Fatalf("u2 = %+v", u2[0])
	}

	// terminal jobs are not polled again
	checked := len(client.checked)
	poller.Sweep(ctx)
	if len(client.checked) != checked {
		t.Fatalf("terminal jobs were re-polled: %v", client.checked)
	}
}

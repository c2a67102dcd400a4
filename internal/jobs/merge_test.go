package jobs

import (
	"reflect"
	"testing"
	"time"

	"studio/internal/domain"
)

func job(id string, status domain.JobState, ts, updated int64) domain.BatchJob {
	return domain.BatchJob{ID: id, Status: status, Timestamp: ts, UpdatedAt: updated}
}

func TestMergeInsertsUnknownJobs(t *testing.T) {
	a := job("batches/a", domain.JobStatePending, 100, 0)
	b := job("batches/b", domain.JobStateRunning, 200, 0)
	got := Merge([]domain.BatchJob{a}, []domain.BatchJob{b})
	if len(got) != 2 {
		t.Fatalf("len = %d", len(got))
	}
	// sorted by timestamp descending
	if got[0].ID != "batches/b" || got[1].ID != "batches/a" {
		t.Fatalf("order = %s, %s", got[0].ID, got[1].ID)
	}
}

func TestMergeGreaterVersionReplaces(t *testing.T) {
	old := domain.BatchJob{ID: "batches/a", Status: domain.JobStatePending, Timestamp: 100, UpdatedAt: 100, Model: "m", DisplayID: "run"}
	newer := domain.BatchJob{ID: "batches/a", Status: domain.JobStateRunning, Timestamp: 100, UpdatedAt: 200}
	got := Merge([]domain.BatchJob{old}, []domain.BatchJob{newer})
	if len(got) != 1 {
		t.Fatalf("len = %d", len(got))
	}
	if got[0].Status != domain.JobStateRunning || got[0].UpdatedAt != 200 {
		t.Fatalf("merged = %+v", got[0])
	}
	// existing fields the incoming record lacks survive as defaults
	if got[0].Model != "m" || got[0].DisplayID != "run" {
		t.Fatalf("existing defaults lost: %+v", got[0])
	}
}

func TestMergeLesserVersionIgnored(t *testing.T) {
	cur := domain.BatchJob{ID: "batches/a", Status: domain.JobStateSucceeded, Timestamp: 100, UpdatedAt: 300, OutputFileURI: "files/out"}
	stale := domain.BatchJob{ID: "batches/a", Status: domain.JobStateRunning, Timestamp: 100, UpdatedAt: 200}
	got := Merge([]domain.BatchJob{cur}, []domain.BatchJob{stale})
	if !reflect.DeepEqual(got, []domain.BatchJob{cur}) {
		t.Fatalf("merged = %+v", got)
	}
}

func TestMergeEqualVersionTerminalWinsEitherOrder(t *testing.T) {
	running := job("batches/a", domain.JobStateRunning, 100, 200)
	done := job("batches/a", domain.JobStateSucceeded, 100, 200)

	ab := Merge([]domain.BatchJob{running}, []domain.BatchJob{done})
	ba := Merge([]domain.BatchJob{done}, []domain.BatchJob{running})
	if ab[0].Status != domain.JobStateSucceeded {
		t.Fatalf("merge(running, done) status = %q", ab[0].Status)
	}
	if ba[0].Status != domain.JobStateSucceeded {
		t.Fatalf("merge(done, running) status = %q", ba[0].Status)
	}
}

func TestMergeEqualVersionExistingWinsTerminalTie(t *testing.T) {
	succeeded := job("batches/a", domain.JobStateSucceeded, 100, 200)
	cancelled := job("batches/a", domain.JobStateCancelled, 100, 200)
	got := Merge([]domain.BatchJob{succeeded}, []domain.BatchJob{cancelled})
	if got[0].Status != domain.JobStateSucceeded {
		t.Fatalf("status = %q, want existing terminal status", got[0].Status)
	}
	got = Merge([]domain.BatchJob{cancelled}, []domain.BatchJob{succeeded})
	if got[0].Status != domain.JobStateCancelled {
		t.Fatalf("status = %q, want existing terminal status", got[0].Status)
	}
}

func TestMergeEqualVersionPreservesOutputURI(t *testing.T) {
	withURI := domain.BatchJob{ID: "batches/a", Status: domain.JobStateSucceeded, Timestamp: 100, UpdatedAt: 200, OutputFileURI: "files/out"}
	withoutURI := job("batches/a", domain.JobStateSucceeded, 100, 200)

	got := Merge([]domain.BatchJob{withURI}, []domain.BatchJob{withoutURI})
	if got[0].OutputFileURI != "files/out" {
		t.Fatalf("output dropped: %+v", got[0])
	}
	got = Merge([]domain.BatchJob{withoutURI}, []domain.BatchJob{withURI})
	if got[0].OutputFileURI != "files/out" {
		t.Fatalf("output not adopted: %+v", got[0])
	}
}

func TestMergeIdempotent(t *testing.T) {
	x := []domain.BatchJob{
		job("batches/a", domain.JobStateRunning, 100, 150),
		job("batches/b", domain.JobStateSucceeded, 90, 0),
	}
	y := []domain.BatchJob{
		job("batches/a", domain.JobStateSucceeded, 100, 150),
		job("batches/c", domain.JobStatePending, 200, 0),
	}
	once := Merge(x, y)
	twice := Merge(once, y)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("merge not idempotent:\n once %+v\ntwice %+v", once, twice)
	}
}

func TestVersionFallback(t *testing.T) {
	if v := (domain.BatchJob{UpdatedAt: 5, Timestamp: 3}).Version(); v != 5 {
		t.Fatalf("version = %d", v)
	}
	if v := (domain.BatchJob{Timestamp: 3}).Version(); v != 3 {
		t.Fatalf("version = %d", v)
	}
	if v := (domain.BatchJob{}).Version(); v != 0 {
		t.Fatalf("version = %d", v)
	}
}

func TestStatusRanks(t *testing.T) {
	if domain.ParseJobState("JOB_STATE_FAILED").Rank() != domain.ParseJobState("SUCCEEDED").Rank() {
		t.Fatal("terminal ranks differ")
	}
	if domain.ParseJobState("CANCELLED").Rank() != domain.JobStateSucceeded.Rank() {
		t.Fatal("cancelled not top rank")
	}
	running := domain.ParseJobState("JOB_STATE_RUNNING")
	pending := domain.ParseJobState("JOB_STATE_PENDING")
	if !(domain.JobStateFailed.Rank() > running.Rank() && running.Rank() > pending.Rank() && pending.Rank() > domain.JobStateUnspecified.Rank()) {
		t.Fatal("rank ordering broken")
	}
}

func TestPrune(t *testing.T) {
	now := time.Now()
	fresh := domain.BatchJob{ID: "fresh", Timestamp: now.Add(-time.Hour).UnixMilli()}
	stale := domain.BatchJob{ID: "stale", Timestamp: now.Add(-8 * 24 * time.Hour).UnixMilli()}
	ageless := domain.BatchJob{ID: "ageless"}

	got := Prune([]domain.BatchJob{fresh, stale, ageless}, now)
	if len(got) != 2 {
		t.Fatalf("len = %d", len(got))
	}
	for _, j := range got {
		if j.ID == "stale" {
			t.Fatal("stale job survived prune")
		}
	}
}

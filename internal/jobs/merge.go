// Package jobs holds the batch job registry: the version/priority merge rule
// reconciling concurrent writers, the client-side registry with its polling
// loop, and the stores that persist the merged set.
package jobs

import (
	"sort"
	"time"

	"studio/internal/domain"
)

// PruneWindow is how long a job stays in the registry after creation. Pruning
// happens at load time only; remote jobs are never deleted.
const PruneWindow = 7 * 24 * time.Hour

// Merge reconciles a locally known job set with a newly fetched one. For each
// incoming job: absent ids insert as-is; a strictly greater derived version
// replaces by overlaying incoming's present fields over the existing record;
// a strictly lesser version is ignored; equal versions shallow-merge with two
// tie-breaks — the status with the higher canonical rank wins (the existing
// side winning rank ties), and a non-empty output location is never dropped.
//
// The rule is deterministic and idempotent: Merge(Merge(x, y), y) equals
// Merge(x, y). The exact same semantics run on the server against its on-disk
// copy, which is what makes concurrent polling tabs converge.
func Merge(existing, incoming []domain.BatchJob) []domain.BatchJob {
	merged := make(map[string]domain.BatchJob, len(existing)+len(incoming))
	for _, job := range existing {
		merged[job.ID] = job
	}

	for _, inc := range incoming {
		cur, ok := merged[inc.ID]
		if !ok {
			merged[inc.ID] = inc
			continue
		}
		switch {
		case inc.Version() > cur.Version():
			merged[inc.ID] = overlay(cur, inc)
		case inc.Version() < cur.Version():
			// stale record, ignore
		default:
			next := overlay(cur, inc)
			if cur.Status.Rank() >= inc.Status.Rank() {
				next.Status = cur.Status
			} else {
				next.Status = inc.Status
			}
			if cur.OutputFileURI != "" {
				next.OutputFileURI = cur.OutputFileURI
			}
			merged[inc.ID] = next
		}
	}

	out := make([]domain.BatchJob, 0, len(merged))
	for _, job := range merged {
		out = append(out, job)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp > out[j].Timestamp
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// overlay shallow-merges patch over base: base's fields are defaults, every
// present (non-zero) field of patch wins.
func overlay(base, patch domain.BatchJob) domain.BatchJob {
	merged := base
	if patch.ID != "" {
		merged.ID = patch.ID
	}
	if patch.DisplayID != "" {
		merged.DisplayID = patch.DisplayID
	}
	if patch.Status != "" {
		merged.Status = patch.Status
	}
	if patch.CreatedAt != "" {
		merged.CreatedAt = patch.CreatedAt
	}
	if patch.Timestamp != 0 {
		merged.Timestamp = patch.Timestamp
	}
	if patch.UpdatedAt != 0 {
		merged.UpdatedAt = patch.UpdatedAt
	}
	if patch.Model != "" {
		merged.Model = patch.Model
	}
	if patch.OutputFileURI != "" {
		merged.OutputFileURI = patch.OutputFileURI
	}
	if patch.Error != "" {
		merged.Error = patch.Error
	}
	return merged
}

// Prune drops jobs older than the retention window. Jobs without a creation
// timestamp are kept, since their age is unknowable.
func Prune(jobsList []domain.BatchJob, now time.Time) []domain.BatchJob {
	out := make([]domain.BatchJob, 0, len(jobsList))
	for _, job := range jobsList {
		if job.Timestamp != 0 && job.Age(now) > PruneWindow {
			continue
		}
		out = append(out, job)
	}
	return out
}

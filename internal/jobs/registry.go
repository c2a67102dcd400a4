package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"studio/internal/domain"
	"studio/internal/gemini"
	"studio/internal/infra"
)

// Store is the durable home of a user's job set. Save hands the full local
// set to the store, which merges it against its own copy and returns the
// reconciled result; the registry is a cache, never the source of truth.
type Store interface {
	Load(ctx context.Context) ([]domain.BatchJob, error)
	Save(ctx context.Context, jobsList []domain.BatchJob) ([]domain.BatchJob, error)
}

// StatusClient is the slice of the provider client the registry needs.
type StatusClient interface {
	GetStatus(ctx context.Context, jobID string) (gemini.JobStatus, error)
	Cancel(ctx context.Context, jobID string) error
}

const (
	pollConcurrency = 4
	// cancelRecheckDelay is how long after an optimistic cancel the registry
	// waits before reconciling against the provider's actual state.
	cancelRecheckDelay = 5 * time.Second
)

// Registry is the client-side job cache: it loads the persisted set, keeps
// non-terminal jobs polled, and funnels every state change through Merge so
// concurrent pollers cannot corrupt it.
type Registry struct {
	store    Store
	client   StatusClient
	logger   infra.Logger
	interval time.Duration

	// recheckDelay is how long Cancel waits before the reconciling status
	// fetch; tests shrink it.
	recheckDelay time.Duration

	mu   sync.Mutex
	jobs []domain.BatchJob

	now func() time.Time
}

// NewRegistry constructs a registry. Interval zero means the default ten
// second polling period.
func NewRegistry(store Store, client StatusClient, logger infra.Logger, interval time.Duration) *Registry {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Registry{
		store:        store,
		client:       client,
		logger:       logger,
		interval:     interval,
		recheckDelay: cancelRecheckDelay,
		now:          time.Now,
	}
}

// Load fetches the durable set, prunes jobs past the retention window and
// merges the rest into memory.
func (r *Registry) Load(ctx context.Context) error {
	loaded, err := r.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("jobs: load registry: %w", err)
	}
	loaded = Prune(loaded, r.now())
	r.mu.Lock()
	r.jobs = Merge(r.jobs, loaded)
	r.mu.Unlock()
	return nil
}

// Jobs returns a copy of the current set, newest first.
func (r *Registry) Jobs() []domain.BatchJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.BatchJob, len(r.jobs))
	copy(out, r.jobs)
	return out
}

// Get looks a job up by id.
func (r *Registry) Get(id string) (domain.BatchJob, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, job := range r.jobs {
		if job.ID == id {
			return job, true
		}
	}
	return domain.BatchJob{}, false
}

// Add merges a freshly created job into the set and persists.
func (r *Registry) Add(ctx context.Context, job domain.BatchJob) error {
	return r.apply(ctx, []domain.BatchJob{job})
}

// Refresh runs one user-initiated status check for a single job. On provider
// failure the local record stays untouched so the user can retry.
func (r *Registry) Refresh(ctx context.Context, id string) (domain.BatchJob, error) {
	job, ok := r.Get(id)
	if !ok {
		return domain.BatchJob{}, fmt.Errorf("jobs: %q: %w", id, domain.ErrNotFound)
	}
	status, err := r.client.GetStatus(ctx, id)
	if err != nil {
		return job, fmt.Errorf("jobs: check %q: %w", id, err)
	}
	updated := r.applyStatus(job, status)
	if err := r.apply(ctx, []domain.BatchJob{updated}); err != nil {
		return updated, err
	}
	refreshed, _ := r.Get(id)
	return refreshed, nil
}

// PollOnce refreshes every non-terminal job with bounded concurrency and
// merges whatever succeeded. Individual check failures are logged, not
// surfaced: the next tick is the retry.
func (r *Registry) PollOnce(ctx context.Context) error {
	var pending []domain.BatchJob
	for _, job := range r.Jobs() {
		if !job.Status.Terminal() {
			pending = append(pending, job)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	updates := make([]domain.BatchJob, len(pending))
	found := make([]bool, len(pending))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(pollConcurrency)
	for i, job := range pending {
		g.Go(func() error {
			status, err := r.client.GetStatus(gctx, job.ID)
			if err != nil {
				r.logger.Warn().Err(err).Str("job_id", job.ID).Msg("jobs: poll status check failed")
				return nil
			}
			updates[i] = r.applyStatus(job, status)
			found[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var changed []domain.BatchJob
	for i, ok := range found {
		if ok {
			changed = append(changed, updates[i])
		}
	}
	if len(changed) == 0 {
		return nil
	}
	return r.apply(ctx, changed)
}

// Run polls on the configured interval until ctx is cancelled. Poll failures
// never stop the loop.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.PollOnce(ctx); err != nil && ctx.Err() == nil {
				r.logger.Warn().Err(err).Msg("jobs: background poll failed")
			}
		}
	}
}

// Cancel requests remote cancellation, optimistically marks the job cancelled
// locally, then waits out the recheck delay and reconciles against the
// provider's actual state before returning. The provider gives no guarantee
// the job stops at the moment of the request, so the reconciling fetch is
// part of the operation, not an optimization. A failed reconciliation keeps
// the optimistic mark and is logged, not returned.
func (r *Registry) Cancel(ctx context.Context, id string) error {
	job, ok := r.Get(id)
	if !ok {
		return fmt.Errorf("jobs: %q: %w", id, domain.ErrNotFound)
	}
	if job.Status.Terminal() {
		return nil
	}
	if err := r.client.Cancel(ctx, id); err != nil {
		return fmt.Errorf("jobs: cancel %q: %w", id, err)
	}

	job.Status = domain.JobStateCancelled
	job.UpdatedAt = r.now().UnixMilli()
	if err := r.apply(ctx, []domain.BatchJob{job}); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(r.recheckDelay):
	}
	if _, err := r.Refresh(ctx, id); err != nil {
		r.logger.Warn().Err(err).Str("job_id", id).Msg("jobs: cancel reconciliation failed")
	}
	return nil
}

// ResultLocation checks the precondition for fetching results: the job must
// be terminal-success with a known output file.
func (r *Registry) ResultLocation(id string) (string, error) {
	job, ok := r.Get(id)
	if !ok {
		return "", fmt.Errorf("jobs: %q: %w", id, domain.ErrNotFound)
	}
	if job.Status != domain.JobStateSucceeded {
		return "", fmt.Errorf("jobs: %q is %s, results are only available once it has succeeded: %w",
			id, job.Status, domain.ErrJobNotTerminal)
	}
	if job.OutputFileURI == "" {
		return "", fmt.Errorf("jobs: %q succeeded but reported no output file: %w", id, domain.ErrNotFound)
	}
	return job.OutputFileURI, nil
}

// applyStatus folds one status check result into a job record, stamping the
// merge version.
func (r *Registry) applyStatus(job domain.BatchJob, status gemini.JobStatus) domain.BatchJob {
	job.Status = status.State
	job.UpdatedAt = r.now().UnixMilli()
	if status.OutputFileURI != "" && job.OutputFileURI == "" {
		job.OutputFileURI = status.OutputFileURI
	}
	if status.Error != "" {
		job.Error = status.Error
	}
	return job
}

// apply merges changes locally, persists through the store, and adopts the
// store's reconciled copy.
func (r *Registry) apply(ctx context.Context, changed []domain.BatchJob) error {
	r.mu.Lock()
	r.jobs = Merge(r.jobs, changed)
	local := make([]domain.BatchJob, len(r.jobs))
	copy(local, r.jobs)
	r.mu.Unlock()

	persisted, err := r.store.Save(ctx, local)
	if err != nil {
		return fmt.Errorf("jobs: persist registry: %w", err)
	}
	r.mu.Lock()
	r.jobs = Merge(r.jobs, persisted)
	r.mu.Unlock()
	return nil
}

package jobs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"studio/internal/infra"
	"studio/internal/storage"
)

// Poller sweeps every user registry file on disk and refreshes non-terminal
// jobs against the provider. It exists so results keep arriving while no
// browser tab is open; each sweep goes through the same per-user FileStore
// locks as the API handlers.
type Poller struct {
	store    *storage.FileStore
	client   StatusClient
	logger   infra.Logger
	interval time.Duration
}

func NewPoller(store *storage.FileStore, client StatusClient, logger infra.Logger, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Poller{store: store, client: client, logger: logger, interval: interval}
}

// Run sweeps until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Sweep(ctx)
		}
	}
}

// Sweep polls every user registry once. Per-user failures are logged and do
// not stop the sweep.
func (p *Poller) Sweep(ctx context.Context) {
	for _, userID := range p.users() {
		reg := NewRegistry(NewFileStore(p.store, userID), p.client, p.logger, p.interval)
		if err := reg.Load(ctx); err != nil {
			p.logger.Warn().Err(err).Str("user", userID).Msg("poller: load registry")
			continue
		}
		if err := reg.PollOnce(ctx); err != nil {
			p.logger.Warn().Err(err).Str("user", userID).Msg("poller: poll registry")
		}
	}
}

func (p *Poller) users() []string {
	entries, err := os.ReadDir(filepath.Join(p.store.BasePath(), "jobs"))
	if err != nil {
		return nil
	}
	var users []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		users = append(users, strings.TrimSuffix(name, ".json"))
	}
	return users
}

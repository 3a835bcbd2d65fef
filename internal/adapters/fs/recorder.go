package fs

import (
	"context"
	"os"
	"time"

	"github.com/bft-labs/preflight/internal/domain"
	"github.com/bft-labs/preflight/internal/ports"
	"github.com/bft-labs/preflight/pkg/log"
	"github.com/bft-labs/preflight/pkg/preflight"
)

// StatusRecorder writes a status snapshot on every lifecycle transition.
// It implements preflight.EventHandler.
type StatusRecorder struct {
	preflight.BaseEventHandler

	repo      ports.StatusRepository
	logger    log.Logger
	pid       int
	startedAt time.Time
	now       func() time.Time
}

var _ preflight.EventHandler = (*StatusRecorder)(nil)

// NewStatusRecorder creates a recorder for the current process.
func NewStatusRecorder(repo ports.StatusRepository, logger log.Logger) *StatusRecorder {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &StatusRecorder{
		repo:      repo,
		logger:    logger,
		pid:       os.Getpid(),
		startedAt: time.Now(),
		now:       time.Now,
	}
}

// OnStateChange saves the new state. Write failures are logged and otherwise
// ignored; the status file is advisory.
func (r *StatusRecorder) OnStateChange(e preflight.StateChangeEvent) {
	status := domain.Status{
		PID:       r.pid,
		State:     e.Current.String(),
		Previous:  e.Previous.String(),
		Reason:    e.Reason,
		StartedAt: r.startedAt,
		UpdatedAt: r.now(),
	}

	if err := r.repo.Save(context.Background(), status); err != nil {
		r.logger.Warn("failed to write status file",
			log.String("state", status.State),
			log.Err(err))
	}
}

package ports

import (
	"context"

	"github.com/bft-labs/preflight/internal/domain"
)

// StatusRepository persists the orchestrator status snapshot.
// Save must be atomic so readers never observe a partial write.
type StatusRepository interface {
	// Load returns the last saved status, or a zero Status and nil error if
	// none exists.
	Load(ctx context.Context) (domain.Status, error)

	// Save replaces the stored status.
	Save(ctx context.Context, status domain.Status) error
}

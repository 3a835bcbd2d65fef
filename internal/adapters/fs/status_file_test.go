package fs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bft-labs/preflight/internal/domain"
	"github.com/bft-labs/preflight/pkg/preflight"
)

func TestStatusFileRepository_LoadMissing(t *testing.T) {
	repo := NewStatusFileRepository(filepath.Join(t.TempDir(), "status.json"))

	got, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != (domain.Status{}) {
		t.Errorf("Load() = %+v, want zero", got)
	}
}

func TestStatusFileRepository_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "status.json")
	repo := NewStatusFileRepository(path)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	want := domain.Status{PID: 42, State: "Running", Previous: "Starting", Reason: "server started", StartedAt: now, UpdatedAt: now}
	if err := repo.Save(context.Background(), want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}

	got, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !got.UpdatedAt.Equal(want.UpdatedAt) || got.State != want.State || got.PID != want.PID || got.Reason != want.Reason {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}
}

func TestStatusFileRepository_LoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := NewStatusFileRepository(path).Load(context.Background()); err == nil {
		t.Error("Load() error = nil for corrupt file")
	}
}

func TestStatusFileRepository_Remove(t *testing.T) {
	repo := NewStatusFileRepository(filepath.Join(t.TempDir(), "status.json"))

	if err := repo.Remove(); err != nil {
		t.Errorf("Remove() on missing file = %v", err)
	}
	if err := repo.Save(context.Background(), domain.Status{State: "Idle"}); err != nil {
		t.Fatal(err)
	}
	if err := repo.Remove(); err != nil {
		t.Errorf("Remove() = %v", err)
	}
	if _, err := os.Stat(repo.Path()); !os.IsNotExist(err) {
		t.Error("status file still present")
	}
}

type failingRepo struct{}

func (failingRepo) Load(context.Context) (domain.Status, error) { return domain.Status{}, nil }
func (failingRepo) Save(context.Context, domain.Status) error    { return errors.New("read-only file system") }

func TestStatusRecorder_WritesTransitions(t *testing.T) {
	repo := NewStatusFileRepository(filepath.Join(t.TempDir(), "status.json"))
	rec := NewStatusRecorder(repo, nil)

	rec.OnStateChange(preflight.StateChangeEvent{Previous: preflight.StateStarting, Current: preflight.StateRunning, Reason: "server started"})

	got, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.State != "Running" || got.Previous != "Starting" || got.PID != os.Getpid() {
		t.Errorf("status = %+v", got)
	}
}

func TestStatusRecorder_SaveErrorIgnored(t *testing.T) {
	rec := NewStatusRecorder(failingRepo{}, nil)
	rec.OnStateChange(preflight.StateChangeEvent{Current: preflight.StateFailed})
}

func TestStatusRecorder_WithOrchestrator(t *testing.T) {
	repo := NewStatusFileRepository(filepath.Join(t.TempDir(), "status.json"))
	orch, err := preflight.New(preflight.DefaultConfig(),
		preflight.WithEventHandler(NewStatusRecorder(repo, nil)),
		preflight.WithExit(func(int) {}),
	)
	if err != nil {
		t.Fatal(err)
	}

	_ = orch.Bootstrap(context.Background())

	got, _ := repo.Load(context.Background())
	if got.State != "Failed" {
		t.Errorf("State = %q, want Failed", got.State)
	}
}

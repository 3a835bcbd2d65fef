package preflight

import (
	"context"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bft-labs/preflight/pkg/log"
)

// logEntry is one captured log line.
type logEntry struct {
	level  string
	msg    string
	fields []log.Field
}

// recordingLogger implements log.Logger and keeps every line.
type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (r *recordingLogger) add(level, msg string, fields []log.Field) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, logEntry{level, msg, fields})
}

func (r *recordingLogger) Debug(msg string, fields ...log.Field) { r.add("debug", msg, fields) }
func (r *recordingLogger) Info(msg string, fields ...log.Field)  { r.add("info", msg, fields) }
func (r *recordingLogger) Warn(msg string, fields ...log.Field)  { r.add("warn", msg, fields) }
func (r *recordingLogger) Error(msg string, fields ...log.Field) { r.add("error", msg, fields) }

func (r *recordingLogger) find(msg string) (logEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if strings.Contains(e.msg, msg) {
			return e, true
		}
	}
	return logEntry{}, false
}

func (r *recordingLogger) has(msg string) bool {
	_, ok := r.find(msg)
	return ok
}

func (e logEntry) field(key string) (interface{}, bool) {
	for _, f := range e.fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// fakeServer implements Server and Stopper.
type fakeServer struct {
	startDelay time.Duration
	startErr   error
	block      bool
	stopErr    error
	stopPanic  bool
	stopDelay  time.Duration

	starts atomic.Int32
	stops  atomic.Int32
}

func (f *fakeServer) Start(ctx context.Context) error {
	f.starts.Add(1)
	if f.block {
		select {}
	}
	if f.startDelay > 0 {
		time.Sleep(f.startDelay)
	}
	return f.startErr
}

func (f *fakeServer) Stop(ctx context.Context) error {
	f.stops.Add(1)
	if f.stopPanic {
		panic("stop exploded")
	}
	if f.stopDelay > 0 {
		select {
		case <-time.After(f.stopDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.stopErr
}

// startOnly implements Server without Stopper.
type startOnly struct{}

func (startOnly) Start(context.Context) error { return nil }

// exitRecorder replaces os.Exit.
type exitRecorder struct {
	mu    sync.Mutex
	codes []int
}

func (e *exitRecorder) exit(code int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.codes = append(e.codes, code)
}

func (e *exitRecorder) Codes() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]int{}, e.codes...)
}

// countingAuditor implements Auditor.
type countingAuditor struct {
	res   Result
	calls atomic.Int32
}

func (c *countingAuditor) Run(context.Context) Result {
	c.calls.Add(1)
	return c.res
}

func okValidator() Validator {
	return ValidatorFunc(func(context.Context) error { return nil })
}

// signalChan returns a SignalSource fed by the returned channel.
func signalChan() (chan os.Signal, SignalSource) {
	ch := make(chan os.Signal, 2)
	return ch, func() (<-chan os.Signal, func()) { return ch, func() {} }
}

type testEnv struct {
	orch   *Orchestrator
	logger *recordingLogger
	exits  *exitRecorder
}

func newTestOrchestrator(t *testing.T, cfg Config, opts ...Option) testEnv {
	t.Helper()
	env := testEnv{logger: &recordingLogger{}, exits: &exitRecorder{}}
	base := []Option{
		WithLogger(env.logger),
		WithExit(env.exits.exit),
		WithSignalSource(func() (<-chan os.Signal, func()) { return make(chan os.Signal), func() {} }),
	}
	orch, err := New(cfg, append(base, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	env.orch = orch
	return env
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

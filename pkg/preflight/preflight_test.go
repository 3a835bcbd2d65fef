package preflight

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"negative startup timeout", Config{StartupTimeout: -time.Second}},
		{"negative shutdown timeout", Config{ShutdownTimeout: -time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("New() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	o, err := New(Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if o.config.StartupTimeout != 30*time.Second {
		t.Errorf("StartupTimeout = %v, want 30s", o.config.StartupTimeout)
	}
	if o.Status() != StateIdle {
		t.Errorf("Status() = %v, want Idle", o.Status())
	}
	if o.ExitCode() != -1 {
		t.Errorf("ExitCode() = %d, want -1", o.ExitCode())
	}
}

func TestRunAudit_NotEnforcedSkipsAuditor(t *testing.T) {
	auditor := &countingAuditor{res: Result{OK: false, Message: "should not run"}}
	env := newTestOrchestrator(t, Config{EnforceAudit: false}, WithAuditor(auditor))

	res := env.orch.RunAudit(context.Background())

	if !res.OK {
		t.Errorf("RunAudit() OK = false, want true")
	}
	if n := auditor.calls.Load(); n != 0 {
		t.Errorf("auditor called %d times, want 0", n)
	}
}

func TestRunAudit_Enforced(t *testing.T) {
	auditor := &countingAuditor{res: Result{OK: false, Message: "audit found 3 vulnerabilities"}}
	env := newTestOrchestrator(t, Config{EnforceAudit: true}, WithAuditor(auditor))

	res := env.orch.RunAudit(context.Background())

	if res.OK || res.Message != "audit found 3 vulnerabilities" {
		t.Errorf("RunAudit() = %+v", res)
	}
	if n := auditor.calls.Load(); n != 1 {
		t.Errorf("auditor called %d times, want 1", n)
	}
}

func TestRunAudit_EnforcedWithoutAuditor(t *testing.T) {
	env := newTestOrchestrator(t, Config{EnforceAudit: true})

	if res := env.orch.RunAudit(context.Background()); res.OK {
		t.Error("RunAudit() OK = true without an auditor")
	}
}

func TestStartWithTimeout(t *testing.T) {
	tests := []struct {
		name        string
		srv         *fakeServer
		timeout     time.Duration
		wantErr     error
		wantTimeout bool
	}{
		{"start succeeds", &fakeServer{startDelay: 10 * time.Millisecond}, time.Second, nil, false},
		{"start fails", &fakeServer{startErr: errors.New("bind: address in use")}, time.Second, ErrServerStart, false},
		{"start too slow", &fakeServer{startDelay: 300 * time.Millisecond}, 20 * time.Millisecond, ErrServerStart, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestOrchestrator(t, DefaultConfig())

			err := env.orch.StartWithTimeout(context.Background(), tt.srv, tt.timeout)

			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("StartWithTimeout() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("StartWithTimeout() = %v, want %v", err, tt.wantErr)
			}
			if got := errors.Is(err, ErrStartupTimeout); got != tt.wantTimeout {
				t.Errorf("errors.Is(err, ErrStartupTimeout) = %v, want %v", got, tt.wantTimeout)
			}
		})
	}
}

func TestStartWithTimeout_NeverSettles(t *testing.T) {
	env := newTestOrchestrator(t, DefaultConfig())
	srv := &fakeServer{block: true}

	began := time.Now()
	err := env.orch.StartWithTimeout(context.Background(), srv, 50*time.Millisecond)
	elapsed := time.Since(began)

	if !errors.Is(err, ErrStartupTimeout) {
		t.Fatalf("StartWithTimeout() = %v, want ErrStartupTimeout", err)
	}
	if elapsed < 45*time.Millisecond || elapsed > 500*time.Millisecond {
		t.Errorf("returned after %v, want ~50ms", elapsed)
	}
}

func TestStartWithTimeout_AbandonedStartIsNotCanceled(t *testing.T) {
	env := newTestOrchestrator(t, DefaultConfig())

	finished := make(chan error, 1)
	srv := serverFunc(func(ctx context.Context) error {
		time.Sleep(60 * time.Millisecond)
		finished <- ctx.Err()
		return nil
	})

	err := env.orch.StartWithTimeout(context.Background(), srv, 10*time.Millisecond)
	if !errors.Is(err, ErrStartupTimeout) {
		t.Fatalf("StartWithTimeout() = %v, want ErrStartupTimeout", err)
	}

	select {
	case ctxErr := <-finished:
		if ctxErr != nil {
			t.Errorf("abandoned Start saw ctx error %v, want nil", ctxErr)
		}
	case <-time.After(time.Second):
		t.Fatal("abandoned Start never finished")
	}
}

func TestStartWithTimeout_PanicIsStartFailure(t *testing.T) {
	env := newTestOrchestrator(t, DefaultConfig())
	srv := serverFunc(func(context.Context) error { panic("nil map") })

	err := env.orch.StartWithTimeout(context.Background(), srv, time.Second)
	if !errors.Is(err, ErrServerStart) || !errors.Is(err, ErrUncaughtPanic) {
		t.Errorf("StartWithTimeout() = %v, want ErrServerStart wrapping ErrUncaughtPanic", err)
	}
}

func TestStartWithTimeout_DefaultTimeout(t *testing.T) {
	env := newTestOrchestrator(t, DefaultConfig())
	if err := env.orch.StartWithTimeout(context.Background(), &fakeServer{}, 0); err != nil {
		t.Errorf("StartWithTimeout(timeout=0) = %v, want nil", err)
	}
}

// serverFunc adapts a function to Server.
type serverFunc func(ctx context.Context) error

func (f serverFunc) Start(ctx context.Context) error { return f(ctx) }

func TestBootstrap_Success(t *testing.T) {
	srv := &fakeServer{startDelay: 10 * time.Millisecond}
	env := newTestOrchestrator(t, DefaultConfig(),
		WithValidator(okValidator()),
		WithServer(srv),
	)

	if err := env.orch.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap() = %v", err)
	}

	if env.orch.Status() != StateRunning {
		t.Errorf("Status() = %v, want Running", env.orch.Status())
	}
	if env.orch.Server() != Server(srv) {
		t.Error("Server() is not the started handle")
	}
	if !env.logger.has("[SERVER] started") {
		t.Error("missing [SERVER] started log line")
	}
	if codes := env.exits.Codes(); len(codes) != 0 {
		t.Errorf("exit called with %v during successful bootstrap", codes)
	}
}

func TestBootstrap_Failures(t *testing.T) {
	vulnerable := &countingAuditor{res: Result{Message: "audit found 2 vulnerabilities", Details: "high=2"}}

	tests := []struct {
		name      string
		cfg       Config
		opts      []Option
		wantErr   error
		wantPhase Phase
		wantText  string
	}{
		{
			name:      "audit blocked",
			cfg:       Config{EnforceAudit: true},
			opts:      []Option{WithAuditor(vulnerable), WithValidator(okValidator()), WithServer(&fakeServer{})},
			wantErr:   ErrAuditBlocked,
			wantPhase: PhaseAudit,
			wantText:  "2 vulnerabilities",
		},
		{
			name:      "validator missing",
			opts:      []Option{WithServer(&fakeServer{})},
			wantErr:   ErrDependencyValidation,
			wantPhase: PhaseValidate,
			wantText:  "no validator configured",
		},
		{
			name: "validator fails",
			opts: []Option{
				WithValidator(ValidatorFunc(func(context.Context) error { return errors.New("zerolog too old") })),
				WithServer(&fakeServer{}),
			},
			wantErr:   ErrDependencyValidation,
			wantPhase: PhaseValidate,
			wantText:  "zerolog too old",
		},
		{
			name:      "auditor panics",
			cfg:       Config{EnforceAudit: true},
			opts:      []Option{WithAuditor(AuditorFunc(func(context.Context) Result { panic("scanner exploded") })), WithValidator(okValidator()), WithServer(&fakeServer{})},
			wantErr:   ErrAuditBlocked,
			wantPhase: PhaseAudit,
			wantText:  "audit tool panicked",
		},
		{
			name: "validator panics",
			opts: []Option{
				WithValidator(ValidatorFunc(func(context.Context) error { panic("validator exploded") })),
				WithServer(&fakeServer{}),
			},
			wantErr:   ErrUncaughtPanic,
			wantPhase: PhaseValidate,
			wantText:  "validator exploded",
		},
		{
			name: "event handler panics while loading",
			opts: []Option{
				WithValidator(okValidator()),
				WithServer(&fakeServer{}),
				WithEventHandler(panicOn(StateLoading)),
			},
			wantErr:   ErrUncaughtPanic,
			wantPhase: PhaseLoad,
		},
		{
			name:      "loader missing",
			opts:      []Option{WithValidator(okValidator())},
			wantErr:   ErrServerLoad,
			wantPhase: PhaseLoad,
		},
		{
			name: "loader fails",
			opts: []Option{
				WithValidator(okValidator()),
				WithServerLoader(func(context.Context, Host) (Server, error) { return nil, errors.New("no such binary") }),
			},
			wantErr:   ErrServerLoad,
			wantPhase: PhaseLoad,
			wantText:  "no such binary",
		},
		{
			name: "loader returns nothing",
			opts: []Option{
				WithValidator(okValidator()),
				WithServerLoader(func(context.Context, Host) (Server, error) { return nil, nil }),
			},
			wantErr:   ErrServerLoad,
			wantPhase: PhaseLoad,
		},
		{
			name: "loader panics",
			opts: []Option{
				WithValidator(okValidator()),
				WithServerLoader(func(context.Context, Host) (Server, error) { panic("boom") }),
			},
			wantErr:   ErrServerLoad,
			wantPhase: PhaseLoad,
		},
		{
			name:      "start fails",
			opts:      []Option{WithValidator(okValidator()), WithServer(&fakeServer{startErr: errors.New("port taken")})},
			wantErr:   ErrServerStart,
			wantPhase: PhaseStart,
			wantText:  "port taken",
		},
		{
			name:      "start times out",
			cfg:       Config{StartupTimeout: 20 * time.Millisecond},
			opts:      []Option{WithValidator(okValidator()), WithServer(&fakeServer{block: true})},
			wantErr:   ErrStartupTimeout,
			wantPhase: PhaseStart,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestOrchestrator(t, tt.cfg, tt.opts...)

			err := env.orch.Bootstrap(context.Background())

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Bootstrap() = %v, want %v", err, tt.wantErr)
			}
			var pe *PhaseError
			if !errors.As(err, &pe) {
				t.Fatalf("Bootstrap() error %T is not a *PhaseError", err)
			}
			if pe.Phase != tt.wantPhase {
				t.Errorf("Phase = %s, want %s", pe.Phase, tt.wantPhase)
			}
			if tt.wantText != "" && !strings.Contains(err.Error(), tt.wantText) {
				t.Errorf("error %q does not contain %q", err, tt.wantText)
			}
			if env.orch.Status() != StateFailed {
				t.Errorf("Status() = %v, want Failed", env.orch.Status())
			}
			if env.orch.Server() != nil {
				t.Error("Server() recorded after failed bootstrap")
			}
		})
	}
}

func TestBootstrap_StopsAtFirstFailure(t *testing.T) {
	srv := &fakeServer{}
	env := newTestOrchestrator(t, DefaultConfig(),
		WithValidator(ValidatorFunc(func(context.Context) error { return errors.New("bad") })),
		WithServer(srv),
	)

	_ = env.orch.Bootstrap(context.Background())

	if n := srv.starts.Load(); n != 0 {
		t.Errorf("server started %d times after validation failure", n)
	}
}

func TestBootstrap_OnlyOnce(t *testing.T) {
	env := newTestOrchestrator(t, DefaultConfig(), WithValidator(okValidator()), WithServer(&fakeServer{}))

	if err := env.orch.Bootstrap(context.Background()); err != nil {
		t.Fatalf("first Bootstrap() = %v", err)
	}
	if err := env.orch.Bootstrap(context.Background()); !errors.Is(err, ErrAlreadyBootstrapped) {
		t.Errorf("second Bootstrap() = %v, want ErrAlreadyBootstrapped", err)
	}
}

func TestBootstrap_EmitsEvents(t *testing.T) {
	handler := &recordingHandler{}
	env := newTestOrchestrator(t, DefaultConfig(),
		WithValidator(okValidator()),
		WithServer(&fakeServer{}),
		WithEventHandler(handler),
	)

	if err := env.orch.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap() = %v", err)
	}

	want := []State{StateAuditing, StateValidating, StateLoading, StateStarting, StateRunning}
	got := handler.states()
	if len(got) != len(want) {
		t.Fatalf("states = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("state %d = %v, want %v", i, got[i], want[i])
		}
	}
}

type recordingHandler struct {
	BaseEventHandler
	events []StateChangeEvent
}

func (r *recordingHandler) OnStateChange(e StateChangeEvent) {
	r.events = append(r.events, e)
}

func (r *recordingHandler) states() []State {
	var out []State
	for _, e := range r.events {
		out = append(out, e.Current)
	}
	return out
}

// panicOn returns an event handler that panics when state is entered.
func panicOn(state State) EventHandler {
	return &panickingHandler{state: state}
}

type panickingHandler struct {
	BaseEventHandler
	state State
}

func (h *panickingHandler) OnStateChange(e StateChangeEvent) {
	if e.Current == h.state {
		panic("handler exploded in " + e.Current.String())
	}
}

func TestBootstrap_ValidatorPanicKeepsSentinel(t *testing.T) {
	env := newTestOrchestrator(t, DefaultConfig(),
		WithValidator(ValidatorFunc(func(context.Context) error { panic("validator exploded") })),
		WithServer(&fakeServer{}),
	)

	err := env.orch.Bootstrap(context.Background())
	if !errors.Is(err, ErrDependencyValidation) {
		t.Errorf("Bootstrap() = %v, want ErrDependencyValidation", err)
	}
}

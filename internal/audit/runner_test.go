package audit

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// fakeExec implements ports.CommandRunner for testing.
type fakeExec struct {
	out   string
	err   error
	calls int
	name  string
	args  []string
	dir   string
}

func (f *fakeExec) Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	f.calls++
	f.dir = dir
	f.name = name
	f.args = args
	return []byte(f.out), f.err
}

func newTestRunner(exec *fakeExec) *Runner {
	r := NewRunner([]string{"scanner", "--json"}, "/srv/app", nil)
	r.Exec = exec
	return r
}

func TestRunner_Run(t *testing.T) {
	tests := []struct {
		name        string
		exec        *fakeExec
		wantOK      bool
		wantMessage string
	}{
		{
			name:        "clean report",
			exec:        &fakeExec{out: `{"metadata":{"vulnerabilities":{"high":0,"low":0}}}`},
			wantOK:      true,
			wantMessage: "audit found no vulnerabilities",
		},
		{
			name:        "vulnerabilities found",
			exec:        &fakeExec{out: `{"metadata":{"vulnerabilities":{"high":2}}}`},
			wantOK:      false,
			wantMessage: "audit found 2 vulnerabilities",
		},
		{
			name:        "non-zero exit with report is still parsed",
			exec:        &fakeExec{out: `{"metadata":{"vulnerabilities":{"critical":1}}}`, err: errors.New("exit status 1")},
			wantOK:      false,
			wantMessage: "audit found 1 vulnerabilities",
		},
		{
			name:        "non-zero exit with clean report passes",
			exec:        &fakeExec{out: `{"metadata":{"vulnerabilities":{}}}`, err: errors.New("exit status 1")},
			wantOK:      true,
			wantMessage: "audit found no vulnerabilities",
		},
		{
			name:        "non-zero exit with an error document",
			exec:        &fakeExec{out: `{"error":{"code":"ENOTFOUND","summary":"request to registry failed"}}`, err: errors.New("exit status 1")},
			wantOK:      false,
			wantMessage: "audit output could not be parsed",
		},
		{
			name:        "non-zero exit after the stream header",
			exec:        &fakeExec{out: `{"config":{"protocol_version":"v1.0.0","scanner_name":"govulncheck"}}`, err: errors.New("exit status 1")},
			wantOK:      false,
			wantMessage: "audit tool failed to run",
		},
		{
			name:        "non-zero exit with findings is parsed",
			exec:        &fakeExec{out: `{"finding":{"osv":"GO-2024-0001","trace":[{"module":"m","package":"m/p","function":"F"}]}}`, err: errors.New("exit status 3")},
			wantOK:      false,
			wantMessage: "audit found 1 vulnerabilities",
		},
		{
			name:        "empty object",
			exec:        &fakeExec{out: `{}`},
			wantOK:      false,
			wantMessage: "audit output could not be parsed",
		},
		{
			name:        "summary without vulnerabilities",
			exec:        &fakeExec{out: `{"metadata":{}}`},
			wantOK:      false,
			wantMessage: "audit output could not be parsed",
		},
		{
			name:        "tool missing",
			exec:        &fakeExec{err: errors.New(`exec: "scanner": executable file not found in $PATH`)},
			wantOK:      false,
			wantMessage: "audit tool failed to run",
		},
		{
			name:        "garbage output",
			exec:        &fakeExec{out: "not json at all"},
			wantOK:      false,
			wantMessage: "audit output could not be parsed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newTestRunner(tt.exec).Run(context.Background())

			if res.OK != tt.wantOK {
				t.Errorf("OK = %v, want %v (message %q)", res.OK, tt.wantOK, res.Message)
			}
			if res.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", res.Message, tt.wantMessage)
			}
			if tt.exec.calls != 1 {
				t.Errorf("scanner invoked %d times, want 1", tt.exec.calls)
			}
		})
	}
}

func TestRunner_PassesCommandAndDir(t *testing.T) {
	exec := &fakeExec{out: `{"metadata":{"vulnerabilities":{}}}`}
	newTestRunner(exec).Run(context.Background())

	if exec.name != "scanner" {
		t.Errorf("name = %q, want scanner", exec.name)
	}
	if strings.Join(exec.args, " ") != "--json" {
		t.Errorf("args = %v, want [--json]", exec.args)
	}
	if exec.dir != "/srv/app" {
		t.Errorf("dir = %q, want /srv/app", exec.dir)
	}
}

func TestRunner_DetailsOnFailure(t *testing.T) {
	exec := &fakeExec{out: `{"metadata":{"vulnerabilities":{"high":2,"low":1}}}`}
	res := newTestRunner(exec).Run(context.Background())

	if res.Details != "high=2, low=1" {
		t.Errorf("Details = %q, want %q", res.Details, "high=2, low=1")
	}
}

func TestNewRunner_DefaultCommand(t *testing.T) {
	r := NewRunner(nil, "", nil)
	if strings.Join(r.Command, " ") != "govulncheck -json ./..." {
		t.Errorf("Command = %v", r.Command)
	}
}

func TestExecRunner_MissingBinary(t *testing.T) {
	out, err := ExecRunner{}.Run(context.Background(), "", "preflight-no-such-binary-xyz")
	if err == nil {
		t.Fatal("Run() error = nil, want error")
	}
	if len(out) != 0 {
		t.Errorf("output = %q, want empty", out)
	}
}

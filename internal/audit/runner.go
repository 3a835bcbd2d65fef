package audit

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/bft-labs/preflight/internal/domain"
	"github.com/bft-labs/preflight/internal/ports"
	"github.com/bft-labs/preflight/pkg/log"
)

// DefaultCommand scans the packages of the current module. govulncheck
// ignores test-only code unless -test is given.
var DefaultCommand = []string{"govulncheck", "-json", "./..."}

// Runner executes the scanner and evaluates its report.
type Runner struct {
	Command []string
	Dir     string
	Exec    ports.CommandRunner
	Logger  log.Logger
}

// NewRunner creates a Runner executing command in dir.
// An empty command falls back to DefaultCommand.
func NewRunner(command []string, dir string, logger log.Logger) *Runner {
	if len(command) == 0 {
		command = DefaultCommand
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Runner{
		Command: command,
		Dir:     dir,
		Exec:    ExecRunner{},
		Logger:  logger,
	}
}

// Run executes the audit. It never returns an error: every failure is a
// failed Result.
func (r *Runner) Run(ctx context.Context) domain.Result {
	if len(r.Command) == 0 {
		return domain.Fail("audit tool failed to run", "no audit command configured")
	}

	r.Logger.Info("running dependency audit", log.Strings("command", r.Command))

	out, execErr := r.Exec.Run(ctx, r.Dir, r.Command[0], r.Command[1:]...)
	if execErr != nil {
		if len(bytes.TrimSpace(out)) == 0 {
			return domain.Fail("audit tool failed to run", execErr.Error())
		}
		r.Logger.Debug("audit tool exited unsuccessfully, parsing its report", log.Err(execErr))
	}

	rep, err := Parse(bytes.NewReader(out))
	if err != nil {
		return domain.Fail("audit output could not be parsed", err.Error())
	}
	// Scanners exit non-zero when they find something, and also when they
	// die halfway. Only a conclusive report tells the two apart.
	if execErr != nil && !rep.Conclusive() {
		return domain.Fail("audit tool failed to run", execErr.Error())
	}

	if rep.Total > 0 {
		return domain.Fail(fmt.Sprintf("audit found %d vulnerabilities", rep.Total), rep.Details())
	}
	return domain.Pass("audit found no vulnerabilities")
}

// ExecRunner implements ports.CommandRunner with os/exec.
type ExecRunner struct{}

// Run executes name with args and returns its stdout.
func (ExecRunner) Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return stdout.Bytes(), fmt.Errorf("%s: %w: %s", name, err, lastLine(msg))
		}
		return stdout.Bytes(), fmt.Errorf("%s: %w", name, err)
	}
	return stdout.Bytes(), nil
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

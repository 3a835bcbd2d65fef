// Package depcheck validates the dependencies of the running binary before
// the server is started.
//
// Two checks run: the preflight modules shipped with the binary must satisfy
// each other's minimum compatible versions, and third-party modules compiled
// into the binary must meet configured minimum versions.
package depcheck

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/bft-labs/preflight/pkg/lifecycle"
	"github.com/bft-labs/preflight/pkg/log"
	"github.com/bft-labs/preflight/pkg/preflight"
)

// ErrBuildInfoUnavailable is returned when the binary carries no module
// information and minimum versions were requested.
var ErrBuildInfoUnavailable = errors.New("depcheck: build info unavailable")

// Module is an internal module with its compatibility window.
type Module struct {
	Name       string
	Version    string
	MinVersion string
}

// BuiltinModules lists the internal modules checked by default.
func BuiltinModules() []Module {
	return []Module{
		{"log", log.Version, log.MinCompatibleVersion},
		{"lifecycle", lifecycle.Version, lifecycle.MinCompatibleVersion},
		{"preflight", preflight.Version, preflight.MinCompatibleVersion},
	}
}

// Validator checks module versions.
type Validator struct {
	// Modules are internal modules checked against their own minimums.
	Modules []Module
	// Require maps a module path to the lowest acceptable version.
	Require map[string]string
	// ReadBuildInfo defaults to runtime/debug.ReadBuildInfo.
	ReadBuildInfo func() (*debug.BuildInfo, bool)
	Logger        log.Logger
}

// New creates a Validator with the built-in modules and the given minimums.
func New(require map[string]string, logger log.Logger) *Validator {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Validator{
		Modules:       BuiltinModules(),
		Require:       require,
		ReadBuildInfo: debug.ReadBuildInfo,
		Logger:        logger,
	}
}

// Validate reports every violation at once.
func (v *Validator) Validate(ctx context.Context) error {
	var errs []error

	for _, m := range v.Modules {
		if !compatible(m.Version, m.MinVersion) {
			errs = append(errs, fmt.Errorf("module %s version %s is below minimum compatible version %s",
				m.Name, m.Version, m.MinVersion))
		}
	}

	if len(v.Require) > 0 {
		errs = append(errs, v.checkRequired()...)
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	v.Logger.Info("dependencies validated",
		log.Int("internal", len(v.Modules)),
		log.Int("required", len(v.Require)),
	)
	return nil
}

func (v *Validator) checkRequired() []error {
	read := v.ReadBuildInfo
	if read == nil {
		read = debug.ReadBuildInfo
	}
	info, ok := read()
	if !ok || info == nil {
		return []error{ErrBuildInfoUnavailable}
	}

	have := make(map[string]string, len(info.Deps))
	for _, d := range info.Deps {
		if d.Replace != nil {
			have[d.Path] = d.Replace.Version
			continue
		}
		have[d.Path] = d.Version
	}
	have[info.Main.Path] = info.Main.Version

	paths := make([]string, 0, len(v.Require))
	for p := range v.Require {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var errs []error
	for _, path := range paths {
		min := canonical(v.Require[path])
		if !semver.IsValid(min) {
			errs = append(errs, fmt.Errorf("module %s: invalid minimum version %q", path, v.Require[path]))
			continue
		}
		got, ok := have[path]
		if !ok {
			errs = append(errs, fmt.Errorf("module %s is required but not linked into the binary", path))
			continue
		}
		// Local replacements and development builds carry no comparable version.
		if got == "" || got == "(devel)" {
			v.Logger.Warn("skipping version check for unversioned module", log.String("module", path))
			continue
		}
		if semver.Compare(canonical(got), min) < 0 {
			errs = append(errs, fmt.Errorf("module %s version %s is below required %s", path, got, min))
		}
	}
	return errs
}

// compatible reports whether version >= minVersion.
func compatible(version, minVersion string) bool {
	v, m := canonical(version), canonical(minVersion)
	if !semver.IsValid(v) || !semver.IsValid(m) {
		return false
	}
	return semver.Compare(v, m) >= 0
}

// canonical adds the "v" prefix semver expects.
func canonical(v string) string {
	v = strings.TrimSpace(v)
	if v != "" && !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}

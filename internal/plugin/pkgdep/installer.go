package pkgdep

import (
	"context"
	"fmt"
	"os/exec"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrConsentDenied is returned when the consent policy rejects an install.
var ErrConsentDenied = fmt.Errorf("package install declined")

// DefaultTimeout bounds a single package install subprocess.
const DefaultTimeout = 2 * time.Minute

// Prober reports whether a package is already present. The default prober
// shells out to `luarocks show <name>` and treats exit status zero as
// installed.
type Prober func(ctx context.Context, name string) bool

// ConsentFunc decides whether the named missing packages may be installed.
// The default policy installs without asking.
type ConsentFunc func(names []string) bool

// Runner executes one install subprocess. Split out so tests can observe
// install calls without a luarocks binary on the path.
type Runner func(ctx context.Context, args []string) error

// Options configures an Installer. Zero-value fields get defaults.
type Options struct {
	Prober       Prober
	Consent      ConsentFunc
	Runner       Runner
	Timeout      time.Duration
	ManifestPath string
	Logger       *zap.Logger
}

// Installer checks and installs plugin package requirements. Safe for
// concurrent use.
type Installer struct {
	probe    Prober
	consent  ConsentFunc
	run      Runner
	timeout  time.Duration
	manifest string
	logger   *zap.Logger

	mu      sync.Mutex
	session map[string]struct{}
}

// New creates an installer. With no options it probes and installs through
// the luarocks binary and writes the manifest next to the user config.
func New(opts Options) *Installer {
	ins := &Installer{
		probe:    opts.Prober,
		consent:  opts.Consent,
		run:      opts.Runner,
		timeout:  opts.Timeout,
		manifest: opts.ManifestPath,
		logger:   opts.Logger,
		session:  make(map[string]struct{}),
	}
	if ins.probe == nil {
		ins.probe = luarocksProbe
	}
	if ins.consent == nil {
		ins.consent = func([]string) bool { return true }
	}
	if ins.run == nil {
		ins.run = luarocksRun
	}
	if ins.timeout <= 0 {
		ins.timeout = DefaultTimeout
	}
	if ins.logger == nil {
		ins.logger = zap.NewNop()
	}
	return ins
}

// Ensure makes every requirement available, installing the ones the probe
// does not find. Returns an error if parsing fails, consent is denied, or
// any install fails; requirements already satisfied are never touched.
func (ins *Installer) Ensure(ctx context.Context, requirements []string) error {
	var missing []Requirement
	for _, raw := range requirements {
		req, err := ParseRequirement(raw)
		if err != nil {
			return err
		}
		if ins.probe(ctx, req.Name) {
			continue
		}
		missing = append(missing, req)
	}
	if len(missing) == 0 {
		return nil
	}

	names := make([]string, len(missing))
	for i, req := range missing {
		names[i] = req.Name
	}
	if !ins.consent(names) {
		return fmt.Errorf("%w: %v", ErrConsentDenied, names)
	}

	for _, req := range missing {
		if err := ins.install(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

func (ins *Installer) install(ctx context.Context, req Requirement) error {
	ctx, cancel := context.WithTimeout(ctx, ins.timeout)
	defer cancel()

	ins.logger.Info("installing package", zap.String("package", req.String()))
	if err := ins.run(ctx, req.installArgs()); err != nil {
		return fmt.Errorf("install %q: %w", req.String(), err)
	}

	ins.mu.Lock()
	ins.session[req.Name] = struct{}{}
	ins.mu.Unlock()
	return nil
}

// Installed returns the names of packages installed during this session,
// sorted.
func (ins *Installer) Installed() []string {
	ins.mu.Lock()
	defer ins.mu.Unlock()
	names := make([]string, 0, len(ins.session))
	for name := range ins.session {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FlushManifest merges the session's installs into the manifest file and
// clears the session. A session with no installs is a no-op.
func (ins *Installer) FlushManifest() error {
	if ins.manifest == "" {
		return nil
	}

	ins.mu.Lock()
	if len(ins.session) == 0 {
		ins.mu.Unlock()
		return nil
	}
	names := make([]string, 0, len(ins.session))
	for name := range ins.session {
		names = append(names, name)
	}
	ins.session = make(map[string]struct{})
	ins.mu.Unlock()

	if err := mergeManifest(ins.manifest, names); err != nil {
		return fmt.Errorf("write package manifest: %w", err)
	}
	ins.logger.Debug("package manifest updated",
		zap.String("path", ins.manifest), zap.Strings("packages", names))
	return nil
}

func luarocksProbe(ctx context.Context, name string) bool {
	return exec.CommandContext(ctx, "luarocks", "show", name).Run() == nil
}

func luarocksRun(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, "luarocks", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("luarocks %v: %w: %s", args, err, out)
	}
	return nil
}

package subprocess

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wagiedev/stdio-rpc-go/internal/errors"
)

// VersionCheckTimeout is the timeout for the runtime version check command.
const VersionCheckTimeout = 2 * time.Second

var versionPattern = regexp.MustCompile(`v?([0-9]+\.[0-9]+\.[0-9]+)`)

// InferRuntime picks the interpreter for a server script from its extension.
// An empty result means the path is executed directly.
func InferRuntime(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".js", ".mjs", ".cjs":
		return "node"
	case ".py":
		return "python3"
	default:
		return ""
	}
}

// Config holds configuration for runtime discovery.
type Config struct {
	// Runtime is a runtime name such as "node" or an explicit path.
	// An explicit path (one containing a separator) skips the PATH search.
	Runtime string

	// MinimumVersion logs a warning when the runtime reports an older
	// version. Empty skips the version check.
	MinimumVersion string

	// Logger is an optional logger for discovery operations.
	Logger *slog.Logger
}

// Discoverer locates the runtime binary used to launch a server.
type Discoverer interface {
	// Discover returns the absolute path to the runtime binary.
	Discover(ctx context.Context) (string, error)
}

type discoverer struct {
	cfg *Config
	log *slog.Logger
}

// Compile-time verification that discoverer implements Discoverer.
var _ Discoverer = (*discoverer)(nil)

// NewDiscoverer creates a new runtime discoverer with the given configuration.
func NewDiscoverer(cfg *Config) Discoverer {
	if cfg == nil {
		cfg = &Config{}
	}

	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &discoverer{
		cfg: cfg,
		log: log,
	}
}

// Discover locates the runtime binary and checks its version.
func (d *discoverer) Discover(ctx context.Context) (string, error) {
	d.log.Debug("Discovering runtime", "runtime", d.cfg.Runtime)

	path, err := d.findRuntime()
	if err != nil {
		d.log.Error("Failed to find runtime", "error", err)

		return "", err
	}

	d.log.Debug("Found runtime", "path", path)

	d.checkVersion(ctx, path)

	return path, nil
}

func (d *discoverer) findRuntime() (string, error) {
	name := d.cfg.Runtime

	if strings.ContainsRune(name, filepath.Separator) {
		if _, err := os.Stat(name); err == nil {
			return name, nil
		}

		return "", &errors.RuntimeNotFoundError{Runtime: name, SearchedPaths: []string{name}}
	}

	searchedPaths := make([]string, 0, 4)

	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}

	searchedPaths = append(searchedPaths, "$PATH")

	commonPaths := []string{
		filepath.Join("/usr/local/bin", name),
		filepath.Join("/usr/bin", name),
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		commonPaths = append(commonPaths, filepath.Join(homeDir, ".local/bin", name))
	}

	for _, path := range commonPaths {
		searchedPaths = append(searchedPaths, path)

		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	d.log.Warn("Runtime not found in any searched paths", "runtime", name, "searched_paths", searchedPaths)

	return "", &errors.RuntimeNotFoundError{Runtime: name, SearchedPaths: searchedPaths}
}

// checkVersion warns when the runtime is older than the configured minimum.
// Failures to run or parse the version are ignored.
func (d *discoverer) checkVersion(ctx context.Context, path string) {
	if d.cfg.MinimumVersion == "" {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, VersionCheckTimeout)
	defer cancel()

	//nolint:gosec // G204: the runtime path comes from discovery
	output, err := exec.CommandContext(ctx, path, "--version").Output()
	if err != nil {
		d.log.Debug("Runtime version check failed", "error", err)

		return
	}

	version, ok := parseVersion(string(output))
	if !ok {
		d.log.Debug("Could not parse runtime version", "output", strings.TrimSpace(string(output)))

		return
	}

	if compareVersions(version, d.cfg.MinimumVersion) < 0 {
		d.log.Warn("Runtime version is older than required",
			"version", version,
			"minimum_required", d.cfg.MinimumVersion,
		)

		return
	}

	d.log.Debug("Runtime version check passed", "version", version)
}

// parseVersion extracts the first X.Y.Z from a --version output such as
// "v20.11.1" or "Python 3.12.2".
func parseVersion(output string) (string, bool) {
	match := versionPattern.FindStringSubmatch(output)
	if match == nil {
		return "", false
	}

	return match[1], true
}

// compareVersions compares two semantic versions.
// Returns -1 if a < b, 0 if a == b, 1 if a > b.
func compareVersions(a, b string) int {
	aParts := strings.Split(a, ".")
	bParts := strings.Split(b, ".")

	for i := range 3 {
		aNum := 0
		bNum := 0

		if i < len(aParts) {
			aNum, _ = strconv.Atoi(aParts[i])
		}

		if i < len(bParts) {
			bNum, _ = strconv.Atoi(bParts[i])
		}

		if aNum < bNum {
			return -1
		}

		if aNum > bNum {
			return 1
		}
	}

	return 0
}

// Package toolpath locates the external control utility.
package toolpath

import (
	"os"
	"os/exec"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// DefaultCandidates are the well-known install locations checked before PATH.
var DefaultCandidates = []string{
	"/opt/homebrew/bin/blueutil",
	"/usr/local/bin/blueutil",
}

// Resolver finds an executable by explicit override, well-known candidates,
// then a PATH lookup, in that order.
type Resolver struct {
	Name       string
	Override   string
	Candidates []string

	lookPath func(string) (string, error)
	logger   *logrus.Logger
}

// NewResolver creates a Resolver for the executable name.
func NewResolver(name, override string, candidates []string, logger *logrus.Logger) *Resolver {
	if logger == nil {
		logger = logrus.New()
	}
	return &Resolver{
		Name:       name,
		Override:   override,
		Candidates: candidates,
		lookPath:   exec.LookPath,
		logger:     logger,
	}
}

// WithLookPath replaces the PATH lookup function.
func (r *Resolver) WithLookPath(fn func(string) (string, error)) *Resolver {
	r.lookPath = fn
	return r
}

// Resolve returns the absolute path of the executable, or false when it
// cannot be found anywhere.
func (r *Resolver) Resolve() (string, bool) {
	if r.Override != "" {
		if IsExecutable(r.Override) {
			r.logger.WithField("path", r.Override).Debug("Using configured control tool path")
			return r.Override, true
		}
		// An unusable explicit path is never replaced by another binary.
		r.logger.WithField("path", r.Override).Warn("Configured control tool is not an executable file")
		return "", false
	}

	for _, candidate := range r.Candidates {
		if IsExecutable(candidate) {
			r.logger.WithField("path", candidate).Debug("Found control tool at well-known location")
			return candidate, true
		}
	}

	if r.lookPath == nil || r.Name == "" {
		return "", false
	}
	path, err := r.lookPath(r.Name)
	if err != nil {
		r.logger.WithError(err).WithField("name", r.Name).Debug("Control tool not found in PATH")
		return "", false
	}
	return path, true
}

// IsExecutable reports whether path is a regular file the current user may execute.
func IsExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return unix.Access(path, unix.X_OK) == nil
}

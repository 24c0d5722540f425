// Package deno wraps the Deno toolchain the plugin engine depends on.
package deno

import (
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"strings"

	"github.com/charmbracelet/log"
)

// trustedHosts are the module registries plugin dependencies may come
// from.
var trustedHosts = map[string]bool{
	"deno.land":       true,
	"jsr.io":          true,
	"esm.sh":          true,
	"cdn.skypack.dev": true,
}

// Toolchain locates and drives a Deno installation.
type Toolchain struct {
	// Bin is the Deno binary. Empty means "deno" on PATH.
	Bin string

	Logger *log.Logger
}

func (t *Toolchain) bin() string {
	if t.Bin == "" {
		return "deno"
	}
	return t.Bin
}

// Version probes the installation and returns the reported version line.
// An error means Deno is missing or broken and no plugin can run.
func (t *Toolchain) Version(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, t.bin(), "--version").Output()
	if err != nil {
		return "", fmt.Errorf("deno is not installed or not on PATH: %w", err)
	}
	line := strings.SplitN(strings.TrimSpace(string(out)), "\n", 2)[0]
	return line, nil
}

// ValidateDependencyURL checks one declared dependency URL: HTTPS only,
// and only from a trusted registry host.
func ValidateDependencyURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid dependency URL %q: %w", raw, err)
	}
	if u.Scheme != "https" {
		return fmt.Errorf("dependency URL %q: only https is permitted", raw)
	}
	if !trustedHosts[u.Hostname()] {
		return fmt.Errorf("dependency URL %q: host %q is not a trusted registry", raw, u.Hostname())
	}
	return nil
}

// CacheDependencies validates and pre-caches the declared dependency URLs
// so execution does not pause on first-use downloads.
func (t *Toolchain) CacheDependencies(ctx context.Context, deps map[string]string) error {
	if len(deps) == 0 {
		return nil
	}

	urls := make([]string, 0, len(deps))
	for name, raw := range deps {
		if err := ValidateDependencyURL(raw); err != nil {
			return fmt.Errorf("dependency %q: %w", name, err)
		}
		urls = append(urls, raw)
	}

	if t.Logger != nil {
		t.Logger.Debug("caching deno dependencies", "count", len(urls))
	}

	args := append([]string{"cache"}, urls...)
	out, err := exec.CommandContext(ctx, t.bin(), args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("caching dependencies: %w\n%s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

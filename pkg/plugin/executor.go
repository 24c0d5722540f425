package plugin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Delivery selects how the execution context reaches the subprocess.
type Delivery int

const (
	// DeliverTempFile writes the context to a temp file and passes its
	// path via --context-file. This is the default.
	DeliverTempFile Delivery = iota

	// DeliverStdin pipes the context JSON to the subprocess's stdin.
	DeliverStdin
)

// DefaultTimeout bounds a single plugin execution when the caller sets
// none.
const DefaultTimeout = 5 * time.Minute

// Executor runs plugin scripts as sandboxed Deno subprocesses.
//
// The executor never interprets dry-run itself: callers short-circuit
// before invoking it, so reaching Execute always means a real launch.
type Executor struct {
	// DenoBin is the Deno binary to invoke. Empty means "deno" on PATH.
	DenoBin string

	// Timeout bounds each execution. Zero means DefaultTimeout.
	Timeout time.Duration

	// Delivery selects the context transport. Exactly one mode is used
	// per invocation.
	Delivery Delivery

	// TempDir overrides the directory for context temp files. Empty means
	// the system default.
	TempDir string

	// Logger receives debug-level diagnostics: the composed command line,
	// permission flags, and raw subprocess output.
	Logger *log.Logger
}

// Execute runs scriptPath under the resolved permissions with the given
// argv appended after the script.
//
// Plugin-level failures (timeout, non-zero exit, unparseable output)
// come back as a failed *Outcome with a nil error. A non-nil error means
// the engine could not attempt the run at all (missing script, context
// serialization failure, launch failure); callers convert those into
// failed step results.
func (e *Executor) Execute(ctx context.Context, scriptPath string, argv []string, perms *Resolved, execCtx *ExecutionContext) (*Outcome, error) {
	if _, err := os.Stat(scriptPath); err != nil {
		return nil, fmt.Errorf("plugin script not found: %s", scriptPath)
	}

	payload, err := execCtx.snapshot()
	if err != nil {
		return nil, fmt.Errorf("serializing execution context: %w", err)
	}

	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var contextFile string
	if e.Delivery == DeliverTempFile {
		f, err := os.CreateTemp(e.TempDir, "skipper-context-*.json")
		if err != nil {
			return nil, fmt.Errorf("creating context file: %w", err)
		}
		contextFile = f.Name()
		defer os.Remove(contextFile)

		if _, err := f.Write(payload); err != nil {
			f.Close()
			return nil, fmt.Errorf("writing context file: %w", err)
		}
		if err := f.Close(); err != nil {
			return nil, fmt.Errorf("writing context file: %w", err)
		}
	}

	// The subprocess must be able to read the context file we just made
	// for it; that read grant is part of the delivery, not the plugin's.
	effective := *perms
	if contextFile != "" {
		effective.FileRead = append(append([]string{}, perms.FileRead...), contextFile)
	}

	denoArgs := []string{"run"}
	denoArgs = append(denoArgs, effective.denoFlags()...)
	denoArgs = append(denoArgs, scriptPath)
	denoArgs = append(denoArgs, argv...)
	if contextFile != "" {
		denoArgs = append(denoArgs, "--context-file", contextFile)
	}

	bin := e.DenoBin
	if bin == "" {
		bin = "deno"
	}

	cmd := exec.CommandContext(runCtx, bin, denoArgs...)
	// Do not let lingering grandchildren hold the output pipes open past
	// the deadline.
	cmd.WaitDelay = time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if e.Delivery == DeliverStdin {
		cmd.Stdin = bytes.NewReader(payload)
	}

	if e.Logger != nil {
		e.Logger.Debug("executing plugin script",
			"bin", bin, "script", scriptPath, "args", argv,
			"permissions", perms.denoFlags(), "timeout", timeout)
	}

	runErr := cmd.Run()

	if e.Logger != nil {
		e.Logger.Debug("plugin output",
			"stdout", stdout.String(), "stderr", stderr.String())
	}

	if runErr != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return failureOutcome("plugin execution timed out after %s", timeout), nil
		}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return failureOutcome("plugin exited with code %d: %s",
				exitErr.ExitCode(), strings.TrimSpace(stderr.String())), nil
		}
		return nil, fmt.Errorf("launching plugin subprocess: %w", runErr)
	}

	outcome, err := ParseOutcome(stdout.String())
	if err != nil {
		return failureOutcome("%v", err), nil
	}
	return outcome, nil
}

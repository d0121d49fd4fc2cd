package hooks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/vanderheijden86/refgraph/pkg/debug"
)

// HookResult is the outcome of one hook run.
type HookResult struct {
	Hook     Hook
	Phase    HookPhase
	Success  bool
	Stdout   string
	Stderr   string
	Duration time.Duration
	Error    error
}

// Executor runs the hooks of a Config with one export context.
type Executor struct {
	config  *Config
	context ExportContext
	results []HookResult
}

// NewExecutor creates an executor.
func NewExecutor(config *Config, ctx ExportContext) *Executor {
	if config == nil {
		config = &Config{}
	}
	return &Executor{config: config, context: ctx}
}

// RunPreExport runs the pre-export hooks in order, stopping at the first
// failing hook whose policy is "fail".
func (e *Executor) RunPreExport() error {
	for _, hook := range e.config.Hooks.PreExport {
		result := e.runHook(hook, PreExport)
		e.results = append(e.results, result)
		if !result.Success && hook.OnError == OnErrorFail {
			return fmt.Errorf("pre-export hook %q failed: %w", hook.Name, result.Error)
		}
	}
	return nil
}

// RunPostExport runs every post-export hook. Failures of hooks whose policy
// is "fail" are joined into the returned error.
func (e *Executor) RunPostExport() error {
	var errs []error
	for _, hook := range e.config.Hooks.PostExport {
		result := e.runHook(hook, PostExport)
		e.results = append(e.results, result)
		if !result.Success && hook.OnError == OnErrorFail {
			errs = append(errs, fmt.Errorf("post-export hook %q failed: %w", hook.Name, result.Error))
		}
	}
	return errors.Join(errs...)
}

func (e *Executor) runHook(hook Hook, phase HookPhase) HookResult {
	timeout := hook.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", hook.Command)
	cmd.Env = append(os.Environ(), e.context.ToEnv()...)
	for k, v := range hook.Env {
		cmd.Env = append(cmd.Env, k+"="+os.ExpandEnv(v))
	}
	// Don't wait for grandchildren holding the pipes after a timeout.
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	if ctx.Err() == context.DeadlineExceeded {
		err = fmt.Errorf("timed out after %s", timeout)
	}
	debug.Log("hook %s (%s): %v in %s", hook.Name, phase, err, duration)

	return HookResult{
		Hook:     hook,
		Phase:    phase,
		Success:  err == nil,
		Stdout:   strings.TrimSpace(stdout.String()),
		Stderr:   strings.TrimSpace(stderr.String()),
		Duration: duration,
		Error:    err,
	}
}

// Results returns the results of the hooks run so far.
func (e *Executor) Results() []HookResult {
	return e.results
}

// Summary describes the hook runs for the terminal.
func (e *Executor) Summary() string {
	if len(e.results) == 0 {
		return ""
	}
	var succeeded, failed int
	var sb strings.Builder
	for _, r := range e.results {
		if r.Success {
			succeeded++
			continue
		}
		failed++
		sb.WriteString(fmt.Sprintf("  ✗ %s (%s): %v\n", r.Hook.Name, r.Phase, r.Error))
		if r.Stderr != "" {
			sb.WriteString(fmt.Sprintf("    stderr: %s\n", truncate(r.Stderr, 200)))
		}
	}
	return fmt.Sprintf("Hooks: %d succeeded, %d failed\n", succeeded, failed) + sb.String()
}

// RunHooks loads the hooks of projectDir and returns an executor for them.
// It returns nil without error when noHooks is set or nothing is configured.
func RunHooks(projectDir string, ctx ExportContext, noHooks bool) (*Executor, error) {
	if noHooks {
		return nil, nil
	}
	loader := NewLoader(WithProjectDir(projectDir))
	if err := loader.Load(); err != nil {
		return nil, err
	}
	for _, w := range loader.Warnings() {
		debug.Log("hooks: %s", w)
	}
	if !loader.HasHooks() {
		return nil, nil
	}
	return NewExecutor(loader.Config(), ctx), nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

// Package tool runs the external executables the pipeline delegates
// to (sass, postcss, karma, an optional linter).
package tool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	gerrors "github.com/olivejs/ginger/internal/errors"
	"github.com/olivejs/ginger/internal/logging"
)

//go:generate mockgen -source=runner.go -destination=mocks/mock_runner.go -package=mocks

// Command describes one tool invocation.
type Command struct {
	Name string
	Args []string
	Dir  string
	Env  []string
	// Stdout, when set, receives output as it is produced. The combined
	// output is returned either way.
	Stdout io.Writer
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Runner executes external tools.
type Runner interface {
	Run(ctx context.Context, cmd Command) ([]byte, error)
}

// DefaultAllowed lists the executables the pipeline may start.
var DefaultAllowed = []string{"sass", "postcss", "karma", "eslint", "jshint", "npx", "node"}

// ExecRunner runs allowlisted commands with os/exec. Executables in the
// project's node_modules/.bin win over ones on PATH.
type ExecRunner struct {
	allowed map[string]bool
	logger  logging.Logger
}

// NewExecRunner creates a runner allowing the given executable names.
// With no names DefaultAllowed is used.
func NewExecRunner(logger logging.Logger, allowed ...string) *ExecRunner {
	if len(allowed) == 0 {
		allowed = DefaultAllowed
	}
	set := make(map[string]bool, len(allowed))
	for _, name := range allowed {
		set[name] = true
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ExecRunner{allowed: set, logger: logger.WithComponent("tool")}
}

// Run executes cmd and returns its combined output.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) ([]byte, error) {
	if err := r.validateCommand(cmd); err != nil {
		return nil, gerrors.NewConfigError(gerrors.ErrCodeConfigInvalid, "command validation failed", err).
			WithContext("command", cmd.Name)
	}

	path := r.resolve(cmd)
	c := exec.CommandContext(ctx, path, cmd.Args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}

	var buf bytes.Buffer
	if cmd.Stdout != nil {
		c.Stdout = io.MultiWriter(&buf, cmd.Stdout)
		c.Stderr = io.MultiWriter(&buf, cmd.Stdout)
	} else {
		c.Stdout = &buf
		c.Stderr = &buf
	}

	r.logger.Debug(ctx, "Running tool", "command", cmd.String(), "dir", cmd.Dir)

	err := c.Run()
	output := buf.Bytes()
	if err == nil {
		return output, nil
	}

	if ctx.Err() != nil {
		return output, fmt.Errorf("%s interrupted: %w", cmd.Name, ctx.Err())
	}
	if errors.Is(err, exec.ErrNotFound) {
		return output, gerrors.NewToolError("", fmt.Sprintf("%s is not installed", cmd.Name), err).
			WithContext("code", gerrors.ErrCodeToolNotFound)
	}

	return output, fmt.Errorf("%s failed: %w", cmd.Name, err)
}

// resolve prefers dir/node_modules/.bin/name.
func (r *ExecRunner) resolve(cmd Command) string {
	local := filepath.Join(cmd.Dir, "node_modules", ".bin", cmd.Name)
	if info, err := os.Stat(local); err == nil && !info.IsDir() {
		return local
	}
	return cmd.Name
}

// validateCommand validates the command and arguments to prevent command injection
func (r *ExecRunner) validateCommand(cmd Command) error {
	if cmd.Name == "" {
		return fmt.Errorf("empty command")
	}
	if strings.ContainsAny(cmd.Name, `/\`) {
		return fmt.Errorf("command must be a bare executable name: %q", cmd.Name)
	}
	if !r.allowed[cmd.Name] {
		return fmt.Errorf("command %q is not allowed", cmd.Name)
	}

	for _, arg := range cmd.Args {
		if err := validateArgument(arg); err != nil {
			return fmt.Errorf("invalid argument '%s': %w", arg, err)
		}
	}

	return nil
}

func validateArgument(arg string) error {
	dangerous := []string{";", "&", "|", "`", "$(", "\n", "\r", "\x00"}
	for _, d := range dangerous {
		if strings.Contains(arg, d) {
			return fmt.Errorf("contains dangerous sequence %q", d)
		}
	}
	return nil
}

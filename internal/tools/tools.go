package tools

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrMissingTool is wrapped by every MissingToolError
var ErrMissingTool = errors.New("tools: required tool not found")

// MissingToolError names the absent tool and how to get going without it
type MissingToolError struct {
	Tool        string
	Remediation string
}

func (e *MissingToolError) Error() string {
	return fmt.Sprintf("%s not found", e.Tool)
}

func (e *MissingToolError) Unwrap() error {
	return ErrMissingTool
}

// Runner resolves and executes external commands
type Runner interface {
	LookPath(name string) (string, error)
	// Run executes the command and returns its combined output
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec
type ExecRunner struct{}

func (ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

func run(ctx context.Context, r Runner, tool string, args ...string) error {
	output, err := r.Run(ctx, tool, args...)
	if err != nil {
		return fmt.Errorf("%s failed: %w, command: %s %s, output: %s",
			tool, err, tool, strings.Join(args, " "), strings.TrimSpace(string(output)))
	}
	return nil
}

// ImageMagickInstall is the install hint shared by the image commands
const ImageMagickInstall = `ImageMagick not found. Please install it:
   brew install imagemagick      # Mac
   sudo apt install imagemagick  # Linux`

// Package format bridges to an external Java source formatter, the second
// step of the write-back discipline (spec.md §4.5): every generated test
// fragment is formatted before it is merged into a test file, the same
// external-tool-as-subprocess shape pkg/analyzer and pkg/builddriver use.
package format

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"mutaforge/pkg/config"
	"mutaforge/pkg/errkind"
)

type execContext = func(ctx context.Context, name string, args ...string) *exec.Cmd

// Bridge invokes the external formatter binary (google-java-format).
type Bridge struct {
	toolPath    string
	style       config.FormattingStyle
	execContext execContext
}

// New constructs a Bridge pointed at an already-located formatter executable.
func New(toolPath string, style config.FormattingStyle, opts ...Option) *Bridge {
	b := &Bridge{toolPath: toolPath, style: style, execContext: exec.CommandContext}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Option customizes a Bridge.
type Option func(*Bridge)

// WithExecContext overrides the default exec.CommandContext for tests.
func WithExecContext(c execContext) Option {
	return func(b *Bridge) { b.execContext = c }
}

// Format runs the formatter over source read from stdin, returning the
// reformatted text. A formatter failure is reported as errkind.FormatFailed
// so the write-back discipline can reject the generation round without
// touching the test file on disk.
func (b *Bridge) Format(ctx context.Context, source string) (string, error) {
	args := []string{"-"}
	if b.style == config.FormattingAOSP {
		args = append(args, "--aosp")
	}

	cmd := b.execContext(ctx, b.toolPath, args...)
	cmd.Stdin = bytes.NewBufferString(source)
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut

	if err := cmd.Run(); err != nil {
		return "", errkind.Wrap(errkind.FormatFailed, "formatter invocation failed", errOutOrErr(errOut, err))
	}
	return out.String(), nil
}

func errOutOrErr(errOut bytes.Buffer, err error) error {
	if errOut.Len() == 0 {
		return err
	}
	return fmt.Errorf("%w: %s", err, errOut.String())
}

package format

import (
	"context"
	"os"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mutaforge/pkg/config"
	"mutaforge/pkg/errkind"
)

// fakeExecContext re-invokes this test binary under TestHelperProcess, the
// same seam pkg/builddriver and pkg/analyzer tests use to fake exec.Command.
func fakeExecContext(exitCode int, stdout, stderr string) execContext {
	return func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cs := []string{"-test.run=TestHelperProcess", "--", name}
		cs = append(cs, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], cs...)
		cmd.Env = []string{
			"GO_WANT_HELPER_PROCESS=1",
			"HELPER_EXIT_CODE=" + itoa(exitCode),
			"HELPER_STDOUT=" + stdout,
			"HELPER_STDERR=" + stderr,
		}
		return cmd
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	os.Stdout.WriteString(os.Getenv("HELPER_STDOUT"))
	os.Stderr.WriteString(os.Getenv("HELPER_STDERR"))
	code := 0
	for _, c := range os.Getenv("HELPER_EXIT_CODE") {
		code = code*10 + int(c-'0')
	}
	os.Exit(code)
}

func TestFormatReturnsReformattedSource(t *testing.T) {
	b := New("google-java-format", config.FormattingGoogle, WithExecContext(fakeExecContext(0, "class Foo {}\n", "")))
	out, err := b.Format(context.Background(), "class Foo{}")
	require.NoError(t, err)
	assert.Equal(t, "class Foo {}\n", out)
}

func TestFormatFailureSurfacesFormatFailed(t *testing.T) {
	b := New("google-java-format", config.FormattingGoogle, WithExecContext(fakeExecContext(1, "", "error: unterminated string")))
	_, err := b.Format(context.Background(), "class Foo{")
	require.Error(t, err)
	kind, ok := errkind.As(err)
	require.True(t, ok)
	assert.Equal(t, errkind.FormatFailed, kind)
}

package builddriver

import (
	"context"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mutaforge/pkg/errkind"
)

// fakeExecContext builds an execContext that re-invokes this test binary
// under TestHelperProcess, the standard library's documented pattern for
// faking exec.Command without touching a real executable.
func fakeExecContext(exitCode int, stdout string) execContext {
	return func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cs := []string{"-test.run=TestHelperProcess", "--", name}
		cs = append(cs, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], cs...)
		cmd.Env = []string{
			"GO_WANT_HELPER_PROCESS=1",
			"HELPER_EXIT_CODE=" + itoa(exitCode),
			"HELPER_STDOUT=" + stdout,
		}
		return cmd
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	os.Stdout.WriteString(os.Getenv("HELPER_STDOUT"))
	code := 0
	for _, c := range os.Getenv("HELPER_EXIT_CODE") {
		code = code*10 + int(c-'0')
	}
	os.Exit(code)
}

func newTestDriver(exitCode int, stdout string) *Driver {
	return &Driver{toolPath: "mvn", execContext: fakeExecContext(exitCode, stdout), timeout: 5 * time.Second}
}

func TestCompileSuccess(t *testing.T) {
	d := newTestDriver(0, "BUILD SUCCESS")
	r := d.Compile(context.Background(), "/tmp/project")
	assert.True(t, r.Success)
	assert.Equal(t, 0, r.ExitCode)
	assert.Contains(t, r.Stdout, "BUILD SUCCESS")
}

func TestCompileFailure(t *testing.T) {
	d := newTestDriver(1, "BUILD FAILURE")
	r := d.Compile(context.Background(), "/tmp/project")
	assert.False(t, r.Success)
	require.Error(t, r.Err)
	kind, ok := errkind.As(r.Err)
	assert.True(t, ok)
	assert.Equal(t, errkind.BuildFailed, kind)
}

func TestRunReportsWallTime(t *testing.T) {
	d := newTestDriver(0, "BUILD SUCCESS")
	r := d.Compile(context.Background(), "/tmp/project")
	assert.GreaterOrEqual(t, r.WallTime, 0.0)
}

func TestRunTestsKilled(t *testing.T) {
	d := newTestDriver(1, "Tests run: 3, Failures: 1")
	r := d.RunTests(context.Background(), "/tmp/project")
	assert.False(t, r.Success)
	kind, _ := errkind.As(r.Err)
	assert.Equal(t, errkind.TestFailed, kind)
}

func TestLocateFindsToolViaExplicitPath(t *testing.T) {
	d, err := Locate(context.Background(), "BUILD_TOOL_PATH", "/usr/bin/mvn",
		WithExecContext(fakeExecContext(0, "Apache Maven 3.9.0")))
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/mvn", d.toolPath)
}

func TestLocateFailsWhenNothingResolves(t *testing.T) {
	_, err := Locate(context.Background(), "BUILD_TOOL_PATH", "",
		WithExecContext(fakeExecContext(1, "")))
	require.Error(t, err)
	kind, ok := errkind.As(err)
	require.True(t, ok)
	assert.Equal(t, errkind.ExternalToolMissing, kind)
}

package main

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crimson-sun/sentrylog/internal/reporter/stdout"
)

const input = `{"level":"warn","message":"disk low","host":"db1"}
{"level":"error","message":"boom","tags":{"service":"api"},"user":{"id":"u1"}}
{"level":"panic","message":"unmapped"}
`

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"SENTRY_DSN", "SENTRY_ENVIRONMENT", "APP_ENV", "SENTRY_DEBUG",
		"SENTRYLOG_LEVELS", "SENTRYLOG_AUTO_CLEAR_SCOPE", "SENTRYLOG_SILENT",
		"SENTRYLOG_LEVEL_KEY", "SENTRYLOG_LOG_LEVEL", "SENTRYLOG_LOG_JSON",
		"SENTRYLOG_FLUSH_TIMEOUT",
	} {
		t.Setenv(k, "")
	}
}

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.ndjson")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) ([]stdout.Capture, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()

	var caps []stdout.Capture
	sc := bufio.NewScanner(&out)
	for sc.Scan() {
		var c stdout.Capture
		require.NoError(t, json.Unmarshal(sc.Bytes(), &c))
		caps = append(caps, c)
	}
	return caps, err
}

func TestDryRun(t *testing.T) {
	clearEnv(t)
	caps, err := execute(t, "--dry-run", "--levels", "warn=info", writeInput(t, input))
	require.NoError(t, err)
	require.Len(t, caps, 3)

	assert.Equal(t, "message", caps[0].Kind)
	assert.Equal(t, "info", caps[0].Level)
	assert.Equal(t, "disk low", caps[0].Message)
	assert.Equal(t, "db1", caps[0].Extras["host"])
	_, hasLevel := caps[0].Extras["level"]
	assert.False(t, hasLevel)

	assert.Equal(t, "exception", caps[1].Kind)
	assert.Equal(t, "error", caps[1].Level)
	assert.Equal(t, "api", caps[1].Tags["service"])
	assert.Equal(t, "u1", caps[1].User["id"])
	require.NotNil(t, caps[1].Error)
	assert.Equal(t, "Error", caps[1].Error.Type)
	assert.Equal(t, "boom", caps[1].Error.Value)

	assert.Equal(t, "message", caps[2].Kind)
	assert.Equal(t, "", caps[2].Level)
}

func TestDryRunLogrusLevels(t *testing.T) {
	clearEnv(t)
	caps, err := execute(t, "--dry-run", "--logrus-levels", writeInput(t, input))
	require.NoError(t, err)
	require.Len(t, caps, 3)
	assert.Equal(t, "exception", caps[2].Kind)
	assert.Equal(t, "fatal", caps[2].Level)
}

func TestSilentPrintsNothing(t *testing.T) {
	clearEnv(t)
	caps, err := execute(t, "--dry-run", "--silent", writeInput(t, input))
	require.NoError(t, err)
	assert.Empty(t, caps)
}

func TestNoAutoClearScope(t *testing.T) {
	clearEnv(t)
	in := `{"level":"info","message":"a","tags":{"tenant":"t1"}}
{"level":"info","message":"b"}
`
	caps, err := execute(t, "--dry-run", "--no-auto-clear-scope", writeInput(t, in))
	require.NoError(t, err)
	require.Len(t, caps, 2)
	assert.Equal(t, "t1", caps[1].Tags["tenant"])
}

func TestConfigFile(t *testing.T) {
	clearEnv(t)
	cfgPath := filepath.Join(t.TempDir(), "sentrylog.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
transport:
  levelKey: severity
  levels:
    notice: warning
`), 0o644))

	in := `{"severity":"notice","message":"heads up","level":"kept"}` + "\n"
	caps, err := execute(t, "--dry-run", "--config", cfgPath, writeInput(t, in))
	require.NoError(t, err)
	require.Len(t, caps, 1)
	assert.Equal(t, "warning", caps[0].Level)
	assert.Equal(t, "kept", caps[0].Extras["level"])
}

func TestDryRunAndTeeExclusive(t *testing.T) {
	clearEnv(t)
	_, err := execute(t, "--dry-run", "--tee", writeInput(t, input))
	assert.Error(t, err)
}

func TestInvalidLevels(t *testing.T) {
	clearEnv(t)
	_, err := execute(t, "--dry-run", "--levels", "nonsense", writeInput(t, input))
	assert.Error(t, err)
}

func TestUnknownSource(t *testing.T) {
	clearEnv(t)
	_, err := execute(t, "--dry-run", "--source", "kafka", writeInput(t, input))
	assert.Error(t, err)
}

func TestMissingInput(t *testing.T) {
	clearEnv(t)
	_, err := execute(t, "--dry-run", filepath.Join(t.TempDir(), "missing.ndjson"))
	assert.Error(t, err)
}

func TestTruncatedGzipInputFails(t *testing.T) {
	clearEnv(t)
	var lines bytes.Buffer
	for i := 0; i < 200; i++ {
		lines.WriteString(`{"level":"info","message":"m` + strconv.Itoa(i) + `"}` + "\n")
	}
	var gzbuf bytes.Buffer
	gz := gzip.NewWriter(&gzbuf)
	_, err := gz.Write(lines.Bytes())
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	data := gzbuf.Bytes()
	path := filepath.Join(t.TempDir(), "in.ndjson.gz")
	require.NoError(t, os.WriteFile(path, data[:len(data)/2], 0o644))

	_, err = execute(t, "--dry-run", path)
	assert.Error(t, err)
}

package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scoreloop/internal/config"
	"scoreloop/internal/domain"
	"scoreloop/internal/pipeline"
)

func TestExitCode(t *testing.T) {
	var w bytes.Buffer

	pass := pipeline.NewSummary("t")
	assert.Equal(t, ExitPass, ExitCode(&w, pass, nil))

	fail := pipeline.NewSummary("t")
	fail.Fail(domain.KindFiltered, "rows_used == 0")
	assert.Equal(t, ExitFail, ExitCode(&w, fail, nil))

	assert.Equal(t, ExitConfig, ExitCode(&w, pass, config.ErrPolicyNotSelected))
	assert.Contains(t, w.String(), "FAIL: gate.canonical_policy is not set")

	w.Reset()
	assert.Equal(t, ExitFail, ExitCode(&w, pass, errors.New("disk full")))
	assert.Equal(t, "FAIL: disk full\n", w.String())

	w.Reset()
	assert.Equal(t, ExitFail, ExitCode(&w, fail, errors.New("disk full")))
	assert.Empty(t, w.String(), "the summary already printed its failure")
}

func TestSetup_ConfigErrorIsExitTwo(t *testing.T) {
	_, err := Setup(context.Background(), "t", Flags{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, err)
	assert.Equal(t, ExitConfig, ExitCode(&bytes.Buffer{}, nil, err))
}

func TestSetup_WritesMetricsTextfile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("data_dir: "+dir+"\n"), 0o644))
	textfile := filepath.Join(dir, "scoreloop.prom")

	env, err := Setup(context.Background(), "canonicalize", Flags{ConfigPath: cfgPath, MetricsTextfile: textfile})
	require.NoError(t, err)
	defer env.Close()

	var out bytes.Buffer
	s, runErr := env.Runner.RunCanonicalize(context.Background())
	code := env.Finish(&out, s, runErr)

	assert.Equal(t, ExitFail, code, "an empty raw stream keeps nothing")
	assert.Contains(t, out.String(), "FAIL: rows_kept_v1 == 0")
	assert.FileExists(t, textfile)
}

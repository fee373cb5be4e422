package ocr

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adverant/nexus/ocr-worker/internal/errors"
)

const sampleTSV = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
	"1\t1\t0\t0\t0\t0\t0\t0\t640\t480\t-1\t\n" +
	"5\t1\t1\t1\t1\t1\t10\t100\t8\t12\t96.1\tH\n" +
	"5\t1\t1\t1\t1\t2\t18\t100\t8\t12\t95.3\ti\n" +
	"5\t1\t1\t1\t2\t1\t10\t400\t8\t12\t91.0\tbye\n"

// fakeRunner writes output for the extractor to pick up and records its calls
type fakeRunner struct {
	output string
	err    error
	skip   bool

	calls     int
	lastInput string
	lastBase  string
	lastOpts  Options
}

func (f *fakeRunner) Run(ctx context.Context, inputPath, outputBase string, opts Options) error {
	f.calls++
	f.lastInput = inputPath
	f.lastBase = outputBase
	f.lastOpts = opts
	if f.err != nil {
		return f.err
	}
	if f.skip {
		return nil
	}
	return os.WriteFile(outputBase+opts.OutputExt(), []byte(f.output), 0o600)
}

// newImage writes a placeholder image file and returns its path
func newImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "page.tif")
	require.NoError(t, os.WriteFile(path, []byte("II*\x00fake"), 0o600))
	return path
}

func newTestExtractor(t *testing.T, runner Runner) (*Extractor, string) {
	t.Helper()
	tempDir := t.TempDir()
	return NewExtractor(&ExtractorConfig{Runner: runner, TempDir: tempDir}), tempDir
}

func assertNoLeftovers(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExtract_NoSuchInputFile(t *testing.T) {
	runner := &fakeRunner{}
	ex, _ := newTestExtractor(t, runner)

	_, err := ex.Extract(context.Background(), filepath.Join(t.TempDir(), "missing.tif"), nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrorNoSuchInputFile))
	assert.Zero(t, runner.calls)
}

func TestExtract_PlainText(t *testing.T) {
	runner := &fakeRunner{output: "Hello world\n"}
	ex, tempDir := newTestExtractor(t, runner)
	img := newImage(t)

	res, err := ex.Extract(context.Background(), img, Options{"-l eng"})
	require.NoError(t, err)

	assert.False(t, res.Structured)
	assert.Equal(t, "Hello world\n", res.Text)
	assert.Nil(t, res.Lines)
	assert.Equal(t, img, runner.lastInput)
	assert.Equal(t, tempDir, filepath.Dir(runner.lastBase))
	assert.True(t, strings.HasPrefix(filepath.Base(runner.lastBase), "ocr_output"))
	assertNoLeftovers(t, tempDir)
}

func TestExtract_Structured(t *testing.T) {
	runner := &fakeRunner{output: sampleTSV}
	ex, tempDir := newTestExtractor(t, runner)

	res, err := ex.Extract(context.Background(), newImage(t), Options{TabularFlag})
	require.NoError(t, err)

	assert.True(t, res.Structured)
	assert.Empty(t, res.Text)
	require.Len(t, res.Lines, 2)
	assert.Equal(t, 100, res.Lines[0].Line)
	assert.Equal(t, "H i", res.Lines[0].Text[0].Text)
	assert.Equal(t, "bye", res.Lines[1].Text[0].Text)
	assertNoLeftovers(t, tempDir)
}

func TestExtractStructuredText_AddsFlag(t *testing.T) {
	runner := &fakeRunner{output: sampleTSV}
	ex, _ := newTestExtractor(t, runner)

	page, err := ex.ExtractStructuredText(context.Background(), newImage(t), Options{"-l eng"})
	require.NoError(t, err)

	assert.Len(t, page, 2)
	assert.Equal(t, Options{"-l eng", TabularFlag}, runner.lastOpts)
}

func TestExtractPlainText_DropsFlag(t *testing.T) {
	runner := &fakeRunner{output: "plain"}
	ex, _ := newTestExtractor(t, runner)

	text, err := ex.ExtractPlainText(context.Background(), newImage(t), Options{TabularFlag, "--psm 6"})
	require.NoError(t, err)

	assert.Equal(t, "plain", text)
	assert.Equal(t, Options{"--psm 6"}, runner.lastOpts)
}

func TestExtract_EngineFailure(t *testing.T) {
	cause := stderrors.New("exit status 1")
	ex, _ := newTestExtractor(t, &fakeRunner{err: cause})

	_, err := ex.Extract(context.Background(), newImage(t), nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrorEngineInvocationFailed))
	assert.ErrorIs(t, err, cause)
}

func TestExtract_OutputMissing(t *testing.T) {
	ex, _ := newTestExtractor(t, &fakeRunner{skip: true})

	_, err := ex.Extract(context.Background(), newImage(t), nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrorOutputReadFailed))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestExtract_CleanupFailure(t *testing.T) {
	denied := stderrors.New("remove denied")
	orig := removeFile
	removeFile = func(string) error { return denied }
	t.Cleanup(func() { removeFile = orig })

	ex, _ := newTestExtractor(t, &fakeRunner{output: "text"})

	_, err := ex.Extract(context.Background(), newImage(t), nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrorOutputCleanupFailed))
	assert.ErrorIs(t, err, denied)
}

func TestFingerprint(t *testing.T) {
	ex, _ := newTestExtractor(t, &fakeRunner{})
	img := newImage(t)

	a, err := ex.Fingerprint(img, Options{TabularFlag})
	require.NoError(t, err)
	b, err := ex.Fingerprint(img, Options{TabularFlag})
	require.NoError(t, err)
	c, err := ex.Fingerprint(img, nil)
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	_, err = ex.Fingerprint(filepath.Join(t.TempDir(), "missing.tif"), nil)
	assert.True(t, errors.HasCode(err, errors.ErrorNoSuchInputFile))
}

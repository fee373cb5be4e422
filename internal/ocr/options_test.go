package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOptions_Tabular(t *testing.T) {
	assert.False(t, Options(nil).Tabular())
	assert.False(t, Options{"-l eng", "--psm 6"}.Tabular())
	assert.True(t, Options{"-l eng", TabularFlag}.Tabular())
	assert.True(t, Options{"-c  tessedit_create_tsv=1"}.Tabular())
	assert.True(t, Options{"tsv"}.Tabular())
	assert.False(t, Options{"-c tessedit_create_tsv=0"}.Tabular())
	assert.True(t, Options{"-c tessedit_create_tsv=1 extra"}.Tabular())
}

func TestOptions_TabularAcrossElements(t *testing.T) {
	split := Options{"-l eng", "-c", "tessedit_create_tsv=1"}
	assert.True(t, split.Tabular())
	assert.Equal(t, ".tsv", split.OutputExt())
	assert.Equal(t, split, split.WithTabular())
	assert.Equal(t, Options{"-l eng"}, split.WithoutTabular())

	// values of other flags are not switches
	assert.False(t, Options{"-l", "tsv"}.Tabular())
	assert.False(t, Options{"-c", "tessedit_create_tsv=0", "--psm 6"}.Tabular())
	assert.False(t, Options{"-l eng -c"}.Tabular())
}

func TestOptions_WithoutTabularKeepsOtherWords(t *testing.T) {
	opts := Options{"-l eng -c tessedit_create_tsv=1", "--psm 6"}
	assert.Equal(t, Options{"-l eng", "--psm 6"}, opts.WithoutTabular())

	plain := Options{"-l eng"}
	assert.Equal(t, plain, plain.WithoutTabular())
}

func TestOptions_WithTabular(t *testing.T) {
	opts := Options{"-l eng"}
	with := opts.WithTabular()

	assert.Equal(t, Options{"-l eng", TabularFlag}, with)
	assert.Equal(t, Options{"-l eng"}, opts)
	assert.Equal(t, with, with.WithTabular())
}

func TestOptions_WithoutTabular(t *testing.T) {
	opts := Options{"tsv", "-l eng", TabularFlag}
	assert.Equal(t, Options{"-l eng"}, opts.WithoutTabular())
}

func TestOptions_Args(t *testing.T) {
	opts := Options{"-l eng", "--psm 6", TabularFlag}
	assert.Equal(t, []string{"-l", "eng", "--psm", "6", "-c", "tessedit_create_tsv=1"}, opts.Args())
	assert.Empty(t, Options(nil).Args())
}

func TestOptions_OutputExt(t *testing.T) {
	assert.Equal(t, ".txt", Options{"-l eng"}.OutputExt())
	assert.Equal(t, ".tsv", Options{TabularFlag}.OutputExt())
}

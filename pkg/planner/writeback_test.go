package planner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mutaforge/pkg/errkind"
	"mutaforge/pkg/model"
)

type fakeValidator struct{ err error }

func (f fakeValidator) ValidateTestSource(_ context.Context, _ string) error { return f.err }

type fakeFormatter struct {
	out string
	err error
}

func (f fakeFormatter) Format(_ context.Context, source string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.out != "" {
		return f.out, nil
	}
	return source, nil
}

type fakeBaseline struct {
	ok  bool
	err error
}

func (f fakeBaseline) BaselineCheck(_ context.Context) (bool, error) { return f.ok, f.err }

func wbTarget() model.Target {
	return model.Target{ID: model.TargetID{ClassFQN: "com.example.Widget", MethodName: "run"}, LineStart: 1, LineEnd: 20}
}

func TestWriteBackCreatesNewFileWhenNoneExists(t *testing.T) {
	dir := t.TempDir()
	wb := NewWriteBack(dir, fakeValidator{}, fakeFormatter{}, fakeBaseline{ok: true})

	err := wb.apply(context.Background(), wbTarget(), []string{"@Test void whenX_thenY() {}"})
	require.NoError(t, err)

	path := testFilePath(dir, wbTarget().ID)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "@Test void whenX_thenY")
	assert.Contains(t, string(data), "package com.example;")
}

func TestWriteBackMergesIntoExistingFileWithoutDroppingMethods(t *testing.T) {
	dir := t.TempDir()
	path := testFilePath(dir, wbTarget().ID)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	existing := "package com.example;\n\nclass Widget_runTest {\n\n@Test void existing() {}\n}\n"
	require.NoError(t, os.WriteFile(path, []byte(existing), 0o644))

	wb := NewWriteBack(dir, fakeValidator{}, fakeFormatter{}, fakeBaseline{ok: true})
	err := wb.apply(context.Background(), wbTarget(), []string{"@Test void added() {}"})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "existing()")
	assert.Contains(t, string(data), "added()")
}

func TestWriteBackRollsBackNewFileWhenBaselineFails(t *testing.T) {
	dir := t.TempDir()
	wb := NewWriteBack(dir, fakeValidator{}, fakeFormatter{}, fakeBaseline{ok: false})

	err := wb.apply(context.Background(), wbTarget(), []string{"@Test void whenX_thenY() {}"})
	require.Error(t, err)

	path := testFilePath(dir, wbTarget().ID)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "a baseline failure must remove the file it had no pre-existing content to restore")
}

func TestWriteBackRestoresPriorContentWhenBaselineFailsOnExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := testFilePath(dir, wbTarget().ID)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	existing := "package com.example;\n\nclass Widget_runTest {\n\n@Test void existing() {}\n}\n"
	require.NoError(t, os.WriteFile(path, []byte(existing), 0o644))

	wb := NewWriteBack(dir, fakeValidator{}, fakeFormatter{}, fakeBaseline{ok: false})
	err := wb.apply(context.Background(), wbTarget(), []string{"@Test void added() {}"})
	require.Error(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, existing, string(data))
}

func TestWriteBackPropagatesValidationFailureWithoutWriting(t *testing.T) {
	dir := t.TempDir()
	wb := NewWriteBack(dir, fakeValidator{err: errkind.New(errkind.AnalyzerParseFailed, "bad source")}, fakeFormatter{}, fakeBaseline{ok: true})

	err := wb.apply(context.Background(), wbTarget(), []string{"not valid java"})
	require.Error(t, err)

	path := testFilePath(dir, wbTarget().ID)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestPackageOfSplitsOnLastDot(t *testing.T) {
	assert.Equal(t, "com.example", packageOf("com.example.Widget"))
	assert.Equal(t, "", packageOf("Widget"))
}

package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errSentinel = NewStd("sentinel")

func TestFastPathNoHooks(t *testing.T) {
	ClearErrorHooks()

	ee := New(fmt.Errorf("test error")).Build()

	assert.Equal(t, "test error", ee.Err.Error())
	assert.Equal(t, ComponentUnknown, ee.GetComponent())
	assert.Equal(t, CategoryGeneric, ee.Category)
}

func TestBuilderKeepsExplicitFields(t *testing.T) {
	ee := Newf("flush of %d samples failed", 4096).
		Component("recorder").
		Category(CategoryFileIO).
		Priority(PriorityHigh).
		Context("tail", 0).
		Build()

	assert.Equal(t, "recorder", ee.GetComponent())
	assert.Equal(t, "file-io", ee.GetCategory())
	assert.Equal(t, PriorityHigh, ee.GetPriority())
	assert.Equal(t, map[string]any{"tail": 0}, ee.GetContext())
	assert.Equal(t, "flush of 4096 samples failed", ee.GetMessage())
}

func TestInvalidPriorityFallsBackToMedium(t *testing.T) {
	ee := New(errSentinel).Priority("urgent").Build()
	assert.Equal(t, PriorityMedium, ee.GetPriority())
}

func TestWrappedSentinelIsPreserved(t *testing.T) {
	wrapped := New(fmt.Errorf("open: %w", errSentinel)).
		Category(CategoryFileIO).
		Build()

	require.ErrorIs(t, wrapped, errSentinel)
	assert.True(t, IsCategory(wrapped, CategoryFileIO))
	assert.False(t, IsNotFound(wrapped))

	outer := fmt.Errorf("start: %w", wrapped)
	assert.True(t, IsCategory(outer, CategoryFileIO))
}

func TestFileContext(t *testing.T) {
	ee := New(errSentinel).FileContext("/tmp/take.data", 2048).Build()
	ctx := ee.GetContext()

	assert.Equal(t, "absolute-path", ctx["file_type"])
	assert.Equal(t, "data", ctx["file_extension"])
	assert.Equal(t, "small", ctx["file_size_category"])
}

func TestHooksRunAndDetectCategory(t *testing.T) {
	var seen []*EnhancedError
	AddErrorHook(func(ee *EnhancedError) { seen = append(seen, ee) })
	t.Cleanup(ClearErrorHooks)

	ee := New(fmt.Errorf("failed to write file")).Build()

	require.Len(t, seen, 1)
	assert.Same(t, ee, seen[0])
	assert.Equal(t, CategoryFileIO, ee.Category)
}

func TestClearErrorHooks(t *testing.T) {
	calls := 0
	AddErrorHook(func(*EnhancedError) { calls++ })
	ClearErrorHooks()

	_ = New(errSentinel).Build()
	assert.Zero(t, calls)
}

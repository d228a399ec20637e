package domain

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestHistoryBuffer_KeepsLastFifteen(t *testing.T) {
	h := NewHistoryBuffer(DefaultHistorySize)

	var pushed []float64
	for i := 1; i <= 20; i++ {
		pushed = append(pushed, float64(i))
		h.Push(float64(i))
	}

	got := h.Values()
	assert.Len(t, got, 15)
	if diff := cmp.Diff(pushed[5:], got); diff != "" {
		t.Fatalf("history mismatch (-want +got):\n%s", diff)
	}
}

func TestHistoryBuffer_PushReturnsSnapshot(t *testing.T) {
	h := NewHistoryBuffer(3)

	assert.Equal(t, []float64{1}, h.Push(1))
	assert.Equal(t, []float64{1, 2}, h.Push(2))
	assert.Equal(t, []float64{1, 2, 3}, h.Push(3))
	assert.Equal(t, []float64{2, 3, 4}, h.Push(4))

	snap := h.Values()
	snap[0] = 99
	assert.Equal(t, []float64{2, 3, 4}, h.Values(), "callers must not alias the buffer")
}

func TestHistoryBuffer_NeverExceedsCapacity(t *testing.T) {
	h := NewHistoryBuffer(0)
	assert.Equal(t, DefaultHistorySize, h.Cap())

	for i := range 100 {
		h.Push(float64(i))
		assert.LessOrEqual(t, h.Len(), DefaultHistorySize)
	}
}

func TestHistoryBuffer_Empty(t *testing.T) {
	h := NewHistoryBuffer(5)
	assert.Empty(t, h.Values())
	assert.Equal(t, 0, h.Len())
}

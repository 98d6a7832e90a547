package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWindow_PushBelowCapacity(t *testing.T) {
	w := NewWindow[int](3)

	_, evicted := w.Push(1)
	assert.False(t, evicted)
	w.Push(2)

	assert.Equal(t, 2, w.Len())
	assert.Equal(t, 3, w.Cap())
	assert.Equal(t, []int{1, 2}, w.Items())
}

func TestWindow_EvictsOldestWhenFull(t *testing.T) {
	w := NewWindow[int](3)
	for i := 1; i <= 3; i++ {
		w.Push(i)
	}

	old, evicted := w.Push(4)

	assert.True(t, evicted)
	assert.Equal(t, 1, old)
	assert.Equal(t, []int{2, 3, 4}, w.Items())
}

// TestWindow_FIFOLaw pushes more than capacity and checks the window holds
// exactly the last capacity values in arrival order.
func TestWindow_FIFOLaw(t *testing.T) {
	for _, n := range []int{60, 61, 119, 120, 500} {
		w := NewWindow[int](60)
		for i := 1; i <= n; i++ {
			w.Push(i)
		}

		items := w.Items()
		assert.Len(t, items, 60)
		for i, v := range items {
			assert.Equal(t, n-60+1+i, v)
		}
		newest, ok := w.Newest()
		assert.True(t, ok)
		assert.Equal(t, n, newest)
	}
}

func TestWindow_ItemsIsACopy(t *testing.T) {
	w := NewWindow[int](2)
	w.Push(1)

	items := w.Items()
	items[0] = 99

	assert.Equal(t, []int{1}, w.Items())
}

func TestWindow_EmptyAndReset(t *testing.T) {
	w := NewWindow[string](0)
	assert.Equal(t, 1, w.Cap())

	_, ok := w.Newest()
	assert.False(t, ok)
	assert.Empty(t, w.Items())

	w.Push("a")
	w.Push("b")
	assert.Equal(t, []string{"b"}, w.Items())

	w.Reset()
	assert.Equal(t, 0, w.Len())
	assert.Empty(t, w.Items())
}

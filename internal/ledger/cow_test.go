package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCOWMapForkIsolation(t *testing.T) {
	m := newCOWMap[string, int]()
	m.Set("a", 1)
	m.Set("b", 2)

	f := m.Fork()
	f.Set("a", 10)
	f.Delete("b")
	m.Set("c", 3)

	v, ok := m.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	_, ok = m.Get("b")
	assert.True(t, ok)
	_, ok = f.Get("b")
	assert.False(t, ok)
	_, ok = f.Get("c")
	assert.False(t, ok)
	v, _ = f.Get("a")
	assert.Equal(t, 10, v)
}

func TestCOWMapRangeMergesLayers(t *testing.T) {
	m := newCOWMap[string, int]()
	m.Set("a", 1)
	m.Set("b", 2)
	f := m.Fork()
	f.Set("a", 5)
	f.Delete("b")
	f.Set("c", 7)

	got := map[string]int{}
	f.Range(func(k string, v int) bool {
		got[k] = v
		return true
	})
	assert.Equal(t, map[string]int{"a": 5, "c": 7}, got)
	assert.Equal(t, 2, f.Len())
	assert.Equal(t, 2, m.Len())
}

func TestCOWMapFlattensDeepChains(t *testing.T) {
	m := newCOWMap[int, int]()
	forks := make([]*cowMap[int, int], 0)
	for i := 0; i < 3*maxLayerDepth; i++ {
		m.Set(i, i)
		if i%2 == 0 {
			m.Delete(i - 1)
		}
		forks = append(forks, m.Fork())
		assert.LessOrEqual(t, m.depth(), maxLayerDepth)
	}
	for i := 0; i < 3*maxLayerDepth; i++ {
		v, ok := m.Get(i)
		if i%2 == 1 && i < 3*maxLayerDepth-1 {
			assert.False(t, ok, "key %d", i)
			continue
		}
		assert.True(t, ok, "key %d", i)
		assert.Equal(t, i, v)
	}
	v, ok := forks[0].Get(0)
	assert.True(t, ok)
	assert.Equal(t, 0, v)
	_, ok = forks[0].Get(1)
	assert.False(t, ok)
}

func TestCOWMapDeleteWithoutBase(t *testing.T) {
	m := newCOWMap[string, int]()
	m.Set("a", 1)
	m.Delete("a")
	assert.Equal(t, 0, m.Len())
	assert.Empty(t, m.top)
}

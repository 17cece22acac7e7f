package ledger

// maxLayerDepth bounds the frozen layer chain before it is flattened.
const maxLayerDepth = 8

type slot[V any] struct {
	val     V
	deleted bool
}

type layer[K comparable, V any] struct {
	parent *layer[K, V]
	data   map[K]slot[V]
	depth  int
}

// cowMap is a map whose forks share every entry written before the fork.
// Frozen layers are never written again; each fork writes to its own top.
type cowMap[K comparable, V any] struct {
	base *layer[K, V]
	top  map[K]slot[V]
}

func newCOWMap[K comparable, V any]() *cowMap[K, V] {
	return &cowMap[K, V]{top: make(map[K]slot[V])}
}

func (m *cowMap[K, V]) Get(k K) (V, bool) {
	if s, ok := m.top[k]; ok {
		return s.val, !s.deleted
	}
	for l := m.base; l != nil; l = l.parent {
		if s, ok := l.data[k]; ok {
			return s.val, !s.deleted
		}
	}
	var zero V
	return zero, false
}

func (m *cowMap[K, V]) Set(k K, v V) {
	m.top[k] = slot[V]{val: v}
}

func (m *cowMap[K, V]) Delete(k K) {
	if m.base == nil {
		delete(m.top, k)
		return
	}
	m.top[k] = slot[V]{deleted: true}
}

// Fork freezes the current contents and returns an independent map sharing them.
func (m *cowMap[K, V]) Fork() *cowMap[K, V] {
	m.freeze()
	return &cowMap[K, V]{base: m.base, top: make(map[K]slot[V])}
}

func (m *cowMap[K, V]) freeze() {
	if len(m.top) == 0 {
		return
	}
	depth := 1
	if m.base != nil {
		depth = m.base.depth + 1
	}
	m.base = &layer[K, V]{parent: m.base, data: m.top, depth: depth}
	m.top = make(map[K]slot[V])
	if depth > maxLayerDepth {
		m.base = m.base.flatten()
	}
}

func (l *layer[K, V]) flatten() *layer[K, V] {
	var chain []*layer[K, V]
	for x := l; x != nil; x = x.parent {
		chain = append(chain, x)
	}
	out := make(map[K]slot[V])
	for i := len(chain) - 1; i >= 0; i-- {
		for k, s := range chain[i].data {
			if s.deleted {
				delete(out, k)
				continue
			}
			out[k] = s
		}
	}
	return &layer[K, V]{data: out, depth: 1}
}

// Range visits every live entry once, in no particular order.
func (m *cowMap[K, V]) Range(fn func(K, V) bool) {
	seen := make(map[K]struct{}, len(m.top))
	visit := func(data map[K]slot[V]) bool {
		for k, s := range data {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			if s.deleted {
				continue
			}
			if !fn(k, s.val) {
				return false
			}
		}
		return true
	}
	if !visit(m.top) {
		return
	}
	for l := m.base; l != nil; l = l.parent {
		if !visit(l.data) {
			return
		}
	}
}

func (m *cowMap[K, V]) Len() int {
	n := 0
	m.Range(func(K, V) bool {
		n++
		return true
	})
	return n
}

func (m *cowMap[K, V]) depth() int {
	if m.base == nil {
		return 0
	}
	return m.base.depth
}

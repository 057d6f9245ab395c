package store

import "sync"

// table is a mutex-owned map persisted as one JSON file. An empty path keeps
// it in memory only.
type table[K comparable, V any] struct {
	path string
	mu   sync.Mutex
	mem  map[K]V
}

func (t *table[K, V]) load() (map[K]V, error) {
	if t.path == "" {
		if t.mem == nil {
			t.mem = make(map[K]V)
		}
		return t.mem, nil
	}
	m := make(map[K]V)
	if err := readJSON(t.path, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func (t *table[K, V]) save(m map[K]V) error {
	if t.path == "" {
		t.mem = m
		return nil
	}
	return writeJSON(t.path, m, 0o600)
}

func (t *table[K, V]) put(k K, v V) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, err := t.load()
	if err != nil {
		return err
	}
	m[k] = v
	return t.save(m)
}

func (t *table[K, V]) get(k K) (V, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var zero V
	m, err := t.load()
	if err != nil {
		return zero, false, err
	}
	v, ok := m[k]
	return v, ok, nil
}

// del removes keys; absent keys are ignored.
func (t *table[K, V]) del(keys ...K) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, err := t.load()
	if err != nil {
		return err
	}
	n := len(m)
	for _, k := range keys {
		delete(m, k)
	}
	if len(m) == n {
		return nil
	}
	return t.save(m)
}

func (t *table[K, V]) list() ([]V, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, err := t.load()
	if err != nil {
		return nil, err
	}
	out := make([]V, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out, nil
}

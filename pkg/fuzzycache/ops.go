package fuzzycache

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/calvinalkan/fuzzycache/internal/store"
)

// Add appends item to the sequence stored under key, creating the entry if
// needed. Keys are case-insensitive: "Apple" and "apple" are the same entry.
func (c *Cache[V]) Add(key string, item V) error {
	return c.AddMany(key, []V{item})
}

// AddMany appends items in order to the sequence stored under key. An empty
// items slice changes nothing.
func (c *Cache[V]) AddMany(key string, items []V) error {
	k := NormalizeKey(key)

	return c.withStore(func(st store.Store) error {
		if len(items) == 0 {
			return nil
		}

		current, err := c.load(st, k)
		if err != nil {
			return err
		}

		return c.save(st, k, append(current, items...))
	})
}

// Replace discards whatever is stored under key and stores [item].
func (c *Cache[V]) Replace(key string, item V) error {
	return c.ReplaceMany(key, []V{item})
}

// ReplaceMany discards whatever is stored under key and stores items. An
// empty items slice deletes the key; stored sequences are never empty.
func (c *Cache[V]) ReplaceMany(key string, items []V) error {
	k := NormalizeKey(key)

	return c.withStore(func(st store.Store) error {
		if len(items) == 0 {
			return c.remove(st, k)
		}

		return c.save(st, k, slices.Clone(items))
	})
}

// Delete removes key and its items. Deleting a missing key is a no-op.
func (c *Cache[V]) Delete(key string) error {
	k := NormalizeKey(key)

	return c.withStore(func(st store.Store) error {
		return c.remove(st, k)
	})
}

// Get returns {key: items} if key is stored, otherwise an empty map. The
// returned key is the normalized one.
func (c *Cache[V]) Get(key string) (map[string][]V, error) {
	k := NormalizeKey(key)
	result := make(map[string][]V, 1)

	err := c.withStore(func(st store.Store) error {
		items, err := c.load(st, k)
		if err != nil {
			return err
		}

		if len(items) > 0 {
			result[k] = items
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// GetFuzzy returns every stored key whose [Similarity] to query is at least
// the cache threshold, with its items. The query is lower-cased like keys
// are. An exact match always qualifies when the threshold is at most 1.
func (c *Cache[V]) GetFuzzy(query string) (map[string][]V, error) {
	q := NormalizeKey(query)
	result := make(map[string][]V)

	err := c.withStore(func(st store.Store) error {
		for _, k := range c.lock.keys {
			if Similarity(k, q) < c.opts.threshold {
				continue
			}

			items, err := c.load(st, k)
			if err != nil {
				return err
			}

			if len(items) > 0 {
				result[k] = items
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// Lookup dispatches to [Cache.GetFuzzy] when fuzzy is set and to [Cache.Get]
// otherwise.
func (c *Cache[V]) Lookup(query string, fuzzy bool) (map[string][]V, error) {
	if fuzzy {
		return c.GetFuzzy(query)
	}

	return c.Get(query)
}

// Keys returns the stored keys in ascending order.
func (c *Cache[V]) Keys() ([]string, error) {
	var keys []string

	err := c.withStore(func(store.Store) error {
		keys = slices.Clone(c.lock.keys)

		return nil
	})
	if err != nil {
		return nil, err
	}

	if keys == nil {
		keys = []string{}
	}

	return keys, nil
}

// Len returns the number of stored keys.
func (c *Cache[V]) Len() (int, error) {
	var n int

	err := c.withStore(func(store.Store) error {
		n = len(c.lock.keys)

		return nil
	})

	return n, err
}

// withStore runs fn while holding the path lock. It fails with [ErrNotOpen]
// when the cache is closed.
func (c *Cache[V]) withStore(fn func(st store.Store) error) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.h == nil {
		return ErrNotOpen
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	return fn(c.h.store)
}

func (c *Cache[V]) load(st store.Store, key string) ([]V, error) {
	raw, found, err := st.Get(key)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w: %w", key, ErrIO, err)
	}

	if !found {
		return nil, nil
	}

	var items []V

	err = json.Unmarshal(raw, &items)
	if err != nil {
		return nil, fmt.Errorf("decode %q: %w: %w", key, ErrIO, err)
	}

	return items, nil
}

// save writes items under key and records the key in the shared index. The
// index only changes after the store accepted the write.
func (c *Cache[V]) save(st store.Store, key string, items []V) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}

	err = st.Put(key, raw)
	if err != nil {
		return fmt.Errorf("write %q: %w: %w", key, ErrIO, err)
	}

	c.lock.keys, _ = insertKey(c.lock.keys, key)

	return nil
}

func (c *Cache[V]) remove(st store.Store, key string) error {
	err := st.Delete(key)
	if err != nil {
		return fmt.Errorf("delete %q: %w: %w", key, ErrIO, err)
	}

	c.lock.keys = removeKey(c.lock.keys, key)

	return nil
}

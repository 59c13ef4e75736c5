package fuzzycache_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/calvinalkan/fuzzycache/pkg/fuzzycache"
)

var allBackends = []fuzzycache.Backend{fuzzycache.BackendSQLite, fuzzycache.BackendSnapshot}

// newCache opens a string cache and closes it when the test ends.
func newCache(tb testing.TB, path string, opts ...fuzzycache.Option) *fuzzycache.Cache[string] {
	tb.Helper()

	c, err := fuzzycache.New[string](path, opts...)
	if err != nil {
		tb.Fatalf("New(%q): %v", path, err)
	}

	tb.Cleanup(func() { _ = c.Close() })

	return c
}

func mustAdd(tb testing.TB, c *fuzzycache.Cache[string], key string, items ...string) {
	tb.Helper()

	err := c.AddMany(key, items)
	if err != nil {
		tb.Fatalf("AddMany(%q): %v", key, err)
	}
}

func assertGet(tb testing.TB, c *fuzzycache.Cache[string], key string, want map[string][]string) {
	tb.Helper()

	got, err := c.Get(key)
	if err != nil {
		tb.Fatalf("Get(%q): %v", key, err)
	}

	if diff := cmp.Diff(want, got); diff != "" {
		tb.Fatalf("Get(%q) mismatch (-want +got):\n%s", key, diff)
	}
}

func assertFuzzy(tb testing.TB, c *fuzzycache.Cache[string], query string, want map[string][]string) {
	tb.Helper()

	got, err := c.GetFuzzy(query)
	if err != nil {
		tb.Fatalf("GetFuzzy(%q): %v", query, err)
	}

	if diff := cmp.Diff(want, got); diff != "" {
		tb.Fatalf("GetFuzzy(%q) mismatch (-want +got):\n%s", query, diff)
	}
}

func assertKeys(tb testing.TB, c *fuzzycache.Cache[string], want []string) {
	tb.Helper()

	got, err := c.Keys()
	if err != nil {
		tb.Fatalf("Keys: %v", err)
	}

	if diff := cmp.Diff(want, got); diff != "" {
		tb.Fatalf("Keys mismatch (-want +got):\n%s", diff)
	}
}

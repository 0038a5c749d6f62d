// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package objcache

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/bureau-foundation/examvault/lib/vaulterr"
)

type quiz struct{ Title string }
type survey struct{ Title string }

func newTestCache(t *testing.T, capacity int) *Cache {
	t.Helper()
	cache, err := New(capacity)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return cache
}

func TestGetOrLoadSingleFlight(t *testing.T) {
	cache := newTestCache(t, 10)

	var calls atomic.Int32
	release := make(chan struct{})
	load := func() (*quiz, error) {
		calls.Add(1)
		<-release
		return &quiz{Title: "loaded"}, nil
	}

	const callers = 50
	results := make([]*quiz, callers)
	var started, done sync.WaitGroup
	started.Add(callers)
	done.Add(callers)
	for index := 0; index < callers; index++ {
		go func(index int) {
			defer done.Done()
			started.Done()
			value, err := GetOrLoad(cache, "tenant-a/quiz-1", load)
			if err != nil {
				t.Errorf("GetOrLoad: %v", err)
				return
			}
			results[index] = value
		}(index)
	}
	started.Wait()
	close(release)
	done.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("loader ran %d times, want 1", got)
	}
	for index, value := range results {
		if value != results[0] {
			t.Fatalf("caller %d received a different handle", index)
		}
	}
	if got := cache.Stats().Loads; got != 1 {
		t.Errorf("Stats().Loads = %d, want 1", got)
	}
}

func TestGetOrLoadDoesNotCacheErrors(t *testing.T) {
	cache := newTestCache(t, 10)
	failure := errors.New("disk on fire")

	_, err := GetOrLoad(cache, "k", func() (*quiz, error) { return nil, failure })
	if !errors.Is(err, failure) {
		t.Fatalf("err = %v, want %v", err, failure)
	}

	value, err := GetOrLoad(cache, "k", func() (*quiz, error) { return &quiz{Title: "ok"}, nil })
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if value.Title != "ok" {
		t.Errorf("Title = %q", value.Title)
	}
}

func TestTypeMismatch(t *testing.T) {
	cache := newTestCache(t, 10)
	Insert(cache, "tenant-a/x", &quiz{Title: "quiz"})

	if _, _, err := Get[*survey](cache, "tenant-a/x"); !errors.Is(err, vaulterr.ErrTypeMismatch) {
		t.Errorf("Get with wrong type: err = %v, want ErrTypeMismatch", err)
	}
	_, err := GetOrLoad(cache, "tenant-a/x", func() (*survey, error) {
		t.Error("loader called despite cached entry")
		return nil, nil
	})
	if !errors.Is(err, vaulterr.ErrTypeMismatch) {
		t.Errorf("GetOrLoad with wrong type: err = %v, want ErrTypeMismatch", err)
	}
	if _, _, err := InsertIfAbsent(cache, "tenant-a/x", &survey{}); !errors.Is(err, vaulterr.ErrTypeMismatch) {
		t.Errorf("InsertIfAbsent with wrong type: err = %v, want ErrTypeMismatch", err)
	}

	value, ok, err := Get[*quiz](cache, "tenant-a/x")
	if err != nil || !ok || value.Title != "quiz" {
		t.Errorf("Get with right type = %v, %v, %v", value, ok, err)
	}
}

func TestInsertIfAbsent(t *testing.T) {
	cache := newTestCache(t, 10)
	first := &quiz{Title: "first"}

	got, inserted, err := InsertIfAbsent(cache, "k", first)
	if err != nil || !inserted || got != first {
		t.Fatalf("first InsertIfAbsent = %v, %v, %v", got, inserted, err)
	}
	got, inserted, err = InsertIfAbsent(cache, "k", &quiz{Title: "second"})
	if err != nil || inserted || got != first {
		t.Fatalf("second InsertIfAbsent = %v, %v, %v; want existing entry", got, inserted, err)
	}
}

func TestCapacityEviction(t *testing.T) {
	cache := newTestCache(t, 3)
	for index := 0; index < 5; index++ {
		Insert(cache, fmt.Sprintf("k%d", index), &quiz{})
	}
	if cache.Len() != 3 {
		t.Errorf("Len() = %d, want 3", cache.Len())
	}
	if _, ok, _ := Get[*quiz](cache, "k0"); ok {
		t.Error("least recently used entry k0 was not evicted")
	}
	if _, ok, _ := Get[*quiz](cache, "k4"); !ok {
		t.Error("most recent entry k4 missing")
	}
}

func TestInvalidatePrefix(t *testing.T) {
	cache := newTestCache(t, 10)
	Insert(cache, "tenant-a/q1", &quiz{})
	Insert(cache, "tenant-a/q2", &quiz{})
	Insert(cache, "tenant-ab/q1", &quiz{})
	Insert(cache, "tenant-b/q1", &quiz{})

	if removed := cache.InvalidatePrefix("tenant-a/"); removed != 2 {
		t.Errorf("InvalidatePrefix removed %d, want 2", removed)
	}
	for key, want := range map[string]bool{
		"tenant-a/q1": false, "tenant-a/q2": false, "tenant-ab/q1": true, "tenant-b/q1": true,
	} {
		if _, ok, _ := Get[*quiz](cache, key); ok != want {
			t.Errorf("%s cached = %v, want %v", key, ok, want)
		}
	}
}

// A load that overlaps an invalidation returns its value to its
// callers but leaves the cache empty.
func TestInvalidationDuringLoadIsNotCached(t *testing.T) {
	cache := newTestCache(t, 10)

	loading := make(chan struct{})
	release := make(chan struct{})
	result := make(chan *quiz, 1)
	go func() {
		value, err := GetOrLoad(cache, "k", func() (*quiz, error) {
			close(loading)
			<-release
			return &quiz{Title: "stale"}, nil
		})
		if err != nil {
			t.Errorf("GetOrLoad: %v", err)
		}
		result <- value
	}()

	<-loading
	cache.Invalidate("k")
	close(release)

	if value := <-result; value == nil || value.Title != "stale" {
		t.Fatalf("loader result = %v", value)
	}
	if _, ok, _ := Get[*quiz](cache, "k"); ok {
		t.Error("load overlapping an invalidation was cached")
	}
}

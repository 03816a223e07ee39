package usecase

import (
	"strconv"
	"sync"
	"testing"
	"time"
)

func TestChunkIDGeneratorFormat(t *testing.T) {
	fixed := time.UnixMilli(1700000000000)
	g := NewChunkIDGenerator()
	g.now = func() time.Time { return fixed }
	g.instance = "a1b2c3d4"

	ids := g.Next("Acme Corp", 2)
	if len(ids) != 2 || ids[0] != "acme-corp-1700000000000-a1b2c3d4-0" || ids[1] != "acme-corp-1700000000000-a1b2c3d4-1" {
		t.Fatalf("unexpected ids: %#v", ids)
	}
	if got := g.Next("Acme Corp", 0); got != nil {
		t.Fatalf("expected nil for zero count, got %#v", got)
	}
}

func TestChunkIDGeneratorBumpsStampWithinSameMillisecond(t *testing.T) {
	fixed := time.UnixMilli(1700000000000)
	g := NewChunkIDGenerator()
	g.now = func() time.Time { return fixed }
	g.instance = "a1b2c3d4"

	first := g.Next("acme", 1)[0]
	second := g.Next("acme", 1)[0]
	if first == second {
		t.Fatalf("expected distinct ids, got %q twice", first)
	}
	if second != "acme-"+strconv.FormatInt(1700000000001, 10)+"-a1b2c3d4-0" {
		t.Fatalf("unexpected bumped id %q", second)
	}
}

func TestChunkIDGeneratorConcurrentUniqueness(t *testing.T) {
	fixed := time.UnixMilli(1700000000000)
	g := NewChunkIDGenerator()
	g.now = func() time.Time { return fixed }

	const workers = 32
	results := make([][]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = g.Next("acme", 5)
		}(i)
	}
	wg.Wait()

	seen := map[string]struct{}{}
	for _, ids := range results {
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				t.Fatalf("duplicate id %q", id)
			}
			seen[id] = struct{}{}
		}
	}
	if len(seen) != workers*5 {
		t.Fatalf("expected %d ids, got %d", workers*5, len(seen))
	}
}

func TestChunkIDGeneratorsInSeparateProcessesDoNotCollide(t *testing.T) {
	fixed := time.UnixMilli(1700000000000)
	clock := func() time.Time { return fixed }
	api, cli := NewChunkIDGenerator(), NewChunkIDGenerator()
	api.now, cli.now = clock, clock

	if api.instance == cli.instance || len(api.instance) != instanceTokenLen {
		t.Fatalf("expected distinct instance tokens, got %q and %q", api.instance, cli.instance)
	}
	seen := map[string]struct{}{}
	for _, id := range api.Next("acme", 3) {
		seen[id] = struct{}{}
	}
	for _, id := range cli.Next("acme", 3) {
		if _, dup := seen[id]; dup {
			t.Fatalf("generators sharing a clock issued the same id %q", id)
		}
	}
}

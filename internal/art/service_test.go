package art

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/mudra/internal/deck"
	"github.com/ayusman/mudra/internal/store"
)

type fakeGenerator struct {
	mu       sync.Mutex
	prompts  []Prompt
	edits    []string
	err      error
	block    chan struct{}
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeGenerator) enter() {
	n := f.inFlight.Add(1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.block != nil {
		<-f.block
	}
}

func (f *fakeGenerator) Generate(ctx context.Context, p Prompt) (string, error) {
	f.enter()
	defer f.inFlight.Add(-1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, p)
	if f.err != nil {
		return "", f.err
	}
	return "gen:" + p.Name, nil
}

func (f *fakeGenerator) Edit(ctx context.Context, ref, instruction string) (string, error) {
	f.enter()
	defer f.inFlight.Add(-1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, ref+"|"+instruction)
	if f.err != nil {
		return "", f.err
	}
	return "edit:" + instruction, nil
}

func testCache(t *testing.T) *store.ArtworkRepository {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s.Artworks()
}

func wait(t *testing.T, s *Service) Result {
	t.Helper()
	select {
	case r := <-s.Results():
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for art result")
		return Result{}
	}
}

var fool = deck.Snapshot{ID: 0, Name: "The Fool", Upright: "beginnings", Reversed: "recklessness"}

func TestService_GenerateAndCache(t *testing.T) {
	gen := &fakeGenerator{}
	var outcomes []string
	var mu sync.Mutex
	svc := NewService(ServiceConfig{
		Generator:   gen,
		Cache:       testCache(t),
		MaxInFlight: 2,
		OnRequest: func(op, result string) {
			mu.Lock()
			outcomes = append(outcomes, op+"/"+result)
			mu.Unlock()
		},
	})
	defer svc.Close()

	id := svc.Submit(Request{Op: OpGenerate, Card: fool, Reversed: true})
	r := wait(t, svc)
	require.NoError(t, r.Err)
	assert.Equal(t, id, r.RequestID)
	assert.Equal(t, "gen:The Fool", r.Ref)
	assert.True(t, r.Reversed)
	assert.False(t, r.Cached)
	require.Len(t, gen.prompts, 1)
	assert.Equal(t, "recklessness", gen.prompts[0].Meaning)

	svc.Submit(Request{Op: OpGenerate, Card: fool, Reversed: true})
	r = wait(t, svc)
	require.NoError(t, r.Err)
	assert.True(t, r.Cached)
	assert.Equal(t, "gen:The Fool", r.Ref)
	assert.Len(t, gen.prompts, 1, "cache hit must skip the generator")

	// The other orientation is a separate cache entry.
	svc.Submit(Request{Op: OpGenerate, Card: fool})
	r = wait(t, svc)
	assert.False(t, r.Cached)
	assert.Len(t, gen.prompts, 2)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"generate/ok", "generate/cached", "generate/ok"}, outcomes)
}

func TestService_RetrySkipsCache(t *testing.T) {
	gen := &fakeGenerator{}
	svc := NewService(ServiceConfig{Generator: gen, Cache: testCache(t), MaxInFlight: 1})
	defer svc.Close()

	svc.Submit(Request{Op: OpGenerate, Card: fool})
	wait(t, svc)
	svc.Submit(Request{Op: OpRetry, Card: fool})
	r := wait(t, svc)

	require.NoError(t, r.Err)
	assert.False(t, r.Cached)
	assert.Len(t, gen.prompts, 2)
}

func TestService_Edit(t *testing.T) {
	gen := &fakeGenerator{}
	cache := testCache(t)
	svc := NewService(ServiceConfig{Generator: gen, Cache: cache, MaxInFlight: 1})
	defer svc.Close()

	svc.Submit(Request{Op: OpEdit, Card: fool, Source: "gen:The Fool", Instruction: "golden sky"})
	r := wait(t, svc)
	require.NoError(t, r.Err)
	assert.Equal(t, "edit:golden sky", r.Ref)
	assert.Equal(t, []string{"gen:The Fool|golden sky"}, gen.edits)

	latest, err := cache.Latest(context.Background(), fool.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "edit:golden sky", latest.Ref)
	assert.Equal(t, "golden sky", latest.Instruction)
}

func TestService_EditWithoutSource(t *testing.T) {
	gen := &fakeGenerator{}
	svc := NewService(ServiceConfig{Generator: gen, MaxInFlight: 1})
	defer svc.Close()

	svc.Submit(Request{Op: OpEdit, Card: fool, Instruction: "golden sky"})
	r := wait(t, svc)

	require.NoError(t, r.Err)
	assert.Empty(t, gen.edits)
	require.Len(t, gen.prompts, 1)
	assert.Equal(t, "beginnings. golden sky", gen.prompts[0].Meaning)
}

func TestService_Failure(t *testing.T) {
	boom := errors.New("upstream down")
	gen := &fakeGenerator{err: boom}
	cache := testCache(t)
	svc := NewService(ServiceConfig{Generator: gen, Cache: cache, MaxInFlight: 1})
	defer svc.Close()

	svc.Submit(Request{Op: OpGenerate, Card: fool})
	r := wait(t, svc)

	assert.ErrorIs(t, r.Err, boom)
	assert.Empty(t, r.Ref)
	_, err := cache.Latest(context.Background(), fool.ID, false)
	assert.ErrorIs(t, err, store.ErrNotFound, "failures must not be cached")
}

func TestService_MaxInFlight(t *testing.T) {
	gen := &fakeGenerator{block: make(chan struct{})}
	svc := NewService(ServiceConfig{Generator: gen, MaxInFlight: 2})
	defer svc.Close()

	for i := range 5 {
		svc.Submit(Request{Op: OpGenerate, Card: deck.Snapshot{ID: i, Name: "card"}})
	}
	require.Eventually(t, func() bool { return gen.inFlight.Load() == 2 }, 2*time.Second, 5*time.Millisecond)
	close(gen.block)

	for range 5 {
		require.NoError(t, wait(t, svc).Err)
	}
	assert.Equal(t, int32(2), gen.peak.Load())
}

func TestService_CloseCancelsQueued(t *testing.T) {
	gen := &fakeGenerator{block: make(chan struct{})}
	svc := NewService(ServiceConfig{Generator: gen, MaxInFlight: 1})

	svc.Submit(Request{Op: OpGenerate, Card: fool})
	svc.Submit(Request{Op: OpGenerate, Card: fool})
	require.Eventually(t, func() bool { return gen.inFlight.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		svc.Close()
		close(done)
	}()
	close(gen.block)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}
}

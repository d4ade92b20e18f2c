package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/entrhq/pilot/pkg/agent"
	"github.com/entrhq/pilot/pkg/llm"
	"github.com/entrhq/pilot/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type replySession struct {
	reply   string
	release chan struct{}
}

func (s *replySession) Send(ctx context.Context, text string) (string, error) {
	if s.release != nil {
		<-s.release
	}
	return s.reply, nil
}

type fakeClient struct {
	session llm.Session
}

func (c *fakeClient) StartSession(ctx context.Context, systemPrompt string) (llm.Session, error) {
	return c.session, nil
}

func (c *fakeClient) Model() string {
	return "fake"
}

// countingGateway counts Close calls across every session sharing it.
type countingGateway struct {
	closes atomic.Int32
}

func (g *countingGateway) Execute(ctx context.Context, name string, args map[string]interface{}, invocationID string) types.ToolResult {
	return types.ToolResult{Blocks: []types.ContentBlock{types.TextBlock("ok")}}
}

func (g *countingGateway) Close(ctx context.Context) error {
	g.closes.Add(1)
	return nil
}

func newFactory(gw *countingGateway, calls *atomic.Int32) Factory {
	return func(ctx context.Context, id string) (*agent.Executor, error) {
		if calls != nil {
			calls.Add(1)
		}
		return agent.New(&fakeClient{session: &replySession{reply: "hello"}}, gw), nil
	}
}

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestStore_CreateAndGet(t *testing.T) {
	store := NewStore(newFactory(&countingGateway{}, nil))

	sess, err := store.Create(context.Background(), "alpha")
	require.NoError(t, err)
	assert.Equal(t, "alpha", sess.ID)
	assert.NotNil(t, sess.Executor)
	assert.Equal(t, sess.CreatedAt, sess.LastUsed())

	got, err := store.Get("alpha")
	require.NoError(t, err)
	assert.Same(t, sess, got)
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, []string{"alpha"}, store.IDs())

	_, err = store.Create(context.Background(), "alpha")
	assert.ErrorIs(t, err, ErrExists)

	_, err = store.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_GetOrCreateConcurrent(t *testing.T) {
	var calls atomic.Int32
	gw := &countingGateway{}
	slow := func(ctx context.Context, id string) (*agent.Executor, error) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		return agent.New(&fakeClient{}, gw), nil
	}
	store := NewStore(slow)

	const workers = 16
	results := make([]*Session, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess, err := store.GetOrCreate(context.Background(), "shared")
			assert.NoError(t, err)
			results[i] = sess
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, store.Len())
	for _, sess := range results {
		assert.Same(t, results[0], sess)
	}
}

func TestStore_FactoryFailure(t *testing.T) {
	attempts := 0
	factory := func(ctx context.Context, id string) (*agent.Executor, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("gateway unreachable")
		}
		return agent.New(&fakeClient{}, nil), nil
	}
	store := NewStore(factory)

	_, err := store.GetOrCreate(context.Background(), "beta")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gateway unreachable")
	assert.Equal(t, 0, store.Len())

	sess, err := store.GetOrCreate(context.Background(), "beta")
	require.NoError(t, err)
	assert.Equal(t, "beta", sess.ID)
}

func TestStore_NilFactory(t *testing.T) {
	store := NewStore(nil)
	_, err := store.Create(context.Background(), "x")
	assert.Error(t, err)

	store = NewStore(func(context.Context, string) (*agent.Executor, error) { return nil, nil })
	_, err = store.Create(context.Background(), "x")
	assert.Error(t, err)
	assert.Equal(t, 0, store.Len())
}

func TestStore_Delete(t *testing.T) {
	gw := &countingGateway{}
	store := NewStore(newFactory(gw, nil))

	_, err := store.Create(context.Background(), "gamma")
	require.NoError(t, err)

	require.NoError(t, store.Delete(context.Background(), "gamma"))
	assert.Equal(t, int32(1), gw.closes.Load())
	assert.Equal(t, 0, store.Len())

	assert.ErrorIs(t, store.Delete(context.Background(), "gamma"), ErrNotFound)
}

func TestStore_Expire(t *testing.T) {
	clk := &clock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	gw := &countingGateway{}
	store := NewStore(newFactory(gw, nil), WithClock(clk.Now))
	assert.Equal(t, DefaultIdleTTL, store.IdleTTL())

	ctx := context.Background()
	_, err := store.Create(ctx, "idle")
	require.NoError(t, err)
	_, err = store.Create(ctx, "busy")
	require.NoError(t, err)

	clk.Advance(10 * time.Minute)
	_, err = store.Get("busy")
	require.NoError(t, err)

	clk.Advance(25 * time.Minute)
	n, err := store.Expire(ctx, clk.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"busy"}, store.IDs())
	assert.Equal(t, int32(1), gw.closes.Load())

	n, err = store.Expire(ctx, clk.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestStore_ExpireKeepsRunningSessions(t *testing.T) {
	release := make(chan struct{})
	gw := &countingGateway{}
	factory := func(ctx context.Context, id string) (*agent.Executor, error) {
		return agent.New(&fakeClient{session: &replySession{reply: "done", release: release}}, gw), nil
	}
	store := NewStore(factory, WithIdleTTL(time.Minute))

	sess, err := store.Create(context.Background(), "working")
	require.NoError(t, err)

	run, err := sess.Executor.Chat(context.Background(), "hi")
	require.NoError(t, err)

	n, err := store.Expire(context.Background(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	close(release)
	for range run.Events() {
	}
	run.Wait()

	n, err = store.Expire(context.Background(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_Close(t *testing.T) {
	gw := &countingGateway{}
	store := NewStore(newFactory(gw, nil))
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_, err := store.Create(ctx, id)
		require.NoError(t, err)
	}
	require.NoError(t, store.StartJanitor(""))

	require.NoError(t, store.Close(ctx))
	assert.Equal(t, int32(3), gw.closes.Load())
	assert.Equal(t, 0, store.Len())

	_, err := store.Create(ctx, "d")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = store.GetOrCreate(ctx, "d")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, store.StartJanitor(""), ErrClosed)

	assert.NoError(t, store.Close(ctx))
}

func TestStore_StartJanitor(t *testing.T) {
	store := NewStore(newFactory(&countingGateway{}, nil))
	defer store.Close(context.Background())

	assert.Error(t, store.StartJanitor("every now and then"))
	require.NoError(t, store.StartJanitor("@every 1h"))
	assert.Error(t, store.StartJanitor("@every 1h"))
}

func TestStore_SweepRemovesIdleSessions(t *testing.T) {
	clk := &clock{now: time.Now()}
	gw := &countingGateway{}
	store := NewStore(newFactory(gw, nil), WithClock(clk.Now), WithIdleTTL(time.Minute))

	_, err := store.Create(context.Background(), "old")
	require.NoError(t, err)

	clk.Advance(2 * time.Minute)
	store.sweep()

	assert.Equal(t, 0, store.Len())
	assert.Equal(t, int32(1), gw.closes.Load())
}

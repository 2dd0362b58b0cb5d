package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*Manager, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	cfg := DefaultConfig()
	cfg.Addr = mr.Addr()

	m, err := NewManager(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m, mr
}

type payload struct {
	Query   string   `json:"query"`
	Results []string `json:"results"`
}

func TestManager_SetGetJSON(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	in := payload{Query: "高血压", Results: []string{"a", "b"}}
	require.NoError(t, m.SetJSON(ctx, "retrieve:q1", in, time.Minute))

	var out payload
	require.NoError(t, m.GetJSON(ctx, "retrieve:q1", &out))
	assert.Equal(t, in, out)
}

func TestManager_MissReturnsErrCacheMiss(t *testing.T) {
	m, _ := newTestManager(t)

	var out payload
	err := m.GetJSON(context.Background(), "absent", &out)
	assert.True(t, IsCacheMiss(err))
}

func TestManager_TTLExpiry(t *testing.T) {
	m, mr := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.SetJSON(ctx, "k", payload{Query: "q"}, time.Second))
	mr.FastForward(2 * time.Second)

	var out payload
	assert.True(t, IsCacheMiss(m.GetJSON(ctx, "k", &out)))
}

func TestManager_LastWriteWins(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.SetJSON(ctx, "k", payload{Query: "first"}, time.Minute))
	require.NoError(t, m.SetJSON(ctx, "k", payload{Query: "second"}, time.Minute))

	var out payload
	require.NoError(t, m.GetJSON(ctx, "k", &out))
	assert.Equal(t, "second", out.Query)
}

func TestManager_ClosedRejectsOperations(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.Close())

	var out payload
	assert.Error(t, m.GetJSON(context.Background(), "k", &out))
	assert.Error(t, m.SetJSON(context.Background(), "k", payload{}, 0))
	assert.NoError(t, m.Close(), "double close is a no-op")
}

func TestManager_Delete(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.SetJSON(ctx, "k", payload{Query: "q"}, time.Minute))
	require.NoError(t, m.Delete(ctx, "k"))

	var out payload
	assert.True(t, IsCacheMiss(m.GetJSON(ctx, "k", &out)))
}

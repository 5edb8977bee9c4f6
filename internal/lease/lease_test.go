package lease

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	id := uuid.MustParse("6f1c1c9e-8d7a-4f0e-9a43-3b0f6f7d2c11")
	assert.Equal(t, "postplanner:generation:lease:6f1c1c9e-8d7a-4f0e-9a43-3b0f6f7d2c11", Key(id))
}

func TestNewManager_Defaults(t *testing.T) {
	m := NewManager(nil, "", 0)
	assert.Equal(t, DefaultTTL, m.ttl)
	assert.NotEmpty(t, m.Holder())
}

// Runs against a real server only when VALKEY_TEST_ADDR is set.
func TestManager_Lifecycle(t *testing.T) {
	addr := os.Getenv("VALKEY_TEST_ADDR")
	if addr == "" {
		t.Skip("VALKEY_TEST_ADDR not set")
	}
	ctx := context.Background()
	client, err := Connect(ctx, addr, "", 0)
	require.NoError(t, err)

	owner := NewManager(client, "owner", time.Minute)
	other := NewManager(client, "other", time.Minute)
	jobID := uuid.New()

	ok, err := owner.Acquire(ctx, jobID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = other.Acquire(ctx, jobID)
	require.NoError(t, err)
	assert.False(t, ok)

	renewed, err := other.Renew(ctx, jobID)
	require.NoError(t, err)
	assert.False(t, renewed)

	renewed, err = owner.Renew(ctx, jobID)
	require.NoError(t, err)
	assert.True(t, renewed)

	require.NoError(t, other.Release(ctx, jobID))
	held, err := owner.Held(ctx, jobID)
	require.NoError(t, err)
	assert.True(t, held)

	require.NoError(t, owner.Release(ctx, jobID))
	held, err = owner.Held(ctx, jobID)
	require.NoError(t, err)
	assert.False(t, held)

	owner.Close()
}

package progress

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func TestTerminalSink_FollowsStages(t *testing.T) {
	var out syncBuffer
	s := NewTerminalSink(&out)
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, Snapshot{Action: "Downloading", Current: 5, Total: 10}))
	require.NotNil(t, s.bar)

	require.NoError(t, s.Update(ctx, Snapshot{Action: "Downloading", Current: 10, Total: 10}))
	assert.Nil(t, s.bar, "bar finishes at its total")

	require.NoError(t, s.Update(ctx, Snapshot{Action: "Uploading", Current: 1, Total: 10}))
	require.NotNil(t, s.bar)
	assert.Equal(t, "Uploading", s.action)

	s.Close()
	assert.Nil(t, s.bar)
}

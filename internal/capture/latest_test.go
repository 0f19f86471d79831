package capture

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestLatest_StoreGet(t *testing.T) {
	l := NewLatest()

	data, seq := l.Get()
	require.Nil(t, data)
	require.Zero(t, seq)

	l.Store([]byte("a"))
	l.Store([]byte("b"))
	data, seq = l.Get()
	assert.Equal(t, "b", string(data))
	assert.Equal(t, uint64(2), seq)
}

func TestLatest_Next(t *testing.T) {
	l := NewLatest()
	l.Store([]byte("first"))

	// A frame newer than 0 is already there.
	data, seq, err := l.Next(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
	assert.Equal(t, uint64(1), seq)

	go func() {
		time.Sleep(20 * time.Millisecond)
		l.Store([]byte("second"))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, seq, err = l.Next(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
	assert.Equal(t, uint64(2), seq)
}

func TestLatest_NextCancelled(t *testing.T) {
	l := NewLatest()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, _, err := l.Next(ctx, 0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLatest_Encode(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	frame := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer frame.Close()

	l := NewLatest()
	require.NoError(t, l.Encode(&frame))

	data, _ := l.Get()
	require.GreaterOrEqual(t, len(data), 2)
	assert.Equal(t, []byte{0xFF, 0xD8}, data[:2], "JPEG start-of-image marker")
}

package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestSessionStoreTakeRemoves(t *testing.T) {
	s := NewSessionStore(time.Minute, zap.NewNop())
	s.Set(1, Pending{Kind: AwaitFormat, URL: "https://youtu.be/x", Choices: YouTubeChoices()})

	p, ok := s.Get(1)
	require.True(t, ok)
	assert.Equal(t, AwaitFormat, p.Kind)

	p, ok = s.Take(1)
	require.True(t, ok)
	assert.Equal(t, "https://youtu.be/x", p.URL)

	_, ok = s.Take(1)
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestSessionStoreSetReplaces(t *testing.T) {
	s := NewSessionStore(time.Minute, zap.NewNop())
	s.Set(1, Pending{Kind: AwaitLink})
	s.Set(1, Pending{Kind: AwaitFormat})
	p, ok := s.Get(1)
	require.True(t, ok)
	assert.Equal(t, AwaitFormat, p.Kind)
	assert.Equal(t, 1, s.Len())
}

func TestSessionStoreExpiry(t *testing.T) {
	c := &clock{t: time.Now()}
	s := NewSessionStore(time.Minute, zap.NewNop())
	s.now = c.now

	s.Set(1, Pending{Kind: AwaitLink})
	s.Set(2, Pending{Kind: AwaitLink})
	c.t = c.t.Add(30 * time.Second)
	s.Set(3, Pending{Kind: AwaitLink})

	c.t = c.t.Add(50 * time.Second)
	_, ok := s.Get(1)
	assert.False(t, ok)
	assert.Equal(t, 1, s.Sweep())
	_, ok = s.Get(3)
	assert.True(t, ok)
	assert.Equal(t, 1, s.Len())

	c.t = c.t.Add(10 * time.Second)
	_, ok = s.Get(3)
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestSessionStoreRunStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := NewSessionStore(time.Millisecond, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()
	<-done
}

func TestPendingChoose(t *testing.T) {
	p := Pending{Kind: AwaitFormat, Choices: YouTubeChoices()}

	c, ok := p.Choose("1")
	require.True(t, ok)
	assert.NotEmpty(t, c.FormatSelector)
	assert.False(t, c.ExtractAudio)

	c, ok = p.Choose(" Audio ")
	require.True(t, ok)
	assert.True(t, c.ExtractAudio)

	_, ok = p.Choose("3")
	assert.False(t, ok)
}

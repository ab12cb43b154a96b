package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_Key_Changes_Per_Window(t *testing.T) {
	req := require.New(t)
	l := NewFixedWindowLimiter(nil, 10, time.Minute)
	base := time.Date(2024, 1, 1, 10, 0, 5, 0, time.UTC)

	l.now = func() time.Time { return base }
	first := l.key("u1")
	l.now = func() time.Time { return base.Add(30 * time.Second) }
	req.Equal(first, l.key("u1"))
	l.now = func() time.Time { return base.Add(time.Minute) }
	req.NotEqual(first, l.key("u1"))
	req.NotEqual(l.key("u1"), l.key("u2"))
}

func Test_Zero_Limit_Disables_Limiter(t *testing.T) {
	l := NewFixedWindowLimiter(nil, 0, time.Minute)
	require.NoError(t, l.Allow(context.Background(), "u1"))
}

func Test_NopLimiter(t *testing.T) {
	var limiter RateLimiter = NopLimiter{}
	for i := 0; i < 1000; i++ {
		require.NoError(t, limiter.Allow(context.Background(), "u1"))
	}
}

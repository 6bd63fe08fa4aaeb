package ratelimit

import (
	"context"
	"sync"
	"time"
)

var _ Limiter = (*LocalSlidingWindowLimiter)(nil)

// LocalSlidingWindowLimiter 进程内滑动窗口限流器，供单机部署和测试使用
type LocalSlidingWindowLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	rate     int
	windows  map[string][]time.Time
}

func NewLocalSlidingWindowLimiter(interval time.Duration, rate int) *LocalSlidingWindowLimiter {
	return &LocalSlidingWindowLimiter{
		interval: interval,
		rate:     rate,
		windows:  make(map[string][]time.Time),
	}
}

func (l *LocalSlidingWindowLimiter) Limit(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-l.interval)

	stamps := l.windows[key]
	kept := stamps[:0]
	for _, ts := range stamps {
		if ts.After(windowStart) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= l.rate {
		l.windows[key] = kept
		return true, nil
	}

	l.windows[key] = append(kept, now)
	return false, nil
}

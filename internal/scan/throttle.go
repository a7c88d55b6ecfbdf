package scan

import (
	"time"

	"golang.org/x/time/rate"
)

const DefaultFrameInterval = time.Second

// FrameThrottle drops decoded frames arriving faster than one per interval.
// A coordinator fed through it should be ClientThrottled so one clock decides.
type FrameThrottle struct {
	limiter *rate.Limiter
}

func NewFrameThrottle(interval time.Duration) *FrameThrottle {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &FrameThrottle{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

func (t *FrameThrottle) Allow() bool {
	return t.limiter.Allow()
}

func (t *FrameThrottle) AllowAt(now time.Time) bool {
	return t.limiter.AllowN(now, 1)
}

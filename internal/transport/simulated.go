package transport

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/chatwidget/internal/clock"
)

// CannedReplies are the local agent answers used when no backend replies.
var CannedReplies = []string{
	"Thanks for reaching out! I'm here to help you. ✨",
	"Great question! Let me get you the perfect solution. 🚀",
	"I'd be happy to assist you with that! 💫",
	"Absolutely! I'm on it right away. 🌟",
}

// Simulated answers with a canned reply after a latency drawn uniformly from [min, max].
type Simulated struct {
	clk      clock.Clock
	min, max time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulated: a nil rng is seeded from the clock.
func NewSimulated(clk clock.Clock, min, max time.Duration, rng *rand.Rand) *Simulated {
	if max < min {
		max = min
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(clk.Now().UnixNano()))
	}
	return &Simulated{clk: clk, min: min, max: max, rng: rng}
}

func (s *Simulated) draw() (time.Duration, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.min
	if span := s.max - s.min; span > 0 {
		d += time.Duration(s.rng.Int63n(int64(span) + 1))
	}
	return d, CannedReplies[s.rng.Intn(len(CannedReplies))]
}

// Reply blocks for the simulated latency. ok is false when ctx ends first.
func (s *Simulated) Reply(ctx context.Context) (string, bool) {
	d, reply := s.draw()
	if d <= 0 {
		return reply, ctx.Err() == nil
	}
	select {
	case <-s.clk.After(d):
		return reply, true
	case <-ctx.Done():
		return "", false
	}
}

// IsCanned reports whether text is one of CannedReplies.
func IsCanned(text string) bool {
	for _, r := range CannedReplies {
		if r == text {
			return true
		}
	}
	return false
}

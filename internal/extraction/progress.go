package extraction

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// Synthesized progress never reaches 100 on its own; the terminal event
// does that.
const (
	progressCap      = 95
	progressInterval = 500 * time.Millisecond
	progressMaxStep  = 10
)

// Ticker fakes progress for backends that report none: every interval it
// adds a random step up to progressMaxStep, capped at progressCap.
type Ticker struct {
	Interval time.Duration
	rand     func() float64
}

func NewTicker(interval time.Duration) *Ticker {
	if interval <= 0 {
		interval = progressInterval
	}
	return &Ticker{Interval: interval, rand: rand.Float64}
}

// Run emits progress on out until ctx is done or stop is closed.
func (t *Ticker) Run(ctx context.Context, stop <-chan struct{}, out chan<- Event) {
	tick := time.NewTicker(t.Interval)
	defer tick.Stop()

	progress := 0.0
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-tick.C:
			progress = min(progress+t.rand()*progressMaxStep, progressCap)
			select {
			case out <- Event{Progress: int(progress)}:
			case <-ctx.Done():
				return
			case <-stop:
				return
			}
		}
	}
}

// byteProgress maps a streamed byte count onto [0, progressCap). It reaches
// about 60 at the expected size and approaches the cap after that.
func byteProgress(received, expected int) int {
	if received <= 0 || expected <= 0 {
		return 0
	}
	ratio := float64(received) / float64(expected)
	return int(progressCap * (1 - math.Exp(-ratio)))
}

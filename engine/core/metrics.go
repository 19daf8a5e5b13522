package core

import (
	"sync"
	"time"

	"github.com/loov/hrtime"
)

const AVG_COUNT uint8 = 30

// MetricsState keeps a rolling average of recording times plus a counter per
// operation label (e.g. "blit", "resolve", "slow-resolve").
type MetricsState struct {
	AVGCounter uint8
	Times      [AVG_COUNT]time.Duration
	Average    time.Duration
	Samples    uint64
	Counters   map[string]uint64
}

var onceMetrics sync.Once
var metricsState *MetricsState = nil

func MetricsInitialize() error {
	onceMetrics.Do(func() {
		metricsState = &MetricsState{
			Counters: make(map[string]uint64),
		}
	})
	return nil
}

// MetricsReset clears all samples and counters.
func MetricsReset() {
	MetricsInitialize()
	metricsState.AVGCounter = 0
	metricsState.Times = [AVG_COUNT]time.Duration{}
	metricsState.Average = 0
	metricsState.Samples = 0
	metricsState.Counters = make(map[string]uint64)
}

// MetricsUpdate records one timed operation under label.
func MetricsUpdate(label string, elapsed time.Duration) {
	MetricsInitialize()
	metricsState.Times[metricsState.AVGCounter] = elapsed
	metricsState.Samples++

	// Average over the filled part of the window until it wraps once.
	window := uint64(AVG_COUNT)
	if metricsState.Samples < window {
		window = metricsState.Samples
	}
	var sum time.Duration
	for i := uint64(0); i < window; i++ {
		sum += metricsState.Times[i]
	}
	metricsState.Average = sum / time.Duration(window)

	metricsState.AVGCounter++
	metricsState.AVGCounter %= AVG_COUNT

	metricsState.Counters[label]++
}

// MetricsTime runs fn and records its duration, measured with the high
// resolution clock.
func MetricsTime(label string, fn func()) time.Duration {
	start := hrtime.Now()
	fn()
	elapsed := hrtime.Since(start)
	MetricsUpdate(label, elapsed)
	return elapsed
}

func MetricsAverage() time.Duration {
	MetricsInitialize()
	return metricsState.Average
}

func MetricsCount(label string) uint64 {
	MetricsInitialize()
	return metricsState.Counters[label]
}

package tempo

import (
	"fmt"
	"sync"

	"golang.org/x/exp/rand"
)

// Picker chooses the tempo for the next task window. The surrounding timer
// decides when a change happens; the picker only supplies the value.
type Picker struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewPicker(seed uint64) *Picker {
	return &Picker{rng: rand.New(rand.NewSource(seed))}
}

// Pick returns a uniformly random BPM within the inclusive bounds.
func (p *Picker) Pick(slowestBpm, fastestBpm int) (int, error) {
	if slowestBpm < 1 {
		return 0, fmt.Errorf("slowest bpm must be at least 1, got %d", slowestBpm)
	}
	if slowestBpm > fastestBpm {
		return 0, fmt.Errorf("slowest bpm %d exceeds fastest bpm %d", slowestBpm, fastestBpm)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return slowestBpm + p.rng.Intn(fastestBpm-slowestBpm+1), nil
}

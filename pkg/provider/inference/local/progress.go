package local

import (
	"sync"
	"time"
)

// checkpoint values are the coarse load progress percentages published at
// each real load milestone.
type checkpoint float64

const (
	checkpointStart   checkpoint = 5
	checkpointWeights checkpoint = 10
	checkpointProbe   checkpoint = 15
	checkpointContact checkpoint = 20
	checkpointLoading checkpoint = 25
	checkpointReady   checkpoint = 75
	checkpointWarmup  checkpoint = 95
	checkpointDone    checkpoint = 100
)

// next maps each checkpoint to the one that follows it; the smoother never
// advances past the next real milestone.
var next = map[checkpoint]checkpoint{
	checkpointStart:   checkpointWeights,
	checkpointWeights: checkpointProbe,
	checkpointProbe:   checkpointContact,
	checkpointContact: checkpointLoading,
	checkpointLoading: checkpointReady,
	checkpointReady:   checkpointWarmup,
	checkpointWarmup:  checkpointDone,
	checkpointDone:    checkpointDone,
}

// segmentEstimate is the assumed duration of one load segment. The smoother
// interpolates the published percent across it; a slower real load simply
// parks just below the next checkpoint.
const segmentEstimate = 10 * time.Second

// smoother interpolates fractional progress between checkpoints so the
// load-progress endpoint does not sit on one number for the whole weight
// mapping phase.
type smoother struct {
	mu      sync.Mutex
	base    checkpoint
	since   time.Time
	stopped bool
}

func newSmoother() *smoother {
	return &smoother{base: checkpointStart, since: time.Now()}
}

// advance records that the load reached a real checkpoint.
func (s *smoother) advance(c checkpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c > s.base {
		s.base = c
		s.since = time.Now()
	}
}

// stop freezes the smoother at its base checkpoint.
func (s *smoother) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
}

// percent returns the smoothed progress: the base checkpoint plus a
// time-based fraction of the gap to the next one, capped one point short of
// it.
func (s *smoother) percent() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.base == checkpointDone {
		return float64(s.base)
	}
	gap := float64(next[s.base]-s.base) - 1
	if gap <= 0 {
		return float64(s.base)
	}
	frac := float64(time.Since(s.since)) / float64(segmentEstimate)
	if frac > 1 {
		frac = 1
	}
	return float64(s.base) + gap*frac
}

package progress

import (
	"context"
	"sync"
	"time"

	"github.com/amine-CS96/seo-expert/internal/interfaces"
)

// Step is one named analysis stage shown to the user while the real request
// is outstanding. IDs are unique within a sequence.
type Step struct {
	ID       string        `json:"id"`
	Label    string        `json:"label"`
	Duration time.Duration `json:"-"`
}

// DefaultSteps is the fixed sequence played during an audit: nine steps,
// about nineteen seconds end to end. Playback is purely decorative and
// independent of actual analysis progress.
func DefaultSteps() []Step {
	return []Step{
		{ID: "fetch", Label: "Fetching your page", Duration: 1500 * time.Millisecond},
		{ID: "onpage", Label: "Analyzing on-page SEO", Duration: 2500 * time.Millisecond},
		{ID: "technical", Label: "Checking technical SEO", Duration: 2500 * time.Millisecond},
		{ID: "links", Label: "Inspecting links", Duration: 2000 * time.Millisecond},
		{ID: "offpage", Label: "Evaluating off-page signals", Duration: 2000 * time.Millisecond},
		{ID: "performance", Label: "Measuring performance", Duration: 3000 * time.Millisecond},
		{ID: "security", Label: "Running security checks", Duration: 2000 * time.Millisecond},
		{ID: "aggregate", Label: "Aggregating results", Duration: 2000 * time.Millisecond},
		{ID: "report", Label: "Preparing your report", Duration: 1500 * time.Millisecond},
	}
}

// Simulator plays a fixed step sequence strictly in order, each step
// completing after its full duration before the next is scheduled. It is
// time-driven only: network state never advances or shortens playback.
type Simulator struct {
	steps  []Step
	onStep func(Step)
	logger interfaces.Logger

	mu        sync.Mutex
	running   bool
	completed []string

	done     chan struct{}
	doneOnce sync.Once
}

// NewSimulator creates a simulator over steps. onStep, when non-nil, is
// invoked after each step completes, in order, from the playback goroutine.
func NewSimulator(steps []Step, onStep func(Step), logger interfaces.Logger) *Simulator {
	return &Simulator{
		steps:  steps,
		onStep: onStep,
		logger: logger.With(interfaces.Field{Key: "component", Value: "progress"}),
		done:   make(chan struct{}),
	}
}

// Start begins playback. Calling Start while playback is already running
// (or finished) is a no-op, so re-entrant mounts never double-schedule
// timers. Cancelling ctx tears playback down: pending timers are stopped
// and no callback fires afterwards; Done is then never closed.
func (s *Simulator) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	go s.play(ctx)
}

// Done is closed exactly once, when the final step has completed.
func (s *Simulator) Done() <-chan struct{} {
	return s.done
}

// CompletedIDs returns the IDs of completed steps, in completion order.
func (s *Simulator) CompletedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.completed))
	copy(out, s.completed)
	return out
}

func (s *Simulator) play(ctx context.Context) {
	for _, step := range s.steps {
		timer := time.NewTimer(step.Duration)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Debug("playback cancelled",
				interfaces.Field{Key: "at_step", Value: step.ID})
			return
		case <-timer.C:
		}

		s.mu.Lock()
		s.completed = append(s.completed, step.ID)
		s.mu.Unlock()

		if s.onStep != nil {
			s.onStep(step)
		}
	}

	s.doneOnce.Do(func() { close(s.done) })
}

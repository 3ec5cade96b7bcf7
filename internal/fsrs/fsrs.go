package fsrs

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/conorfennell/lingosrs/internal/domain"
)

// MaxIntervalLimit bounds MaximumIntervalDays so that due dates stay
// representable as a time.Duration offset.
const MaxIntervalLimit = 100000

// Config holds the scheduler settings. It is fixed at construction.
type Config struct {
	Parameters          [21]float64     `koanf:"parameters"`
	LearningSteps       []time.Duration `koanf:"learning_steps"`
	RelearningSteps     []time.Duration `koanf:"relearning_steps"`
	EnableFuzz          bool            `koanf:"enable_fuzz"`
	MaximumIntervalDays int             `koanf:"maximum_interval_days"`
	RequestRetention    float64         `koanf:"request_retention"`
}

// DefaultConfig provides the production scheduling settings.
func DefaultConfig() Config {
	return Config{
		Parameters:          DefaultParameters,
		LearningSteps:       []time.Duration{time.Minute, 10 * time.Minute, 60 * time.Minute},
		RelearningSteps:     []time.Duration{time.Minute, 10 * time.Minute},
		EnableFuzz:          true,
		MaximumIntervalDays: 36500,
		RequestRetention:    0.92,
	}
}

// Validate checks that the configuration can drive a scheduler.
func (c Config) Validate() error {
	params := c.Parameters
	if params == [21]float64{} {
		params = DefaultParameters
	}
	if err := ValidateParameters(params); err != nil {
		return err
	}
	if !(c.RequestRetention > 0 && c.RequestRetention < 1) {
		return fmt.Errorf("request retention %v must be in (0, 1)", c.RequestRetention)
	}
	if c.MaximumIntervalDays < 1 || c.MaximumIntervalDays > MaxIntervalLimit {
		return fmt.Errorf("maximum interval %d must be in [1, %d] days", c.MaximumIntervalDays, MaxIntervalLimit)
	}
	for i, d := range c.LearningSteps {
		if d <= 0 {
			return fmt.Errorf("learning step %d must be positive, got %s", i, d)
		}
	}
	for i, d := range c.RelearningSteps {
		if d <= 0 {
			return fmt.Errorf("relearning step %d must be positive, got %s", i, d)
		}
	}
	return nil
}

// FuzzSource yields uniformly distributed values in [0, 1).
// Implementations shared between goroutines must be safe for concurrent use.
type FuzzSource interface {
	Float64() float64
}

// FuzzFunc adapts a function to FuzzSource.
type FuzzFunc func() float64

// Float64 implements FuzzSource.
func (f FuzzFunc) Float64() float64 { return f() }

// Scheduler computes the next memory state of a card. It holds no mutable
// state and can be shared across goroutines.
type Scheduler struct {
	algo             algo
	learningSteps    []time.Duration
	relearningSteps  []time.Duration
	enableFuzz       bool
	maximumInterval  int
	requestRetention float64
	fuzz             FuzzSource
}

// NewScheduler validates cfg and builds a Scheduler. A nil fuzz source
// falls back to the process-wide math/rand generator.
func NewScheduler(cfg Config, fuzz FuzzSource) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scheduler config: %w", err)
	}
	params := cfg.Parameters
	if params == [21]float64{} {
		params = DefaultParameters
	}
	if fuzz == nil {
		fuzz = FuzzFunc(rand.Float64)
	}
	return &Scheduler{
		algo:             newAlgo(params),
		learningSteps:    append([]time.Duration(nil), cfg.LearningSteps...),
		relearningSteps:  append([]time.Duration(nil), cfg.RelearningSteps...),
		enableFuzz:       cfg.EnableFuzz,
		maximumInterval:  cfg.MaximumIntervalDays,
		requestRetention: cfg.RequestRetention,
		fuzz:             fuzz,
	}, nil
}

// Outcome is the result of applying one rating to a schedule.
type Outcome struct {
	domain.Schedule
	ElapsedDays   float64
	ScheduledDays float64
}

// Next applies rating to the schedule at instant now. lastReviewed is the
// previous review instant, or now for a card that was never reviewed.
func (s *Scheduler) Next(cur domain.Schedule, lastReviewed, now time.Time, rating domain.Rating) (Outcome, error) {
	if !rating.IsValid() {
		return Outcome{}, fmt.Errorf("%w: rating %d", domain.ErrValidation, int(rating))
	}
	if err := checkInput(cur); err != nil {
		return Outcome{}, err
	}

	elapsed := daysBetween(lastReviewed, now)
	scheduled := daysBetween(lastReviewed, cur.DueDate)

	next := cur
	next.Reps++
	s.updateMemory(&next, cur, rating, elapsed)

	step, days := s.transition(&next, cur.State, rating)
	if days > 0 {
		if s.enableFuzz {
			days = applyFuzz(days, s.maximumInterval, s.fuzz)
		}
		next.DueDate = now.Add(time.Duration(days) * 24 * time.Hour)
	} else {
		next.DueDate = now.Add(step)
	}

	if err := checkOutput(next); err != nil {
		return Outcome{}, err
	}
	return Outcome{Schedule: next, ElapsedDays: elapsed, ScheduledDays: scheduled}, nil
}

// Preview returns the outcome of every possible rating without committing
// to any of them.
func (s *Scheduler) Preview(cur domain.Schedule, lastReviewed, now time.Time) (map[domain.Rating]Outcome, error) {
	out := make(map[domain.Rating]Outcome, len(domain.Ratings))
	for _, r := range domain.Ratings {
		o, err := s.Next(cur, lastReviewed, now, r)
		if err != nil {
			return nil, err
		}
		out[r] = o
	}
	return out, nil
}

// Retrievability returns the estimated probability of recall at now.
// A card that was never reviewed has no memory and returns 0.
func (s *Scheduler) Retrievability(cur domain.Schedule, lastReviewed, now time.Time) float64 {
	if cur.State == domain.StateNew || cur.Stability <= 0 {
		return 0
	}
	return s.algo.retrievability(daysBetween(lastReviewed, now), cur.Stability)
}

// updateMemory sets the new stability and difficulty.
func (s *Scheduler) updateMemory(next *domain.Schedule, cur domain.Schedule, rating domain.Rating, elapsed float64) {
	if cur.State == domain.StateNew {
		next.Stability = s.algo.initStability(rating)
		next.Difficulty = s.algo.initDifficulty(rating, true)
		return
	}

	if elapsed < 1 {
		next.Stability = s.algo.shortTermStability(cur.Stability, rating)
	} else {
		r := s.algo.retrievability(elapsed, cur.Stability)
		next.Stability = s.algo.nextStability(cur.Difficulty, cur.Stability, r, rating)
	}
	next.Difficulty = s.algo.nextDifficulty(cur.Difficulty, rating)
}

// transition moves the card through the state machine. It returns either
// a short step duration or, when days > 0, a long-term interval in days.
func (s *Scheduler) transition(c *domain.Schedule, from domain.State, rating domain.Rating) (step time.Duration, days int) {
	switch from {
	case domain.StateNew:
		if len(s.learningSteps) == 0 {
			return 0, s.graduate(c)
		}
		c.State = domain.StateLearning
		if rating == domain.Again {
			c.LearningSteps = 0
			return 0, 0
		}
		c.LearningSteps = 1
		return s.learningSteps[0], 0

	case domain.StateLearning:
		return s.transitionSteps(c, rating, s.learningSteps)

	case domain.StateRelearning:
		return s.transitionSteps(c, rating, s.relearningSteps)

	default:
		c.LearningSteps = 0
		if rating == domain.Again {
			c.Lapses++
			if len(s.relearningSteps) > 0 {
				c.State = domain.StateRelearning
				return s.relearningSteps[0], 0
			}
		}
		return 0, s.algo.nextInterval(c.Stability, s.requestRetention, s.maximumInterval)
	}
}

// transitionSteps handles Learning and Relearning. LearningSteps indexes
// the next step to schedule; reaching len(steps) graduates the card.
// Again resets it to 0 while the card waits out steps[0], so a success
// from 0 continues with steps[1].
func (s *Scheduler) transitionSteps(c *domain.Schedule, rating domain.Rating, steps []time.Duration) (time.Duration, int) {
	if len(steps) == 0 {
		return 0, s.graduate(c)
	}
	if rating == domain.Again {
		c.LearningSteps = 0
		return steps[0], 0
	}
	pos := max(c.LearningSteps, 1)
	if pos >= len(steps) {
		return 0, s.graduate(c)
	}
	c.LearningSteps = pos + 1
	return steps[pos], 0
}

func (s *Scheduler) graduate(c *domain.Schedule) int {
	c.State = domain.StateReview
	c.LearningSteps = 0
	return s.algo.nextInterval(c.Stability, s.requestRetention, s.maximumInterval)
}

func checkInput(c domain.Schedule) error {
	if !c.State.IsValid() {
		return fmt.Errorf("%w: unknown card state %d", domain.ErrInvariant, int(c.State))
	}
	if c.Reps < 0 || c.Lapses < 0 || c.LearningSteps < 0 {
		return fmt.Errorf("%w: negative counter (reps=%d lapses=%d steps=%d)",
			domain.ErrInvariant, c.Reps, c.Lapses, c.LearningSteps)
	}
	if c.State == domain.StateNew {
		return nil
	}
	if !(c.Stability > 0) || math.IsInf(c.Stability, 0) {
		return fmt.Errorf("%w: stability %v in state %s", domain.ErrInvariant, c.Stability, c.State)
	}
	if !(c.Difficulty >= minDifficulty && c.Difficulty <= maxDifficulty) {
		return fmt.Errorf("%w: difficulty %v outside [%v, %v]", domain.ErrInvariant, c.Difficulty, minDifficulty, maxDifficulty)
	}
	return nil
}

func checkOutput(c domain.Schedule) error {
	if !(c.Stability > 0) || math.IsInf(c.Stability, 0) {
		return fmt.Errorf("%w: computed stability %v", domain.ErrInvariant, c.Stability)
	}
	if !(c.Difficulty >= minDifficulty && c.Difficulty <= maxDifficulty) {
		return fmt.Errorf("%w: computed difficulty %v", domain.ErrInvariant, c.Difficulty)
	}
	return nil
}

// daysBetween returns the fractional days from a to b, never negative.
func daysBetween(a, b time.Time) float64 {
	d := b.Sub(a).Hours() / 24
	if d < 0 {
		return 0
	}
	return d
}

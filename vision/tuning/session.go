// Package tuning holds an interactive threshold tuning session: two knobs and the redraw that
// follows every change.
package tuning

import (
	"context"
	"sync"

	rutils "go.viam.com/edgeplan/utils"
)

// DefaultLimit is the largest value a knob can take unless configured otherwise.
const DefaultLimit = 1200

// Knobs are the lower and upper thresholds being tuned.
type Knobs struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Validate checks that both knobs lie in [0, limit] and that Min <= Max.
func (k Knobs) Validate(limit int) error {
	if k.Min < 0 || k.Max > limit {
		return rutils.NewConfigurationError("knobs (%d, %d) outside of [0, %d]", k.Min, k.Max, limit)
	}
	if k.Min > k.Max {
		return rutils.NewConfigurationError("min %d is greater than max %d", k.Min, k.Max)
	}
	return nil
}

// RedrawFunc renders the result of the current knobs.
type RedrawFunc func(ctx context.Context, knobs Knobs) error

// Session owns the knobs of one tuning run. Every accepted change calls the redraw function
// with the new knobs; rejected changes leave the knobs untouched.
type Session struct {
	mu     sync.Mutex
	knobs  Knobs
	limit  int
	redraw RedrawFunc
}

// NewSession starts a session at the initial knobs. A limit <= 0 uses DefaultLimit.
func NewSession(initial Knobs, limit int, redraw RedrawFunc) (*Session, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if err := initial.Validate(limit); err != nil {
		return nil, err
	}
	if redraw == nil {
		return nil, rutils.NewConfigurationError("a tuning session needs a redraw function")
	}
	return &Session{knobs: initial, limit: limit, redraw: redraw}, nil
}

// Knobs returns the current knobs.
func (s *Session) Knobs() Knobs {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.knobs
}

// Refresh redraws with the current knobs.
func (s *Session) Refresh(ctx context.Context) error {
	return s.Set(ctx, s.Knobs())
}

// SetMin moves the lower knob.
func (s *Session) SetMin(ctx context.Context, v int) error {
	k := s.Knobs()
	k.Min = v
	return s.Set(ctx, k)
}

// SetMax moves the upper knob.
func (s *Session) SetMax(ctx context.Context, v int) error {
	k := s.Knobs()
	k.Max = v
	return s.Set(ctx, k)
}

// Set replaces both knobs and redraws.
func (s *Session) Set(ctx context.Context, k Knobs) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if err := k.Validate(s.limit); err != nil {
		s.mu.Unlock()
		return err
	}
	s.knobs = k
	s.mu.Unlock()
	return s.redraw(ctx, k)
}

// Package poll waits for a remote resource to reach a terminal state by
// checking it at a fixed interval.
package poll

import (
	"context"
	"errors"
	"time"

	"code.cloudfoundry.org/clock"
)

const (
	DefaultInterval = 5 * time.Second
	DefaultTimeout  = 30 * time.Minute
)

// ErrTimeout is returned by Until when the deadline passes before the
// check reports a terminal outcome.
var ErrTimeout = errors.New("timed out waiting for terminal state")

type state int

const (
	notReady state = iota
	ready
	failed
)

// Outcome is the result of a single check.
type Outcome struct {
	state  state
	reason error
}

var (
	Ready    = Outcome{state: ready}
	NotReady = Outcome{state: notReady}
)

// Failed reports a terminal failure. Until returns reason unchanged.
func Failed(reason error) Outcome {
	return Outcome{state: failed, reason: reason}
}

func (o Outcome) IsReady() bool  { return o.state == ready }
func (o Outcome) IsFailed() bool { return o.state == failed }

// Reason is the failure cause of a Failed outcome, nil otherwise.
func (o Outcome) Reason() error { return o.reason }

func (o Outcome) String() string {
	switch o.state {
	case ready:
		return "ready"
	case failed:
		return "failed"
	default:
		return "not ready"
	}
}

// CheckFunc inspects the remote resource once.
type CheckFunc func(ctx context.Context) (Outcome, error)

// Poller runs a CheckFunc until it reports Ready or Failed.
type Poller struct {
	Clock    clock.Clock
	Interval time.Duration
	// Timeout bounds the whole wait. Zero disables the deadline.
	Timeout time.Duration
}

// New returns a Poller. A nil clock uses wall-clock time and a zero interval
// falls back to DefaultInterval.
func New(clk clock.Clock, interval, timeout time.Duration) *Poller {
	if clk == nil {
		clk = clock.NewClock()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{Clock: clk, Interval: interval, Timeout: timeout}
}

// Until invokes check, sleeping Interval between NotReady results. It stops
// on the first Ready (nil), Failed (the failure reason), check error,
// context cancellation or deadline.
func (p *Poller) Until(ctx context.Context, check CheckFunc) error {
	clk := p.Clock
	if clk == nil {
		clk = clock.NewClock()
	}

	var deadline time.Time
	if p.Timeout > 0 {
		deadline = clk.Now().Add(p.Timeout)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		outcome, err := check(ctx)
		if err != nil {
			return err
		}

		switch outcome.state {
		case ready:
			return nil
		case failed:
			return outcome.reason
		}

		if !deadline.IsZero() && clk.Now().Add(p.Interval).After(deadline) {
			return ErrTimeout
		}

		timer := clk.NewTimer(p.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C():
		}
		timer.Stop()
	}
}

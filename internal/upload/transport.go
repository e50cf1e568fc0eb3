package upload

import (
	"context"
	"time"

	"lexdesk/internal/model"
)

// Simulator defaults.
const (
	DefaultInterval = 500 * time.Millisecond
	DefaultStep     = 10
)

// Job is one accepted file handed to a transport.
type Job struct {
	ID   string
	File model.FileDescriptor
}

// Transport moves one file and reports progress in percent.
//
// Send blocks until the transfer ends. It reports 100 only once the transfer
// is complete and must return promptly once ctx is cancelled. A nil error
// means the file completed.
type Transport interface {
	Send(ctx context.Context, job Job, report func(progress int)) error
}

// Discarder is implemented by transports that leave data behind which should
// go away when the file is removed from the queue.
type Discarder interface {
	Discard(ctx context.Context, job Job) error
}

// Simulator advances progress by a fixed step on every tick without moving any bytes.
type Simulator struct {
	Interval time.Duration
	Step     int
}

// Send ticks until progress reaches 100 or ctx is cancelled.
func (s Simulator) Send(ctx context.Context, _ Job, report func(int)) error {
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	step := s.Step
	if step <= 0 {
		step = DefaultStep
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	progress := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			progress = min(progress+step, 100)
			report(progress)
			if progress == 100 {
				return nil
			}
		}
	}
}

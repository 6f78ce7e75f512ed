package input

import (
	"context"
	"image"
)

// Event is one recorded input operation.
type Event struct {
	Op    string      `json:"op"`
	Key   string      `json:"key,omitempty"`
	Point image.Point `json:"point,omitempty"`
}

// Recorder records events instead of injecting them. The probe command uses
// it to show what a cycle would have done to the machine; tests use it to
// assert exact input sequences. Bounds are still enforced so coordinate
// defects surface the same way they would live.
type Recorder struct {
	width  int
	height int
	cursor image.Point
	events []Event
}

// NewRecorder builds a recorder with the given virtual screen size.
func NewRecorder(width, height int) *Recorder {
	return &Recorder{width: width, height: height}
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *Recorder) record(ev Event) {
	r.events = append(r.events, ev)
}

func (r *Recorder) PressKey(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.record(Event{Op: "press", Key: key})
	return nil
}

func (r *Recorder) HoldKey(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.record(Event{Op: "hold", Key: key})
	return nil
}

func (r *Recorder) ReleaseKey(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.record(Event{Op: "release", Key: key})
	return nil
}

func (r *Recorder) MoveCursor(ctx context.Context, p image.Point) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkBounds(p, r.width, r.height); err != nil {
		return err
	}
	r.cursor = p
	r.record(Event{Op: "move", Point: p})
	return nil
}

func (r *Recorder) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.record(Event{Op: "click", Point: r.cursor})
	return nil
}

func (r *Recorder) Close() error { return nil }

// Package playhead advances a virtual timeline once per frame and reports
// which block is active.
//
// A Playhead is not safe for concurrent use. Its owner serialises calls the
// same way it serialises graph evaluation.
package playhead

import (
	"fmt"
	"log/slog"
	"time"
)

// Event names delivered to subscribers.
type Event string

const (
	MotionStart Event = "motionStart"
	MotionEnd   Event = "motionEnd"
)

// Notice is delivered to subscribers. Time is the playhead time at which
// the transition was observed.
type Notice struct {
	Event Event
	Block Block
	Time  float64
}

type Handler func(Notice)

// MotionPlayer plays the motion of a block that became active. Calls are
// fire-and-forget.
type MotionPlayer interface {
	Play(motion string, offset, duration float64)
}

// MotionFunc adapts a function to MotionPlayer.
type MotionFunc func(motion string, offset, duration float64)

func (f MotionFunc) Play(motion string, offset, duration float64) { f(motion, offset, duration) }

// FrameScheduler queues a callback for the next frame. frame.Loop
// implements it.
type FrameScheduler interface {
	Schedule(fn func(now time.Time)) (cancel func())
}

// State is a snapshot of the playhead.
type State struct {
	Time     float64 `json:"time"`
	Playing  bool    `json:"playing"`
	ActiveID string  `json:"active_id,omitempty"`
	Active   *Block  `json:"active,omitempty"`
}

// Options configures a Playhead. Every field is optional.
type Options struct {
	Clock  Clock
	Motion MotionPlayer
	// Frames drives ticking after Start. Without it the host calls Tick.
	Frames FrameScheduler
	Logger *slog.Logger
}

type subscriber struct {
	id int
	fn Handler
}

type Playhead struct {
	clock  Clock
	motion MotionPlayer
	frames FrameScheduler
	log    *slog.Logger

	blocks  []Block
	elapsed time.Duration
	playing bool
	last    time.Time
	active  *Block
	cancel  func()

	subs   map[Event][]subscriber
	nextID int
}

func New(opts Options) *Playhead {
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Playhead{
		clock:  opts.Clock,
		motion: opts.Motion,
		frames: opts.Frames,
		log:    opts.Logger,
		subs:   make(map[Event][]subscriber),
	}
}

// SetBlocks replaces the timeline. Blocks may overlap; the first block in
// the given order that contains the current time is the active one. The
// timeline is left unchanged if any block is invalid or ids repeat.
func (p *Playhead) SetBlocks(blocks []Block) error {
	seen := make(map[string]struct{}, len(blocks))
	for _, b := range blocks {
		if err := b.Validate(); err != nil {
			return err
		}
		if _, dup := seen[b.ID]; dup {
			return fmt.Errorf("%w: duplicate id %s", ErrInvalidBlock, b.ID)
		}
		seen[b.ID] = struct{}{}
	}
	p.blocks = append([]Block(nil), blocks...)
	return nil
}

func (p *Playhead) Blocks() []Block {
	return append([]Block(nil), p.blocks...)
}

func (p *Playhead) Time() float64 { return p.elapsed.Seconds() }

func (p *Playhead) Playing() bool { return p.playing }

func (p *Playhead) State() State {
	s := State{Time: p.Time(), Playing: p.playing}
	if p.active != nil {
		b := *p.active
		s.ActiveID = b.ID
		s.Active = &b
	}
	return s
}

// On subscribes fn to ev and returns a function that unsubscribes it.
func (p *Playhead) On(ev Event, fn Handler) (unsubscribe func()) {
	p.nextID++
	id := p.nextID
	p.subs[ev] = append(p.subs[ev], subscriber{id: id, fn: fn})
	return func() {
		list := p.subs[ev]
		for i, s := range list {
			if s.id == id {
				p.subs[ev] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// Start begins playback from the current time. It is a no-op while playing.
func (p *Playhead) Start() {
	if p.playing {
		return
	}
	p.playing = true
	p.last = p.clock.Now()
	p.schedule()
}

// Stop pauses playback and ends the active block. It is a no-op while
// stopped.
func (p *Playhead) Stop() {
	if !p.playing {
		return
	}
	p.playing = false
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	if p.active != nil {
		prev := *p.active
		p.active = nil
		p.emit(MotionEnd, prev)
	}
}

// Reset stops playback and rewinds to 0.
func (p *Playhead) Reset() {
	p.Stop()
	p.elapsed = 0
}

// Seek moves the current time to t seconds. While playing the active block
// is re-evaluated immediately.
func (p *Playhead) Seek(t float64) error {
	if t < 0 {
		return fmt.Errorf("seek to %v: negative time", t)
	}
	p.elapsed = seconds(t)
	if p.playing {
		p.last = p.clock.Now()
		p.evaluate()
	}
	return nil
}

// Tick advances the current time by the clock delta since the previous tick
// and updates the active block. It does nothing while stopped.
func (p *Playhead) Tick() {
	if !p.playing {
		return
	}
	now := p.clock.Now()
	if d := now.Sub(p.last); d > 0 {
		p.elapsed += d
	}
	p.last = now
	p.evaluate()
}

func (p *Playhead) evaluate() {
	t := p.Time()
	var match *Block
	for i := range p.blocks {
		if p.blocks[i].Contains(t) {
			b := p.blocks[i]
			match = &b
			break
		}
	}

	switch {
	case match != nil && p.active != nil && *match == *p.active:
	case match != nil:
		if p.active != nil {
			prev := *p.active
			p.active = nil
			p.emit(MotionEnd, prev)
			// A subscriber may have stopped playback.
			if !p.playing {
				return
			}
		}
		p.play(*match)
		p.active = match
		p.emit(MotionStart, *match)
	case p.active != nil:
		prev := *p.active
		p.active = nil
		p.emit(MotionEnd, prev)
	}
}

func (p *Playhead) play(b Block) {
	if p.motion == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("motion playback panicked", "block_id", b.ID, "motion", b.Motion, "panic", r)
		}
	}()
	p.motion.Play(b.Motion, 0, b.Duration)
}

// emit delivers to a snapshot of the subscribers. A panicking subscriber is
// logged and skipped.
func (p *Playhead) emit(ev Event, b Block) {
	n := Notice{Event: ev, Block: b, Time: p.Time()}
	for _, s := range append([]subscriber(nil), p.subs[ev]...) {
		func() {
			defer func() {
				if r := recover(); r != nil {
					p.log.Error("playhead subscriber panicked", "event", string(ev), "block_id", b.ID, "panic", r)
				}
			}()
			s.fn(n)
		}()
	}
}

func (p *Playhead) schedule() {
	if p.frames == nil {
		return
	}
	p.cancel = p.frames.Schedule(func(time.Time) {
		p.cancel = nil
		p.Tick()
		if p.playing && p.cancel == nil {
			p.schedule()
		}
	})
}

// Package bridge ties the telemetry feed to the dashboard link: it owns the
// last transmitted VehicleState, diffs every incoming snapshot against it,
// and pushes the resulting KOMSI frames onto the serial mux.
package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/busdash/komsi-bridge/internal/db"
	"github.com/busdash/komsi-bridge/internal/feed"
	"github.com/busdash/komsi-bridge/internal/komsi"
	"github.com/busdash/komsi-bridge/internal/timeutil"
)

// FrameWriter is the transmit side of the dashboard link.
type FrameWriter interface {
	WriteFrame(frame []byte) error
}

// Journal persists transmitted frames. A nil Journal disables journaling.
type Journal interface {
	RecordFrame(frame db.FrameRecord, changes []db.ChangeRecord) error
}

// Stats is a snapshot of the bridge's transmit counters.
type Stats struct {
	FramesSent  uint64    `json:"frames_sent"`
	Resyncs     uint64    `json:"resyncs"`
	WriteErrors uint64    `json:"write_errors"`
	LastFrameAt time.Time `json:"last_frame_at"`
}

// Bridge drives one dashboard from one telemetry feed.
type Bridge struct {
	port    FrameWriter
	journal Journal
	parser  *feed.Parser
	clock   timeutil.Clock
	log     zerolog.Logger

	resyncEvery time.Duration

	mu        sync.Mutex
	last      *komsi.VehicleState
	forceNext bool
	stats     Stats
}

// New creates a bridge. The first transmitted frame is always a forced full
// dump so the dashboard starts from a known state.
func New(port FrameWriter, journal Journal, parser *feed.Parser, clock timeutil.Clock, resyncEvery time.Duration, log zerolog.Logger) *Bridge {
	return &Bridge{
		port:        port,
		journal:     journal,
		parser:      parser,
		clock:       clock,
		log:         log,
		resyncEvery: resyncEvery,
		last:        komsi.New(),
		forceNext:   true,
	}
}

// State returns a copy of the last state the dashboard is known to hold.
func (b *Bridge) State() *komsi.VehicleState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last.Clone()
}

// Stats returns a snapshot of the transmit counters.
func (b *Bridge) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// ForceResync makes the next transmitted frame a full state dump.
func (b *Bridge) ForceResync() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.forceNext = true
}

// Apply diffs the candidate snapshot against the last transmitted state and
// writes the resulting frame. The stored baseline only advances after a
// successful write: a failed write keeps the old baseline, and additionally
// schedules a full dump because a partially transmitted frame leaves the
// receiver in an unknown state.
func (b *Bridge) Apply(next *komsi.VehicleState) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	force := b.forceNext
	observer := &changeObserver{log: b.log}
	frame := b.last.Compare(next, force, observer)

	if len(frame) == 0 {
		// Steady-state tick: nothing on the wire, nothing to journal.
		b.last = next.Clone()
		return nil
	}

	if err := b.port.WriteFrame(frame); err != nil {
		b.stats.WriteErrors++
		b.forceNext = true
		return fmt.Errorf("transmit frame: %w", err)
	}

	b.journalFrame(frame, next, force, observer.count)

	b.stats.FramesSent++
	b.stats.LastFrameAt = b.clock.Now()
	if force {
		b.stats.Resyncs++
		b.forceNext = false
	}
	b.last = next.Clone()
	return nil
}

// journalFrame records a successfully transmitted frame. Journal failures
// are logged and dropped: the frame is already on the wire, so a full tick
// failure would only desynchronize the baseline for no benefit.
func (b *Bridge) journalFrame(frame []byte, next *komsi.VehicleState, forced bool, commands int) {
	if b.journal == nil {
		return
	}

	frameID := uuid.NewString()
	var changes []db.ChangeRecord
	for _, f := range komsi.Fields() {
		if old, now := b.last.Get(f), next.Get(f); old != now {
			changes = append(changes, db.ChangeRecord{
				FrameID:  frameID,
				Field:    f.Name(),
				OldValue: old,
				NewValue: now,
			})
		}
	}

	err := b.journal.RecordFrame(db.FrameRecord{
		FrameID:   frameID,
		Raw:       frame,
		Commands:  commands,
		Forced:    forced,
		CreatedAt: b.clock.Now(),
	}, changes)
	if err != nil {
		b.log.Warn().Err(err).Str("frame_id", frameID).Msg("journal write failed")
	}
}

// Run consumes feed lines until the context ends. Malformed lines and
// transmit errors are logged and skipped; the loop only stops with the
// context or when the feed channel closes.
func (b *Bridge) Run(ctx context.Context, lines <-chan string) error {
	var tick <-chan time.Time
	if b.resyncEvery > 0 {
		ticker := b.clock.NewTicker(b.resyncEvery)
		defer ticker.Stop()
		tick = ticker.C()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-tick:
			b.log.Debug().Msg("periodic resync scheduled")
			b.ForceResync()

		case line, ok := <-lines:
			if !ok {
				return nil
			}
			next, err := b.parser.Parse(b.State(), line)
			if err != nil {
				b.log.Warn().Err(err).Str("line", line).Msg("dropping malformed feed line")
				continue
			}
			if err := b.Apply(next); err != nil {
				b.log.Error().Err(err).Msg("frame transmit failed")
			}
		}
	}
}

// changeObserver adapts the encoder's per-command side channel to zerolog
// and counts emitted commands.
type changeObserver struct {
	log   zerolog.Logger
	count int
}

func (o *changeObserver) Log(msg string) {
	o.count++
	o.log.Debug().Str("change", msg).Msg("komsi command")
}

package log

import (
	"errors"
	"os"
	"testing"
	"time"

	"floracraft.ai/internal/protocol"
	"floracraft.ai/internal/sim/flora/model"
	"floracraft.ai/internal/sim/garden"
)

func TestTickLogger_RoundTripAcrossHours(t *testing.T) {
	dir := t.TempDir()
	l := NewTickLogger(dir)
	clock := time.Date(2026, 5, 1, 10, 59, 0, 0, time.UTC)
	l.w.now = func() time.Time { return clock }

	write := func(tick uint64) {
		t.Helper()
		err := l.WriteTick(garden.TickLogEntry{
			GardenID: "G",
			Tick:     tick,
			Season:   model.SeasonSpring,
			Harvests: []protocol.HarvestRecord{{PlantID: "p1", Part: "leaves"}},
			Dropped:  []model.DroppedItem{{Item: "petal", Quantity: 2, PlantID: "p1", Part: "flowers"}},
			Digest:   "d",
		})
		if err != nil {
			t.Fatalf("WriteTick(%d): %v", tick, err)
		}
	}
	write(0)
	write(1)
	clock = clock.Add(2 * time.Minute)
	write(2)
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	files, err := ListTickFiles(TicksDir(dir))
	if err != nil {
		t.Fatalf("ListTickFiles: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("files: got %v", files)
	}

	var ticks []uint64
	for _, f := range files {
		err := ReadTicks(f, func(e garden.TickLogEntry) error {
			if e.GardenID != "G" || len(e.Harvests) != 1 || e.Dropped[0].Quantity != 2 {
				t.Fatalf("entry: got %+v", e)
			}
			ticks = append(ticks, e.Tick)
			return nil
		})
		if err != nil {
			t.Fatalf("ReadTicks: %v", err)
		}
	}
	if len(ticks) != 3 || ticks[0] != 0 || ticks[2] != 2 {
		t.Fatalf("ticks: got %v", ticks)
	}
}

func TestTickLogger_ReopenAppendsFrame(t *testing.T) {
	dir := t.TempDir()
	for i := uint64(0); i < 2; i++ {
		l := NewTickLogger(dir)
		l.w.now = func() time.Time { return time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC) }
		if err := l.WriteTick(garden.TickLogEntry{GardenID: "G", Tick: i}); err != nil {
			t.Fatalf("WriteTick: %v", err)
		}
		_ = l.Close()
	}
	files, err := ListTickFiles(TicksDir(dir))
	if err != nil || len(files) != 1 {
		t.Fatalf("files: %v err=%v", files, err)
	}
	n := 0
	if err := ReadTicks(files[0], func(garden.TickLogEntry) error { n++; return nil }); err != nil {
		t.Fatalf("ReadTicks: %v", err)
	}
	if n != 2 {
		t.Fatalf("entries: got %d", n)
	}
}

func TestReadTicks_StopsOnCallbackError(t *testing.T) {
	dir := t.TempDir()
	l := NewTickLogger(dir)
	for i := uint64(0); i < 3; i++ {
		if err := l.WriteTick(garden.TickLogEntry{Tick: i}); err != nil {
			t.Fatal(err)
		}
	}
	_ = l.Close()
	files, _ := ListTickFiles(TicksDir(dir))
	stop := errors.New("stop")
	seen := 0
	err := ReadTicks(files[0], func(garden.TickLogEntry) error {
		seen++
		return stop
	})
	if !errors.Is(err, stop) || seen != 1 {
		t.Fatalf("got err=%v seen=%d", err, seen)
	}
}

type countLogger struct {
	n   int
	err error
}

func (c *countLogger) WriteTick(garden.TickLogEntry) error { c.n++; return c.err }

func TestMultiTickLogger(t *testing.T) {
	a := &countLogger{err: os.ErrClosed}
	b := &countLogger{}
	m := MultiTickLogger{a, nil, b}
	if err := m.WriteTick(garden.TickLogEntry{}); !errors.Is(err, os.ErrClosed) {
		t.Fatalf("err: %v", err)
	}
	if a.n != 1 || b.n != 1 {
		t.Fatalf("counts: a=%d b=%d", a.n, b.n)
	}
}

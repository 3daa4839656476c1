package position

import (
	"errors"
	"testing"
	"time"

	"github.com/yegors/superplane/pkg/logger"
)

func TestStaticSourceDeliversImmediately(t *testing.T) {
	src := NewStaticSource("station", 43.6777, -79.6248, 25, time.Hour, logger.NewNop())
	src.now = func() time.Time { return t0 }

	got := make(chan Fix, 4)
	if err := src.Subscribe(func(f Fix) { got <- f }); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer src.Unsubscribe()

	select {
	case f := <-got:
		want := Fix{Latitude: 43.6777, Longitude: -79.6248, Accuracy: 25, Time: t0, Source: "station"}
		if f != want {
			t.Errorf("Expected %+v, got %+v", want, f)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected an immediate fix")
	}
}

func TestStaticSourceStopsOnUnsubscribe(t *testing.T) {
	src := NewStaticSource("station", 1, 2, 10, 5*time.Millisecond, logger.NewNop())

	got := make(chan Fix, 1000)
	if err := src.Subscribe(func(f Fix) { got <- f }); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	src.Unsubscribe()

	n := len(got)
	if n < 2 {
		t.Errorf("Expected several ticks, got %d", n)
	}
	time.Sleep(30 * time.Millisecond)
	if len(got) != n {
		t.Errorf("Expected no delivery after unsubscribe, got %d more", len(got)-n)
	}

	// Unsubscribing twice is harmless
	src.Unsubscribe()
}

func TestStaticSourceClosed(t *testing.T) {
	src := NewStaticSource("station", 1, 2, 10, time.Second, logger.NewNop())
	src.Close()
	if err := src.Subscribe(func(Fix) {}); !errors.Is(err, ErrSourceClosed) {
		t.Errorf("Expected ErrSourceClosed, got %v", err)
	}
}

func TestPushSource(t *testing.T) {
	src := NewPushSource("device", logger.NewNop())
	src.now = func() time.Time { return t0 }

	if src.Push(Fix{Latitude: 1}) {
		t.Error("Expected push without subscriber to be dropped")
	}

	var got []Fix
	_ = src.Subscribe(func(f Fix) { got = append(got, f) })

	if !src.Push(Fix{Latitude: 1, Accuracy: 8}) {
		t.Error("Expected push to be delivered")
	}
	src.Push(Fix{Latitude: 2, Time: t0.Add(time.Minute), Source: "gps"})

	if len(got) != 2 {
		t.Fatalf("Expected 2 fixes, got %d", len(got))
	}
	if got[0].Source != "device" || !got[0].Time.Equal(t0) {
		t.Errorf("Expected defaults to be filled in, got %+v", got[0])
	}
	if got[1].Source != "gps" || !got[1].Time.Equal(t0.Add(time.Minute)) {
		t.Errorf("Expected explicit fields to be kept, got %+v", got[1])
	}

	src.Unsubscribe()
	if src.Push(Fix{}) {
		t.Error("Expected push after unsubscribe to be dropped")
	}
}

func TestTrackerWithPushSource(t *testing.T) {
	push := NewPushSource("device", logger.NewNop())
	tr := NewTracker(logger.NewNop(), push)

	tr.Start()
	push.Push(Fix{Latitude: 10, Accuracy: 30, Time: t0})
	tr.Stop()
	push.Push(Fix{Latitude: 20, Accuracy: 1, Time: t0.Add(time.Second)})

	best, ok := tr.Current()
	if !ok || best.Latitude != 10 {
		t.Errorf("Expected only the fix pushed while started to be held, got %+v", best)
	}
}

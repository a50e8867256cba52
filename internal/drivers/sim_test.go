package drivers

import (
	"errors"
	"testing"

	"github.com/danmuck/camctl/internal/camera"
	"github.com/danmuck/camctl/internal/params"
	"github.com/danmuck/camctl/internal/testutil/testlog"
)

func newSim(t *testing.T, cfg Config) *Simulated {
	t.Helper()
	d, err := NewSimulated(cfg)
	if err != nil {
		t.Fatalf("new simulated: %v", err)
	}
	return d
}

func TestSimulatedLifecycle(t *testing.T) {
	testlog.Start(t)
	d := newSim(t, Config{Name: "cam1", Master: true, FPS: 30, Width: 512, Height: 512})

	if d.Running() {
		t.Fatalf("fresh driver must be stopped")
	}
	if err := d.StartCamera(); err != nil || !d.Running() {
		t.Fatalf("start: err=%v running=%v", err, d.Running())
	}
	if err := d.ToggleShutter(); err != nil || !d.ShutterOpen() {
		t.Fatalf("shutter: err=%v open=%v", err, d.ShutterOpen())
	}
	if err := d.SetFilmLength(500); err != nil || d.FilmLength() != 500 {
		t.Fatalf("film length: err=%v n=%d", err, d.FilmLength())
	}
	if err := d.StopFilm(); err != nil || d.FilmLength() != 0 {
		t.Fatalf("stop film: err=%v n=%d", err, d.FilmLength())
	}
	if err := d.StopCamera(); err != nil || d.Running() {
		t.Fatalf("stop: err=%v running=%v", err, d.Running())
	}

	if err := d.SetFilmLength(-1); !errors.Is(err, camera.ErrDevice) {
		t.Fatalf("negative length must fail, got %v", err)
	}
}

func TestSimulatedTimeBaseDefaults(t *testing.T) {
	testlog.Start(t)
	master := newSim(t, Config{Name: "cam1", Master: true})
	if fn := master.Functionality(); fn.TimeBase != "cam1" {
		t.Fatalf("master time base must be itself: %+v", fn)
	}
	slave := newSim(t, Config{Name: "cam2", TimeBase: "cam1"})
	if fn := slave.Functionality(); fn.TimeBase != "cam1" || fn.Master {
		t.Fatalf("unexpected slave functionality: %+v", fn)
	}
}

func TestSimulatedOwnsItsParameters(t *testing.T) {
	testlog.Start(t)
	d := newSim(t, Config{Name: "cam1", FPS: 30})

	p := params.New("cam1")
	p.Set("fps", 60)
	if err := d.NewParameters(p); err != nil {
		t.Fatalf("new parameters: %v", err)
	}

	// Mutating the caller's tree must not leak into the driver.
	p.Set("fps", 7)
	live, err := d.Parameters()
	if err != nil {
		t.Fatalf("parameters: %v", err)
	}
	if fps, err := live.Int("fps"); err != nil || fps != 60 {
		t.Fatalf("driver must own a copy, fps=%d err=%v", fps, err)
	}
}

func TestSimulatedFailureInjection(t *testing.T) {
	testlog.Start(t)
	d := newSim(t, Config{Name: "cam1"})

	d.FailNext("start_camera", errors.New("bus powered down"))
	if err := d.StartCamera(); !errors.Is(err, camera.ErrDevice) {
		t.Fatalf("expected injected device error, got %v", err)
	}
	// One-shot: the next attempt succeeds.
	if err := d.StartCamera(); err != nil {
		t.Fatalf("second start: %v", err)
	}
}

func TestSimulatedRejectsAfterCleanUp(t *testing.T) {
	testlog.Start(t)
	d := newSim(t, Config{Name: "cam1"})
	if err := d.CleanUp(); err != nil {
		t.Fatalf("clean up: %v", err)
	}
	if err := d.StartCamera(); !errors.Is(err, camera.ErrDevice) {
		t.Fatalf("expected device closed error, got %v", err)
	}
	if _, err := d.Parameters(); !errors.Is(err, camera.ErrDevice) {
		t.Fatalf("expected device closed error, got %v", err)
	}
}

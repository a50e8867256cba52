package drivers

import (
	"fmt"
	"sync"

	"github.com/danmuck/camctl/internal/camera"
	"github.com/danmuck/camctl/internal/params"
)

// Simulated is an emulated camera for rigs without hardware attached and
// for tests. It keeps the same contract as a real driver: it owns its live
// parameter set and fails loudly once cleaned up.
type Simulated struct {
	mu sync.Mutex

	fn     camera.Functionality
	params *params.ParameterSet

	running     bool
	shutterOpen bool
	filmLength  int
	cleaned     bool

	failures map[string]error
}

// SimulatedFactory adapts NewSimulated to the registry factory shape.
func SimulatedFactory(cfg Config) (camera.DeviceDriver, error) {
	return NewSimulated(cfg)
}

// NewSimulated builds a simulated driver from a camera config.
func NewSimulated(cfg Config) (*Simulated, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("%w: camera name required", ErrInvalidID)
	}
	timeBase := cfg.TimeBase
	if timeBase == "" {
		timeBase = cfg.Name
	}

	p := params.New(cfg.Name)
	p.Set("fps", cfg.FPS)
	p.Set("width", cfg.Width)
	p.Set("height", cfg.Height)
	p.Set("master", cfg.Master)

	return &Simulated{
		fn: camera.Functionality{
			Camera:     cfg.Name,
			TimeBase:   timeBase,
			Master:     cfg.Master,
			HasShutter: true,
		},
		params:   p,
		failures: make(map[string]error),
	}, nil
}

// FailNext injects a one-shot failure for the named operation. Used by
// tests to exercise device error paths.
func (d *Simulated) FailNext(op string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures[op] = err
}

func (d *Simulated) Parameters() (*params.ParameterSet, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("parameters"); err != nil {
		return nil, err
	}
	return d.params, nil
}

func (d *Simulated) NewParameters(p *params.ParameterSet) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("new_parameters"); err != nil {
		return err
	}
	// The driver owns its live set; never alias the caller's tree.
	d.params = p.Copy()
	return nil
}

func (d *Simulated) Functionality() camera.Functionality {
	return d.fn
}

func (d *Simulated) SetFilmLength(frames int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("set_film_length"); err != nil {
		return err
	}
	if frames < 0 {
		return fmt.Errorf("%w: negative film length %d", camera.ErrDevice, frames)
	}
	d.filmLength = frames
	return nil
}

func (d *Simulated) StartCamera() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("start_camera"); err != nil {
		return err
	}
	d.running = true
	return nil
}

func (d *Simulated) StopCamera() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("stop_camera"); err != nil {
		return err
	}
	d.running = false
	return nil
}

func (d *Simulated) StopFilm() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("stop_film"); err != nil {
		return err
	}
	d.filmLength = 0
	return nil
}

func (d *Simulated) ToggleShutter() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("toggle_shutter"); err != nil {
		return err
	}
	d.shutterOpen = !d.shutterOpen
	return nil
}

func (d *Simulated) CleanUp() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("clean_up"); err != nil {
		return err
	}
	d.running = false
	d.cleaned = true
	return nil
}

// Running reports the simulated acquisition state.
func (d *Simulated) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// ShutterOpen reports the simulated shutter state.
func (d *Simulated) ShutterOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutterOpen
}

// FilmLength reports the last pushed fixed film length.
func (d *Simulated) FilmLength() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.filmLength
}

func (d *Simulated) check(op string) error {
	if d.cleaned {
		return fmt.Errorf("%w: %s: device closed", camera.ErrDevice, d.fn.Camera)
	}
	if err := d.failures[op]; err != nil {
		delete(d.failures, op)
		return fmt.Errorf("%w: %s: %s: %v", camera.ErrDevice, d.fn.Camera, op, err)
	}
	return nil
}

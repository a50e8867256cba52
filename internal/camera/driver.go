package camera

import (
	"errors"

	"github.com/danmuck/camctl/internal/params"
)

// ErrDevice is the root of driver failures. Drivers wrap hardware faults,
// invalid states, and timeouts with it; the controller propagates them as
// failed message outcomes without retrying.
var ErrDevice = errors.New("camera: device failure")

// DeviceDriver turns abstract control operations into hardware I/O. Any
// call may block for non-trivial time and may fail with an ErrDevice-based
// error. Implementations own the live parameter set; callers copy before
// holding a snapshot.
type DeviceDriver interface {
	Parameters() (*params.ParameterSet, error)
	NewParameters(p *params.ParameterSet) error
	Functionality() Functionality
	SetFilmLength(frames int) error
	StartCamera() error
	StopCamera() error
	StopFilm() error
	ToggleShutter() error
	CleanUp() error
}

// Functionality is the capability handle for one camera/feed. It exposes
// identity and key attributes without exposing direct control; the
// controller is the sole creator.
type Functionality struct {
	Camera     string
	TimeBase   string
	Master     bool
	HasShutter bool
}

// FilmSettings describes one acquisition. FixedLength films have a
// predetermined frame count; open-ended films are stopped externally.
type FilmSettings struct {
	FixedLength bool
	Frames      int
}

package camera

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/camctl/internal/bus"
)

// ErrPayload guards direct calls that bypass bus validation.
var ErrPayload = errors.New("camera: malformed payload")

// filmState is the controller's entire cross-message state: idle, or a
// declared fixed film length waiting to be pushed to the driver.
type filmState int

const (
	filmIdle filmState = iota
	filmPendingFixed
)

// Controller owns one device's control lifecycle. It interprets each bus
// message type, runs device-blocking work through its scoped task runner,
// and appends correlated responses. All state below is touched only from
// ProcessMessage, which the bus serializes per module.
type Controller struct {
	name    string
	driver  DeviceDriver
	emitter bus.Emitter
	tasks   *bus.TaskRunner

	state  filmState
	frames int
	pushed bool
}

// NewController wires a controller around an already-resolved driver.
// Driver selection happens in configuration, outside this package.
func NewController(name string, driver DeviceDriver, emitter bus.Emitter) *Controller {
	return &Controller{
		name:    name,
		driver:  driver,
		emitter: emitter,
		tasks:   bus.NewTaskRunner(name),
	}
}

func (c *Controller) Name() string {
	return c.name
}

// ProcessMessage is the controller's only protocol entry point. Messages
// not addressed to this controller are silent no-ops, never errors; every
// broadcast reaches every controller and most must ignore it.
func (c *Controller) ProcessMessage(msg *bus.Message) error {
	switch msg.Type {

	case TypeConfigure:
		return c.broadcastInitialParameters()

	case TypeFilmTiming:
		pl, ok := msg.Data.(FilmTimingPayload)
		if !ok {
			return fmt.Errorf("%w: %s got %T", ErrPayload, msg.Type, msg.Data)
		}
		if pl.Functionality.TimeBase != c.name || c.state != filmPendingFixed {
			return nil
		}
		frames := c.frames
		if err := c.tasks.Run(msg, func() error { return c.driver.SetFilmLength(frames) }); err != nil {
			return err
		}
		c.pushed = true
		return nil

	case TypeGetFunctionality:
		pl, ok := msg.Data.(TargetPayload)
		if !ok {
			return fmt.Errorf("%w: %s got %T", ErrPayload, msg.Type, msg.Data)
		}
		if pl.Camera != c.name {
			return nil
		}
		msg.AddResponse(c.name, FunctionalityResponse{Functionality: c.driver.Functionality()})
		return nil

	case TypeNewParameters:
		return c.updateParameters(msg)

	case TypeShutterToggle:
		return c.runIfAddressed(msg, c.driver.ToggleShutter)

	case TypeStartCamera:
		return c.runIfAddressed(msg, c.driver.StartCamera)

	case TypeStartFilm:
		pl, ok := msg.Data.(StartFilmPayload)
		if !ok {
			return fmt.Errorf("%w: %s got %T", ErrPayload, msg.Type, msg.Data)
		}
		if pl.Settings.FixedLength {
			c.state = filmPendingFixed
			c.frames = pl.Settings.Frames
		} else {
			c.state = filmIdle
			c.frames = 0
		}
		c.pushed = false
		// No device call here; camera.start arrives separately so the
		// caller can order slave starts before the master.
		return nil

	case TypeStopCamera:
		return c.runIfAddressed(msg, c.driver.StopCamera)

	case TypeStopFilm:
		return c.stopFilm(msg)
	}

	// Not part of the camera vocabulary; other modules' traffic.
	return nil
}

// CleanUp stops the task runner and releases the device.
func (c *Controller) CleanUp() error {
	c.tasks.Close()
	return c.driver.CleanUp()
}

func (c *Controller) broadcastInitialParameters() error {
	p, err := c.driver.Parameters()
	if err != nil {
		return err
	}
	_, err = c.emitter.Post(bus.NewMessage(c.name, TypeInitialParameters, ParametersPayload{Parameters: p}))
	return err
}

// updateParameters appends the pre-apply snapshot, applies this camera's
// sub-tree in a scoped task, then appends the post-apply read-back. The
// second append is ordered strictly after task completion.
func (c *Controller) updateParameters(msg *bus.Message) error {
	pl, ok := msg.Data.(NewParametersPayload)
	if !ok {
		return fmt.Errorf("%w: %s got %T", ErrPayload, msg.Type, msg.Data)
	}

	current, err := c.driver.Parameters()
	if err != nil {
		return err
	}
	msg.AddResponse(c.name, OldParametersResponse{Parameters: current.Copy()})

	sub, err := pl.Parameters.Sub(c.name)
	if err != nil {
		return err
	}
	if err := c.tasks.Run(msg, func() error { return c.driver.NewParameters(sub) }); err != nil {
		return err
	}

	updated, err := c.driver.Parameters()
	if err != nil {
		return err
	}
	msg.AddResponse(c.name, NewParametersResponse{Parameters: updated})
	return nil
}

// stopFilm runs synchronously: every camera must be stopped before the
// message counts as handled, so no scoped task here.
func (c *Controller) stopFilm(msg *bus.Message) error {
	if c.state == filmPendingFixed && !c.pushed {
		log.Warn().
			Str("camera", c.name).
			Int("frames", c.frames).
			Msg("declared film length was never pushed to the driver")
	}
	c.state = filmIdle
	c.frames = 0
	c.pushed = false

	if err := c.driver.StopFilm(); err != nil {
		return err
	}
	p, err := c.driver.Parameters()
	if err != nil {
		return err
	}
	msg.AddResponse(c.name, ParametersResponse{Parameters: p})
	return nil
}

func (c *Controller) runIfAddressed(msg *bus.Message, op func() error) error {
	pl, ok := msg.Data.(TargetPayload)
	if !ok {
		return fmt.Errorf("%w: %s got %T", ErrPayload, msg.Type, msg.Data)
	}
	if pl.Camera != c.name {
		return nil
	}
	return c.tasks.Run(msg, op)
}

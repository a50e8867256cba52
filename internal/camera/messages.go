package camera

import (
	"reflect"

	"github.com/danmuck/camctl/internal/bus"
	"github.com/danmuck/camctl/internal/params"
)

// Camera message vocabulary. Target-addressed types carry a TargetPayload
// and are silently ignored by controllers they do not name; film and
// configure types are broadcast to every controller.
const (
	TypeConfigure         = "configure.initial"
	TypeFilmTiming        = "film.timing"
	TypeGetFunctionality  = "functionality.get"
	TypeNewParameters     = "parameters.new"
	TypeInitialParameters = "parameters.initial"
	TypeShutterToggle     = "shutter.toggle"
	TypeStartCamera       = "camera.start"
	TypeStartFilm         = "film.start"
	TypeStopCamera        = "camera.stop"
	TypeStopFilm          = "film.stop"
)

// TargetPayload addresses one camera by controller name.
type TargetPayload struct {
	Camera string
}

// FilmTimingPayload names the feed whose time base governs the film.
type FilmTimingPayload struct {
	Functionality Functionality
}

// NewParametersPayload carries the full parameter tree; each controller
// applies its own sub-tree.
type NewParametersPayload struct {
	Parameters *params.ParameterSet
}

// StartFilmPayload carries the film settings for the upcoming acquisition.
type StartFilmPayload struct {
	Settings FilmSettings
}

// ParametersPayload carries a full parameter set on a derived event.
type ParametersPayload struct {
	Parameters *params.ParameterSet
}

// FunctionalityResponse answers functionality.get.
type FunctionalityResponse struct {
	Functionality Functionality
}

// OldParametersResponse is the pre-apply snapshot on parameters.new. The
// set is a deep copy taken before the apply task runs.
type OldParametersResponse struct {
	Parameters *params.ParameterSet
}

// NewParametersResponse is the post-apply read-back on parameters.new.
type NewParametersResponse struct {
	Parameters *params.ParameterSet
}

// ParametersResponse is the post-stop snapshot on film.stop.
type ParametersResponse struct {
	Parameters *params.ParameterSet
}

// RegisterMessages declares the camera vocabulary against a bus registry.
// Safe to call once per controller; identical re-registration is a no-op.
func RegisterMessages(r *bus.Registry) error {
	specs := []struct {
		name string
		spec bus.MessageSpec
	}{
		{TypeConfigure, bus.MessageSpec{}},
		{TypeFilmTiming, bus.MessageSpec{
			Payload: reflect.TypeOf(FilmTimingPayload{}),
		}},
		{TypeGetFunctionality, bus.MessageSpec{
			Payload:   reflect.TypeOf(TargetPayload{}),
			Responses: []reflect.Type{reflect.TypeOf(FunctionalityResponse{})},
		}},
		{TypeNewParameters, bus.MessageSpec{
			Payload: reflect.TypeOf(NewParametersPayload{}),
			Responses: []reflect.Type{
				reflect.TypeOf(OldParametersResponse{}),
				reflect.TypeOf(NewParametersResponse{}),
			},
		}},
		{TypeInitialParameters, bus.MessageSpec{
			Payload: reflect.TypeOf(ParametersPayload{}),
		}},
		{TypeShutterToggle, bus.MessageSpec{
			Payload: reflect.TypeOf(TargetPayload{}),
		}},
		{TypeStartCamera, bus.MessageSpec{
			Payload: reflect.TypeOf(TargetPayload{}),
		}},
		{TypeStartFilm, bus.MessageSpec{
			Payload: reflect.TypeOf(StartFilmPayload{}),
		}},
		{TypeStopCamera, bus.MessageSpec{
			Payload: reflect.TypeOf(TargetPayload{}),
		}},
		{TypeStopFilm, bus.MessageSpec{
			Responses: []reflect.Type{reflect.TypeOf(ParametersResponse{})},
		}},
	}
	for _, s := range specs {
		if err := r.Register(s.name, s.spec); err != nil {
			return err
		}
	}
	return nil
}

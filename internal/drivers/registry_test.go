package drivers

import (
	"errors"
	"testing"

	"github.com/danmuck/camctl/internal/camera"
	"github.com/danmuck/camctl/internal/testutil/testlog"
)

func TestRegistryRegisterAndBuild(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	if err := r.Register("sim", SimulatedFactory); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := r.Register("sim", SimulatedFactory); !errors.Is(err, ErrDriverExists) {
		t.Fatalf("expected ErrDriverExists, got %v", err)
	}
	if err := r.Register("", SimulatedFactory); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
	if err := r.Register("Sim!", SimulatedFactory); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
	if err := r.Register("nil", nil); !errors.Is(err, ErrNilFactory) {
		t.Fatalf("expected ErrNilFactory, got %v", err)
	}

	driver, err := r.Build("sim", Config{Name: "cam1", Master: true, FPS: 30})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if fn := driver.Functionality(); fn.Camera != "cam1" || !fn.Master {
		t.Fatalf("unexpected functionality: %+v", fn)
	}

	if _, err := r.Build("missing", Config{Name: "cam1"}); !errors.Is(err, ErrDriverUnknown) {
		t.Fatalf("expected ErrDriverUnknown, got %v", err)
	}

	ids := r.List()
	if len(ids) != 1 || ids[0] != "sim" {
		t.Fatalf("unexpected ids: %v", ids)
	}
	var _ camera.DeviceDriver = driver
}

package bus

import (
	"errors"
	"reflect"
	"testing"

	"github.com/danmuck/camctl/internal/testutil/testlog"
)

type pingPayload struct {
	Seq int
}

type pongResponse struct {
	From string
	Seq  int
}

func registerPing(t *testing.T, r *Registry) {
	t.Helper()
	err := r.Register("test.ping", MessageSpec{
		Payload:   reflect.TypeOf(pingPayload{}),
		Responses: []reflect.Type{reflect.TypeOf(pongResponse{})},
	})
	if err != nil {
		t.Fatalf("register ping: %v", err)
	}
}

func TestRegisterRejectsInvalidNames(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	for _, name := range []string{"", "Ping", "ping..pong", ".ping", "ping."} {
		if err := r.Register(name, MessageSpec{}); !errors.Is(err, ErrInvalidType) {
			t.Fatalf("name %q: expected ErrInvalidType, got %v", name, err)
		}
	}
	if err := r.Register("test.ping-2", MessageSpec{}); err != nil {
		t.Fatalf("valid name rejected: %v", err)
	}
}

func TestRegisterIdenticalIsNoOp(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	registerPing(t, r)
	registerPing(t, r)

	conflicting := MessageSpec{Payload: reflect.TypeOf(pongResponse{})}
	if err := r.Register("test.ping", conflicting); !errors.Is(err, ErrTypeConflict) {
		t.Fatalf("expected ErrTypeConflict, got %v", err)
	}
}

func TestValidateMessage(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	registerPing(t, r)
	if err := r.Register("test.note", MessageSpec{}); err != nil {
		t.Fatalf("register note: %v", err)
	}

	if err := r.ValidateMessage(NewMessage("t", "test.unknown", nil)); !errors.Is(err, ErrTypeUnknown) {
		t.Fatalf("expected ErrTypeUnknown, got %v", err)
	}
	if err := r.ValidateMessage(NewMessage("t", "test.ping", pongResponse{})); !errors.Is(err, ErrBadPayload) {
		t.Fatalf("expected ErrBadPayload for wrong struct, got %v", err)
	}
	if err := r.ValidateMessage(NewMessage("t", "test.ping", nil)); !errors.Is(err, ErrBadPayload) {
		t.Fatalf("expected ErrBadPayload for missing payload, got %v", err)
	}
	if err := r.ValidateMessage(NewMessage("t", "test.note", pingPayload{})); !errors.Is(err, ErrBadPayload) {
		t.Fatalf("expected ErrBadPayload for unexpected payload, got %v", err)
	}
	if err := r.ValidateMessage(NewMessage("t", "test.ping", pingPayload{Seq: 1})); err != nil {
		t.Fatalf("well-formed message rejected: %v", err)
	}
	if err := r.ValidateMessage(NewMessage("t", "test.note", nil)); err != nil {
		t.Fatalf("payload-free message rejected: %v", err)
	}
}

func TestValidateResponse(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	registerPing(t, r)

	ok := Response{Source: "m", Data: pongResponse{From: "m", Seq: 1}}
	if err := r.ValidateResponse("test.ping", ok); err != nil {
		t.Fatalf("allowed response rejected: %v", err)
	}
	bad := Response{Source: "m", Data: pingPayload{Seq: 1}}
	if err := r.ValidateResponse("test.ping", bad); !errors.Is(err, ErrBadResponse) {
		t.Fatalf("expected ErrBadResponse, got %v", err)
	}
	if err := r.ValidateResponse("test.unknown", ok); !errors.Is(err, ErrTypeUnknown) {
		t.Fatalf("expected ErrTypeUnknown, got %v", err)
	}
}

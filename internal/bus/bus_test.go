package bus

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/camctl/internal/testutil/testlog"
)

// recorder is a test module that logs delivered sequence numbers and can
// answer or fail on demand.
type recorder struct {
	name string

	mu   sync.Mutex
	seen []int

	respond bool
	fail    error
	handler func(msg *Message) error
}

func (m *recorder) Name() string { return m.name }

func (m *recorder) ProcessMessage(msg *Message) error {
	if m.handler != nil {
		return m.handler(msg)
	}
	if pl, ok := msg.Data.(pingPayload); ok {
		m.mu.Lock()
		m.seen = append(m.seen, pl.Seq)
		m.mu.Unlock()
		if m.respond {
			msg.AddResponse(m.name, pongResponse{From: m.name, Seq: pl.Seq})
		}
	}
	return m.fail
}

func (m *recorder) sequence() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, len(m.seen))
	copy(out, m.seen)
	return out
}

func newTestBus(t *testing.T) *Bus {
	t.Helper()
	r := NewRegistry()
	registerPing(t, r)
	if err := r.Register("test.note", MessageSpec{}); err != nil {
		t.Fatalf("register note: %v", err)
	}
	b := New(r)
	t.Cleanup(b.Close)
	return b
}

func TestPerModuleDeliveryOrder(t *testing.T) {
	testlog.Start(t)
	b := newTestBus(t)
	m := &recorder{name: "mod.a"}
	if err := b.Attach(m); err != nil {
		t.Fatalf("attach: %v", err)
	}

	const n = 50
	deliveries := make([]*Delivery, 0, n)
	for i := 0; i < n; i++ {
		d, err := b.Post(NewMessage("test", "test.ping", pingPayload{Seq: i}))
		if err != nil {
			t.Fatalf("post %d: %v", i, err)
		}
		deliveries = append(deliveries, d)
	}
	for _, d := range deliveries {
		if err := d.Wait(); err != nil {
			t.Fatalf("wait: %v", err)
		}
	}

	seq := m.sequence()
	if len(seq) != n {
		t.Fatalf("expected %d deliveries, got %d", n, len(seq))
	}
	for i, got := range seq {
		if got != i {
			t.Fatalf("delivery order broken at %d: %v", i, seq)
		}
	}
}

func TestBroadcastReachesAllModules(t *testing.T) {
	testlog.Start(t)
	b := newTestBus(t)
	a := &recorder{name: "mod.a", respond: true}
	c := &recorder{name: "mod.c", respond: true}
	for _, m := range []*recorder{a, c} {
		if err := b.Attach(m); err != nil {
			t.Fatalf("attach %s: %v", m.name, err)
		}
	}

	d, err := b.Post(NewMessage("test", "test.ping", pingPayload{Seq: 7}))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if err := d.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}

	responses := d.Msg.Responses()
	if len(responses) != 2 {
		t.Fatalf("expected a response per module, got %+v", responses)
	}
	sources := map[string]bool{}
	for _, resp := range responses {
		sources[resp.Source] = true
		pong, ok := resp.Data.(pongResponse)
		if !ok || pong.Seq != 7 {
			t.Fatalf("unexpected response: %+v", resp)
		}
	}
	if !sources["mod.a"] || !sources["mod.c"] {
		t.Fatalf("missing module responses: %v", sources)
	}
}

func TestPostRejectsBeforeDelivery(t *testing.T) {
	testlog.Start(t)
	b := newTestBus(t)
	m := &recorder{name: "mod.a"}
	if err := b.Attach(m); err != nil {
		t.Fatalf("attach: %v", err)
	}

	if _, err := b.Post(NewMessage("test", "test.unknown", nil)); !errors.Is(err, ErrTypeUnknown) {
		t.Fatalf("expected ErrTypeUnknown, got %v", err)
	}
	if _, err := b.Post(NewMessage("test", "test.ping", "wrong")); !errors.Is(err, ErrBadPayload) {
		t.Fatalf("expected ErrBadPayload, got %v", err)
	}
	if len(m.sequence()) != 0 {
		t.Fatalf("malformed messages must never reach handlers")
	}
}

func TestHandlerFailureSurfacesOnWait(t *testing.T) {
	testlog.Start(t)
	b := newTestBus(t)
	boom := errors.New("boom")
	if err := b.Attach(&recorder{name: "mod.bad", fail: boom}); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if err := b.Attach(&recorder{name: "mod.ok", respond: true}); err != nil {
		t.Fatalf("attach: %v", err)
	}

	d, err := b.Post(NewMessage("test", "test.ping", pingPayload{Seq: 1}))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	werr := d.Wait()
	if !errors.Is(werr, boom) {
		t.Fatalf("expected failure outcome, got %v", werr)
	}
	// The healthy module still handled the message.
	if len(d.Msg.Responses()) != 1 {
		t.Fatalf("expected the healthy module's response, got %+v", d.Msg.Responses())
	}
}

func TestHandlerPanicBecomesFailure(t *testing.T) {
	testlog.Start(t)
	b := newTestBus(t)
	m := &recorder{name: "mod.panic", handler: func(msg *Message) error {
		panic("kaboom")
	}}
	if err := b.Attach(m); err != nil {
		t.Fatalf("attach: %v", err)
	}

	d, err := b.Post(NewMessage("test", "test.ping", pingPayload{Seq: 1}))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if werr := d.Wait(); werr == nil {
		t.Fatalf("expected panic to surface as failed outcome")
	}
}

func TestInvalidResponseRecordedAsFailure(t *testing.T) {
	testlog.Start(t)
	b := newTestBus(t)
	m := &recorder{name: "mod.bad", handler: func(msg *Message) error {
		msg.AddResponse("mod.bad", "not a registered response shape")
		return nil
	}}
	if err := b.Attach(m); err != nil {
		t.Fatalf("attach: %v", err)
	}

	d, err := b.Post(NewMessage("test", "test.ping", pingPayload{Seq: 1}))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if werr := d.Wait(); !errors.Is(werr, ErrBadResponse) {
		t.Fatalf("expected ErrBadResponse, got %v", werr)
	}
}

func TestResponseFailureAttributedToAppender(t *testing.T) {
	testlog.Start(t)
	b := newTestBus(t)
	good := &recorder{name: "mod.good", respond: true}
	bad := &recorder{name: "mod.bad", handler: func(msg *Message) error {
		msg.AddResponse("mod.bad", "not a registered response shape")
		return nil
	}}
	for _, m := range []Module{good, bad} {
		if err := b.Attach(m); err != nil {
			t.Fatalf("attach %s: %v", m.Name(), err)
		}
	}

	d, err := b.Post(NewMessage("test", "test.ping", pingPayload{Seq: 1}))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if werr := d.Wait(); !errors.Is(werr, ErrBadResponse) {
		t.Fatalf("expected ErrBadResponse, got %v", werr)
	}

	// Both modules appended while the message was in flight; the shape
	// mismatch must be pinned on the module that appended it.
	failures := d.Msg.Failures()
	if len(failures) != 1 {
		t.Fatalf("expected exactly one failure, got %v", failures)
	}
	if !strings.Contains(failures[0].Error(), "mod.bad") {
		t.Fatalf("failure not attributed to the appender: %v", failures[0])
	}
	if strings.Contains(failures[0].Error(), "mod.good") {
		t.Fatalf("failure misattributed to a healthy module: %v", failures[0])
	}
}

func TestEmitFromHandler(t *testing.T) {
	testlog.Start(t)
	b := newTestBus(t)

	noteSeen := make(chan string, 1)
	listener := &recorder{name: "mod.listen", handler: func(msg *Message) error {
		if msg.Type == "test.note" {
			noteSeen <- msg.Source
		}
		return nil
	}}
	emitterMod := &recorder{name: "mod.emit", handler: func(msg *Message) error {
		if msg.Type == "test.ping" {
			_, err := b.Post(NewMessage("mod.emit", "test.note", nil))
			return err
		}
		return nil
	}}
	for _, m := range []*recorder{emitterMod, listener} {
		if err := b.Attach(m); err != nil {
			t.Fatalf("attach %s: %v", m.name, err)
		}
	}

	d, err := b.Post(NewMessage("test", "test.ping", pingPayload{Seq: 1}))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if err := d.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}

	select {
	case src := <-noteSeen:
		if src != "mod.emit" {
			t.Fatalf("unexpected note source: %q", src)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("derived message never delivered")
	}
}

func TestSlowModuleDoesNotStarveOthers(t *testing.T) {
	testlog.Start(t)
	b := newTestBus(t)

	release := make(chan struct{})
	slow := &recorder{name: "mod.slow", handler: func(msg *Message) error {
		<-release
		return nil
	}}
	fast := &recorder{name: "mod.fast"}
	for _, m := range []Module{slow, fast} {
		if err := b.Attach(m); err != nil {
			t.Fatalf("attach: %v", err)
		}
	}

	d, err := b.Post(NewMessage("test", "test.ping", pingPayload{Seq: 1}))
	if err != nil {
		t.Fatalf("post: %v", err)
	}

	// The fast module finishes while the slow one is still blocked.
	deadline := time.After(2 * time.Second)
	for len(fast.sequence()) == 0 {
		select {
		case <-deadline:
			t.Fatalf("fast module starved by slow module")
		case <-time.After(time.Millisecond):
		}
	}
	close(release)
	if err := d.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

func TestAttachRules(t *testing.T) {
	testlog.Start(t)
	b := newTestBus(t)
	if err := b.Attach(&recorder{name: "mod.a"}); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if err := b.Attach(&recorder{name: "mod.a"}); !errors.Is(err, ErrModuleExists) {
		t.Fatalf("expected ErrModuleExists, got %v", err)
	}
	if err := b.Attach(&recorder{name: ""}); !errors.Is(err, ErrModuleName) {
		t.Fatalf("expected ErrModuleName, got %v", err)
	}
}

func TestCloseStopsPosting(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	registerPing(t, r)
	b := New(r)
	if err := b.Attach(&recorder{name: "mod.a"}); err != nil {
		t.Fatalf("attach: %v", err)
	}
	b.Close()
	b.Close() // idempotent

	if _, err := b.Post(NewMessage("test", "test.ping", pingPayload{Seq: 1})); !errors.Is(err, ErrBusClosed) {
		t.Fatalf("expected ErrBusClosed, got %v", err)
	}
	if err := b.Attach(&recorder{name: "mod.b"}); !errors.Is(err, ErrBusClosed) {
		t.Fatalf("expected ErrBusClosed, got %v", err)
	}
}

func TestResponsesAppendOnly(t *testing.T) {
	testlog.Start(t)
	msg := NewMessage("test", "test.ping", pingPayload{Seq: 1})
	for i := 0; i < 3; i++ {
		msg.AddResponse(fmt.Sprintf("mod.%d", i), pongResponse{Seq: i})
	}
	got := msg.Responses()
	if len(got) != 3 {
		t.Fatalf("unexpected responses: %+v", got)
	}
	for i, resp := range got {
		if resp.Source != fmt.Sprintf("mod.%d", i) {
			t.Fatalf("append order broken: %+v", got)
		}
	}
	if !reflect.DeepEqual(got, msg.Responses()) {
		t.Fatalf("snapshot must be stable")
	}
}

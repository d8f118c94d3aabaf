package mpv

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/mmcdole/reel/internal/player"
)

// fakeMPV answers IPC commands on one end of a pipe
type fakeMPV struct {
	conn net.Conn

	wmu sync.Mutex

	mu       sync.Mutex
	commands [][]any
}

func (f *fakeMPV) serve() {
	scanner := bufio.NewScanner(f.conn)
	for scanner.Scan() {
		var req request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			continue
		}
		f.mu.Lock()
		f.commands = append(f.commands, req.Command)
		f.mu.Unlock()

		f.send(map[string]any{"request_id": req.RequestID, "error": "success"})
		if len(req.Command) > 0 && req.Command[0] == "loadfile" {
			f.send(map[string]any{"event": "file-loaded"})
			f.send(map[string]any{"event": "property-change", "id": obsDuration, "name": "duration", "data": 120.5})
		}
	}
}

func (f *fakeMPV) send(v any) {
	line, _ := json.Marshal(v)
	f.wmu.Lock()
	defer f.wmu.Unlock()
	_, _ = f.conn.Write(append(line, '\n'))
}

func (f *fakeMPV) sent(name string) [][]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out [][]any
	for _, c := range f.commands {
		if len(c) > 0 && c[0] == name {
			out = append(out, c)
		}
	}
	return out
}

type pipeConnector struct {
	mu     sync.Mutex
	server *fakeMPV
}

func (p *pipeConnector) Connect(ctx context.Context) (net.Conn, io.Closer, error) {
	client, server := net.Pipe()
	f := &fakeMPV{conn: server}
	go f.serve()
	p.mu.Lock()
	p.server = f
	p.mu.Unlock()
	return client, server, nil
}

func (p *pipeConnector) fake() *fakeMPV {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.server
}

func nextEvent(t *testing.T, events <-chan player.Event) player.Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return player.Event{}
	}
}

func openBackend(t *testing.T) (*Backend, *pipeConnector, chan player.Event) {
	t.Helper()
	connector := &pipeConnector{}
	b := New(connector, nil)
	t.Cleanup(func() { b.Close() })

	events := make(chan player.Event, 16)
	if err := b.Open(context.Background(), "https://media.example/a.mp4", func(ev player.Event) { events <- ev }); err != nil {
		t.Fatalf("Open: %v", err)
	}
	return b, connector, events
}

func TestOpenObservesAndLoads(t *testing.T) {
	_, connector, events := openBackend(t)
	fake := connector.fake()

	if got := len(fake.sent("observe_property")); got != 4 {
		t.Errorf("expected 4 observed properties, got %d", got)
	}
	loads := fake.sent("loadfile")
	if len(loads) != 1 || loads[0][1] != "https://media.example/a.mp4" {
		t.Errorf("unexpected loadfile commands %v", loads)
	}

	if ev := nextEvent(t, events); ev.Kind != player.EventReady {
		t.Fatalf("expected ready, got %s", ev.Kind)
	}
	if ev := nextEvent(t, events); ev.Kind != player.EventDuration || ev.Duration != 120.5 {
		t.Fatalf("expected duration 120.5, got %+v", ev)
	}
}

func TestCommands(t *testing.T) {
	b, connector, _ := openBackend(t)
	fake := connector.fake()

	if err := b.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if err := b.SetVolume(0.5); err != nil {
		t.Fatalf("SetVolume: %v", err)
	}
	if err := b.Seek(42); err != nil {
		t.Fatalf("Seek: %v", err)
	}

	props := fake.sent("set_property")
	if len(props) != 2 {
		t.Fatalf("expected 2 set_property commands, got %v", props)
	}
	if props[0][1] != "pause" || props[0][2] != false {
		t.Errorf("unexpected play command %v", props[0])
	}
	if props[1][1] != "volume" || props[1][2] != float64(50) {
		t.Errorf("unexpected volume command %v", props[1])
	}
	if seeks := fake.sent("seek"); len(seeks) != 1 || seeks[0][1] != float64(42) || seeks[0][2] != "absolute" {
		t.Errorf("unexpected seek commands %v", seeks)
	}
}

func TestPlaybackEvents(t *testing.T) {
	_, connector, events := openBackend(t)
	fake := connector.fake()
	nextEvent(t, events) // ready
	nextEvent(t, events) // duration

	fake.send(map[string]any{"event": "property-change", "name": "paused-for-cache", "data": true})
	fake.send(map[string]any{"event": "property-change", "name": "paused-for-cache", "data": false})
	fake.send(map[string]any{"event": "property-change", "name": "time-pos", "data": 3.5})
	fake.send(map[string]any{"event": "property-change", "name": "eof-reached", "data": true})
	fake.send(map[string]any{"event": "end-file", "reason": "error", "file_error": "loading failed"})

	want := []player.EventKind{
		player.EventBufferStart,
		player.EventBufferEnd,
		player.EventTime,
		player.EventEnded,
		player.EventError,
	}
	for _, kind := range want {
		if ev := nextEvent(t, events); ev.Kind != kind {
			t.Fatalf("expected %s, got %s", kind, ev.Kind)
		}
	}
}

func TestCommandsBeforeOpenFail(t *testing.T) {
	b := New(&pipeConnector{}, nil)
	defer b.Close()
	if err := b.Play(); err == nil {
		t.Error("expected error before mpv is running")
	}
}

func TestCloseQuits(t *testing.T) {
	b, connector, _ := openBackend(t)
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := len(connector.fake().sent("quit")); got != 1 {
		t.Errorf("expected quit, got %d", got)
	}
	if err := b.Open(context.Background(), "x", func(player.Event) {}); err == nil {
		t.Error("Open after Close should fail")
	}
}

func TestPropertyEvent(t *testing.T) {
	tests := []struct {
		name string
		data string
		want *player.EventKind
	}{
		{"time-pos", `1.5`, kind(player.EventTime)},
		{"time-pos", `null`, nil},
		{"duration", `90`, kind(player.EventDuration)},
		{"paused-for-cache", `true`, kind(player.EventBufferStart)},
		{"eof-reached", `false`, nil},
		{"volume", `50`, nil},
	}
	for _, tt := range tests {
		ev := propertyEvent(message{Name: tt.name, Data: json.RawMessage(tt.data)})
		switch {
		case tt.want == nil && ev != nil:
			t.Errorf("%s=%s: expected no event, got %s", tt.name, tt.data, ev.Kind)
		case tt.want != nil && (ev == nil || ev.Kind != *tt.want):
			t.Errorf("%s=%s: expected %s, got %+v", tt.name, tt.data, *tt.want, ev)
		}
	}
}

func kind(k player.EventKind) *player.EventKind { return &k }

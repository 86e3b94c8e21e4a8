package agentrpc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	logspb "go.opentelemetry.io/proto/otlp/logs/v1"

	"github.com/nixlim/buzz/internal/config"
	"github.com/nixlim/buzz/internal/notify"
)

type recordingShower struct {
	mu    sync.Mutex
	shown []notify.Notification
	err   error
}

func (r *recordingShower) ShowNotification(_ context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.shown = append(r.shown, n)
	return nil
}

func (r *recordingShower) Shown() []notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Notification(nil), r.shown...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startTestGRPC serves on an ephemeral port and returns a connected client.
func startTestGRPC(t *testing.T, target Shower) (*GRPCServer, *Client) {
	t.Helper()

	cfg := config.DefaultConfig().Agent
	s := NewGRPCServer(cfg, target, testLogger())

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	s.serve(lis)

	c, err := Dial(s.Addr(), cfg.Origin)
	if err != nil {
		s.Stop()
		t.Fatalf("failed to create client: %v", err)
	}
	t.Cleanup(func() {
		c.Close()
		s.Stop()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Ready(ctx); err != nil {
		t.Fatalf("client not ready: %v", err)
	}
	return s, c
}

func TestCodec_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		n    notify.Notification
	}{
		{
			name: "all fields",
			n: notify.Notification{
				Title: "Reminder", Body: "Standup in 5", Icon: "⏰", Tag: "buzz-demo",
				Silent: true, Vibrate: []int{200, 100, 200}, RequireInteraction: true, Renotify: true,
			},
		},
		{
			name: "title only",
			n:    notify.Notification{Title: "Ping"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeNotification(EncodeNotification(tt.n, time.Now()))
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, tt.n) {
				t.Errorf("decoded %+v, want %+v", got, tt.n)
			}
		})
	}
}

func TestCodec_RecordShape(t *testing.T) {
	now := time.Unix(1700000000, 0)
	r := EncodeNotification(notify.Notification{Title: "T", Body: "B"}, now)

	if r.GetTimeUnixNano() != uint64(now.UnixNano()) {
		t.Errorf("time = %d", r.GetTimeUnixNano())
	}
	if r.GetSeverityNumber() != logspb.SeverityNumber_SEVERITY_NUMBER_INFO {
		t.Errorf("severity = %v", r.GetSeverityNumber())
	}
	if r.GetBody().GetStringValue() != "B" {
		t.Errorf("body = %q", r.GetBody().GetStringValue())
	}
	found := false
	for _, kv := range r.GetAttributes() {
		if kv.GetKey() == AttrEventName && kv.GetValue().GetStringValue() == ShowEvent {
			found = true
		}
	}
	if !found {
		t.Error("record lacks the show event name")
	}
}

func TestCodec_MissingTitle(t *testing.T) {
	if _, err := DecodeNotification(&logspb.LogRecord{}); err == nil {
		t.Error("expected error for record without title")
	}
}

func TestNewExportRequest_Origin(t *testing.T) {
	req := NewExportRequest("buzz://local", time.Now(), notify.Notification{Title: "a"}, notify.Notification{Title: "b"})
	if got := resourceOrigin(req.GetResourceLogs()[0].GetResource()); got != "buzz://local" {
		t.Errorf("origin = %q", got)
	}
	if n := len(req.GetResourceLogs()[0].GetScopeLogs()[0].GetLogRecords()); n != 2 {
		t.Errorf("records = %d, want 2", n)
	}
}

func TestGRPC_ShowNotification(t *testing.T) {
	target := &recordingShower{}
	_, c := startTestGRPC(t, target)

	want := notify.Notification{Title: "Reminder", Body: "Drink water", Tag: "buzz-demo", Vibrate: []int{100}, Renotify: true}
	if err := c.ShowNotification(context.Background(), want); err != nil {
		t.Fatalf("ShowNotification: %v", err)
	}

	got := target.Shown()
	if len(got) != 1 {
		t.Fatalf("server showed %d notifications, want 1", len(got))
	}
	if !reflect.DeepEqual(got[0], want) {
		t.Errorf("server showed %+v, want %+v", got[0], want)
	}
}

func TestGRPC_RejectedShowIsAnError(t *testing.T) {
	target := &recordingShower{err: errors.New("agent not active")}
	_, c := startTestGRPC(t, target)

	err := c.ShowNotification(context.Background(), notify.Notification{Title: "x"})
	if err == nil {
		t.Fatal("expected error for rejected show")
	}
	if !strings.Contains(err.Error(), "agent not active") {
		t.Errorf("error = %v, want the agent's reason", err)
	}
}

func TestGRPC_PartialSuccessCounts(t *testing.T) {
	target := &recordingShower{}
	s := NewGRPCServer(config.DefaultConfig().Agent, target, testLogger())

	req := NewExportRequest("buzz://local", time.Now(), notify.Notification{Title: "ok"})
	records := req.ResourceLogs[0].ScopeLogs[0].LogRecords
	req.ResourceLogs[0].ScopeLogs[0].LogRecords = append(records, &logspb.LogRecord{})

	resp, err := s.Export(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.GetPartialSuccess().GetRejectedLogRecords() != 1 {
		t.Errorf("rejected = %d, want 1", resp.GetPartialSuccess().GetRejectedLogRecords())
	}
	if len(target.Shown()) != 1 {
		t.Errorf("shown = %d, want 1", len(target.Shown()))
	}
}

func TestClient_ReadyTimesOutWithoutServer(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := lis.Addr().String()
	lis.Close()

	c, err := Dial(addr, "buzz://local")
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := c.Ready(ctx); err == nil {
		t.Error("Ready should fail with nothing listening")
	}
}

func TestHTTPServer_Serves(t *testing.T) {
	h := NewHTTPServer(config.DefaultConfig().Agent, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "proxied")
	}), testLogger())

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	h.serve(lis)
	defer h.Stop()

	resp, err := http.Get("http://" + h.Addr() + "/fetch")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "proxied" {
		t.Errorf("body = %q", body)
	}
}

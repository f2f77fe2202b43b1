package command

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

type mockSubmitter struct {
	requests []Request
	err      error
}

func (m *mockSubmitter) Submit(ctx context.Context, req Request) (Reply, error) {
	if m.err != nil {
		return Reply{}, m.err
	}
	m.requests = append(m.requests, req)
	return Reply{Text: "ok " + req.Name}, nil
}

func TestConsoleSubmitsEachLine(t *testing.T) {
	sub := &mockSubmitter{}
	var out bytes.Buffer
	in := strings.NewReader("ping\n\njoin primary\nvolume 0.5\nquit\nleave\n")

	if err := NewConsole(sub, "alice", in, &out).Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(sub.requests) != 3 {
		t.Fatalf("expected 3 requests before quit, got %d", len(sub.requests))
	}
	if sub.requests[1].Name != Join || sub.requests[1].Args[0] != "primary" || sub.requests[1].User != "alice" {
		t.Errorf("unexpected join request: %+v", sub.requests[1])
	}
	for _, want := range []string{"ok ping", "ok join", "ok volume"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("expected output to contain %q, got %q", want, out.String())
		}
	}
}

func TestConsoleStopsOnSubmitError(t *testing.T) {
	sub := &mockSubmitter{err: ErrStopped}
	var out bytes.Buffer

	err := NewConsole(sub, "alice", strings.NewReader("ping\n"), &out).Run(context.Background())
	if !errors.Is(err, ErrStopped) {
		t.Errorf("expected ErrStopped, got %v", err)
	}
}

func TestConsoleHonoursCancelledContext(t *testing.T) {
	sub := &mockSubmitter{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := NewConsole(sub, "alice", strings.NewReader("ping\n"), &bytes.Buffer{}).Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(sub.requests) != 0 {
		t.Error("no command should run after cancellation")
	}
}

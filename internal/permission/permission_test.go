package permission

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/example/image-compare/internal/logging"
)

type stubPrompter struct {
	answers []bool
	err     error
	calls   int
}

func (s *stubPrompter) PromptPermission(ctx context.Context, capability Capability) (bool, error) {
	s.calls++
	if s.err != nil {
		return false, s.err
	}
	if len(s.answers) == 0 {
		return false, nil
	}
	answer := s.answers[0]
	s.answers = s.answers[1:]
	return answer, nil
}

type failingStore struct {
	loadErr error
	saveErr error
}

func (f failingStore) Load(ctx context.Context, capability Capability) (Record, error) {
	return Record{}, f.loadErr
}

func (f failingStore) Save(ctx context.Context, capability Capability, rec Record) error {
	return f.saveErr
}

func TestStatusIsUnknownBeforeAnyRequest(t *testing.T) {
	m := NewManager(NewMemoryStore(), &stubPrompter{}, WithLogger(zap.NewNop()))

	state, err := m.Status(context.Background(), Camera)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state != Unknown {
		t.Fatalf("expected unknown, got %s", state)
	}
}

func TestRequestGrantIsRememberedWithoutPrompting(t *testing.T) {
	prompter := &stubPrompter{answers: []bool{true}}
	m := NewManager(NewMemoryStore(), prompter)

	for i := 0; i < 3; i++ {
		state, err := m.Request(context.Background(), Gallery)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if state != Granted {
			t.Fatalf("expected granted, got %s", state)
		}
	}
	if prompter.calls != 1 {
		t.Fatalf("expected a single prompt, got %d", prompter.calls)
	}
	if state, _ := m.Status(context.Background(), Gallery); state != Granted {
		t.Fatalf("expected status granted, got %s", state)
	}
}

func TestRequestBecomesPermanentAfterMaxPrompts(t *testing.T) {
	prompter := &stubPrompter{answers: []bool{false, false, true}}
	m := NewManager(NewMemoryStore(), prompter, WithMaxPrompts(2))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		state, err := m.Request(ctx, Camera)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if state != Denied {
			t.Fatalf("expected denied, got %s", state)
		}
	}

	state, err := m.Request(ctx, Camera)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state != Denied {
		t.Fatalf("expected permanent denial, got %s", state)
	}
	if prompter.calls != 2 {
		t.Fatalf("expected the third request not to prompt, got %d prompts", prompter.calls)
	}
}

func TestRequestDeniedOnceCanStillBeGranted(t *testing.T) {
	prompter := &stubPrompter{answers: []bool{false, true}}
	m := NewManager(NewMemoryStore(), prompter, WithMaxPrompts(3))

	if state, _ := m.Request(context.Background(), Gallery); state != Denied {
		t.Fatalf("expected denied, got %s", state)
	}
	if state, _ := m.Request(context.Background(), Gallery); state != Granted {
		t.Fatalf("expected granted on second request, got %s", state)
	}
}

func TestCapabilitiesAreIndependent(t *testing.T) {
	prompter := &stubPrompter{answers: []bool{true, false}}
	m := NewManager(NewMemoryStore(), prompter)
	ctx := context.Background()

	if state, _ := m.Request(ctx, Camera); state != Granted {
		t.Fatalf("expected camera granted, got %s", state)
	}
	if state, _ := m.Request(ctx, Gallery); state != Denied {
		t.Fatalf("expected gallery denied, got %s", state)
	}
	if state, _ := m.Status(ctx, Camera); state != Granted {
		t.Fatalf("camera grant should be unaffected, got %s", state)
	}
}

func TestRequestWrapsStoreAndPromptErrors(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name      string
		store     Store
		prompter  *stubPrompter
		operation string
	}{
		{name: "load", store: failingStore{loadErr: boom}, prompter: &stubPrompter{}, operation: "permission.request"},
		{name: "prompt", store: NewMemoryStore(), prompter: &stubPrompter{err: boom}, operation: "permission.prompt"},
		{name: "save", store: failingStore{saveErr: boom}, prompter: &stubPrompter{answers: []bool{true}}, operation: "permission.save"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(tt.store, tt.prompter)
			_, err := m.Request(context.Background(), Camera)
			if !errors.Is(err, boom) {
				t.Fatalf("expected wrapped boom, got %v", err)
			}
			if op := logging.OperationOf(err); op != tt.operation {
				t.Fatalf("expected operation %s, got %s", tt.operation, op)
			}
		})
	}
}

func TestRedisStoreRoundTrip(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisStore(client)
	ctx := context.Background()

	rec, err := store.Load(ctx, Camera)
	if err != nil {
		t.Fatalf("unexpected error on empty load: %v", err)
	}
	if rec != (Record{}) {
		t.Fatalf("expected zero record, got %+v", rec)
	}

	want := Record{State: Denied, Refusals: 1}
	if err := store.Save(ctx, Camera, want); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	if !srv.Exists("permission:camera") {
		t.Fatal("expected key permission:camera to exist")
	}

	got, err := store.Load(ctx, Camera)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestRedisStoreRejectsCorruptRecord(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	if err := srv.Set("permission:gallery", "{not json"); err != nil {
		t.Fatalf("failed to seed redis: %v", err)
	}
	if _, err := NewRedisStore(client).Load(context.Background(), Gallery); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestManagerOverRedisSurvivesNewManager(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	first := NewManager(NewRedisStore(client), &stubPrompter{answers: []bool{true}})
	if state, _ := first.Request(context.Background(), Gallery); state != Granted {
		t.Fatalf("expected granted, got %s", state)
	}

	prompter := &stubPrompter{}
	second := NewManager(NewRedisStore(client), prompter)
	if state, _ := second.Request(context.Background(), Gallery); state != Granted {
		t.Fatalf("expected stored grant, got %s", state)
	}
	if prompter.calls != 0 {
		t.Fatalf("expected no prompt, got %d", prompter.calls)
	}
}

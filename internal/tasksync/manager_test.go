package tasksync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dordunu1/taskboard/internal/domain"
	"github.com/dordunu1/taskboard/internal/feed"
	"github.com/dordunu1/taskboard/internal/repo"
)

type failingSource struct{}

func (failingSource) ListVisible(ctx context.Context, who domain.Identity) ([]repo.TaskRecord, error) {
	return nil, errors.New("db down")
}

func TestManagerOneSynchronizerPerSession(t *testing.T) {
	hub := feed.NewHub(&memSource{})
	m := NewManager(hub)
	defer m.Close()

	s1, err := m.Acquire(context.Background(), aliceSession)
	if err != nil {
		t.Fatal(err)
	}
	s2, err := m.Acquire(context.Background(), aliceSession)
	if err != nil {
		t.Fatal(err)
	}
	if s1 != s2 {
		t.Error("Acquire returned different synchronizers for one session")
	}
	if hub.Len() != 1 || m.Len() != 1 {
		t.Errorf("subs = %d, sessions = %d", hub.Len(), m.Len())
	}

	other := Session{ID: "sess-2", Identity: aliceSession.Identity}
	if _, err := m.Acquire(context.Background(), other); err != nil {
		t.Fatal(err)
	}
	if hub.Len() != 2 || m.Len() != 2 {
		t.Errorf("subs = %d, sessions = %d", hub.Len(), m.Len())
	}
}

func TestManagerRelease(t *testing.T) {
	hub := feed.NewHub(&memSource{})
	m := NewManager(hub)
	s, err := m.Acquire(context.Background(), aliceSession)
	if err != nil {
		t.Fatal(err)
	}
	m.Release(aliceSession.ID)
	m.Release("unknown")

	if s.Active() || hub.Len() != 0 || m.Len() != 0 {
		t.Errorf("after release: active=%v subs=%d sessions=%d", s.Active(), hub.Len(), m.Len())
	}
	if _, ok := m.lookup(aliceSession.ID); ok {
		t.Error("released session still found")
	}
}

func TestManagerAcquireFailureLeavesNothing(t *testing.T) {
	m := NewManager(feed.NewHub(failingSource{}))
	if _, err := m.Acquire(context.Background(), aliceSession); err == nil {
		t.Fatal("expected error")
	}
	if m.Len() != 0 {
		t.Errorf("sessions = %d", m.Len())
	}
}

func TestManagerReap(t *testing.T) {
	hub := feed.NewHub(&memSource{})
	m := NewManager(hub)
	defer m.Close()
	for _, id := range []string{"live", "expired", "unknown"} {
		if _, err := m.Acquire(context.Background(), Session{ID: id, Identity: aliceSession.Identity}); err != nil {
			t.Fatal(err)
		}
	}
	alive := func(ctx context.Context, id string) (bool, error) {
		switch id {
		case "live":
			return true, nil
		case "expired":
			return false, nil
		}
		return false, errors.New("redis timeout")
	}
	if n := m.Reap(context.Background(), alive); n != 1 {
		t.Errorf("released %d, want 1", n)
	}
	if _, ok := m.lookup("expired"); ok {
		t.Error("expired session kept")
	}
	if _, ok := m.lookup("unknown"); !ok {
		t.Error("session with failed check should be kept")
	}
	if hub.Len() != 2 {
		t.Errorf("subs = %d", hub.Len())
	}

	m.Close()
	if hub.Len() != 0 || m.Len() != 0 {
		t.Errorf("after Close: subs=%d sessions=%d", hub.Len(), m.Len())
	}
}

// gatedFeed blocks Subscribe until open is closed.
type gatedFeed struct {
	hub     *feed.Hub
	entered chan struct{}
	open    chan struct{}
}

func (g *gatedFeed) Subscribe(ctx context.Context, who domain.Identity) (*feed.Subscription, error) {
	close(g.entered)
	<-g.open
	return g.hub.Subscribe(ctx, who)
}

func TestManagerReleaseDuringAcquire(t *testing.T) {
	hub := feed.NewHub(&memSource{})
	g := &gatedFeed{hub: hub, entered: make(chan struct{}), open: make(chan struct{})}
	m := NewManager(g)

	type result struct {
		s   *Synchronizer
		err error
	}
	acquired := make(chan result, 1)
	go func() {
		s, err := m.Acquire(context.Background(), aliceSession)
		acquired <- result{s, err}
	}()
	<-g.entered

	released := make(chan struct{})
	go func() {
		m.Release(aliceSession.ID)
		close(released)
	}()
	deadline := time.Now().Add(2 * time.Second)
	for m.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("Release did not drop the session")
		}
		time.Sleep(time.Millisecond)
	}
	close(g.open)

	res := <-acquired
	<-released
	if !errors.Is(res.err, ErrReleased) {
		t.Fatalf("Acquire err = %v, want ErrReleased", res.err)
	}
	if hub.Len() != 0 || m.Len() != 0 {
		t.Errorf("leaked: subs=%d sessions=%d", hub.Len(), m.Len())
	}
}

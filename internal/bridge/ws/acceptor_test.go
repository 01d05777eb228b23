package ws_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/bedrockbridge/internal/bridge/command"
	"github.com/cory-johannsen/bedrockbridge/internal/bridge/events"
	"github.com/cory-johannsen/bedrockbridge/internal/bridge/link"
	"github.com/cory-johannsen/bedrockbridge/internal/bridge/ws"
	"github.com/cory-johannsen/bedrockbridge/internal/config"
	"github.com/cory-johannsen/bedrockbridge/internal/testutil"
)

type harness struct {
	links    *link.Registry
	engine   *command.Engine
	events   *events.Registry
	acceptor *ws.Acceptor
	url      string
}

func newHarness(t *testing.T, register func(r *events.Registry)) *harness {
	t.Helper()
	logger := zaptest.NewLogger(t)
	links := link.NewRegistry()
	engine := command.NewEngine(links, command.NewTable(), time.Second, logger)
	registry := events.NewRegistry(engine, logger)
	if register != nil {
		register(registry)
	}
	acceptor := ws.NewAcceptor(config.WebSocketConfig{
		Path:         "/ws",
		WriteTimeout: time.Second,
		EventQueue:   16,
	}, links, engine, registry, logger)

	mux := http.NewServeMux()
	mux.Handle("/ws", acceptor)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		acceptor.Close()
		srv.Close()
	})

	return &harness{
		links:    links,
		engine:   engine,
		events:   registry,
		acceptor: acceptor,
		url:      "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
	}
}

func (h *harness) waitForLinks(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.links.Len() == n }, 2*time.Second, 5*time.Millisecond)
}

func TestAcceptor_SubscribesRegisteredEvents(t *testing.T) {
	nop := func(context.Context, events.Context) error { return nil }
	h := newHarness(t, func(r *events.Registry) {
		r.Register("PlayerTransform", nop)
		r.Register("PlayerJoin", nop)
		r.Register("PlayerMessage", nop)
	})
	client := testutil.NewGameClient(t, h.url)

	subs := client.WaitForSubscriptions(3, 2*time.Second)
	assert.Equal(t, []string{"PlayerTransform", "PlayerJoin", "PlayerMessage"}, subs)
	h.waitForLinks(t, 1)
}

func TestAcceptor_CommandRoundTrip(t *testing.T) {
	h := newHarness(t, nil)
	client := testutil.NewGameClient(t, h.url)
	client.SetResponder(func(line string) (int, string, bool) {
		return 0, "ran " + line, true
	})
	h.waitForLinks(t, 1)

	resp, err := h.engine.Execute(context.Background(), "time set day", true)
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.Equal(t, "ran time set day", resp.StatusMessage)
	assert.Equal(t, 0, h.engine.Pending())
}

func TestAcceptor_HandlerCanAwaitCommands(t *testing.T) {
	got := make(chan string, 1)
	h := newHarness(t, func(r *events.Registry) {
		r.Register("PlayerJoin", func(ctx context.Context, ec events.Context) error {
			join := ec.(*events.PlayerJoin)
			resp, err := ec.Commander().Execute(ctx, "say welcome "+join.Player, true)
			if err != nil {
				return err
			}
			got <- resp.StatusMessage
			return nil
		})
	})
	client := testutil.NewGameClient(t, h.url)
	client.SetResponder(func(string) (int, string, bool) { return 0, "greeted", true })
	client.WaitForSubscriptions(1, 2*time.Second)

	client.Push("PlayerJoin", map[string]any{"player": map[string]any{"name": "steve"}})

	select {
	case msg := <-got:
		assert.Equal(t, "greeted", msg)
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not receive its reply")
	}
	assert.Equal(t, "say welcome steve", client.WaitForCommand("welcome", time.Second))
}

func TestAcceptor_EventsDispatchedInArrivalOrder(t *testing.T) {
	seen := make(chan string, 10)
	h := newHarness(t, func(r *events.Registry) {
		r.Register("PlayerMessage", func(_ context.Context, ec events.Context) error {
			seen <- ec.(*events.PlayerMessage).Message
			return nil
		})
	})
	client := testutil.NewGameClient(t, h.url)
	client.WaitForSubscriptions(1, 2*time.Second)

	for _, m := range []string{"one", "two", "three"} {
		client.Push("PlayerMessage", map[string]any{"sender": "alex", "message": m})
	}
	var order []string
	for i := 0; i < 3; i++ {
		select {
		case m := <-seen:
			order = append(order, m)
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d events dispatched", i)
		}
	}
	assert.Equal(t, []string{"one", "two", "three"}, order)
}

func TestAcceptor_DisconnectRemovesLink(t *testing.T) {
	h := newHarness(t, nil)
	client := testutil.NewGameClient(t, h.url)
	h.waitForLinks(t, 1)

	client.Close()
	h.waitForLinks(t, 0)

	_, err := h.engine.Execute(context.Background(), "list", true)
	assert.ErrorIs(t, err, command.ErrNoPeer)
}

func TestAcceptor_UnansweredCommandTimesOut(t *testing.T) {
	h := newHarness(t, nil)
	client := testutil.NewGameClient(t, h.url)
	client.SetResponder(func(string) (int, string, bool) { return 0, "", false })
	h.waitForLinks(t, 1)

	_, err := h.engine.Execute(context.Background(), "list", true)
	assert.ErrorIs(t, err, command.ErrCommandTimeout)
	assert.Equal(t, 0, h.engine.Pending())
}

func TestAcceptor_CloseDisconnectsClients(t *testing.T) {
	h := newHarness(t, nil)
	client := testutil.NewGameClient(t, h.url)
	h.waitForLinks(t, 1)

	h.acceptor.Close()

	select {
	case <-client.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("client was not disconnected")
	}
	assert.Equal(t, 0, h.links.Len())
	assert.Equal(t, 0, h.acceptor.Connections())
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/bedrockbridge/internal/bridge/command"
	"github.com/cory-johannsen/bedrockbridge/internal/bridge/protocol"
	"github.com/cory-johannsen/bedrockbridge/internal/game/actions"
	"github.com/cory-johannsen/bedrockbridge/internal/game/search"
	"github.com/cory-johannsen/bedrockbridge/internal/game/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeActions struct {
	err error

	spawnReq    actions.MobRequest
	teleportReq actions.TeleportRequest
	options     []actions.RouletteOption
	item        actions.ItemRequest
	player      string
	username    string
	ctxErr      error
}

func (f *fakeActions) PlayerData(name string) (session.Player, error) {
	if f.err != nil {
		return session.Player{}, f.err
	}
	return session.Player{Name: name, Position: &session.Vec3{X: 1, Y: 2, Z: 3}, Rotation: 45}, nil
}

func (f *fakeActions) SpawnMob(ctx context.Context, req actions.MobRequest, player, username string) (actions.SpawnResult, error) {
	f.spawnReq, f.player, f.username, f.ctxErr = req, player, username, ctx.Err()
	return actions.SpawnResult{MobType: req.MobType, Player: "steve"}, f.err
}

func (f *fakeActions) Teleport(_ context.Context, req actions.TeleportRequest, player, username string) (actions.TeleportResult, error) {
	f.teleportReq, f.player, f.username = req, player, username
	return actions.TeleportResult{Player: "steve", Coordinates: actions.Coordinates{X: 1, Y: 70, Z: 2}}, f.err
}

func (f *fakeActions) RouletteEffect(_ context.Context, player, username string) (actions.RouletteResult, error) {
	f.player, f.username = player, username
	return actions.RouletteResult{Winner: actions.RouletteOption{Name: "Speed"}}, f.err
}

func (f *fakeActions) Roulette(_ context.Context, options []actions.RouletteOption) (actions.RouletteResult, error) {
	f.options = options
	return actions.RouletteResult{Winner: actions.RouletteOption{Name: "TNT"}}, f.err
}

func (f *fakeActions) GiveItem(_ context.Context, req actions.ItemRequest) (*protocol.Response, error) {
	f.item = req
	if f.err != nil {
		return nil, f.err
	}
	return &protocol.Response{RequestID: "r1", StatusCode: 0, StatusMessage: "gave"}, nil
}

func (f *fakeActions) TakeItem(_ context.Context, req actions.ItemRequest) (*protocol.Response, error) {
	f.item = req
	if f.err != nil {
		return nil, f.err
	}
	return &protocol.Response{RequestID: "r2", StatusCode: 0, StatusMessage: "cleared"}, nil
}

func newTestRouter(t *testing.T, acts *fakeActions) http.Handler {
	return NewRouter(Deps{
		Actions: acts,
		Stats:   func() Stats { return Stats{Links: 1, Pending: 2, Timers: 3, Players: 4} },
		Logger:  zaptest.NewLogger(t),
	})
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestRouter(t, &fakeActions{}), http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","bridge":{"links":1,"pending_commands":2,"timers":3,"players":4}}`, rec.Body.String())
}

func TestPlayerData(t *testing.T) {
	rec := do(t, newTestRouter(t, &fakeActions{}), http.MethodGet, "/player_data/steve", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"name":"steve","position":{"x":1,"y":2,"z":3},"rotation":45}`, rec.Body.String())
}

func TestPlayerData_NotFound(t *testing.T) {
	acts := &fakeActions{err: fmt.Errorf("%w: alex", session.ErrPlayerNotFound)}
	rec := do(t, newTestRouter(t, acts), http.MethodGet, "/player_data/alex", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "player not found: alex", decode(t, rec)["detail"])
}

func TestSpawnMob_BindsBodyAndQuery(t *testing.T) {
	acts := &fakeActions{}
	rec := do(t, newTestRouter(t, acts), http.MethodPost,
		"/spawn_mob_at_player?player_name=random&username=bob", `{"mob_type":"creeper","quantity":3,"r":2}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, actions.MobRequest{MobType: "creeper", Quantity: 3, Radius: 2}, acts.spawnReq)
	assert.Equal(t, "random", acts.player)
	assert.Equal(t, "bob", acts.username)
	assert.NoError(t, acts.ctxErr)
	assert.Equal(t, "creeper", decode(t, rec)["mob_type"])
}

func TestSpawnMob_RequiresBody(t *testing.T) {
	rec := do(t, newTestRouter(t, &fakeActions{}), http.MethodPost, "/spawn_mob_at_player", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSpawnMob_MalformedBody(t *testing.T) {
	rec := do(t, newTestRouter(t, &fakeActions{}), http.MethodPost, "/spawn_mob_at_player", `{"mob_type":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTeleport_OptionalBody(t *testing.T) {
	acts := &fakeActions{}
	rec := do(t, newTestRouter(t, acts), http.MethodPost, "/teleport_player?player_name=steve", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Nil(t, acts.teleportReq.X)
	assert.Equal(t, "steve", acts.player)

	rec = do(t, newTestRouter(t, acts), http.MethodPost, "/teleport_player", `{"x":100.5,"z":-20}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, acts.teleportReq.X)
	assert.Equal(t, 100.5, *acts.teleportReq.X)
	assert.Nil(t, acts.teleportReq.Y)

	out := decode(t, rec)
	assert.Equal(t, map[string]any{"x": 1.0, "y": 70.0, "z": 2.0}, out["coordinates"])
}

func TestRouletteEffect(t *testing.T) {
	acts := &fakeActions{}
	rec := do(t, newTestRouter(t, acts), http.MethodPost, "/roulette_effect?username=bob", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "", acts.player)
	assert.Equal(t, "bob", acts.username)
}

func TestRoulette_OptionalOptions(t *testing.T) {
	acts := &fakeActions{}
	rec := do(t, newTestRouter(t, acts), http.MethodPost, "/roulette", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, acts.options)

	rec = do(t, newTestRouter(t, acts), http.MethodPost, "/roulette", `{"options":[{"name":"Cake","command":"give @p cake"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, acts.options, 1)
	assert.Equal(t, "Cake", acts.options[0].Name)
}

func TestItems(t *testing.T) {
	acts := &fakeActions{}
	h := newTestRouter(t, acts)

	rec := do(t, h, http.MethodPost, "/give_item", `{"player_name":"steve","item_id":"diamond","amount":5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"request_id":"r1","status_code":0,"status_message":"gave"}`, rec.Body.String())
	assert.Equal(t, actions.ItemRequest{PlayerName: "steve", ItemID: "diamond", Amount: 5}, acts.item)

	rec = do(t, h, http.MethodPost, "/take_item", `{"player_name":"steve","item_id":"dirt","amount":1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cleared", decode(t, rec)["status_message"])
}

func TestErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{command.ErrNoPeer, http.StatusServiceUnavailable},
		{fmt.Errorf("running %q: %w", "give", command.ErrCommandTimeout), http.StatusGatewayTimeout},
		{search.ErrNoSafeLocation, http.StatusBadRequest},
		{fmt.Errorf("%w: amount", actions.ErrInvalidRequest), http.StatusBadRequest},
		{session.ErrNoPlayers, http.StatusNotFound},
		{session.ErrNoPosition, http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		acts := &fakeActions{err: c.err}
		rec := do(t, newTestRouter(t, acts), http.MethodPost, "/give_item", `{"player_name":"steve","item_id":"diamond","amount":1}`)
		assert.Equal(t, c.want, rec.Code, c.err.Error())
		assert.Equal(t, c.err.Error(), decode(t, rec)["detail"])
	}
}

func TestCORS_AllowsAnyOrigin(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/spawn_mob_at_player", nil)
	req.Header.Set("Origin", "https://overlay.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	newTestRouter(t, &fakeActions{}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestWebSocketMounted(t *testing.T) {
	hit := false
	ws := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hit = true
		w.WriteHeader(http.StatusSwitchingProtocols)
	})
	h := NewRouter(Deps{Actions: &fakeActions{}, WebSocketPath: "/ws", WebSocket: ws, Logger: zaptest.NewLogger(t)})
	do(t, h, http.MethodGet, "/ws", "")
	assert.True(t, hit)
}

package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cory-johannsen/bedrockbridge/internal/bridge/command"
	"github.com/cory-johannsen/bedrockbridge/internal/bridge/protocol"
	"github.com/cory-johannsen/bedrockbridge/internal/game/actions"
	"github.com/cory-johannsen/bedrockbridge/internal/game/search"
	"github.com/cory-johannsen/bedrockbridge/internal/game/session"
)

type handlers struct {
	actions Actions
	stats   func() Stats
	logger  *zap.Logger
}

// target carries the optional query parameters shared by player actions.
type target struct {
	PlayerName string `form:"player_name"`
	Username   string `form:"username"`
}

type rouletteBody struct {
	Options []actions.RouletteOption `json:"options"`
}

type commandReply struct {
	RequestID     string `json:"request_id"`
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
}

func (h *handlers) health(c *gin.Context) {
	body := gin.H{"status": "ok"}
	if h.stats != nil {
		body["bridge"] = h.stats()
	}
	c.JSON(http.StatusOK, body)
}

func (h *handlers) playerData(c *gin.Context) {
	p, err := h.actions.PlayerData(c.Param("player_name"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *handlers) spawnMob(c *gin.Context) {
	var req actions.MobRequest
	tgt, ok := h.bind(c, &req, true)
	if !ok {
		return
	}
	res, err := h.actions.SpawnMob(actionContext(c), req, tgt.PlayerName, tgt.Username)
	h.respond(c, res, err)
}

func (h *handlers) teleport(c *gin.Context) {
	var req actions.TeleportRequest
	tgt, ok := h.bind(c, &req, false)
	if !ok {
		return
	}
	res, err := h.actions.Teleport(actionContext(c), req, tgt.PlayerName, tgt.Username)
	h.respond(c, res, err)
}

func (h *handlers) rouletteEffect(c *gin.Context) {
	tgt, ok := h.bind(c, nil, false)
	if !ok {
		return
	}
	res, err := h.actions.RouletteEffect(actionContext(c), tgt.PlayerName, tgt.Username)
	h.respond(c, res, err)
}

func (h *handlers) roulette(c *gin.Context) {
	var body rouletteBody
	if _, ok := h.bind(c, &body, false); !ok {
		return
	}
	res, err := h.actions.Roulette(actionContext(c), body.Options)
	h.respond(c, res, err)
}

func (h *handlers) giveItem(c *gin.Context) {
	h.item(c, h.actions.GiveItem)
}

func (h *handlers) takeItem(c *gin.Context) {
	h.item(c, h.actions.TakeItem)
}

func (h *handlers) item(c *gin.Context, run func(context.Context, actions.ItemRequest) (*protocol.Response, error)) {
	var req actions.ItemRequest
	if _, ok := h.bind(c, &req, true); !ok {
		return
	}
	resp, err := run(actionContext(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, commandReply{
		RequestID:     resp.RequestID,
		StatusCode:    resp.StatusCode,
		StatusMessage: resp.StatusMessage,
	})
}

// bind decodes the query parameters and, when body is non-nil, the JSON body.
// An absent body is accepted unless required is set.
func (h *handlers) bind(c *gin.Context, body any, required bool) (target, bool) {
	var tgt target
	if err := c.ShouldBindQuery(&tgt); err != nil {
		h.badRequest(c, err)
		return target{}, false
	}
	if body == nil {
		return tgt, true
	}
	if err := c.ShouldBindJSON(body); err != nil {
		if errors.Is(err, io.EOF) && !required {
			return tgt, true
		}
		h.badRequest(c, err)
		return target{}, false
	}
	return tgt, true
}

func (h *handlers) respond(c *gin.Context, res any, err error) {
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) badRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
}

func (h *handlers) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(statusFor(err), gin.H{"detail": err.Error()})
}

// statusFor maps an action error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, command.ErrNoPeer):
		return http.StatusServiceUnavailable
	case errors.Is(err, command.ErrCommandTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, search.ErrNoSafeLocation),
		errors.Is(err, actions.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNoPlayers),
		errors.Is(err, session.ErrPlayerNotFound),
		errors.Is(err, session.ErrNoPosition):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// actionContext keeps the request's values but not its cancellation; an
// action runs to completion once accepted.
func actionContext(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

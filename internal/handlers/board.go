package handlers

import (
	"context"
	"io"
	"net/http"
	"time"

	dom "github.com/dordunu1/taskboard/internal/domain"

	"github.com/gin-gonic/gin"
)

const (
	loadWait    = 5 * time.Second
	streamPing  = 25 * time.Second
	boardEvent  = "board"
	pingEvent   = "ping"
	closedEvent = "closed"
)

type BoardHandler struct {
	boards Boards
}

func NewBoardHandler(boards Boards) *BoardHandler {
	return &BoardHandler{boards: boards}
}

// Get godoc
// @Summary      Board columns
// @Description  Every task visible to the caller grouped by status, in update order.
// @Tags         board
// @Produce      json
// @Security     CookieAuth
// @Success      200  {object}  dto.BoardResponse
// @Failure      500  {object}  map[string]string
// @Router       /board [get]
func (h *BoardHandler) Get(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	s, err := h.boards.Acquire(c.Request.Context(), sess)
	if err != nil {
		writeError(c, err)
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), loadWait)
	defer cancel()
	loaded := s.WaitLoaded(ctx) == nil
	c.JSON(http.StatusOK, boardToResponse(s.Tasks(), loaded))
}

// Stream godoc
// @Summary      Live board
// @Description  Server-sent events. A "board" event carries the full grouped board after every change.
// @Tags         board
// @Produce      text/event-stream
// @Security     CookieAuth
// @Success      200  {object}  dto.BoardResponse
// @Router       /board/stream [get]
func (h *BoardHandler) Stream(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	s, err := h.boards.Acquire(ctx, sess)
	if err != nil {
		writeError(c, err)
		return
	}

	// One slot, newest wins: every snapshot is the whole list.
	updates := make(chan []dom.Task, 1)
	stopped := make(chan struct{})
	cancel := s.Observe(func(tasks []dom.Task) {
		if tasks == nil {
			select {
			case <-stopped:
			default:
				close(stopped)
			}
			return
		}
		select {
		case <-updates:
		default:
		}
		updates <- tasks
	})
	defer cancel()

	if err := s.WaitLoaded(ctx); err != nil {
		return
	}
	select {
	case <-updates:
	default:
	}
	pending := s.Tasks()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	ping := time.NewTicker(streamPing)
	defer ping.Stop()

	c.Stream(func(w io.Writer) bool {
		if pending != nil {
			c.SSEvent(boardEvent, boardToResponse(pending, true))
			pending = nil
			return true
		}
		select {
		case tasks := <-updates:
			c.SSEvent(boardEvent, boardToResponse(tasks, true))
			return true
		case <-stopped:
			c.SSEvent(closedEvent, gin.H{"reason": "signed out"})
			return false
		case <-ping.C:
			c.SSEvent(pingEvent, time.Now().UTC().Unix())
			return true
		case <-ctx.Done():
			return false
		}
	})
}

package control

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"SwapSentinel/internal/agent"
)

type handlers struct {
	agent           Controller
	withdrawTimeout time.Duration
}

func (h *handlers) start(c *gin.Context) {
	c.JSON(http.StatusOK, h.agent.Start())
}

func (h *handlers) stop(c *gin.Context) {
	c.JSON(http.StatusOK, h.agent.Stop())
}

func (h *handlers) status(c *gin.Context) {
	c.JSON(http.StatusOK, h.agent.Status())
}

// withdraw enqueues a forced dispatch and waits for it.
func (h *handlers) withdraw(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.withdrawTimeout)
	defer cancel()

	res, err := h.agent.Submit(ctx, agent.JobWithdraw)
	switch {
	case errors.Is(err, agent.ErrQueueFull):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusAccepted, gin.H{"status": "queued", "error": "withdraw still in progress"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if errors.Is(res.Err, agent.ErrNothingToWithdraw) {
		c.JSON(http.StatusOK, gin.H{"status": "nothing pending"})
		return
	}
	body := gin.H{"dispatch": res.Dispatch}
	if res.Err != nil {
		body["error"] = res.Err.Error()
	}
	status := http.StatusOK
	if res.Dispatch == nil {
		status = http.StatusInternalServerError
	}
	c.JSON(status, body)
}

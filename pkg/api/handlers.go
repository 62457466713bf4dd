package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shiftgate/shiftgate/pkg/controller"
	"github.com/shiftgate/shiftgate/pkg/probe"
	"github.com/shiftgate/shiftgate/pkg/record"
	"github.com/shiftgate/shiftgate/pkg/strategy"
	"github.com/shiftgate/shiftgate/pkg/types"
)

// StartRolloutRequest is the POST /v1/rollouts body
type StartRolloutRequest struct {
	Service           string `json:"service" binding:"required"`
	Environment       string `json:"environment"`
	CandidateRevision string `json:"candidateRevision" binding:"required"`
	Strategy          string `json:"strategy" binding:"required"`

	InitialPercent         int `json:"initialPercent"`
	IncrementPercent       int `json:"incrementPercent"`
	InterStageDelaySeconds int `json:"interStageDelaySeconds"`

	// Probe selects the checker kind ("http" or "tcp"); empty means http
	Probe string `json:"probe,omitempty"`

	Thresholds *types.Thresholds `json:"thresholds"`
}

// RolloutResponse wraps an attempt record with its live/settled state
type RolloutResponse struct {
	Attempt *types.DeploymentAttempt `json:"attempt"`
	Running bool                     `json:"running"`
}

func (s *Server) startRollout(c *gin.Context) {
	var req StartRolloutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	opts := strategy.Options{
		InitialPercent:   req.InitialPercent,
		IncrementPercent: req.IncrementPercent,
		InterStageDelay:  time.Duration(req.InterStageDelaySeconds) * time.Second,
		Probe:            probe.Kind(req.Probe),
	}
	if req.Thresholds != nil {
		opts.Thresholds = *req.Thresholds
	}

	id, err := s.engine.Start(controller.StartRequest{
		Service:           req.Service,
		Environment:       req.Environment,
		CandidateRevision: req.CandidateRevision,
		Strategy:          req.Strategy,
		Options:           opts,
	})
	if err != nil {
		switch {
		case errors.Is(err, strategy.ErrUnknownStrategy),
			errors.Is(err, strategy.ErrUnknownProbe),
			errors.Is(err, strategy.ErrInvalidThresholds),
			errors.Is(err, controller.ErrInvalidRequest):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, controller.ErrServiceBusy):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"id": id})
}

func (s *Server) getRollout(c *gin.Context) {
	attempt, running, err := s.engine.Status(c.Param("id"))
	if err != nil {
		if errors.Is(err, record.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, RolloutResponse{Attempt: attempt, Running: running})
}

func (s *Server) listRollouts(c *gin.Context) {
	attempts, err := s.engine.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"attempts": attempts})
}

func (s *Server) abortRollout(c *gin.Context) {
	id := c.Param("id")
	if err := s.engine.Abort(id); err != nil {
		if !errors.Is(err, controller.ErrAttemptNotRunning) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		// Distinguish "finished already" from "never existed"
		if attempt, _, loadErr := s.engine.Status(id); loadErr == nil {
			c.JSON(http.StatusConflict, gin.H{
				"error":  "attempt already terminal",
				"status": attempt.Status,
			})
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"id": id, "aborting": true})
}

// streamEvents pushes rollout lifecycle events as server-sent events
func (s *Server) streamEvents(c *gin.Context) {
	if s.broker == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event streaming disabled"})
		return
	}

	sub := s.broker.Subscribe()
	defer s.broker.Unsubscribe(sub)

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-sub:
			if !ok {
				return false
			}
			c.SSEvent(string(event.Type), event)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

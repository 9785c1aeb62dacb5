package httpserver

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pairloop/pairloop/internal/pipeline"
	"github.com/pairloop/pairloop/internal/tasks"
)

// handleRoomWebhook receives room and composition status callbacks. The
// platform retries on non-2xx, so a handler error maps to 500 and a
// rejected signature to 403.
func (s *Server) handleRoomWebhook(c *gin.Context) {
	if !s.validateWebhookSignature(c, s.cfg.RoomWebhookURL()) {
		slog.Warn("room webhook signature rejected", "remote", c.ClientIP())
		c.AbortWithStatus(http.StatusForbidden)
		return
	}

	form := c.Request.PostForm
	event := pipeline.RoomEvent{
		Type:           form.Get("StatusCallbackEvent"),
		RoomName:       form.Get("RoomName"),
		RoomSID:        form.Get("RoomSid"),
		CompositionSID: form.Get("CompositionSid"),
	}
	if v := form.Get("RoomDuration"); v != "" {
		event.DurationSeconds, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := form.Get("Timestamp"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			event.OccurredAt = t
		}
	}

	if err := s.manager.HandleRoomEvent(c.Request.Context(), event); err != nil {
		slog.Error("room webhook handling failed", "error", err, "event", event.Type, "room_name", event.RoomName)
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleTranscriptionWebhook receives the managed transcription provider's
// completion callback.
func (s *Server) handleTranscriptionWebhook(c *gin.Context) {
	if !s.validateWebhookSignature(c, s.cfg.TranscriptionWebhookURL()) {
		slog.Warn("transcription webhook signature rejected", "remote", c.ClientIP())
		c.AbortWithStatus(http.StatusForbidden)
		return
	}

	form := c.Request.PostForm
	jobID := form.Get("transcript_sid")
	if jobID == "" {
		jobID = form.Get("TranscriptSid")
	}
	if jobID == "" {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}
	eventStatus := form.Get("status")
	if eventStatus == "" {
		eventStatus = form.Get("Status")
	}

	var err error
	switch eventStatus {
	case "completed":
		err = s.manager.HandleTranscriptionCallback(c.Request.Context(), jobID)
	case "failed":
		err = s.manager.HandleTranscriptionFailed(c.Request.Context(), jobID, form.Get("error_message"))
	default:
		slog.Debug("ignoring transcription event", "status", eventStatus, "job_id", jobID)
	}
	if err != nil {
		slog.Error("transcription webhook handling failed", "error", err, "job_id", jobID)
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleOperationCheck is the queue's delivery endpoint for the delayed
// operation polls. A handler error maps to 500 so the queue redelivers.
func (s *Server) handleOperationCheck(c *gin.Context) {
	var payload tasks.OperationCheckPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}
	if payload.ConnectionID == "" || payload.OperationName == "" {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	if err := s.manager.HandleOperationCheck(c.Request.Context(), payload); err != nil {
		slog.Error("operation check failed", "error", err, "connection_id", payload.ConnectionID, "attempt", payload.Attempt)
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleRunSchedules(c *gin.Context) {
	ran, err := s.engine.RunDueSchedules(c.Request.Context())
	if err != nil {
		slog.Error("manual schedule run failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ran": ran})
}

type roomRequest struct {
	RoomName string `json:"roomName" binding:"required"`
}

func (s *Server) handleEnsureRoom(c *gin.Context) {
	var req roomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	room, err := s.video.EnsureRoom(c.Request.Context(), req.RoomName)
	if err != nil {
		slog.Error("ensure room failed", "error", err, "room_name", req.RoomName)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sid":        room.SID,
		"uniqueName": room.UniqueName,
		"status":     room.Status,
		"url":        room.URL,
	})
}

func (s *Server) handleCloseRoom(c *gin.Context) {
	var req roomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.video.CloseRoom(c.Request.Context(), req.RoomName); err != nil {
		slog.Error("close room failed", "error", err, "room_name", req.RoomName)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

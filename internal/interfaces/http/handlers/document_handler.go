package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/opinion-miner/internal/application/mining"
	"github.com/turtacn/opinion-miner/pkg/errors"
)

// DocumentService queues or mines documents kept in object storage.
type DocumentService interface {
	Submit(ctx context.Context, key string) (string, error)
	Process(ctx context.Context, key string) (*mining.Report, error)
}

// DocumentHandler exposes the stored-document workflow.
type DocumentHandler struct {
	svc DocumentService
}

func NewDocumentHandler(svc DocumentService) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

// DocumentRequest names a stored document.
type DocumentRequest struct {
	Key string `json:"key" binding:"required"`
}

// SubmitResponse acknowledges a queued document.
type SubmitResponse struct {
	Key     string `json:"key"`
	EventID string `json:"event_id"`
}

// ReportResponse is the outcome of a synchronous run.
type ReportResponse struct {
	Key          string   `json:"key"`
	AnnotatedKey string   `json:"annotated_key,omitempty"`
	Outcome      string   `json:"outcome"`
	RunID        string   `json:"run_id,omitempty"`
	OpinionIDs   []string `json:"opinion_ids"`
	Complete     int      `json:"complete"`
	DurationMs   int64    `json:"duration_ms"`
}

// Submit handles POST /api/v1/documents/submit.
func (h *DocumentHandler) Submit(c *gin.Context) {
	var req DocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeAppError(c, errors.Wrap(err, errors.ErrCodeValidation, "document key is required"))
		return
	}
	eventID, err := h.svc.Submit(c.Request.Context(), req.Key)
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, SubmitResponse{Key: req.Key, EventID: eventID})
}

// Process handles POST /api/v1/documents/process.
func (h *DocumentHandler) Process(c *gin.Context) {
	var req DocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeAppError(c, errors.Wrap(err, errors.ErrCodeValidation, "document key is required"))
		return
	}
	rep, err := h.svc.Process(c.Request.Context(), req.Key)
	if err != nil {
		writeAppError(c, err)
		return
	}
	ids := rep.OpinionIDs
	if ids == nil {
		ids = []string{}
	}
	c.JSON(http.StatusOK, ReportResponse{
		Key:          rep.Key,
		AnnotatedKey: rep.AnnotatedKey,
		Outcome:      rep.Outcome,
		RunID:        rep.RunID,
		OpinionIDs:   ids,
		Complete:     rep.Complete,
		DurationMs:   rep.Duration.Milliseconds(),
	})
}

package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/opinion-miner/internal/domain/annotation"
	"github.com/turtacn/opinion-miner/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/opinion-miner/internal/intelligence/opinion"
)

// HeaderRunID reports the processing run id of a mined document.
const HeaderRunID = "X-Run-ID"

// DocumentMiner attaches opinions to a document in place.
type DocumentMiner interface {
	Mine(ctx context.Context, doc *annotation.Document) (*opinion.Result, error)
}

// OpinionHandler mines documents posted in the request body.
type OpinionHandler struct {
	miner   DocumentMiner
	maxBody int64
	logger  logging.Logger
}

// NewOpinionHandler creates an OpinionHandler.  maxBody <= 0 disables the
// body limit.
func NewOpinionHandler(miner DocumentMiner, maxBody int64, logger logging.Logger) *OpinionHandler {
	return &OpinionHandler{miner: miner, maxBody: maxBody, logger: logging.OrNop(logger)}
}

// OpinionSummary is returned instead of the document when ?summary=true.
type OpinionSummary struct {
	RunID       string            `json:"run_id"`
	Expressions int               `json:"expressions"`
	Targets     int               `json:"targets"`
	Holders     int               `json:"holders"`
	Complete    int               `json:"complete"`
	OpinionIDs  []string          `json:"opinion_ids"`
	Polarities  map[string]string `json:"polarities,omitempty"`
}

// Annotate handles POST /api/v1/opinions.  The body is an annotation
// document; the response is the same document with its opinions layer
// filled in.
func (h *OpinionHandler) Annotate(c *gin.Context) {
	body := c.Request.Body
	if h.maxBody > 0 {
		body = http.MaxBytesReader(c.Writer, body, h.maxBody)
	}
	doc, err := annotation.Decode(body)
	if err != nil {
		writeAppError(c, err)
		return
	}

	res, err := h.miner.Mine(c.Request.Context(), doc)
	if err != nil {
		h.logger.Error("mining failed", logging.String("document", doc.Filename), logging.Err(err))
		writeAppError(c, err)
		return
	}
	c.Header(HeaderRunID, res.RunID)

	if c.Query("summary") == "true" {
		ids := res.OpinionIDs
		if ids == nil {
			ids = []string{}
		}
		c.JSON(http.StatusOK, OpinionSummary{
			RunID:       res.RunID,
			Expressions: len(res.Expressions),
			Targets:     len(res.Targets),
			Holders:     len(res.Holders),
			Complete:    res.Complete(),
			OpinionIDs:  ids,
			Polarities:  res.Polarities,
		})
		return
	}

	data, err := annotation.EncodeBytes(doc)
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", data)
}

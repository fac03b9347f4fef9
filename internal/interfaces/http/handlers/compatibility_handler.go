package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/Synastry-Intelligence/internal/application/compatibility"
	"github.com/turtacn/Synastry-Intelligence/internal/domain/chart"
	"github.com/turtacn/Synastry-Intelligence/internal/domain/synastry"
	"github.com/turtacn/Synastry-Intelligence/pkg/errors"
)

// CompatibilityRequest either carries both charts inline or names two
// registered charts.  Inline charts take precedence and are not stored.
type CompatibilityRequest struct {
	ChartA   *chart.Chart `json:"chartA,omitempty"`
	ChartB   *chart.Chart `json:"chartB,omitempty"`
	ChartAID string       `json:"chartAId,omitempty"`
	ChartBID string       `json:"chartBId,omitempty"`
}

type CompatibilityHandler struct {
	svc compatibility.Service
}

func NewCompatibilityHandler(svc compatibility.Service) *CompatibilityHandler {
	return &CompatibilityHandler{svc: svc}
}

func (h *CompatibilityHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/compatibility", h.Score)
	rg.GET("/compatibility/:chartA/:chartB", h.Get)
}

// Score handles POST /compatibility.
func (h *CompatibilityHandler) Score(c *gin.Context) {
	var req CompatibilityRequest
	if !bindJSON(c, &req) {
		return
	}

	var (
		res *synastry.Result
		err error
	)
	switch {
	case req.ChartA != nil || req.ChartB != nil:
		res, err = h.svc.Score(c.Request.Context(), req.ChartA, req.ChartB)
	case req.ChartAID != "" && req.ChartBID != "":
		res, err = h.svc.ScorePair(c.Request.Context(), req.ChartAID, req.ChartBID)
	default:
		err = errors.New(errors.ErrCodeChartsRequired, "provide chartA and chartB, or chartAId and chartBId")
	}
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, res)
}

// Get handles GET /compatibility/:chartA/:chartB and returns the stored
// result without recomputing it.
func (h *CompatibilityHandler) Get(c *gin.Context) {
	res, err := h.svc.GetResult(c.Request.Context(), c.Param("chartA"), c.Param("chartB"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, res)
}

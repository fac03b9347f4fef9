package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/Synastry-Intelligence/internal/application/compatibility"
	"github.com/turtacn/Synastry-Intelligence/internal/domain/chart"
)

// ChartHandler registers and returns natal charts.
type ChartHandler struct {
	svc compatibility.Service
}

func NewChartHandler(svc compatibility.Service) *ChartHandler {
	return &ChartHandler{svc: svc}
}

func (h *ChartHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/charts", h.Register)
	rg.GET("/charts/:id", h.Get)
}

// Register handles POST /charts.  Registering an existing ID replaces the
// chart and invalidates the cached results it takes part in.
func (h *ChartHandler) Register(c *gin.Context) {
	var in chart.Chart
	if !bindJSON(c, &in) {
		return
	}
	if err := h.svc.RegisterChart(c.Request.Context(), &in); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, &in)
}

// Get handles GET /charts/:id.
func (h *ChartHandler) Get(c *gin.Context) {
	ch, err := h.svc.GetChart(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, ch)
}

package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/Synastry-Intelligence/internal/application/activation"
	"github.com/turtacn/Synastry-Intelligence/internal/domain/transit"
	"github.com/turtacn/Synastry-Intelligence/pkg/errors"
)

const dateLayout = "2006-01-02"

// ActivationRequest names a registered pair and a UTC calendar day.  When
// transitsA or transitsB is present the transits are used as given instead
// of the stored daily snapshot.
type ActivationRequest struct {
	ChartAID  string           `json:"chartAId"`
	ChartBID  string           `json:"chartBId"`
	Date      string           `json:"date,omitempty"`
	TransitsA []transit.Aspect `json:"transitsA,omitempty"`
	TransitsB []transit.Aspect `json:"transitsB,omitempty"`
}

// BatchActivationRequest evaluates many pairs in one call.
type BatchActivationRequest struct {
	Requests []ActivationRequest `json:"requests"`
}

// RefreshResult reports a partner refresh.
type RefreshResult struct {
	ChartID   string `json:"chartId"`
	Date      string `json:"date"`
	Evaluated int    `json:"evaluated"`
}

type ActivationHandler struct {
	svc activation.Service
	now func() time.Time
}

func NewActivationHandler(svc activation.Service) *ActivationHandler {
	return &ActivationHandler{svc: svc, now: time.Now}
}

func (h *ActivationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/activations", h.Evaluate)
	rg.POST("/activations/batch", h.EvaluateBatch)
	rg.POST("/charts/:id/activations/refresh", h.RefreshPartners)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, errors.Newf(errors.ErrCodeBadRequest, "date %q is not YYYY-MM-DD", s)
	}
	return d, nil
}

func (r ActivationRequest) toRequest() (activation.Request, error) {
	day, err := parseDate(r.Date)
	if err != nil {
		return activation.Request{}, err
	}
	return activation.Request{
		ChartAID:  r.ChartAID,
		ChartBID:  r.ChartBID,
		Date:      day,
		TransitsA: r.TransitsA,
		TransitsB: r.TransitsB,
	}, nil
}

// Evaluate handles POST /activations.
func (h *ActivationHandler) Evaluate(c *gin.Context) {
	var in ActivationRequest
	if !bindJSON(c, &in) {
		return
	}
	req, err := in.toRequest()
	if err != nil {
		respondError(c, err)
		return
	}
	out, err := h.svc.Evaluate(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, out)
}

// EvaluateBatch handles POST /activations/batch.  Items that fail are
// reported by index in the body; the status is 200 unless the batch itself
// is rejected.
func (h *ActivationHandler) EvaluateBatch(c *gin.Context) {
	var in BatchActivationRequest
	if !bindJSON(c, &in) {
		return
	}
	reqs := make([]activation.Request, 0, len(in.Requests))
	for i, r := range in.Requests {
		req, err := r.toRequest()
		if err != nil {
			respondError(c, errors.Wrapf(err, errors.ErrCodeBadRequest, "request %d", i))
			return
		}
		reqs = append(reqs, req)
	}
	out, err := h.svc.EvaluateBatch(c.Request.Context(), reqs)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, out)
}

// RefreshPartners handles POST /charts/:id/activations/refresh?date=YYYY-MM-DD
// and recomputes the day's activation against every stored partner.
func (h *ActivationHandler) RefreshPartners(c *gin.Context) {
	day, err := parseDate(c.Query("date"))
	if err != nil {
		respondError(c, err)
		return
	}
	if day.IsZero() {
		day = activation.Day(h.now())
	}
	n, err := h.svc.ActivatePartners(c.Request.Context(), c.Param("id"), day)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, RefreshResult{ChartID: c.Param("id"), Date: day.Format(dateLayout), Evaluated: n})
}

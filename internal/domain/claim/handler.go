package claim

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/feetrack/feetrack/internal/platform/auth"
	"github.com/feetrack/feetrack/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/claims", auth.RequireRole("admin", "billing"))
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/stats", h.Stats)
	g.GET("/report/doctor/:id", h.ReportByDoctor)
	g.GET("/:id", h.Get)
	g.GET("/:id/history", h.History)
	g.POST("/:id/submit", h.Submit)
	g.POST("/:id/pay", h.MarkPaid)
	g.POST("/:id/cancel", h.Cancel)
	g.PUT("/:id/rejection", h.RegisterRejection)
	g.POST("/:id/appeal", h.FileAppeal)
	g.PUT("/:id/appeal/resolution", h.ResolveAppeal)

	admin := api.Group("/claims", auth.RequireRole("admin"))
	admin.POST("/reconcile-gross", h.ReconcileGross)
}

// httpError maps the package's typed errors onto HTTP statuses.
func httpError(err error) error {
	var ce *Error
	if errors.As(err, &ce) {
		switch ce.Kind {
		case KindNotFound:
			return echo.NewHTTPError(http.StatusNotFound, ce.Reason)
		case KindAlreadyExists, KindConflict:
			return echo.NewHTTPError(http.StatusConflict, ce.Reason)
		case KindInvalidTransition, KindInvalidAmount, KindAppealAlreadyOpen,
			KindNoOpenAppeal, KindInvalidRecoveredValue:
			return echo.NewHTTPError(http.StatusBadRequest, ce.Reason)
		}
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func actor(c echo.Context) string {
	return auth.UserIDFromContext(c.Request().Context())
}

func (h *Handler) Create(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if in.ConsultationID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "consultation_id is required")
	}
	cl, err := h.svc.Create(c.Request().Context(), in, actor(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, cl)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	cl, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, cl)
}

func parseFilter(c echo.Context) (ListFilter, error) {
	var f ListFilter
	f.Status = c.QueryParam("status")
	if v := c.QueryParam("plan_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, "invalid plan_id")
		}
		f.PlanID = &id
	}
	if v := c.QueryParam("doctor_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
		}
		f.DoctorID = &id
	}
	if v := c.QueryParam("has_rejection"); v != "" {
		b := v == "true"
		f.HasRejection = &b
	}
	if v := c.QueryParam("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, "invalid from date")
		}
		f.From = &t
	}
	if v := c.QueryParam("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, "invalid to date")
		}
		f.To = &t
	}
	return f, nil
}

func (h *Handler) List(c echo.Context) error {
	f, err := parseFilter(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Stats(c echo.Context) error {
	f, err := parseFilter(c)
	if err != nil {
		return err
	}
	stats, err := h.svc.Stats(c.Request().Context(), f)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *Handler) ReportByDoctor(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	report, err := h.svc.ReportByDoctor(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"doctor_id": id,
		"plans":     report,
	})
}

func (h *Handler) History(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.History(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Submit(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	cl, err := h.svc.Submit(c.Request().Context(), id, actor(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, cl)
}

type paymentRequest struct {
	PaidAt *time.Time `json:"paid_at"`
}

func (h *Handler) MarkPaid(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req paymentRequest
	_ = c.Bind(&req)
	cl, err := h.svc.MarkPaid(c.Request().Context(), id, req.PaidAt, actor(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, cl)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req cancelRequest
	_ = c.Bind(&req)
	cl, err := h.svc.Cancel(c.Request().Context(), id, req.Reason, actor(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, cl)
}

type rejectionRequest struct {
	Value  decimal.Decimal `json:"value"`
	Reason string          `json:"reason"`
}

func (h *Handler) RegisterRejection(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req rejectionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cl, err := h.svc.RegisterRejection(c.Request().Context(), id, req.Value, req.Reason, actor(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, cl)
}

type appealRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) FileAppeal(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req appealRequest
	_ = c.Bind(&req)
	cl, err := h.svc.FileAppeal(c.Request().Context(), id, req.Reason, actor(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, cl)
}

type resolutionRequest struct {
	Outcome        string          `json:"outcome"`
	RecoveredValue decimal.Decimal `json:"recovered_value"`
}

func (h *Handler) ResolveAppeal(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req resolutionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cl, err := h.svc.ResolveAppeal(c.Request().Context(), id, req.Outcome, req.RecoveredValue, actor(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, cl)
}

func (h *Handler) ReconcileGross(c echo.Context) error {
	corrections, err := h.svc.CorrectGrossValues(c.Request().Context(), actor(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"corrected":   len(corrections),
		"corrections": corrections,
	})
}

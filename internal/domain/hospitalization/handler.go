package hospitalization

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hssvet/clinic-api/internal/platform/auth"
	"github.com/hssvet/clinic-api/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole(auth.RoleVet, auth.RoleAssistant))
	readGroup.GET("/stays", h.List)
	readGroup.GET("/stays/:id", h.Get)

	writeGroup := api.Group("", auth.RequireRole(auth.RoleVet, auth.RoleAssistant))
	writeGroup.POST("/stays", h.Admit)
	writeGroup.POST("/stays/:id/care-logs", h.AddCareLog)

	vetGroup := api.Group("", auth.RequireRole(auth.RoleVet))
	vetGroup.POST("/stays/:id/discharge", h.Discharge)
	vetGroup.POST("/stays/:id/invoice-retry", h.RetryInvoice)
	vetGroup.POST("/stays/:id/cancel", h.Cancel)
}

func httpError(err error) error {
	var ve *ValidationError
	var pe *PreconditionError
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "stay not found")
	case errors.Is(err, ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, "stay was modified concurrently, reload and retry")
	case errors.As(err, &ve):
		return echo.NewHTTPError(http.StatusBadRequest, ve.Error())
	case errors.As(err, &pe):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, pe.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

type stayResponse struct {
	Stay         *Stay  `json:"stay"`
	HandoffError string `json:"handoff_error,omitempty"`
}

func stayID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) Admit(c echo.Context) error {
	var in AdmitInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	st, err := h.svc.Admit(c.Request().Context(), in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, stayResponse{Stay: st})
}

func (h *Handler) Get(c echo.Context) error {
	id, err := stayID(c)
	if err != nil {
		return err
	}
	st, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, stayResponse{Stay: st})
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	ctx := c.Request().Context()

	if animal := c.QueryParam("animal_id"); animal != "" {
		animalID, err := uuid.Parse(animal)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid animal_id")
		}
		items, total, err := h.svc.ListByAnimal(ctx, animalID, pg.Limit, pg.Offset)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
	}

	items, total, err := h.svc.List(ctx, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

type careLogRequest struct {
	Note       string  `json:"note"`
	RecordedBy *string `json:"recorded_by,omitempty"`
}

func (h *Handler) AddCareLog(c echo.Context) error {
	id, err := stayID(c)
	if err != nil {
		return err
	}
	var req careLogRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	st, err := h.svc.AddCareLog(c.Request().Context(), id, req.Note, req.RecordedBy)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, stayResponse{Stay: st})
}

type dischargeRequest struct {
	VersionID int    `json:"version_id"`
	Notes     string `json:"notes"`
}

func (h *Handler) Discharge(c echo.Context) error {
	id, err := stayID(c)
	if err != nil {
		return err
	}
	var req dischargeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	st, err := h.svc.Discharge(c.Request().Context(), id, req.VersionID, req.Notes)
	var he *HandoffError
	if errors.As(err, &he) {
		return c.JSON(http.StatusOK, stayResponse{Stay: st, HandoffError: he.Error()})
	}
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, stayResponse{Stay: st})
}

func (h *Handler) RetryInvoice(c echo.Context) error {
	id, err := stayID(c)
	if err != nil {
		return err
	}
	invoiceID, err := h.svc.RetryInvoice(c.Request().Context(), id)
	if err != nil {
		var he *HandoffError
		if errors.As(err, &he) {
			return echo.NewHTTPError(http.StatusBadGateway, he.Error())
		}
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"invoice_id": invoiceID.String()})
}

type cancelRequest struct {
	VersionID int    `json:"version_id"`
	Reason    string `json:"reason"`
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := stayID(c)
	if err != nil {
		return err
	}
	var req cancelRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	st, err := h.svc.Cancel(c.Request().Context(), id, req.VersionID, req.Reason)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, stayResponse{Stay: st})
}

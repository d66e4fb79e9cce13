package surgery

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
	readGroup.GET("/surgical-cases", h.List)
	readGroup.GET("/surgical-cases/:id", h.Get)

	writeGroup := api.Group("", auth.RequireRole(auth.RoleVet))
	writeGroup.POST("/surgical-cases", h.Create)
	writeGroup.PUT("/surgical-cases/:id/checklist", h.SaveChecklist)
	writeGroup.POST("/surgical-cases/:id/consents", h.SignConsent)
	writeGroup.POST("/surgical-cases/:id/start", h.Start)
	writeGroup.POST("/surgical-cases/:id/complete", h.Complete)
	writeGroup.POST("/surgical-cases/:id/invoice-retry", h.RetryInvoice)
	writeGroup.POST("/surgical-cases/:id/medications", h.AddMedication)
	writeGroup.POST("/surgical-cases/:id/cancel", h.Cancel)
}

// httpError maps domain errors onto HTTP status codes. Handoff failures
// are not mapped here: the transition succeeded, so the handlers return
// the case with a retry hint instead of an error status.
func httpError(err error) error {
	var ve *ValidationError
	var pe *PreconditionError
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "surgical case not found")
	case errors.Is(err, ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, "case was modified concurrently, reload and retry")
	case errors.As(err, &ve):
		return echo.NewHTTPError(http.StatusBadRequest, ve.Error())
	case errors.As(err, &pe):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, pe.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

// caseResponse wraps a case with an optional handoff failure notice.
type caseResponse struct {
	Case         *SurgicalCase `json:"case"`
	HandoffError string        `json:"handoff_error,omitempty"`
}

func respondCase(c echo.Context, code int, sc *SurgicalCase, err error) error {
	var he *HandoffError
	if errors.As(err, &he) {
		return c.JSON(code, caseResponse{Case: sc, HandoffError: he.Error()})
	}
	if err != nil {
		return httpError(err)
	}
	return c.JSON(code, caseResponse{Case: sc})
}

func caseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) Create(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sc, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, caseResponse{Case: sc})
}

func (h *Handler) Get(c echo.Context) error {
	id, err := caseID(c)
	if err != nil {
		return err
	}
	sc, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, caseResponse{Case: sc})
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

type checklistRequest struct {
	VersionID int       `json:"version_id"`
	Checklist Checklist `json:"checklist"`
}

func (h *Handler) SaveChecklist(c echo.Context) error {
	id, err := caseID(c)
	if err != nil {
		return err
	}
	var req checklistRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sc, err := h.svc.SaveChecklist(c.Request().Context(), id, req.VersionID, req.Checklist)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, caseResponse{Case: sc})
}

type signConsentRequest struct {
	VersionID int `json:"version_id"`
	SignConsentInput
}

func (h *Handler) SignConsent(c echo.Context) error {
	id, err := caseID(c)
	if err != nil {
		return err
	}
	var req signConsentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sc, err := h.svc.SignConsent(c.Request().Context(), id, req.VersionID, req.SignConsentInput)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, caseResponse{Case: sc})
}

type versionRequest struct {
	VersionID int `json:"version_id"`
}

func (h *Handler) Start(c echo.Context) error {
	id, err := caseID(c)
	if err != nil {
		return err
	}
	var req versionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sc, err := h.svc.Start(c.Request().Context(), id, req.VersionID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, caseResponse{Case: sc})
}

type completeRequest struct {
	VersionID int `json:"version_id"`
	CompleteInput
}

func (h *Handler) Complete(c echo.Context) error {
	id, err := caseID(c)
	if err != nil {
		return err
	}
	var req completeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sc, err := h.svc.Complete(c.Request().Context(), id, req.VersionID, req.CompleteInput)
	return respondCase(c, http.StatusOK, sc, err)
}

func (h *Handler) RetryInvoice(c echo.Context) error {
	id, err := caseID(c)
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

func (h *Handler) AddMedication(c echo.Context) error {
	id, err := caseID(c)
	if err != nil {
		return err
	}
	var in AddMedicationInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sc, err := h.svc.AddMedication(c.Request().Context(), id, in)
	return respondCase(c, http.StatusCreated, sc, err)
}

type cancelRequest struct {
	VersionID int    `json:"version_id"`
	Reason    string `json:"reason"`
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := caseID(c)
	if err != nil {
		return err
	}
	var req cancelRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sc, err := h.svc.Cancel(c.Request().Context(), id, req.VersionID, req.Reason)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, caseResponse{Case: sc})
}

package medication

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Invalidator drops read models derived from dose rows.
type Invalidator interface {
	Invalidate()
}

type Handler struct {
	svc  *Service
	ward Invalidator
}

// NewHandler builds the order-entry handler. ward is invalidated after
// every prescription and may be nil.
func NewHandler(svc *Service, ward Invalidator) *Handler {
	return &Handler{svc: svc, ward: ward}
}

// RegisterRoutes adds order entry. Dose actions go through the engine so
// they run under the patient lock.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/patients/:id/doses", h.Prescribe)
	api.GET("/doses/:id", h.GetDose)
}

func (h *Handler) Prescribe(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var d Dose
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d.ID = uuid.Nil
	d.PatientID = patientID
	if err := h.svc.Prescribe(c.Request().Context(), &d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if h.ward != nil {
		h.ward.Invalidate()
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) GetDose(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	d, err := h.svc.GetByID(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "dose not found")
	}
	return c.JSON(http.StatusOK, d)
}

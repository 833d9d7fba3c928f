package engine

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/wardcare/wardcare/internal/domain/assessment"
	"github.com/wardcare/wardcare/internal/domain/interval"
	"github.com/wardcare/wardcare/internal/domain/medication"
	"github.com/wardcare/wardcare/internal/domain/nursing"
	"github.com/wardcare/wardcare/internal/domain/priority"
	"github.com/wardcare/wardcare/internal/domain/task"
	"github.com/wardcare/wardcare/internal/platform/auth"
	"github.com/wardcare/wardcare/pkg/pagination"
)

type Handler struct {
	engine *Engine
}

func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	p := api.Group("/patients/:id")
	p.POST("/recompute", h.Recompute)
	p.POST("/assessments", h.RecordAssessment)
	p.POST("/voice-notes", h.RecordVoiceNote)
	p.POST("/notes", h.AddNote)
	p.DELETE("/problems", h.DismissProblem)
	p.GET("/problems", h.ListProblems)
	p.GET("/alerts", h.ListAlerts)
	p.GET("/tasks", h.ListTasks)
	p.GET("/doses", h.ListDoses)
	p.POST("/assignment", h.ScoreAssignment)

	api.POST("/tasks/:id/toggle", h.ToggleTask)
	api.POST("/doses/:id/:action", h.RecordDose)
	api.GET("/intervals", h.LookupInterval)
	api.GET("/ward/alerts", h.WardAlerts)
}

var notFound = []error{
	nursing.ErrPatientNotFound,
	task.ErrNotFound,
	medication.ErrNotFound,
	priority.ErrNotFound,
}

var badRequest = []error{
	medication.ErrActorRequired,
	medication.ErrUnknownAction,
	task.ErrUnknownAction,
}

// httpError maps engine errors to status codes. Anything unknown is
// reported with fallback.
func httpError(err error, fallback int) error {
	for _, target := range notFound {
		if errors.Is(err, target) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
	}
	for _, target := range badRequest {
		if errors.Is(err, target) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	return echo.NewHTTPError(fallback, err.Error())
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func actor(c echo.Context) *uuid.UUID {
	return auth.NurseFromContext(c.Request().Context())
}

func (h *Handler) Recompute(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	snap, err := h.engine.Recompute(c.Request().Context(), id)
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, snap)
}

func (h *Handler) RecordAssessment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var a assessment.Assessment
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a.PatientID = id
	out, err := h.engine.RecordAssessment(c.Request().Context(), &a, actor(c))
	if err != nil {
		return httpError(err, http.StatusBadRequest)
	}
	return c.JSON(http.StatusCreated, out)
}

type voiceRequest struct {
	Spoken      string `json:"spoken"`
	Observation string `json:"observation"`
}

func (h *Handler) RecordVoiceNote(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req voiceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	out, err := h.engine.RecordVoiceNote(c.Request().Context(), id, req.Spoken, req.Observation, actor(c))
	if err != nil {
		return httpError(err, http.StatusBadRequest)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *Handler) AddNote(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var n nursing.Note
	if err := c.Bind(&n); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	n.ID = uuid.Nil
	n.PatientID = id
	n.AuthorID = actor(c)
	snap, err := h.engine.AddNote(c.Request().Context(), &n)
	if err != nil {
		return httpError(err, http.StatusBadRequest)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{"note": n, "snapshot": snap})
}

func (h *Handler) DismissProblem(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	label := c.QueryParam("label")
	if label == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "label is required")
	}
	if err := h.engine.DismissProblem(c.Request().Context(), id, label); err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListProblems(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	items, err := h.engine.ListProblems(c.Request().Context(), id)
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ListAlerts(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	items, err := h.engine.ListAlerts(c.Request().Context(), id)
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ListTasks(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.engine.ListTasks(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) ListDoses(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	openOnly, _ := strconv.ParseBool(c.QueryParam("open"))
	items, err := h.engine.ListDoses(c.Request().Context(), id, openOnly)
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ScoreAssignment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	res, ok, err := h.engine.ScoreAssignment(c.Request().Context(), id)
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	if !ok {
		return c.JSON(http.StatusOK, map[string]interface{}{"assigned": false})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"assigned": true, "assignment": res})
}

func (h *Handler) ToggleTask(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	action := task.Action(c.QueryParam("action"))
	if action == "" {
		action = task.ActionToggle
	}
	res, err := h.engine.ToggleTask(c.Request().Context(), id, action, actor(c))
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) RecordDose(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	out, err := h.engine.RecordDose(c.Request().Context(), id, medication.Action(c.Param("action")), actor(c))
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) LookupInterval(c echo.Context) error {
	kind := interval.Kind(c.QueryParam("kind"))
	if kind == "" {
		kind = interval.KindMedication
	}
	text := c.QueryParam("text")
	d := h.engine.LookupInterval(kind, text)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"kind":     kind,
		"text":     text,
		"hours":    d.Hours(),
		"interval": d.String(),
	})
}

func (h *Handler) WardAlerts(c echo.Context) error {
	items, err := h.engine.WardAlerts(c.Request().Context())
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	pg := pagination.FromContext(c)
	lo, hi := pg.Window(len(items))
	return c.JSON(http.StatusOK, pagination.NewResponse(items[lo:hi], len(items), pg))
}

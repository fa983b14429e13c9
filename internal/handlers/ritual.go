package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/roots/internal/models"
	"github.com/HammerMeetNail/roots/internal/services"
)

type RitualHandler struct {
	ritualService services.RitualServiceInterface
	clock         Clock
}

func NewRitualHandler(ritualService services.RitualServiceInterface) *RitualHandler {
	return &RitualHandler{ritualService: ritualService}
}

type CreateRitualRequest struct {
	Name string `json:"name"`
}

type UpdateRitualRequest struct {
	Name   *string              `json:"name"`
	Status *models.RitualStatus `json:"status"`
}

type FormChainRequest struct {
	RitualIDs []uuid.UUID `json:"ritual_ids"`
}

type RitualResponse struct {
	Ritual *models.Ritual `json:"ritual"`
}

type RitualsResponse struct {
	Rituals []models.Ritual `json:"rituals"`
}

func (h *RitualHandler) List(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	rituals, err := h.ritualService.List(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, "listing rituals", err)
		return
	}
	if rituals == nil {
		rituals = []models.Ritual{}
	}

	writeJSON(w, http.StatusOK, RitualsResponse{Rituals: rituals})
}

func (h *RitualHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	var req CreateRitualRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ritual, err := h.ritualService.Create(r.Context(), user.ID, req.Name)
	if err != nil {
		writeServiceError(w, "creating ritual", err)
		return
	}

	writeJSON(w, http.StatusCreated, RitualResponse{Ritual: ritual})
}

func (h *RitualHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := pathID(w, r, "id", "ritual")
	if !ok {
		return
	}

	ritual, err := h.ritualService.Get(r.Context(), user.ID, id)
	if err != nil {
		writeServiceError(w, "getting ritual", err)
		return
	}

	writeJSON(w, http.StatusOK, RitualResponse{Ritual: ritual})
}

func (h *RitualHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := pathID(w, r, "id", "ritual")
	if !ok {
		return
	}

	var req UpdateRitualRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == nil && req.Status == nil {
		writeError(w, http.StatusBadRequest, "Nothing to update")
		return
	}

	ritual, err := h.ritualService.Update(r.Context(), user.ID, id, models.UpdateRitualParams{
		Name:   req.Name,
		Status: req.Status,
	})
	if err != nil {
		writeServiceError(w, "updating ritual", err)
		return
	}

	writeJSON(w, http.StatusOK, RitualResponse{Ritual: ritual})
}

func (h *RitualHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := pathID(w, r, "id", "ritual")
	if !ok {
		return
	}

	if err := h.ritualService.Delete(r.Context(), user.ID, id); err != nil {
		writeServiceError(w, "deleting ritual", err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Ritual deleted"})
}

// Complete marks the ritual done for the caller's local day.
func (h *RitualHandler) Complete(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := pathID(w, r, "id", "ritual")
	if !ok {
		return
	}

	result, err := h.ritualService.Complete(r.Context(), user.ID, id, h.clock.today(r, user))
	if err != nil {
		writeServiceError(w, "completing ritual", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *RitualHandler) Unchain(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := pathID(w, r, "id", "ritual")
	if !ok {
		return
	}

	ritual, err := h.ritualService.Unchain(r.Context(), user.ID, id)
	if err != nil {
		writeServiceError(w, "unchaining ritual", err)
		return
	}

	writeJSON(w, http.StatusOK, RitualResponse{Ritual: ritual})
}

func (h *RitualHandler) FormChain(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	var req FormChainRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rituals, err := h.ritualService.FormChain(r.Context(), user.ID, req.RitualIDs)
	if err != nil {
		writeServiceError(w, "forming chain", err)
		return
	}

	writeJSON(w, http.StatusCreated, RitualsResponse{Rituals: rituals})
}

func (h *RitualHandler) Garden(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	garden, err := h.ritualService.Garden(r.Context(), user.ID, h.clock.today(r, user))
	if err != nil {
		writeServiceError(w, "loading garden", err)
		return
	}

	writeJSON(w, http.StatusOK, garden)
}

func (h *RitualHandler) Activity(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	activity, err := h.ritualService.RecentActivity(r.Context(), user.ID, h.clock.today(r, user))
	if err != nil {
		writeServiceError(w, "loading activity", err)
		return
	}

	writeJSON(w, http.StatusOK, activity)
}

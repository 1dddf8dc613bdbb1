package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/task-list/internal/model"
	"github.com/BuzzLyutic/task-list/internal/service"
	"github.com/BuzzLyutic/task-list/internal/theme"
	"github.com/BuzzLyutic/task-list/pkg/respond"
)

type TaskHandler struct {
	service *service.TaskService
	logger  *zap.Logger
}

func NewTaskHandler(srv *service.TaskService, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		service: srv,
		logger:  logger,
	}
}

type reorderRequest struct {
	DraggedID string `json:"draggedId"`
	TargetID  string `json:"targetId"`
}

type reorderResponse struct {
	Moved bool         `json:"moved"`
	Tasks []model.Task `json:"tasks"`
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := model.ParseFilter(r.URL.Query().Get("filter"))
	respond.JSON(w, r, http.StatusOK, h.service.GetFilteredTasks(filter))
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength == 0 {
		respond.Error(w, r, http.StatusBadRequest, "empty request body")
		return
	}

	var req model.TaskInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debug("failed to decode json", zap.Error(err))
		respond.Error(w, r, http.StatusBadRequest, fmt.Sprintf("invalid json: %v", err))
		return
	}

	task, err := h.service.AddTask(req)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/tasks/"+task.ID)
	respond.JSON(w, r, http.StatusCreated, task)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	task, ok := h.service.GetTask(chi.URLParam(r, "id"))
	if !ok {
		respond.Error(w, r, http.StatusNotFound, "not found")
		return
	}
	respond.JSON(w, r, http.StatusOK, task)
}

// Toggle answers 404 for unknown ids; the store itself ignores them.
func (h *TaskHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	task, ok := h.service.Toggle(chi.URLParam(r, "id"))
	if !ok {
		respond.Error(w, r, http.StatusNotFound, "not found")
		return
	}
	respond.JSON(w, r, http.StatusOK, task)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.service.DeleteTask(chi.URLParam(r, "id")) {
		respond.Error(w, r, http.StatusNotFound, "not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TaskHandler) ClearCompleted(w http.ResponseWriter, r *http.Request) {
	removed := h.service.ClearCompleted()
	respond.JSON(w, r, http.StatusOK, map[string]int{"removed": removed})
}

// Reorder always answers 200; "moved" carries whether anything changed.
func (h *TaskHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, r, http.StatusBadRequest, "invalid json")
		return
	}

	moved := h.service.ReorderTasks(req.DraggedID, req.TargetID)
	respond.JSON(w, r, http.StatusOK, reorderResponse{
		Moved: moved,
		Tasks: h.service.GetAllTasks(),
	})
}

func (h *TaskHandler) Stats(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, r, http.StatusOK, h.service.GetStats())
}

func (h *TaskHandler) handleErrors(w http.ResponseWriter, r *http.Request, err error) {
	handleErrors(w, r, h.logger, err)
}

func handleErrors(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		respond.Error(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, theme.ErrInvalidTheme):
		respond.Error(w, r, http.StatusBadRequest, err.Error())
	default:
		logger.Error("internal error", zap.Error(err))
		respond.Error(w, r, http.StatusInternalServerError, "internal error")
	}
}

package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/task-list/internal/theme"
	"github.com/BuzzLyutic/task-list/pkg/respond"
)

// Client hint sent by browsers that opted in via Accept-CH.
const colorSchemeHeader = "Sec-CH-Prefers-Color-Scheme"

type ThemeHandler struct {
	themes        *theme.Manager
	systemDefault string
	logger        *zap.Logger
}

func NewThemeHandler(themes *theme.Manager, systemDefault string, logger *zap.Logger) *ThemeHandler {
	return &ThemeHandler{
		themes:        themes,
		systemDefault: systemDefault,
		logger:        logger,
	}
}

type themeResponse struct {
	Theme  theme.Theme `json:"theme"`
	Stored bool        `json:"stored"`
}

func (h *ThemeHandler) system(r *http.Request) string {
	if v := strings.Trim(r.Header.Get(colorSchemeHeader), `" `); v != "" {
		return v
	}
	return h.systemDefault
}

func (h *ThemeHandler) Get(w http.ResponseWriter, r *http.Request) {
	_, stored := h.themes.Stored()
	respond.JSON(w, r, http.StatusOK, themeResponse{
		Theme:  h.themes.Current(h.system(r)),
		Stored: stored,
	})
}

func (h *ThemeHandler) Set(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Theme string `json:"theme"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, r, http.StatusBadRequest, "invalid json")
		return
	}

	t, err := theme.Parse(req.Theme)
	if err == nil {
		err = h.themes.Set(t)
	}
	if err != nil {
		handleErrors(w, r, h.logger, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, themeResponse{Theme: t, Stored: true})
}

func (h *ThemeHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	t := h.themes.Toggle(h.system(r))
	respond.JSON(w, r, http.StatusOK, themeResponse{Theme: t, Stored: true})
}

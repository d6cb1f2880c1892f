package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/chatwidget/internal/logger"
	"github.com/chatwidget/internal/model"
	"github.com/chatwidget/internal/service"
	"github.com/chatwidget/internal/storage"
	"github.com/chatwidget/internal/widget"
	"github.com/chatwidget/internal/widgetconfig"
)

// ConfigHandler serves the builder's saved configs. GET doubles as the remote config
// endpoint a mounted widget fetches.
type ConfigHandler struct {
	configs   *service.ConfigService
	scriptURL string
	apiURL    string
}

func NewConfigHandler(configs *service.ConfigService, scriptURL, apiURL string) *ConfigHandler {
	return &ConfigHandler{configs: configs, scriptURL: scriptURL, apiURL: apiURL}
}

func (h *ConfigHandler) configError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrEmptyWidgetID), errors.Is(err, service.ErrUnknownField),
		errors.Is(err, widgetconfig.ErrInvalidPatch):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logger.Errorf("%s: %v", op, err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type listResponse struct {
	WidgetIDs []string `json:"widgetIds"`
}

// List answers saved widget ids, ?limit= (default 100, max 1000).
func (h *ConfigHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	ids, err := h.configs.List(r.Context(), limit)
	if errors.Is(err, storage.ErrListUnsupported) {
		writeError(w, http.StatusNotImplemented, err.Error())
		return
	}
	if err != nil {
		h.configError(w, "config list", err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, listResponse{WidgetIDs: ids})
}

func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.configs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.configError(w, "config get", err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// Put deep-merges the body into the saved config.
func (h *ConfigHandler) Put(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	patch, err := widgetconfig.DecodePatch(raw)
	if err != nil {
		h.configError(w, "config put", err)
		return
	}
	cfg, err := h.configs.Save(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		h.configError(w, "config put", err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *ConfigHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.configs.Reset(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.configError(w, "config delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type requiredFieldRequest struct {
	Field   model.RequiredField `json:"field"`
	Checked bool                `json:"checked"`
}

type requiredFieldResponse struct {
	Applied bool             `json:"applied"`
	Config  model.ChatConfig `json:"config"`
}

// RequiredField toggles one gate field; a refused toggle answers 200 with applied=false.
func (h *ConfigHandler) RequiredField(w http.ResponseWriter, r *http.Request) {
	var req requiredFieldRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	cfg, applied, err := h.configs.SetRequiredField(r.Context(), chi.URLParam(r, "id"), req.Field, req.Checked)
	if err != nil {
		h.configError(w, "config required field", err)
		return
	}
	writeJSON(w, http.StatusOK, requiredFieldResponse{Applied: applied, Config: cfg})
}

// Embed answers the "get embed code" snippet as text/html.
func (h *ConfigHandler) Embed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	eo := widget.EmbedOptions{
		ScriptURL:   firstNonEmpty(q.Get("script"), h.scriptURL),
		APIBaseURL:  firstNonEmpty(q.Get("api"), h.apiURL),
		ContainerID: q.Get("container"),
	}
	snippet, err := h.configs.Embed(r.Context(), chi.URLParam(r, "id"), eo)
	if err != nil {
		h.configError(w, "config embed", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(snippet))
}

func firstNonEmpty(v ...string) string {
	for _, s := range v {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chatwidget/internal/engine"
	"github.com/chatwidget/internal/logger"
	"github.com/chatwidget/internal/model"
	"github.com/chatwidget/internal/service"
	"github.com/chatwidget/internal/widgetconfig"
)

// PreviewHandler drives server-side preview widgets.
type PreviewHandler struct {
	previews *service.PreviewService
}

func NewPreviewHandler(previews *service.PreviewService) *PreviewHandler {
	return &PreviewHandler{previews: previews}
}

func (h *PreviewHandler) session(w http.ResponseWriter, r *http.Request) (*service.Session, bool) {
	s, err := h.previews.Get(chi.URLParam(r, "sid"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	return s, true
}

func (h *PreviewHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	s, err := h.previews.Create(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, s.View())
	case errors.Is(err, service.ErrEmptyWidgetID), errors.Is(err, widgetconfig.ErrInvalidPatch):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrTooManySessions):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		logger.Errorf("preview create: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *PreviewHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.previews.List())
}

func (h *PreviewHandler) Get(w http.ResponseWriter, r *http.Request) {
	if s, ok := h.session(w, r); ok {
		writeJSON(w, http.StatusOK, s.View())
	}
}

func (h *PreviewHandler) Open(w http.ResponseWriter, r *http.Request) {
	if s, ok := h.session(w, r); ok {
		s.Widget().Open()
		writeJSON(w, http.StatusOK, s.Widget().Snapshot())
	}
}

func (h *PreviewHandler) Close(w http.ResponseWriter, r *http.Request) {
	if s, ok := h.session(w, r); ok {
		s.Widget().Close()
		writeJSON(w, http.StatusOK, s.Widget().Snapshot())
	}
}

func (h *PreviewHandler) DismissPrompt(w http.ResponseWriter, r *http.Request) {
	if s, ok := h.session(w, r); ok {
		s.Widget().DismissPrompt()
		writeJSON(w, http.StatusOK, s.Widget().Snapshot())
	}
}

type fieldErrorsResponse struct {
	Error  string             `json:"error"`
	Fields engine.FieldErrors `json:"fields"`
}

// UserInfo submits the gate form; validation failures answer 422 with per-field reasons.
func (h *PreviewHandler) UserInfo(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var info model.UserInfo
	if err := decodeJSON(w, r, &info); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if errs := s.Widget().SubmitUserInfo(info); len(errs) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, fieldErrorsResponse{Error: errs.String(), Fields: errs})
		return
	}
	writeJSON(w, http.StatusOK, s.Widget().Snapshot())
}

type sendRequest struct {
	Text string `json:"text"`
}

func (h *PreviewHandler) Send(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req sendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	msg, err := s.Widget().Send(req.Text)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, msg)
	case errors.Is(err, engine.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusConflict, err.Error())
	}
}

func (h *PreviewHandler) Reconnect(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Widget().Reconnect(); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.Widget().Snapshot())
}

func (h *PreviewHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.previews.Delete(chi.URLParam(r, "sid")); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

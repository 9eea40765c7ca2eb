package api

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"quickmail/internal/biz"

	"github.com/gorilla/mux"
)

const (
	maxFragmentSize = 10 << 20
	maxMessageSize  = 25 << 20
)

// FragmentHandler stores sanitized HTML fragments and serves each one once
type FragmentHandler struct {
	fragments *biz.FragmentUsecase
	logger    *slog.Logger
}

// NewFragmentHandler creates FragmentHandler
func NewFragmentHandler(fragments *biz.FragmentUsecase, logger *slog.Logger) *FragmentHandler {
	return &FragmentHandler{fragments: fragments, logger: logger}
}

// RegisterRoutes registers fragment routes; creation requires a session.
func (h *FragmentHandler) RegisterRoutes(r *mux.Router, requireSession func(http.Handler) http.Handler) {
	r.Handle("/api/fragments", requireSession(http.HandlerFunc(h.create))).Methods(http.MethodPost)
	r.Handle("/api/messages", requireSession(http.HandlerFunc(h.createMessage))).Methods(http.MethodPost)
	r.HandleFunc("/fragment", h.get).Methods(http.MethodGet)
}

// create sanitizes the request body and stores it
func (h *FragmentHandler) create(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxFragmentSize))
	if err != nil {
		writeReadError(w, err)
		return
	}

	key, err := h.fragments.CreateFragment(r.Context(), string(body))
	if err != nil {
		h.logger.Error("failed to create fragment", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to store fragment"})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"key":  key,
		"link": fragmentLink(key),
	})
}

// messageResponse is a parsed mail whose body waits behind a fragment link
type messageResponse struct {
	*biz.MailView
	BodyLink string `json:"body_link"`
}

// createMessage parses a raw RFC 5322 message and stores its body
func (h *FragmentHandler) createMessage(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMessageSize))
	if err != nil {
		writeReadError(w, err)
		return
	}

	view, err := h.fragments.CreateMailFragment(r.Context(), bytes.NewReader(raw))
	if errors.Is(err, biz.ErrMalformedMail) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		h.logger.Error("failed to store message", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to store message"})
		return
	}

	writeJSON(w, http.StatusCreated, messageResponse{
		MailView: view,
		BodyLink: fragmentLink(view.BodyKey),
	})
}

func fragmentLink(key string) string {
	return "/fragment?key=" + url.QueryEscape(key)
}

func writeReadError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "request body too large"})
		return
	}
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read request body"})
}

// get serves a fragment once
func (h *FragmentHandler) get(w http.ResponseWriter, r *http.Request) {
	body, err := h.fragments.TakeFragment(r.Context(), r.URL.Query().Get("key"))
	if errors.Is(err, biz.ErrFragmentNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.logger.Error("failed to read fragment", "error", err)
		http.Error(w, "failed to read fragment", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	io.WriteString(w, body)
}

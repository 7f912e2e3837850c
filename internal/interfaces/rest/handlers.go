package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/FreePeak/smart-slides/internal/domain"
	"github.com/FreePeak/smart-slides/internal/infrastructure/logging"
)

const maxRequestBody = 1 << 20

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// GenerateSlidesRequest is the body of POST /api/generate-slides.
type GenerateSlidesRequest struct {
	Query string `json:"query"`
}

// ErrorResponse carries a client-facing failure description.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "healthy", Message: "API is running"})
}

func (s *Server) handleGenerateSlides(w http.ResponseWriter, r *http.Request) {
	var req GenerateSlidesRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, r, domain.NewError("Invalid request body: "+err.Error(), http.StatusBadRequest))
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		s.writeError(w, r, domain.ErrEmptyQuery)
		return
	}

	if s.generator == nil {
		s.writeError(w, r, domain.ErrMissingCredential)
		return
	}

	deck, err := s.generator.Generate(r.Context(), req.Query)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if deck.Slides == nil {
		deck.Slides = []domain.Slide{}
	}
	writeJSON(w, http.StatusOK, deck)
}

// writeError answers with {"detail": ...}. Request errors carry their own
// status; generation failures are mapped by kind and 5xx details get the
// "Error generating slides" prefix.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var reqErr *domain.Error
	if errors.As(err, &reqErr) {
		writeJSON(w, reqErr.Code, ErrorResponse{Detail: reqErr.Message})
		return
	}

	status := http.StatusInternalServerError
	var genErr *domain.GenerationError
	if errors.As(err, &genErr) {
		status = genErr.HTTPStatus()
	}

	detail := err.Error()
	if status >= http.StatusInternalServerError {
		detail = "Error generating slides: " + detail
	}

	s.logger.WarnContext(r.Context(), "Slide generation request failed", logging.Fields{
		"status": status,
		"kind":   string(domain.KindOf(err)),
		"error":  err.Error(),
	})
	writeJSON(w, status, ErrorResponse{Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

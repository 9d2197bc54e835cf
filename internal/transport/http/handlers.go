package httptransport

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"healthcert/internal/barcode"
	"healthcert/internal/certificate"
	"healthcert/internal/domain"
	"healthcert/internal/platform/middleware"
	"healthcert/pkg/requestcontext"
)

// Handler is the thin HTTP layer. It delegates to the certificate service and
// owns only transport concerns: decoding, status codes, JSON envelopes.
type Handler struct {
	service *certificate.Service
	logger  *slog.Logger
}

// NewHandler wires the certificate service into the transport layer.
func NewHandler(service *certificate.Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

type certificateResponse struct {
	Name           string     `json:"name"`
	DateOfBirth    string     `json:"dateOfBirth"`
	ValidityStart  *time.Time `json:"validityStart,omitempty"`
	ValidityEnd    time.Time  `json:"validityEnd"`
	EligibilityEnd time.Time  `json:"eligibilityEnd"`
	Type           string     `json:"certificateType"`
	Scenario       string     `json:"certificateScenario"`
	UVCI           string     `json:"uvci"`
	Policy         []string   `json:"policy,omitempty"`
	PolicyMask     int        `json:"policyMask"`
	QRCodes        []string   `json:"qrCodes"`
}

type ineligibleResponse struct {
	ErrorCode  int       `json:"errorCode"`
	RetryAfter time.Time `json:"retryAfter"`
}

type buildResponse struct {
	Certificates []certificateResponse `json:"certificates"`
	Ineligible   *ineligibleResponse   `json:"ineligible,omitempty"`
	Excluded     []string              `json:"excludedResults,omitempty"`
}

func (h *Handler) handleBuild(w http.ResponseWriter, r *http.Request) {
	scenario, err := domain.ParseScenario(chi.URLParam(r, "scenario"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_scenario")
		return
	}

	subject, ok := middleware.SubjectFrom(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "missing_subject")
		return
	}

	var req buildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "malformed_body")
		return
	}
	results, certType, excluded := req.toDomain()

	container, err := h.service.BuildCertificatesFromResults(r.Context(), results, subject, scenario, certType)
	if err != nil {
		status := http.StatusInternalServerError
		requestID := requestcontext.RequestID(r.Context())
		if errors.Is(err, certificate.ErrNoRules) || errors.Is(err, barcode.ErrUnsupportedScenario) {
			// configuration faults stay 500 but are worth distinct logging
			h.logger.ErrorContext(r.Context(), "certificate configuration fault", "scenario", scenario, "request_id", requestID, "error", err)
		} else {
			h.logger.ErrorContext(r.Context(), "certificate build failed", "scenario", scenario, "request_id", requestID, "error", err)
		}
		writeJSONError(w, status, "internal_error")
		return
	}

	resp := buildResponse{Certificates: []certificateResponse{}, Excluded: excluded}
	if container.Ineligibility != nil {
		resp.Ineligible = &ineligibleResponse{
			ErrorCode:  container.Ineligibility.ErrorCode,
			RetryAfter: container.Ineligibility.RetryAfter,
		}
	}
	for _, cert := range container.Certificates {
		resp.Certificates = append(resp.Certificates, certificateResponse{
			Name:           cert.Name,
			DateOfBirth:    cert.DateOfBirth.Format("2006-01-02"),
			ValidityStart:  cert.ValidityStart,
			ValidityEnd:    cert.ValidityEnd,
			EligibilityEnd: cert.EligibilityEnd,
			Type:           string(cert.Type),
			Scenario:       string(cert.Scenario),
			UVCI:           cert.UniqueCertificateIdentifier,
			Policy:         cert.Policy,
			PolicyMask:     cert.PolicyMask,
			QRCodes:        cert.QRCodes,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

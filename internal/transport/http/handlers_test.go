package httptransport

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"

	"healthcert/internal/barcode"
	"healthcert/internal/certificate"
	"healthcert/internal/domain"
	"healthcert/internal/eligibility"
	"healthcert/internal/platform/config"
	"healthcert/internal/rules"
	"healthcert/internal/uvci"
	uvcistore "healthcert/internal/uvci/store"
)

const handlerSigningKey = "handler-test-signing-key"

const handlerRulesJSON = `{
	"rules": [{
		"Name": "domestic-two-dose",
		"Scenario": "Domestic",
		"CertificateType": "Domestic",
		"Policy": ["GR"],
		"PolicyMask": 1,
		"Conditions": [{
			"ProductType": "Vaccination",
			"Product": "Comirnaty",
			"MinCount": 2,
			"EligibilityPeriodHours": 14400,
			"EligibilityDirection": "Eligible"
		}]
	}]
}`

type HandlerSuite struct {
	suite.Suite
	router http.Handler
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	blobs := rules.NewInMemoryBlobStore()
	flags := config.RuleFlags{Container: "eligibility-configuration"}
	blobs.Put(flags.Container, rules.FilenameForFlags(flags), []byte(handlerRulesJSON))

	evaluator := eligibility.NewEvaluator(eligibility.BoosterPolicy{
		MinimumPeriod: 90 * 24 * time.Hour,
		GracePeriod:   180 * 24 * time.Hour,
	})

	keyring := barcode.NewMemoryKeyring(map[string]string{"GB": "key-1"})
	signer := barcode.NewLocalSigner(map[string][]byte{"key-1": []byte("handler-secret")})
	encoder := barcode.NewEncoder(keyring, signer, barcode.WithPKICountryTag("GB"))

	service := certificate.NewService(
		rules.NewBlobLoader(blobs),
		flags,
		evaluator,
		eligibility.LockoutPolicy{
			LockoutPeriodDays:      10,
			StackingPeriodDays:     35,
			NegationTestPeriodDays: 5,
		},
		uvci.NewGenerator(uvcistore.NewInMemoryStore(), 5),
		encoder,
		config.Issuer{
			Country:                    "GB",
			Authority:                  "NHS",
			P5CertificateExpiryInHours: 72,
			UvciInsertAttempts:         5,
		},
	)

	handler := NewHandler(service, slog.New(slog.DiscardHandler))
	s.router = NewRouter(handler, handlerSigningKey)
}

func (s *HandlerSuite) bearer() string {
	claims := jwt.MapClaims{
		"exp":            time.Now().Add(time.Hour).Unix(),
		"family_name":    "Müller",
		"given_name":     "Anna",
		"birthdate":      "1987-03-12",
		"proofing_level": "P9",
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(handlerSigningKey))
	s.Require().NoError(err)
	return "Bearer " + signed
}

func (s *HandlerSuite) dosePayload(daysAgo int) map[string]any {
	return map[string]any{
		"type":         "Vaccine",
		"dateTime":     time.Now().Add(-time.Duration(daysAgo) * 24 * time.Hour).Format(time.RFC3339),
		"doseNumber":   1,
		"manufacturer": map[string]string{"code": "ORG-100030215"},
		"product":      map[string]string{"code": "EU/1/20/1528", "display": "Comirnaty"},
		"country":      "GB",
	}
}

func (s *HandlerSuite) post(path, authorization string, body any) *httptest.ResponseRecorder {
	encoded, err := json.Marshal(body)
	s.Require().NoError(err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(encoded))
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) TestBuildCertificates() {
	s.Run("eligible course issues a certificate", func() {
		body := map[string]any{"results": []any{s.dosePayload(200), s.dosePayload(100)}}
		rec := s.post("/certificates/Domestic", s.bearer(), body)
		s.Require().Equal(http.StatusOK, rec.Code)

		var resp struct {
			Certificates []struct {
				Name    string   `json:"name"`
				UVCI    string   `json:"uvci"`
				Type    string   `json:"certificateType"`
				QRCodes []string `json:"qrCodes"`
			} `json:"certificates"`
		}
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.Require().Len(resp.Certificates, 1)
		s.Equal("Anna Müller", resp.Certificates[0].Name)
		s.Equal("Domestic", resp.Certificates[0].Type)
		s.NotEmpty(resp.Certificates[0].UVCI)
		s.Require().Len(resp.Certificates[0].QRCodes, 1)
		s.Contains(resp.Certificates[0].QRCodes[0], "HC1:")
	})

	s.Run("lockout reported as ineligible outcome", func() {
		body := map[string]any{"results": []any{
			s.dosePayload(200), s.dosePayload(100),
			map[string]any{
				"type":           "DiagnosticTest",
				"dateTime":       time.Now().Add(-48 * time.Hour).Format(time.RFC3339),
				"result":         "Positive",
				"testKit":        "PCR",
				"country":        "GB",
				"processingCode": domain.ProcessingSupervised,
				"isNAAT":         true,
			},
		}}
		rec := s.post("/certificates/Domestic", s.bearer(), body)
		s.Require().Equal(http.StatusOK, rec.Code)

		var resp struct {
			Certificates []any `json:"certificates"`
			Ineligible   *struct {
				ErrorCode int `json:"errorCode"`
			} `json:"ineligible"`
		}
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.Empty(resp.Certificates)
		s.Require().NotNil(resp.Ineligible)
		s.Equal(eligibility.LockoutCodePCR, resp.Ineligible.ErrorCode)
	})

	s.Run("excluded malformed results are reported", func() {
		bad := s.dosePayload(100)
		bad["doseNumber"] = 0
		body := map[string]any{"results": []any{s.dosePayload(200), s.dosePayload(100), bad}}

		rec := s.post("/certificates/Domestic", s.bearer(), body)
		s.Require().Equal(http.StatusOK, rec.Code)

		var resp struct {
			Excluded []string `json:"excludedResults"`
		}
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.Len(resp.Excluded, 1)
	})

	s.Run("unknown scenario rejected", func() {
		rec := s.post("/certificates/Galactic", s.bearer(), map[string]any{"results": []any{}})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("scenario without rules is a server fault", func() {
		rec := s.post("/certificates/Isolation", s.bearer(), map[string]any{"results": []any{}})
		s.Equal(http.StatusInternalServerError, rec.Code)
	})

	s.Run("missing bearer token rejected", func() {
		rec := s.post("/certificates/Domestic", "", map[string]any{"results": []any{}})
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("malformed body rejected", func() {
		req := httptest.NewRequest(http.MethodPost, "/certificates/Domestic", bytes.NewReader([]byte("{broken")))
		req.Header.Set("Authorization", s.bearer())
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestHealthz() {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"status":"ok"}`, rec.Body.String())
}

func (s *HandlerSuite) TestMetricsEndpoint() {
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "go_goroutines")
}

package barcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/flate"
	"golang.org/x/sync/errgroup"

	"healthcert/internal/domain"
	"healthcert/pkg/requestcontext"
)

// ErrUnsupportedScenario marks a programming/configuration fault: the pipeline
// was handed a scenario it has no encoding for. It propagates as fatal; there
// is no fallback token.
var ErrUnsupportedScenario = errors.New("unsupported encoding scenario")

// Encoder runs the token pipeline: structured payload, compact binary map,
// signed envelope, raw DEFLATE, base45, protocol prefix.
type Encoder struct {
	keyring Keyring
	signer  Signer
	// pkiCountryTag pins the signing key when set; otherwise a random active
	// key is used per token.
	pkiCountryTag string
}

// EncoderOption configures the Encoder.
type EncoderOption func(*Encoder)

// WithPKICountryTag pins signing-key resolution to a PKI country tag.
func WithPKICountryTag(tag string) EncoderOption {
	return func(e *Encoder) { e.pkiCountryTag = tag }
}

// NewEncoder builds the pipeline over a key ring and signer.
func NewEncoder(keyring Keyring, signer Signer, opts ...EncoderOption) *Encoder {
	e := &Encoder{keyring: keyring, signer: signer}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Encode produces the barcode tokens for a certificate. Domestic and Isolation
// certificates yield one aggregate token; international recovery yields one
// token from the most recent qualifying test; international vaccination yields
// one token per dose, reversed so index 0 is the last administered dose.
func (e *Encoder) Encode(ctx context.Context, cert *domain.Certificate, subject domain.Subject) ([]string, error) {
	issued := requestcontext.Now(ctx).UTC().Truncate(time.Second)

	switch cert.Scenario {
	case domain.ScenarioDomestic, domain.ScenarioIsolation:
		token, err := e.encodeDomestic(ctx, cert, subject, issued)
		if err != nil {
			return nil, err
		}
		return []string{token}, nil
	case domain.ScenarioInternational:
		if cert.Type == domain.TypeRecovery {
			token, err := e.encodeRecovery(ctx, cert, subject, issued)
			if err != nil {
				return nil, err
			}
			return []string{token}, nil
		}
		return e.encodeVaccinations(ctx, cert, subject, issued)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedScenario, cert.Scenario)
}

func (e *Encoder) encodeDomestic(ctx context.Context, cert *domain.Certificate, subject domain.Subject, issued time.Time) (string, error) {
	doc := Document{
		DomesticCertificates: []DomesticEntry{{
			CertificateID: cert.UniqueCertificateIdentifier,
			Country:       cert.Country,
			Issuer:        cert.Authority,
			ValidFrom:     formatDate(validFrom(cert, issued)),
			ValidUntil:    formatDate(cert.ValidityEnd),
			PolicyMask:    cert.PolicyMask,
			Policy:        cert.Policy,
		}},
		DateOfBirth: formatDate(cert.DateOfBirth),
		Name:        newName(subject),
		Version:     SchemaVersion,
	}
	return e.seal(ctx, cert, doc, issued)
}

func (e *Encoder) encodeRecovery(ctx context.Context, cert *domain.Certificate, subject domain.Subject, issued time.Time) (string, error) {
	test := mostRecentTest(cert.EligibilityResults)
	if test == nil {
		return "", fmt.Errorf("recovery certificate has no qualifying diagnostic result")
	}
	doc := Document{
		Recoveries: []RecoveryEntry{{
			Disease:       test.Disease,
			FirstResult:   formatDate(test.Taken),
			Country:       cert.Country,
			Issuer:        cert.Authority,
			ValidFrom:     formatDate(validFrom(cert, issued)),
			ValidUntil:    formatDate(cert.ValidityEnd),
			CertificateID: cert.UniqueCertificateIdentifier,
		}},
		DateOfBirth: formatDate(cert.DateOfBirth),
		Name:        newName(subject),
		Version:     SchemaVersion,
	}
	return e.seal(ctx, cert, doc, issued)
}

// encodeVaccinations signs one token per dose in administration order. Doses
// have no ordering dependency, so they encode in parallel; the finished list
// is reversed so that dose index 0 is the most recent dose. Already-issued
// certificates depend on that reversal, so it must stay.
func (e *Encoder) encodeVaccinations(ctx context.Context, cert *domain.Certificate, subject domain.Subject, issued time.Time) ([]string, error) {
	doses := vaccinationDoses(cert.EligibilityResults)
	if len(doses) == 0 {
		return nil, fmt.Errorf("vaccination certificate has no qualifying doses")
	}

	tokens := make([]string, len(doses))
	g, gctx := errgroup.WithContext(ctx)
	for i, dose := range doses {
		g.Go(func() error {
			doc := Document{
				Vaccinations: []VaccinationEntry{{
					Disease:       dose.Disease.Code,
					VaccineType:   dose.VaccineType.Code,
					Product:       dose.Product.Code,
					Manufacturer:  dose.VaccineManufacturer.Code,
					DoseNumber:    dose.DoseNumber,
					SeriesDoses:   dose.TotalSeriesOfDoses,
					Date:          formatDate(dose.Occurrence),
					Country:       dose.CountryOfVaccination,
					Issuer:        cert.Authority,
					CertificateID: cert.UniqueCertificateIdentifier,
				}},
				DateOfBirth: formatDate(cert.DateOfBirth),
				Name:        newName(subject),
				Version:     SchemaVersion,
			}
			token, err := e.seal(gctx, cert, doc, issued)
			if err != nil {
				return err
			}
			tokens[i] = token
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, j := 0, len(tokens)-1; i < j; i, j = i+1, j-1 {
		tokens[i], tokens[j] = tokens[j], tokens[i]
	}
	return tokens, nil
}

// seal runs one document through the remaining pipeline stages.
func (e *Encoder) seal(ctx context.Context, cert *domain.Certificate, doc Document, issued time.Time) (string, error) {
	keyID, err := e.resolveKey(ctx)
	if err != nil {
		return "", err
	}

	payload := Payload{
		Issuer:   cert.Country,
		Expiry:   cert.ValidityEnd.Unix(),
		IssuedAt: issued.Unix(),
		Content:  Content{Document: doc},
	}
	compact, err := cbor.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode compact payload: %w", err)
	}

	signed, err := e.signer.SignAndEncode(ctx, compact, keyID)
	if err != nil {
		return "", fmt.Errorf("sign payload: %w", err)
	}

	compressed, err := deflateRaw(signed)
	if err != nil {
		return "", fmt.Errorf("compress payload: %w", err)
	}

	return TokenPrefix + ":" + base45Encode(compressed), nil
}

func (e *Encoder) resolveKey(ctx context.Context) (string, error) {
	if e.pkiCountryTag != "" {
		keyID, err := e.keyring.GetKeyByTag(ctx, e.pkiCountryTag)
		if err != nil {
			return "", fmt.Errorf("resolve key by tag: %w", err)
		}
		return keyID, nil
	}
	keyID, err := e.keyring.GetRandomKey(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve random key: %w", err)
	}
	return keyID, nil
}

// Decode reverses the token pipeline: prefix strip, base45, inflate, envelope,
// compact map. Scanning apps do this in the field; it lives here for tests and
// operational inspection.
func Decode(token string) (*Payload, string, error) {
	body, ok := strings.CutPrefix(token, TokenPrefix+":")
	if !ok {
		return nil, "", fmt.Errorf("token missing %s prefix", TokenPrefix)
	}
	compressed, err := base45Decode(body)
	if err != nil {
		return nil, "", err
	}
	signed, err := inflateRaw(compressed)
	if err != nil {
		return nil, "", fmt.Errorf("decompress payload: %w", err)
	}
	compact, keyID, err := openEnvelope(signed)
	if err != nil {
		return nil, "", err
	}
	var payload Payload
	if err := cbor.Unmarshal(compact, &payload); err != nil {
		return nil, "", fmt.Errorf("decode compact payload: %w", err)
	}
	return &payload, keyID, nil
}

// deflateRaw compresses without a gzip/zlib frame.
func deflateRaw(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func inflateRaw(data []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()
	return io.ReadAll(r)
}

func validFrom(cert *domain.Certificate, issued time.Time) time.Time {
	if cert.ValidityStart != nil {
		return *cert.ValidityStart
	}
	return issued
}

func mostRecentTest(results []domain.Result) *domain.DiagnosticTest {
	var latest *domain.DiagnosticTest
	for _, r := range results {
		t, ok := r.(*domain.DiagnosticTest)
		if !ok {
			continue
		}
		if latest == nil || t.Taken.After(latest.Taken) {
			latest = t
		}
	}
	return latest
}

func vaccinationDoses(results []domain.Result) []*domain.Vaccine {
	var doses []*domain.Vaccine
	for _, r := range results {
		if v, ok := r.(*domain.Vaccine); ok {
			doses = append(doses, v)
		}
	}
	sort.Slice(doses, func(i, j int) bool {
		return doses[i].Occurrence.Before(doses[j].Occurrence)
	})
	return doses
}

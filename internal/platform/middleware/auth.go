package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"healthcert/internal/domain"
)

type subjectKey struct{}

// WithSubject stashes the authenticated subject for downstream handlers.
func WithSubject(ctx context.Context, subject domain.Subject) context.Context {
	return context.WithValue(ctx, subjectKey{}, subject)
}

// SubjectFrom returns the authenticated subject, if any.
func SubjectFrom(ctx context.Context) (domain.Subject, bool) {
	s, ok := ctx.Value(subjectKey{}).(domain.Subject)
	return s, ok
}

// subjectClaims are the identity-proofing claims carried on the bearer token.
type subjectClaims struct {
	jwt.RegisteredClaims
	FamilyName     string `json:"family_name"`
	GivenName      string `json:"given_name"`
	Birthdate      string `json:"birthdate"`
	ProofingLevel  string `json:"proofing_level"`
	UnderTwelve    bool   `json:"under_twelve"`
	GracePeriodEnd int64  `json:"grace_period_end,omitempty"`
}

// Auth validates the bearer token and attaches the subject to the request
// context. Token issuance belongs to the identity provider; this service only
// consumes the proofing claims the certificate builder needs.
func Auth(signingKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			var claims subjectClaims
			token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
				return []byte(signingKey), nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || !token.Valid {
				http.Error(w, "invalid bearer token", http.StatusUnauthorized)
				return
			}

			subject, err := claims.toSubject()
			if err != nil {
				http.Error(w, "malformed subject claims", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), subject)))
		})
	}
}

func (c *subjectClaims) toSubject() (domain.Subject, error) {
	dob, err := time.Parse("2006-01-02", c.Birthdate)
	if err != nil {
		return domain.Subject{}, err
	}
	subject := domain.Subject{
		FamilyName:    c.FamilyName,
		GivenName:     c.GivenName,
		DateOfBirth:   dob,
		ProofingLevel: domain.ProofingLevel(c.ProofingLevel),
		UnderTwelve:   c.UnderTwelve,
	}
	if c.GracePeriodEnd > 0 {
		end := time.Unix(c.GracePeriodEnd, 0).UTC()
		subject.GracePeriodEnd = &end
	}
	return subject, nil
}

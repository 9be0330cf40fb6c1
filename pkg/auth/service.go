package auth

import (
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/lookout-hq/lookout/pkg/apperrors"
)

// Authentication failures. All of them match apperrors.ErrUnauthenticated.
var (
	ErrMissingToken   = fmt.Errorf("no session token: %w", apperrors.ErrUnauthenticated)
	ErrMalformedToken = fmt.Errorf("malformed Authorization header: %w", apperrors.ErrUnauthenticated)
	ErrInvalidToken   = fmt.Errorf("invalid session token: %w", apperrors.ErrUnauthenticated)
	ErrMissingSubject = fmt.Errorf("token has no subject: %w", apperrors.ErrUnauthenticated)
	ErrInvalidSubject = fmt.Errorf("token subject is not a user id: %w", apperrors.ErrUnauthenticated)
)

// DefaultCookieName is the dashboard's session cookie.
const DefaultCookieName = "lookout_jwt"

// AuthService authenticates API requests.
type AuthService interface {
	// ValidateRequest returns the caller's claims and raw token. The subject
	// is guaranteed to be a user id.
	ValidateRequest(r *http.Request) (*Claims, string, error)
}

type authService struct {
	verifier   TokenVerifier
	cookieName string
	logger     *zap.Logger
}

// NewAuthService creates an AuthService. An empty cookieName uses DefaultCookieName.
func NewAuthService(verifier TokenVerifier, cookieName string, logger *zap.Logger) AuthService {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return &authService{
		verifier:   verifier,
		cookieName: cookieName,
		logger:     logger.Named("auth"),
	}
}

func (s *authService) ValidateRequest(r *http.Request) (*Claims, string, error) {
	token, source, err := s.tokenFrom(r)
	if err != nil {
		return nil, "", err
	}

	claims, err := s.verifier.Verify(token)
	if err != nil {
		s.logger.Debug("Rejected session token",
			zap.String("source", source),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		return nil, "", err
	}

	if _, err := claims.UserID(); err != nil {
		s.logger.Warn("Token subject is not a user id",
			zap.String("subject", claims.Subject),
			zap.String("issuer", claims.Issuer))
		return nil, "", err
	}
	return claims, token, nil
}

// tokenFrom reads the bearer token of API clients, falling back to the
// dashboard's session cookie.
func (s *authService) tokenFrom(r *http.Request) (token, source string, err error) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		token = strings.TrimSpace(token)
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			return "", "", ErrMalformedToken
		}
		return token, "header", nil
	}

	if cookie, err := r.Cookie(s.cookieName); err == nil && cookie.Value != "" {
		return cookie.Value, "cookie", nil
	}
	return "", "", ErrMissingToken
}

var _ AuthService = (*authService)(nil)

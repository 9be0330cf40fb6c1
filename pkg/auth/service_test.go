package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/lookout-hq/lookout/pkg/apperrors"
)

type mockVerifier struct {
	claims   *Claims
	err      error
	gotToken string
}

func (m *mockVerifier) Verify(token string) (*Claims, error) {
	m.gotToken = token
	if m.err != nil {
		return nil, m.err
	}
	return m.claims, nil
}

func validClaims() *Claims {
	c := &Claims{Email: "user@example.com"}
	c.Subject = testSubject
	return c
}

func TestAuthService_ValidateRequest_Cookie(t *testing.T) {
	verifier := &mockVerifier{claims: validClaims()}
	svc := NewAuthService(verifier, "", zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/topics", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "cookie-token"})

	claims, token, err := svc.ValidateRequest(req)
	if err != nil {
		t.Fatalf("ValidateRequest failed: %v", err)
	}
	if token != "cookie-token" || verifier.gotToken != "cookie-token" {
		t.Errorf("expected cookie token to be verified, got %q", token)
	}
	if claims.Email != "user@example.com" {
		t.Errorf("unexpected claims %+v", claims)
	}
}

func TestAuthService_ValidateRequest_HeaderWinsOverCookie(t *testing.T) {
	verifier := &mockVerifier{claims: validClaims()}
	svc := NewAuthService(verifier, "custom_cookie", zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/topics", nil)
	req.AddCookie(&http.Cookie{Name: "custom_cookie", Value: "cookie-token"})
	req.Header.Set("Authorization", "bearer header-token")

	_, token, err := svc.ValidateRequest(req)
	if err != nil {
		t.Fatalf("ValidateRequest failed: %v", err)
	}
	if token != "header-token" {
		t.Errorf("expected header token, got %q", token)
	}
}

func TestAuthService_ValidateRequest_Errors(t *testing.T) {
	nonUUID := &Claims{}
	nonUUID.Subject = "auth0|12345"

	tests := []struct {
		name        string
		header      string
		verifierErr error
		claims      *Claims
		wantErr     error
	}{
		{name: "missing", wantErr: ErrMissingToken},
		{name: "wrong scheme", header: "Basic abc", wantErr: ErrMalformedToken},
		{name: "empty bearer", header: "Bearer ", wantErr: ErrMalformedToken},
		{name: "rejected token", header: "Bearer t", verifierErr: ErrInvalidToken, wantErr: ErrInvalidToken},
		{name: "missing subject", header: "Bearer t", claims: &Claims{}, wantErr: ErrMissingSubject},
		{name: "non-uuid subject", header: "Bearer t", claims: nonUUID, wantErr: ErrInvalidSubject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewAuthService(&mockVerifier{claims: tt.claims, err: tt.verifierErr}, "", zap.NewNop())
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			_, _, err := svc.ValidateRequest(req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if !errors.Is(err, apperrors.ErrUnauthenticated) {
				t.Errorf("expected error to match ErrUnauthenticated, got %v", err)
			}
		})
	}
}

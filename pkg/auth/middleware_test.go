package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type mockAuthService struct {
	claims      *Claims
	token       string
	validateErr error
}

func (m *mockAuthService) ValidateRequest(r *http.Request) (*Claims, string, error) {
	if m.validateErr != nil {
		return nil, "", m.validateErr
	}
	return m.claims, m.token, nil
}

func TestMiddleware_RequireAuth_Success(t *testing.T) {
	claims := validClaims()
	middleware := NewMiddleware(&mockAuthService{claims: claims, token: "test-token"}, zap.NewNop())

	var gotUser uuid.UUID
	var gotToken string
	handler := middleware.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _ = GetUserIDFromContext(r.Context())
		gotToken, _ = GetToken(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/topics", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if gotUser.String() != testSubject {
		t.Errorf("expected user %s in context, got %s", testSubject, gotUser)
	}
	if gotToken != "test-token" {
		t.Errorf("expected token 'test-token' in context, got %q", gotToken)
	}
}

func TestMiddleware_RequireAuth_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{"missing token", ErrMissingToken, http.StatusUnauthorized, "Authentication required"},
		{"invalid token", ErrInvalidToken, http.StatusUnauthorized, "Authentication required"},
		{"non-uuid subject", ErrInvalidSubject, http.StatusBadRequest, "Invalid user ID in token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			middleware := NewMiddleware(&mockAuthService{validateErr: tt.err}, zap.NewNop())
			handler := middleware.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
				t.Error("handler should not be called")
			})

			rec := httptest.NewRecorder()
			handler(rec, httptest.NewRequest(http.MethodPost, "/prompts/process", nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if body["error"] != tt.wantError {
				t.Errorf("expected error %q, got %q", tt.wantError, body["error"])
			}
		})
	}
}

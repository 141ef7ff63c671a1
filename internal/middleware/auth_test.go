package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"hygiene-log-backend/internal/services"
)

func identityEcho(t *testing.T, got *services.Identity) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = GetIdentity(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestIdentityFromDeviceHeader(t *testing.T) {
	userService := services.NewUserService(nil, nil, nil, "test-secret")
	var got services.Identity
	handler := Identity(userService)(identityEcho(t, &got))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Device-ID", "dev-1")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if got.DeviceID != "dev-1" || got.Authenticated() {
		t.Errorf("identity = %+v, want unauthenticated device", got)
	}
}

func TestIdentityFromBearerToken(t *testing.T) {
	userService := services.NewUserService(nil, nil, nil, "test-secret")
	token, err := userService.GenerateJWT("user-1")
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	var got services.Identity
	handler := Identity(userService)(identityEcho(t, &got))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if got.UserID != "user-1" || !got.Authenticated() {
		t.Errorf("identity = %+v, want authenticated user-1", got)
	}
}

func TestIdentityRejectsAnonymous(t *testing.T) {
	userService := services.NewUserService(nil, nil, nil, "test-secret")
	handler := Identity(userService)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler reached without identity")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}

func TestIdentityRejectsBadToken(t *testing.T) {
	userService := services.NewUserService(nil, nil, nil, "test-secret")
	forger := services.NewUserService(nil, nil, nil, "other-secret")
	forged, err := forger.GenerateJWT("user-1")
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	tests := []struct {
		name   string
		header string
	}{
		{"malformed header", "NotBearer abc"},
		{"garbage token", "Bearer not.a.jwt"},
		{"wrong secret", "Bearer " + forged},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := Identity(userService)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Error("handler reached with invalid credentials")
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", tt.header)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			if rr.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rr.Code)
			}
		})
	}
}

func TestValidateWebSocketToken(t *testing.T) {
	userService := services.NewUserService(nil, nil, nil, "test-secret")
	token, err := userService.GenerateJWT("user-1")
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	userID, err := ValidateWebSocketToken(token, userService)
	if err != nil {
		t.Fatalf("ValidateWebSocketToken: %v", err)
	}
	if userID != "user-1" {
		t.Errorf("userID = %q, want user-1", userID)
	}

	if _, err := ValidateWebSocketToken("", userService); err == nil {
		t.Error("empty token validated")
	}
	if _, err := ValidateWebSocketToken("not.a.jwt", userService); err == nil {
		t.Error("garbage token validated")
	}
}

func TestRespondErrorEncodesMessage(t *testing.T) {
	rr := httptest.NewRecorder()
	respondError(rr, `token "abc" rejected`, http.StatusUnauthorized)

	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("body %q is not valid JSON: %v", rr.Body.String(), err)
	}
	if body.Error != `token "abc" rejected` {
		t.Errorf("error = %q", body.Error)
	}
}

func TestRequireAuth(t *testing.T) {
	userService := services.NewUserService(nil, nil, nil, "test-secret")
	token, err := userService.GenerateJWT("user-1")
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	reached := false
	handler := Identity(userService)(RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	})))

	// Device identity passes the Identity layer but not RequireAuth.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Device-ID", "dev-1")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized || reached {
		t.Fatalf("device request: status = %d reached = %v, want 401 unreached", rr.Code, reached)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || !reached {
		t.Fatalf("user request: status = %d reached = %v, want 200 reached", rr.Code, reached)
	}
}

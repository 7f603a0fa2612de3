package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/JonMunkholm/votedesk/internal/config"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func signed(t *testing.T, secret string, claims *AdminClaims) string {
	t.Helper()
	tok, err := SignToken([]byte(secret), claims)
	if err != nil {
		t.Fatalf("SignToken: %v", err)
	}
	return tok
}

func validClaims() *AdminClaims {
	return &AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "admin-7",
			Issuer:    "votedesk",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Name: "Ama",
	}
}

func TestAdminAuth(t *testing.T) {
	cfg := &config.SecurityConfig{RequireAuth: true, JWTSecret: testSecret, JWTIssuer: "votedesk"}

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	otherIssuer := validClaims()
	otherIssuer.Issuer = "elsewhere"
	noSubject := validClaims()
	noSubject.Subject = ""

	tests := []struct {
		name     string
		setup    func(r *http.Request)
		wantCode int
		wantSub  string
	}{
		{"missing", func(r *http.Request) {}, http.StatusUnauthorized, ""},
		{"bearer", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signed(t, testSecret, validClaims()))
		}, http.StatusOK, "admin-7"},
		{"cookie", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: SessionCookie, Value: signed(t, testSecret, validClaims())})
		}, http.StatusOK, "admin-7"},
		{"wrong secret", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signed(t, strings.Repeat("x", 32), validClaims()))
		}, http.StatusUnauthorized, ""},
		{"expired", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signed(t, testSecret, expired))
		}, http.StatusUnauthorized, ""},
		{"issuer", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signed(t, testSecret, otherIssuer))
		}, http.StatusUnauthorized, ""},
		{"no subject", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signed(t, testSecret, noSubject))
		}, http.StatusUnauthorized, ""},
		{"garbage", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer not.a.token")
		}, http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotSub string
			h := AdminAuth(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotSub = Subject(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			if gotSub != tt.wantSub {
				t.Errorf("Subject = %q, want %q", gotSub, tt.wantSub)
			}
		})
	}
}

func TestAdminAuthErrorCodes(t *testing.T) {
	cfg := &config.SecurityConfig{RequireAuth: true, JWTSecret: testSecret}
	h := AdminAuth(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if !strings.Contains(rec.Body.String(), "AUTH001") {
		t.Errorf("missing token body = %s, want AUTH001", rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer junk")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if !strings.Contains(rec.Body.String(), "AUTH002") {
		t.Errorf("bad token body = %s, want AUTH002", rec.Body.String())
	}
}

func TestAdminAuthDisabled(t *testing.T) {
	called := false
	h := AdminAuth(&config.SecurityConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if !called || rec.Code != http.StatusOK {
		t.Errorf("called = %v, status = %d; want pass-through", called, rec.Code)
	}
}

func TestParseTokenRejectsOtherAlgorithms(t *testing.T) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS384, validClaims())
	raw, err := tok.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	if _, err := ParseToken([]byte(testSecret), "", raw); err == nil {
		t.Error("ParseToken accepted an HS384 token")
	}
}

func TestTrustedRealIP(t *testing.T) {
	mw := TrustedRealIP([]string{"10.0.0.0/8", "192.168.1.5", "bogus"})

	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{"untrusted ignores headers", "203.0.113.9:4000", map[string]string{"X-Real-IP": "1.2.3.4"}, "203.0.113.9:4000"},
		{"trusted real ip", "10.1.2.3:4000", map[string]string{"X-Real-IP": "1.2.3.4"}, "1.2.3.4"},
		{"trusted forwarded for", "10.1.2.3:4000", map[string]string{"X-Forwarded-For": "5.6.7.8, 10.1.2.3"}, "5.6.7.8"},
		{"bare trusted address", "192.168.1.5:80", map[string]string{"X-Real-IP": "9.9.9.9"}, "9.9.9.9"},
		{"invalid header kept", "10.1.2.3:4000", map[string]string{"X-Real-IP": "nope"}, "10.1.2.3:4000"},
		{"no headers", "10.1.2.3:4000", nil, "10.1.2.3:4000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { got = r.RemoteAddr }))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			if got != tt.want {
				t.Errorf("RemoteAddr = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	r := chi.NewRouter()
	r.Use(Logger)
	r.Get("/admin/{entity}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	})

	req := httptest.NewRequest(http.MethodGet, "/admin/votes", nil)
	req.Header.Set(MountHeader, "m-1")
	r.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	checks := map[string]any{
		"msg":    "request",
		"level":  "WARN",
		"status": float64(http.StatusTeapot),
		"bytes":  float64(len("short and stout")),
		"entity": "votes",
		"route":  "/admin/{entity}",
		"mount":  "m-1",
	}
	for k, want := range checks {
		if line[k] != want {
			t.Errorf("%s = %v, want %v", k, line[k], want)
		}
	}
}

package middleware

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelgate/internal/auth"
	"modelgate/internal/domain/models"
	"modelgate/internal/httputil"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func signToken(t *testing.T, key *ecdsa.PrivateKey, claims *models.ActorClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestAuthMiddleware(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	other, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	logger := testLogger()
	verifier := auth.NewKeyfuncVerifier(func(*jwt.Token) (any, error) { return &key.PublicKey, nil }, logger)

	valid := signToken(t, key, &models.ActorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Permissions: []string{"Article"},
		AppMetadata: models.AppMetadata{Permissions: []string{"Tag.find"}},
	})
	expired := signToken(t, key, &models.ActorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	foreign := signToken(t, other, &models.ActorClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"},
	})
	noSubject := signToken(t, key, &models.ActorClaims{Admin: true})

	tests := []struct {
		name       string
		verifier   auth.JWTVerifier
		header     string
		wantStatus int
		wantActor  *models.Actor
	}{
		{name: "anonymous", verifier: verifier, wantStatus: http.StatusOK},
		{name: "no verifier configured", verifier: nil, header: "Bearer " + valid, wantStatus: http.StatusOK},
		{
			name:       "valid token",
			verifier:   verifier,
			header:     "Bearer " + valid,
			wantStatus: http.StatusOK,
			wantActor:  &models.Actor{ID: "u1", Permissions: []string{"Article", "Tag.find"}},
		},
		{name: "not a bearer header", verifier: verifier, header: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "expired", verifier: verifier, header: "Bearer " + expired, wantStatus: http.StatusUnauthorized},
		{name: "wrong key", verifier: verifier, header: "Bearer " + foreign, wantStatus: http.StatusUnauthorized},
		{name: "missing subject", verifier: verifier, header: "Bearer " + noSubject, wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen *models.Actor
			reached := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				reached = true
				seen = httputil.GetActor(r)
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodPost, "/api/Article/find", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			AuthMiddleware(tt.verifier, logger)(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantStatus == http.StatusOK, reached)
			assert.Equal(t, tt.wantActor, seen)
		})
	}
}

func TestRecovery(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		wantModel  string
		wantAction string
	}{
		{name: "gateway action", path: "/api/Article/save", wantModel: "Article", wantAction: "save"},
		{name: "changes feed", path: "/api/Article/changes/json/teaser", wantModel: "Article", wantAction: "changes"},
		{name: "outside api", path: "/health"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))
			h := Recovery(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				panic("boom")
			}))
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, tt.path, nil))

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

			var entry map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
			assert.Equal(t, "action panicked", entry["msg"])
			assert.Equal(t, tt.wantModel, entry["model"])
			assert.Equal(t, tt.wantAction, entry["action"])
			assert.Equal(t, "boom", entry["panic"])
		})
	}
}

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"memberhub.backend/internal/domain/entities"
	domainerrors "memberhub.backend/internal/domain/errors"
	"memberhub.backend/pkg/jwt"
	"memberhub.backend/pkg/logger"
	"memberhub.backend/pkg/redis"
)

const testSecret = "test-secret-with-enough-length-1234"

type sessionStub map[string]*entities.Session

func (s sessionStub) Get(_ context.Context, id string) (*entities.Session, error) {
	if session, ok := s[id]; ok {
		return session, nil
	}
	return nil, domainerrors.ErrSessionNotFound
}

type memberStub map[uuid.UUID]*entities.MemberProfile

func (s memberStub) GetMember(_ context.Context, id uuid.UUID) (*entities.MemberProfile, error) {
	if m, ok := s[id]; ok {
		return m, nil
	}
	return nil, domainerrors.NotFound("member not found")
}

func newToken(t *testing.T, id uuid.UUID, expiry time.Duration) string {
	t.Helper()
	token, err := jwt.NewJWTService(testSecret, "").GenerateToken(id, "ana@example.com", map[string]any{"full_name": "Ana"}, expiry)
	require.NoError(t, err)
	return token
}

func TestIdentityAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	id := uuid.New()
	r := gin.New()
	r.GET("/me", IdentityAuth(jwt.NewJWTService(testSecret, "")), func(c *gin.Context) {
		identity, ok := GetIdentity(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"id": identity.ID, "email": identity.Email, "name": identity.MetadataString("full_name")})
	})

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"missing", "", http.StatusUnauthorized, "Authorization header is required"},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, "Invalid authorization format"},
		{"garbage", "Bearer abc", http.StatusUnauthorized, "Invalid token"},
		{"expired", "Bearer " + newToken(t, id, -time.Minute), http.StatusUnauthorized, "Token has expired"},
		{"valid", "Bearer " + newToken(t, id, time.Hour), http.StatusOK, id.String()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set(AuthorizationHeader, tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.body)
		})
	}
}

func TestSessionAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	owner, other := uuid.New(), uuid.New()
	sessions := sessionStub{"sess-1": {ID: "sess-1", IdentityID: owner}}

	r := gin.New()
	r.GET("/onboarding", IdentityAuth(jwt.NewJWTService(testSecret, "")), SessionAuth(sessions), func(c *gin.Context) {
		session, ok := GetSession(c)
		require.True(t, ok)
		assert.Equal(t, "sess-1", c.Request.Context().Value(logger.SessionIDKey))
		c.String(http.StatusOK, session.ID)
	})

	call := func(id uuid.UUID, sessionID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/onboarding", nil)
		req.Header.Set(AuthorizationHeader, "Bearer "+newToken(t, id, time.Hour))
		if sessionID != "" {
			req.Header.Set(SessionHeader, sessionID)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, call(owner, "sess-1").Code)
	assert.Equal(t, http.StatusUnauthorized, call(owner, "").Code)
	assert.Equal(t, http.StatusUnauthorized, call(owner, "sess-gone").Code)
	w := call(other, "sess-1")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "does not belong")
}

func TestRequireAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	admin, member, unknown := uuid.New(), uuid.New(), uuid.New()
	members := memberStub{
		admin:  {ID: admin, Role: entities.MemberRoleAdmin},
		member: {ID: member, Role: entities.MemberRoleMember},
	}
	r := gin.New()
	r.GET("/admin", IdentityAuth(jwt.NewJWTService(testSecret, "")), RequireAdmin(members), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	for id, want := range map[uuid.UUID]int{admin: http.StatusNoContent, member: http.StatusForbidden, unknown: http.StatusForbidden} {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set(AuthorizationHeader, "Bearer "+newToken(t, id, time.Hour))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware(), LoggerMiddleware("/health"))
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, logger.RequestID(c.Request.Context()))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	generated := w.Header().Get(RequestIDHeader)
	parsed, err := uuid.Parse(generated)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Body.String())
}

func setupIdempotencyRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	srv, err := miniredis.Run()
	if err != nil {
		t.Skipf("skip: miniredis unavailable in this environment: %v", err)
	}
	t.Cleanup(srv.Close)
	redis.SetClient(goredis.NewClient(&goredis.Options{Addr: srv.Addr()}))
	return srv
}

func TestIdempotencyMiddleware_ReplaysSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	setupIdempotencyRedis(t)
	var calls atomic.Int32
	r := gin.New()
	r.POST("/payment", IdempotencyMiddleware(), func(c *gin.Context) {
		n := calls.Add(1)
		c.JSON(http.StatusCreated, gin.H{"call": n})
	})

	send := func(key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/payment", strings.NewReader(`{}`))
		if key != "" {
			req.Header.Set(IdempotencyHeader, key)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	first := send("k1")
	second := send("k1")
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get("X-Idempotency-Hit"))
	assert.EqualValues(t, 1, calls.Load())

	send("")
	send("k2")
	assert.EqualValues(t, 3, calls.Load())
}

func TestIdempotencyMiddleware_FailureAllowsRetry(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := setupIdempotencyRedis(t)
	fail := true
	r := gin.New()
	r.POST("/payment", IdempotencyMiddleware(), func(c *gin.Context) {
		if fail {
			c.JSON(http.StatusBadGateway, gin.H{"code": "GATEWAY_ERROR"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodPost, "/payment", nil)
	req.Header.Set(IdempotencyHeader, "k1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Empty(t, srv.Keys())

	fail = false
	req = httptest.NewRequest(http.MethodPost, "/payment", nil)
	req.Header.Set(IdempotencyHeader, "k1")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestIdempotencyMiddleware_InFlightConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := setupIdempotencyRedis(t)
	require.NoError(t, srv.Set("idempotency:anonymous:/payment:k1", idempotencyProcessing))

	r := gin.New()
	r.POST("/payment", IdempotencyMiddleware(), func(c *gin.Context) {
		t.Fatal("handler must not run while the key is in flight")
	})
	req := httptest.NewRequest(http.MethodPost, "/payment", nil)
	req.Header.Set(IdempotencyHeader, "k1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), idempotencyConflict)
}

func TestBodyLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/sig", BodyLimit(8), func(c *gin.Context) {
		var body map[string]string
		if err := c.ShouldBindJSON(&body); err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/sig", strings.NewReader(`{"a":"b"}`)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/sig", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusOK, w.Code)
}

package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"memberhub.backend/internal/domain/entities"
	domainerrors "memberhub.backend/internal/domain/errors"
	"memberhub.backend/internal/interfaces/http/response"
	"memberhub.backend/pkg/jwt"
	"memberhub.backend/pkg/logger"
)

const (
	// AuthorizationHeader is the header key for authorization
	AuthorizationHeader = "Authorization"
	// BearerPrefix is the prefix for bearer tokens
	BearerPrefix = "Bearer "
	// SessionHeader carries the onboarding session id
	SessionHeader = "X-Session-ID"
	// IdentityKey is the context key for the verified identity
	IdentityKey = "identity"
	// SessionKey is the context key for the resolved session
	SessionKey = "session"
	// MemberKey is the context key for the admin's member profile
	MemberKey = "member"
)

// TokenVerifier validates identity-service access tokens.
type TokenVerifier interface {
	ValidateToken(tokenString string) (*jwt.Claims, error)
}

// SessionResolver loads an open session.
type SessionResolver interface {
	Get(ctx context.Context, sessionID string) (*entities.Session, error)
}

// MemberLookup loads a member profile.
type MemberLookup interface {
	GetMember(ctx context.Context, id uuid.UUID) (*entities.MemberProfile, error)
}

// IdentityAuth verifies the bearer token and stores the identity in the context.
func IdentityAuth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader(AuthorizationHeader)
		if authHeader == "" {
			logger.Warn(c.Request.Context(), "Authorization header is missing", zap.String("path", c.Request.URL.Path))
			abort(c, domainerrors.Unauthorized("Authorization header is required"))
			return
		}
		if !strings.HasPrefix(authHeader, BearerPrefix) {
			abort(c, domainerrors.Unauthorized("Invalid authorization format. Use: Bearer <token>"))
			return
		}

		claims, err := verifier.ValidateToken(strings.TrimPrefix(authHeader, BearerPrefix))
		if err != nil {
			logger.Warn(c.Request.Context(), "Token rejected", zap.String("path", c.Request.URL.Path), zap.Error(err))
			if errors.Is(err, jwt.ErrExpiredToken) {
				abort(c, domainerrors.NewAppError(http.StatusUnauthorized, domainerrors.CodeUnauthorized, "Token has expired", domainerrors.ErrTokenExpired))
				return
			}
			abort(c, domainerrors.Unauthorized("Invalid token"))
			return
		}
		id, _ := claims.IdentityID()

		identity := entities.Identity{ID: id, Email: claims.Email, Metadata: claims.UserMetadata}
		if claims.IssuedAt != nil {
			identity.CreatedAt = claims.IssuedAt.Time
		}
		c.Set(IdentityKey, identity)
		c.Request = c.Request.WithContext(logger.WithIdentity(c.Request.Context(), id.String()))
		c.Next()
	}
}

// SessionAuth resolves X-Session-ID. The session must belong to the bearer identity.
func SessionAuth(sessions SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := strings.TrimSpace(c.GetHeader(SessionHeader))
		if sessionID == "" {
			abort(c, domainerrors.Unauthorized("X-Session-ID header is required"))
			return
		}

		session, err := sessions.Get(c.Request.Context(), sessionID)
		if err != nil {
			if errors.Is(err, domainerrors.ErrSessionNotFound) {
				abort(c, domainerrors.Unauthorized("Session expired or not found"))
				return
			}
			abort(c, err)
			return
		}
		if identity, ok := GetIdentity(c); ok && identity.ID != session.IdentityID {
			logger.Warn(c.Request.Context(), "Session does not belong to the token identity", zap.String("path", c.Request.URL.Path))
			abort(c, domainerrors.Unauthorized("Session does not belong to this identity"))
			return
		}

		c.Set(SessionKey, session)
		ctx := context.WithValue(c.Request.Context(), logger.SessionIDKey, session.ID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireAdmin allows the request only when the identity's profile has the admin role.
func RequireAdmin(members MemberLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := GetIdentity(c)
		if !ok {
			abort(c, domainerrors.Unauthorized("User not authenticated"))
			return
		}
		member, err := members.GetMember(c.Request.Context(), identity.ID)
		if err != nil {
			if errors.Is(err, domainerrors.ErrNotFound) {
				abort(c, domainerrors.Forbidden("Insufficient permissions"))
				return
			}
			abort(c, err)
			return
		}
		if !member.IsAdmin() {
			abort(c, domainerrors.Forbidden("Insufficient permissions"))
			return
		}
		c.Set(MemberKey, member)
		c.Next()
	}
}

// GetIdentity gets the verified identity from context
func GetIdentity(c *gin.Context) (entities.Identity, bool) {
	v, exists := c.Get(IdentityKey)
	if !exists {
		return entities.Identity{}, false
	}
	identity, ok := v.(entities.Identity)
	return identity, ok
}

// GetSession gets the resolved session from context
func GetSession(c *gin.Context) (*entities.Session, bool) {
	v, exists := c.Get(SessionKey)
	if !exists {
		return nil, false
	}
	session, ok := v.(*entities.Session)
	return session, ok && session != nil
}

func abort(c *gin.Context, err error) {
	response.Error(c, err)
	c.Abort()
}

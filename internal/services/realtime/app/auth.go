package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/louisbranch/pulse/internal/platform/errors"
	"github.com/louisbranch/pulse/internal/platform/requestctx"
)

const (
	tokenCookieName     = "pulse_token"
	tokenQueryParam     = "access_token"
	internalTokenHeader = "X-Internal-Token"
)

var errMissingToken = errors.New("access token is required")

// Authenticator resolves a bearer credential to an opaque user id.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (string, error)
}

type userClaims struct {
	UserID string `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

// JWTAuthenticator validates HS256 tokens signed with a shared secret.
type JWTAuthenticator struct {
	secret []byte
}

// NewJWTAuthenticator returns an authenticator for the given signing secret.
func NewJWTAuthenticator(secret string) *JWTAuthenticator {
	return &JWTAuthenticator{secret: []byte(secret)}
}

// Authenticate returns the token's user_id claim, falling back to sub.
func (a *JWTAuthenticator) Authenticate(_ context.Context, accessToken string) (string, error) {
	if a == nil || len(a.secret) == 0 {
		return "", errors.New("auth is not configured")
	}
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return "", errMissingToken
	}

	claims := &userClaims{}
	_, err := jwt.ParseWithClaims(accessToken, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}

	userID := strings.TrimSpace(claims.UserID)
	if userID == "" {
		userID = strings.TrimSpace(claims.Subject)
	}
	if userID == "" {
		return "", errors.New("token carries no user id")
	}
	return userID, nil
}

// accessTokenFromRequest reads the bearer header, then the session cookie,
// then the query parameter browsers use for socket upgrades.
func accessTokenFromRequest(c *gin.Context) string {
	if header := strings.TrimSpace(c.GetHeader("Authorization")); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := c.Cookie(tokenCookieName); err == nil && strings.TrimSpace(cookie) != "" {
		return strings.TrimSpace(cookie)
	}
	return strings.TrimSpace(c.Query(tokenQueryParam))
}

// requireUser resolves the caller and stores the id on the request context.
func requireUser(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if auth == nil {
			writeError(c, apperrors.New(apperrors.CodeUnavailable, "auth is not configured"))
			return
		}
		token := accessTokenFromRequest(c)
		if token == "" {
			writeError(c, apperrors.Wrap(apperrors.CodeUnauthenticated, "authentication required", errMissingToken))
			return
		}
		userID, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			log.Printf("realtime: unauthorized %s %s remote=%s err=%v", c.Request.Method, c.Request.URL.Path, c.ClientIP(), err)
			writeError(c, apperrors.Wrap(apperrors.CodeUnauthenticated, "authentication required", err))
			return
		}
		c.Request = c.Request.WithContext(requestctx.WithUserID(c.Request.Context(), userID))
		c.Next()
	}
}

// requireInternalToken guards producer routes with a shared secret.
func requireInternalToken(expected string) gin.HandlerFunc {
	expectedBytes := []byte(expected)
	return func(c *gin.Context) {
		provided := []byte(strings.TrimSpace(c.GetHeader(internalTokenHeader)))
		if len(provided) == 0 || subtle.ConstantTimeCompare(provided, expectedBytes) != 1 {
			writeError(c, apperrors.New(apperrors.CodeUnauthenticated, "invalid internal token"))
			return
		}
		c.Next()
	}
}

func callerID(c *gin.Context) string {
	return requestctx.UserIDFromContext(c.Request.Context())
}

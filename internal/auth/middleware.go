package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const identityKey = "portal.identity"

// Identity is the authenticated caller. SessionID scopes transient UI state
// such as prompt suppression; a new session starts with a clean slate.
type Identity struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
}

// Claims are the token claims issued by the external auth service.
type Claims struct {
	SessionID string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 bearer tokens.
type Verifier struct {
	secret []byte
	issuer string
}

func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

// Verify parses a token and returns the identity it carries. A token without
// a sid claim falls back to its jti, then to the subject, so every token
// still maps to exactly one session.
func (v *Verifier) Verify(token string) (Identity, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return Identity{}, fmt.Errorf("invalid token: %w", err)
	}
	if claims.Subject == "" {
		return Identity{}, errors.New("invalid token: missing subject")
	}

	session := claims.SessionID
	if session == "" {
		session = claims.ID
	}
	if session == "" {
		session = claims.Subject
	}
	return Identity{UserID: claims.Subject, SessionID: session}, nil
}

// Issue signs a token for userID/sessionID. Used by tests and local tooling;
// production tokens come from the auth service.
func (v *Verifier) Issue(userID, sessionID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Middleware authenticates requests and stores the Identity on the context.
// Browsers cannot set headers on websocket upgrades, so an access_token query
// parameter is accepted as well.
func Middleware(v *Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token = c.Query("access_token")
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token", "code": "UNAUTHORIZED"})
			return
		}

		id, err := v.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error(), "code": "UNAUTHORIZED"})
			return
		}

		c.Set(identityKey, id)
		c.Next()
	}
}

// FromContext returns the identity set by Middleware.
func FromContext(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}

// Require returns the identity or writes a 401 and reports false.
func Require(c *gin.Context) (Identity, bool) {
	id, ok := FromContext(c)
	if !ok || id.UserID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated", "code": "UNAUTHORIZED"})
		return Identity{}, false
	}
	return id, true
}

// WithIdentity stores id on the context. Handler tests use it in place of Middleware.
func WithIdentity(id Identity) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(identityKey, id)
		c.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

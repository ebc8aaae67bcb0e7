// Package auth provides HMAC-based API key authentication for the REST API.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HeaderAPIKey carries the API key on every authenticated request.
const HeaderAPIKey = "X-API-Key"

// contextKey is a typed key for context values to avoid collisions.
type contextKey string

// userIDKey is the context key for storing the authenticated user ID.
const userIDKey = contextKey("user_id")

// Queries interface defines database operations needed for authentication.
// Implemented by *db.Queries.
type Queries interface {
	Get(ctx context.Context, name string, dest interface{}, args ...interface{}) error
	Exec(ctx context.Context, name string, args ...interface{}) (sql.Result, error)
}

// Authenticator validates API keys using HMAC-SHA256 signatures.
// Holds in-memory secret map for O(1) lookup and queries for key verification.
type Authenticator struct {
	secrets map[string][]byte
	queries Queries
	logger  *slog.Logger
}

// NewAuthenticator creates an authenticator with HMAC secrets and query interface.
func NewAuthenticator(secrets map[string][]byte, queries Queries, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{
		secrets: secrets,
		queries: queries,
		logger:  logger.With("component", "auth"),
	}
}

// Authenticate validates an API key and returns the owning user ID.
func (a *Authenticator) Authenticate(ctx context.Context, apiKey string) (int64, error) {
	secretID, _, err := ParseAPIKey(apiKey)
	if err != nil {
		return 0, err
	}

	secret, ok := a.secrets[secretID]
	if !ok {
		return 0, ErrUnknownKey
	}

	computedHash := ComputeHMAC(secret, apiKey)

	// key_hash is unique, so at most one row matches
	var result struct {
		APIKeyID   string       `db:"api_key_id"`
		UserID     int64        `db:"user_id"`
		RevokedAt  sql.NullTime `db:"revoked_at"`
		LastUsedAt sql.NullTime `db:"last_used_at"`
	}

	err = a.queries.Get(ctx, "get-api-key-by-hash", &result, computedHash)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrInvalidKey
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if result.RevokedAt.Valid {
		return 0, ErrKeyRevoked
	}

	if shouldUpdateLastUsed(result.LastUsedAt) {
		if _, err := a.queries.Exec(ctx, "update-last-used", time.Now().UTC(), result.APIKeyID); err != nil {
			a.logger.Warn("failed to record API key use", "api_key_id", result.APIKeyID, "error", err)
		}
	}

	return result.UserID, nil
}

// shouldUpdateLastUsed throttles last_used_at writes to one per minute.
func shouldUpdateLastUsed(lastUsed sql.NullTime) bool {
	if !lastUsed.Valid {
		return true
	}
	return time.Since(lastUsed.Time) > time.Minute
}

// Middleware returns a gin handler that authenticates the X-API-Key header
// and stores the user ID in the request context.
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader(HeaderAPIKey)
		if apiKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrMissingKey.Error()})
			return
		}

		userID, err := a.Authenticate(c.Request.Context(), apiKey)
		if err != nil {
			status := StatusFor(err)
			if status == http.StatusServiceUnavailable {
				a.logger.Error("authentication failed", "error", err)
			}
			c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
			return
		}

		c.Request = c.Request.WithContext(WithUserID(c.Request.Context(), userID))
		c.Next()
	}
}

// StatusFor maps an authentication error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrKeyRevoked):
		return http.StatusForbidden
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnauthorized
	}
}

// WithUserID returns ctx carrying the authenticated user ID.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext extracts the authenticated user ID from context.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(userIDKey).(int64)
	return userID, ok
}

// IssueAPIKey generates a key for userID signed with secret, stores its hash
// and returns the plaintext key. The plaintext is not recoverable later.
func IssueAPIKey(ctx context.Context, q Queries, secretID string, secret []byte, userID int64, name string) (apiKeyID, apiKey string, err error) {
	apiKey, err = GenerateAPIKey(secretID)
	if err != nil {
		return "", "", err
	}
	apiKeyID = uuid.Must(uuid.NewV7()).String()
	_, err = q.Exec(ctx, "insert-api-key",
		apiKeyID, userID, name, secretID, ComputeHMAC(secret, apiKey), time.Now().UTC())
	if err != nil {
		return "", "", fmt.Errorf("store API key: %w", err)
	}
	return apiKeyID, apiKey, nil
}

// RevokeAPIKey marks a key revoked. Revoking twice is a no-op.
func RevokeAPIKey(ctx context.Context, q Queries, apiKeyID string) error {
	if _, err := q.Exec(ctx, "revoke-api-key", time.Now().UTC(), apiKeyID); err != nil {
		return fmt.Errorf("revoke API key %s: %w", apiKeyID, err)
	}
	return nil
}

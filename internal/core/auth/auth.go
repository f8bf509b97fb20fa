// Package auth provides HMAC-based plugin key authentication for gRPC services.
//
// A plugin key identifies one extension. The key itself is never stored:
// the database holds HMAC-SHA256(secret, key) and the secret lives only in
// the host's environment.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// contextKey is a typed key for context values to avoid collisions.
type contextKey string

// extensionIDKey is the context key for the authenticated extension.
const extensionIDKey = contextKey("extension_id")

// MetadataKey carries the plugin key in gRPC metadata.
const MetadataKey = "x-plugin-key"

// Queries defines the database operations needed for authentication.
// Implemented by *db.Queries.
type Queries interface {
	Get(ctx context.Context, name string, dest any, args ...any) error
	Select(ctx context.Context, name string, dest any, args ...any) error
	Exec(ctx context.Context, name string, args ...any) (sql.Result, error)
}

// Authenticator validates plugin keys using HMAC-SHA256 signatures.
type Authenticator struct {
	secrets map[string][]byte
	queries Queries
	now     func() time.Time
}

// NewAuthenticator creates an authenticator with HMAC secrets and query interface.
func NewAuthenticator(secrets map[string][]byte, queries Queries) *Authenticator {
	return &Authenticator{
		secrets: secrets,
		queries: queries,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Authenticate validates a plugin key and returns the extension it belongs to.
func (a *Authenticator) Authenticate(ctx context.Context, key string) (string, error) {
	secretID, _, err := ParseKey(key)
	if err != nil {
		return "", err
	}

	secret, ok := a.secrets[secretID]
	if !ok {
		return "", ErrUnknownKey
	}

	var row struct {
		PluginKeyID string       `db:"plugin_key_id"`
		ExtensionID string       `db:"extension_id"`
		RevokedAt   sql.NullTime `db:"revoked_at"`
		LastUsedAt  sql.NullTime `db:"last_used_at"`
	}
	err = a.queries.Get(ctx, "get-plugin-key-by-hash", &row, ComputeHMAC(secret, key))
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrInvalidKey
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorage, err)
	}

	if row.RevokedAt.Valid {
		return "", ErrKeyRevoked
	}

	// 1-minute throttle keeps publishing plugins from writing on every call
	now := a.now()
	if !row.LastUsedAt.Valid || now.Sub(row.LastUsedAt.Time) > time.Minute {
		_, _ = a.queries.Exec(ctx, "update-last-used", now, row.PluginKeyID)
	}

	return row.ExtensionID, nil
}

// UnaryInterceptor returns gRPC interceptor that authenticates requests.
// Health checks pass through unauthenticated.
func (a *Authenticator) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if info.FullMethod == "/grpc.health.v1.Health/Check" {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}
		keys := md.Get(MetadataKey)
		if len(keys) == 0 {
			return nil, status.Error(codes.Unauthenticated, ErrMissingKey.Error())
		}

		extensionID, err := a.Authenticate(ctx, keys[0])
		switch {
		case err == nil:
		case errors.Is(err, ErrKeyRevoked):
			return nil, status.Error(codes.PermissionDenied, err.Error())
		case errors.Is(err, ErrStorage):
			return nil, status.Error(codes.Unavailable, err.Error())
		default:
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}

		return handler(WithExtensionID(ctx, extensionID), req)
	}
}

// WithExtensionID returns ctx carrying the authenticated extension.
func WithExtensionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, extensionIDKey, id)
}

// ExtensionIDFromContext extracts the authenticated extension.
// Returns empty string if not found.
func ExtensionIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(extensionIDKey).(string); ok {
		return id
	}
	return ""
}

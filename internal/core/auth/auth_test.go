package auth

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/solatis/lumen/internal/core/db"
)

const testSecretID = "0123456789abcdef0123456789abcdef"

func newTestAuthenticator(t *testing.T) *Authenticator {
	t.Helper()
	ctx := context.Background()
	conn, err := db.Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "keys.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if _, err := db.MigrateUp(ctx, conn); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}
	queries, err := db.LoadQueries(conn)
	if err != nil {
		t.Fatalf("LoadQueries failed: %v", err)
	}
	secrets := map[string][]byte{testSecretID: []byte("testsecret1234567890abcdefghijklmnop")}
	return NewAuthenticator(secrets, queries)
}

func TestParseKey(t *testing.T) {
	random := strings.Repeat("ab", 32)
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"valid", FormatKey(testSecretID, random), false},
		{"wrong prefix", "tk-v1-" + testSecretID + "-" + random, true},
		{"wrong version", "lm-v2-" + testSecretID + "-" + random, true},
		{"short random", FormatKey(testSecretID, "abcd"), true},
		{"uppercase hex", FormatKey(strings.ToUpper(testSecretID), random), true},
		{"extra part", FormatKey(testSecretID, random) + "-x", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			secretID, _, err := ParseKey(tt.key)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidKeyFormat) {
					t.Errorf("ParseKey() error = %v, want ErrInvalidKeyFormat", err)
				}
				return
			}
			if err != nil || secretID != testSecretID {
				t.Errorf("ParseKey() = %q, %v", secretID, err)
			}
		})
	}
}

func TestGenerateKey(t *testing.T) {
	a, err := GenerateKey(testSecretID)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	b, _ := GenerateKey(testSecretID)
	if a == b {
		t.Error("GenerateKey returned the same key twice")
	}
	if len(a) != 102 {
		t.Errorf("key length = %d, want 102", len(a))
	}
	if _, _, err := ParseKey(a); err != nil {
		t.Errorf("generated key does not parse: %v", err)
	}
	if !VerifyHMAC(ComputeHMAC([]byte("s"), a), ComputeHMAC([]byte("s"), a)) {
		t.Error("VerifyHMAC rejected identical signatures")
	}
}

func TestAuthenticator_Lifecycle(t *testing.T) {
	ctx := context.Background()
	auth := newTestAuthenticator(t)

	key, info, err := auth.Issue(ctx, "racing", "sim rig", testSecretID)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	ext, err := auth.Authenticate(ctx, key)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if ext != "racing" {
		t.Errorf("Authenticate() = %q, want racing", ext)
	}

	keys, err := auth.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != 1 || keys[0].ID != info.ID || keys[0].Name != "sim rig" {
		t.Fatalf("Keys() = %+v", keys)
	}
	if !keys[0].LastUsedAt.Valid {
		t.Error("last_used_at not recorded")
	}

	// A key signed by a configured secret but never issued
	forged, _ := GenerateKey(testSecretID)
	if _, err := auth.Authenticate(ctx, forged); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("forged key error = %v, want ErrInvalidKey", err)
	}

	if err := auth.Revoke(ctx, info.ID); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if _, err := auth.Authenticate(ctx, key); !errors.Is(err, ErrKeyRevoked) {
		t.Errorf("revoked key error = %v, want ErrKeyRevoked", err)
	}
	if err := auth.Revoke(ctx, info.ID); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("second Revoke error = %v, want ErrKeyNotFound", err)
	}
}

func TestAuthenticator_IssueRejects(t *testing.T) {
	ctx := context.Background()
	auth := newTestAuthenticator(t)

	if _, _, err := auth.Issue(ctx, "builtin", "", testSecretID); err == nil {
		t.Error("Issue accepted the builtin extension id")
	}
	if _, _, err := auth.Issue(ctx, "", "", testSecretID); err == nil {
		t.Error("Issue accepted an empty extension id")
	}
	if _, _, err := auth.Issue(ctx, "racing", "", "fedcba9876543210fedcba9876543210"); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("unknown secret error = %v, want ErrUnknownKey", err)
	}
}

func TestUnaryInterceptor(t *testing.T) {
	ctx := context.Background()
	auth := newTestAuthenticator(t)
	key, info, err := auth.Issue(ctx, "racing", "", testSecretID)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	interceptor := auth.UnaryInterceptor()
	var seen string
	handler := func(ctx context.Context, req any) (any, error) {
		seen = ExtensionIDFromContext(ctx)
		return "ok", nil
	}
	call := func(ctx context.Context, method string) error {
		_, err := interceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: method}, handler)
		return err
	}
	withKey := func(k string) context.Context {
		return metadata.NewIncomingContext(ctx, metadata.Pairs(MetadataKey, k))
	}

	if err := call(withKey(key), "/lumen.host.v1.ConditionHost/GetElementStates"); err != nil {
		t.Fatalf("authenticated call failed: %v", err)
	}
	if seen != "racing" {
		t.Errorf("handler saw extension %q, want racing", seen)
	}

	if err := call(ctx, "/grpc.health.v1.Health/Check"); err != nil {
		t.Errorf("health check rejected: %v", err)
	}

	tests := []struct {
		name string
		ctx  context.Context
		want codes.Code
	}{
		{"no metadata", ctx, codes.Unauthenticated},
		{"no key", metadata.NewIncomingContext(ctx, metadata.Pairs("other", "x")), codes.Unauthenticated},
		{"malformed key", withKey("nope"), codes.Unauthenticated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := call(tt.ctx, "/lumen.host.v1.ConditionHost/TriggerEvent")
			if status.Code(err) != tt.want {
				t.Errorf("code = %v, want %v", status.Code(err), tt.want)
			}
		})
	}

	auth.now = func() time.Time { return time.Now().UTC().Add(time.Hour) }
	if err := auth.Revoke(ctx, info.ID); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if err := call(withKey(key), "/lumen.host.v1.ConditionHost/TriggerEvent"); status.Code(err) != codes.PermissionDenied {
		t.Errorf("revoked key code = %v, want PermissionDenied", status.Code(err))
	}
}

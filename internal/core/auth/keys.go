package auth

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/solatis/lumen/internal/types"
)

// KeyInfo describes a stored plugin key. The key itself is never stored.
type KeyInfo struct {
	ID          string       `db:"plugin_key_id"`
	ExtensionID string       `db:"extension_id"`
	Name        string       `db:"name"`
	SecretID    string       `db:"secret_id"`
	CreatedAt   time.Time    `db:"created_at"`
	LastUsedAt  sql.NullTime `db:"last_used_at"`
	RevokedAt   sql.NullTime `db:"revoked_at"`
}

// Revoked reports whether the key was revoked.
func (k KeyInfo) Revoked() bool { return k.RevokedAt.Valid }

// Issue creates a plugin key for extensionID signed with the secret
// secretID. The returned key is shown once and cannot be recovered.
func (a *Authenticator) Issue(ctx context.Context, extensionID, name, secretID string) (string, KeyInfo, error) {
	if extensionID == "" {
		return "", KeyInfo{}, fmt.Errorf("%w: empty extension id", types.ErrInvalidEntity)
	}
	if extensionID == types.BuiltinExtensionID {
		return "", KeyInfo{}, fmt.Errorf("%w: extension id %q is reserved", types.ErrInvalidEntity, extensionID)
	}
	secret, ok := a.secrets[secretID]
	if !ok {
		return "", KeyInfo{}, ErrUnknownKey
	}

	key, err := GenerateKey(secretID)
	if err != nil {
		return "", KeyInfo{}, err
	}

	info := KeyInfo{
		ID:          string(types.NewKeyID()),
		ExtensionID: extensionID,
		Name:        name,
		SecretID:    secretID,
		CreatedAt:   a.now(),
	}
	_, err = a.queries.Exec(ctx, "create-plugin-key",
		info.ID, info.ExtensionID, info.Name, info.SecretID, ComputeHMAC(secret, key), info.CreatedAt)
	if err != nil {
		return "", KeyInfo{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return key, info, nil
}

// Keys lists every stored plugin key, oldest first.
func (a *Authenticator) Keys(ctx context.Context) ([]KeyInfo, error) {
	var out []KeyInfo
	if err := a.queries.Select(ctx, "list-plugin-keys", &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return out, nil
}

// Revoke blocks the key with id. Revoking twice returns ErrKeyNotFound.
func (a *Authenticator) Revoke(ctx context.Context, id string) error {
	res, err := a.queries.Exec(ctx, "revoke-plugin-key", a.now(), id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrKeyNotFound
	}
	return nil
}

// SecretIDs lists the configured signing secrets in sorted order.
func (a *Authenticator) SecretIDs() []string {
	ids := make([]string, 0, len(a.secrets))
	for id := range a.secrets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

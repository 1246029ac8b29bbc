// Package identity resolves the user that owns the record collections.
// Nothing subscribes to the store before an identity is resolved.
package identity

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"

	"github.com/mamadbah2/argan/internal/config"
)

// Mode tells how the identity was obtained.
type Mode string

const (
	ModeExplicit  Mode = "explicit"
	ModeToken     Mode = "token"
	ModeAnonymous Mode = "anonymous"
)

// Identity is the resolved acting user.
type Identity struct {
	UserID string
	Mode   Mode
}

// Resolve picks USER_ID, then a token-derived ID, then a fresh anonymous ID.
// Token IDs are stable across restarts; anonymous ones are not.
func Resolve(cfg config.AppConfig) Identity {
	switch {
	case cfg.UserID != "":
		return Identity{UserID: cfg.UserID, Mode: ModeExplicit}
	case cfg.AuthToken != "":
		sum := sha256.Sum256([]byte(cfg.AuthToken))
		return Identity{UserID: hex.EncodeToString(sum[:])[:28], Mode: ModeToken}
	default:
		return Identity{UserID: "anon-" + uuid.NewString(), Mode: ModeAnonymous}
	}
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken stores the hash of an issued refresh credential. The plaintext
// token is only ever held by the client; presenting it consumes the row and a
// replacement is issued (rotation).
type RefreshToken struct {
	BaseModel
	UserID    uuid.UUID  `gorm:"type:uuid;index" json:"user_id"`
	TokenHash string     `gorm:"uniqueIndex" json:"-"`
	DeviceID  string     `json:"device_id"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at"`
	RevokedAt *time.Time `json:"revoked_at"`
}

// Usable reports whether the token can still be exchanged.
func (t *RefreshToken) Usable(now time.Time) bool {
	return t.UsedAt == nil && t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

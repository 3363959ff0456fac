package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Session is the authenticated UI session a synchronizer works for.
// It is handed to the Record Store client at construction time.
type Session struct {
	Token     string
	Subject   string
	Name      string
	ExpiresAt time.Time
}

// Key identifies the session in the registry without exposing the token.
func (s Session) Key() string {
	h := sha256.Sum256([]byte(s.Token))
	return hex.EncodeToString(h[:])
}

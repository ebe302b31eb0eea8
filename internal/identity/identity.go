// Package identity derives the voter identities shown on participation
// records so the raw user id never appears in public views.
package identity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

// Anonymizer produces deterministic pseudonyms keyed by a server secret.
// The same (user, topic) pair always maps to the same pseudonym, which is
// what keeps repeat-participation checks and result displays stable without
// exposing the user id.
type Anonymizer struct {
	key []byte
}

func New(secret string) *Anonymizer {
	return &Anonymizer{key: []byte(secret)}
}

// Pseudonym returns hex(HMAC-SHA256(key, userID|topicID)).
func (a *Anonymizer) Pseudonym(userID, topicID string) string {
	mac := hmac.New(sha256.New, a.key)
	mac.Write([]byte(userID))
	mac.Write([]byte{'|'})
	mac.Write([]byte(topicID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Ephemeral returns a random one-shot identity for anonymous participation.
func Ephemeral() string {
	return "anon-" + uuid.NewString()
}

package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Envelope is the payload carried by a check-in token. It identifies one
// concrete class occurrence: the branch, the start instant and the slot key,
// plus the enrollment when the token was issued for a pre-assigned student.
type Envelope struct {
	Branch       string `json:"branch"`
	Start        string `json:"start"`
	SlotKey      string `json:"slotKey"`
	EnrollmentID string `json:"enrollmentId,omitempty"`
}

// StartInstant parses the embedded start timestamp.
func (e Envelope) StartInstant() (time.Time, error) {
	return time.Parse(time.RFC3339, e.Start)
}

// Codec encodes and decodes signed check-in tokens. The wire format is
// base64url(json).hex(hmac-sha256), so a token is self-describing but cannot
// be forged or altered without the secret.
type Codec struct {
	secret []byte
}

// NewCodec constructs a codec with the provided signing secret.
func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret)}
}

// Encode serialises and signs an envelope.
func (c *Codec) Encode(env Envelope) (string, error) {
	if env.Branch == "" || env.Start == "" || env.SlotKey == "" {
		return "", fmt.Errorf("branch, start and slotKey required")
	}
	if len(c.secret) == 0 {
		return "", fmt.Errorf("signing secret missing")
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("marshal token envelope: %w", err)
	}
	payload := base64.RawURLEncoding.EncodeToString(raw)
	return payload + "." + c.sign(payload), nil
}

// Decode verifies the signature and unmarshals the envelope. Any structural
// or signature problem is reported as a plain error; callers map it to their
// own rejection kind.
func (c *Codec) Decode(tok string) (Envelope, error) {
	var env Envelope
	parts := strings.Split(tok, ".")
	if len(parts) != 2 {
		return env, fmt.Errorf("invalid token format")
	}
	payload, signature := parts[0], parts[1]
	if !hmac.Equal([]byte(c.sign(payload)), []byte(signature)) {
		return env, fmt.Errorf("invalid token signature")
	}
	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return env, fmt.Errorf("decode token payload: %w", err)
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, fmt.Errorf("unmarshal token envelope: %w", err)
	}
	if env.Branch == "" || env.Start == "" || env.SlotKey == "" {
		return env, fmt.Errorf("token envelope missing required fields")
	}
	if _, err := env.StartInstant(); err != nil {
		return env, fmt.Errorf("invalid start instant: %w", err)
	}
	return env, nil
}

func (c *Codec) sign(payload string) string {
	mac := hmac.New(sha256.New, c.secret)
	_, _ = mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

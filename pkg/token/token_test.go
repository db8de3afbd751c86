package token

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecRoundTrip(t *testing.T) {
	codec := NewCodec("secret")
	env := Envelope{
		Branch:       "branch-1",
		Start:        "2025-03-10T10:00:00Z",
		SlotKey:      "prof-1|1|600|720",
		EnrollmentID: "enroll-1",
	}

	tok, err := codec.Encode(env)
	require.NoError(t, err)

	decoded, err := codec.Decode(tok)
	require.NoError(t, err)
	assert.Equal(t, env, decoded)

	start, err := decoded.StartInstant()
	require.NoError(t, err)
	assert.Equal(t, 10, start.Hour())
}

func TestCodecRejectsTamperedPayload(t *testing.T) {
	codec := NewCodec("secret")
	tok, err := codec.Encode(Envelope{Branch: "b", Start: "2025-03-10T10:00:00Z", SlotKey: "k|1|600|720"})
	require.NoError(t, err)

	parts := strings.Split(tok, ".")
	tampered := parts[0] + "x." + parts[1]
	_, err = codec.Decode(tampered)
	assert.Error(t, err)
}

func TestCodecRejectsWrongSecret(t *testing.T) {
	tok, err := NewCodec("secret-a").Encode(Envelope{Branch: "b", Start: "2025-03-10T10:00:00Z", SlotKey: "k|1|600|720"})
	require.NoError(t, err)

	_, err = NewCodec("secret-b").Decode(tok)
	assert.Error(t, err)
}

func TestCodecRejectsMissingFields(t *testing.T) {
	codec := NewCodec("secret")
	_, err := codec.Encode(Envelope{Branch: "b"})
	assert.Error(t, err)
}

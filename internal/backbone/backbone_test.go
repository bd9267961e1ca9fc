package backbone

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"marketchat/internal/testutil"
	"marketchat/internal/types"
)

func TestNoop(t *testing.T) {
	bb := NewNoop()

	handled := false
	bb.Start(context.Background(), func(env Envelope) { handled = true })

	err := bb.Publish(context.Background(), Envelope{Message: &types.MessageEvent{Id: "m1"}})
	assert.NoError(t, err, "expected single-process publish to succeed")
	assert.False(t, handled, "expected no remote events on the single-process backbone")
	assert.NoError(t, bb.Close())
}

func TestNewRedisBackbone_badURL(t *testing.T) {
	bb, err := NewRedisBackbone(testutil.TestLogger(t), "://not-a-url")
	assert.Error(t, err, "expected an error for a malformed url")
	assert.Nil(t, bb, "expected no backbone on error")
}

func TestEnvelope_Serialize(t *testing.T) {
	env := Envelope{
		Origin: "gw-a",
		Typing: &types.TypingSignal{ConversationId: "conv1", UserId: "buyer-1", IsTyping: true},
	}

	bytes, err := json.Marshal(env)
	assert.NoError(t, err, "expected no error during serialization")
	assert.NotContains(t, string(bytes), `"message"`, "expected unset payload fields to be dropped")

	var decoded Envelope
	assert.NoError(t, json.Unmarshal(bytes, &decoded))
	assert.Equal(t, env.Origin, decoded.Origin, "expected origin to survive the round trip")
	assert.Equal(t, env.Typing, decoded.Typing, "expected the payload to survive the round trip")
}

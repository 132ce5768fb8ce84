package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDestinationJID_NormalizesBareNumbers(t *testing.T) {
	jid, err := destinationJID("+62 812-3456-789")
	require.NoError(t, err)
	assert.Equal(t, "628123456789", jid.User)
	assert.Equal(t, "s.whatsapp.net", jid.Server)
}

func TestDestinationJID_KeepsFullJID(t *testing.T) {
	jid, err := destinationJID("628123@s.whatsapp.net")
	require.NoError(t, err)
	assert.Equal(t, "628123", jid.User)
}

func TestDestinationJID_RejectsEmpty(t *testing.T) {
	_, err := destinationJID("abc")
	assert.Error(t, err)
	_, err = destinationJID("  ")
	assert.Error(t, err)
}

func TestPhoneFromID(t *testing.T) {
	assert.Equal(t, "628123", phoneFromID("628123:12@s.whatsapp.net"))
	assert.Equal(t, "628123", phoneFromID("628123@s.whatsapp.net"))
	assert.Equal(t, "628123", phoneFromID("628123"))
}

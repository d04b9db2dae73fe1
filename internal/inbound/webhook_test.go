package inbound

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseEnvelopeText(t *testing.T) {
	raw := []byte(`{
  "object": "whatsapp_business_account",
  "entry": [{"changes": [{"value": {
    "metadata": {"display_phone_number": "254798765432", "phone_number_id": "111"},
    "messages": [{"id": "wamid.A1", "from": "254712345678", "type": "text", "text": {"body": " hello "}}]
  }}]}]
}`)

	msg, err := ParseEnvelope(raw)
	require.NoError(t, err)
	require.NotNil(t, msg)
	require.Equal(t, "wamid.A1", msg.ID)
	require.Equal(t, "254712345678", msg.From)
	require.Equal(t, "hello", msg.Text)
	require.Empty(t, msg.ButtonID)
	require.Equal(t, "254798765432", msg.ReceivingNumber)
}

func TestParseEnvelopeButtonReply(t *testing.T) {
	raw := []byte(`{
  "entry": [{"changes": [{"value": {
    "messages": [{"id": "wamid.A2", "from": "254712345678", "type": "interactive",
      "interactive": {"type": "button_reply", "button_reply": {"id": "lets_go", "title": "Yes. Let's Go!"}}}]
  }}]}]
}`)

	msg, err := ParseEnvelope(raw)
	require.NoError(t, err)
	require.NotNil(t, msg)
	require.Equal(t, "lets_go", msg.ButtonID)
	require.Empty(t, msg.Text)
}

func TestParseEnvelopeListReply(t *testing.T) {
	raw := []byte(`{
  "entry": [{"changes": [{"value": {
    "messages": [{"id": "wamid.A3", "from": "254712345678", "type": "interactive",
      "interactive": {"type": "list_reply", "list_reply": {"id": "browse_categories", "title": "Browse Categories"}}}]
  }}]}]
}`)

	msg, err := ParseEnvelope(raw)
	require.NoError(t, err)
	require.NotNil(t, msg)
	require.Equal(t, "browse_categories", msg.ButtonID)
}

func TestParseEnvelopeStatusOnly(t *testing.T) {
	raw := []byte(`{
  "entry": [{"changes": [{"value": {
    "statuses": [{"id": "wamid.A4", "status": "delivered"}]
  }}]}]
}`)

	msg, err := ParseEnvelope(raw)
	require.NoError(t, err)
	require.Nil(t, msg)
}

func TestParseEnvelopeUnsupportedType(t *testing.T) {
	raw := []byte(`{
  "entry": [{"changes": [{"value": {
    "messages": [{"id": "wamid.A5", "from": "254712345678", "type": "image"}]
  }}]}]
}`)

	msg, err := ParseEnvelope(raw)
	require.NoError(t, err)
	require.Nil(t, msg)
}

func TestParseEnvelopeEmptyTextIgnored(t *testing.T) {
	raw := []byte(`{
  "entry": [{"changes": [{"value": {
    "messages": [{"id": "wamid.A6", "from": "254712345678", "type": "text", "text": {"body": "   "}}]
  }}]}]
}`)

	msg, err := ParseEnvelope(raw)
	require.NoError(t, err)
	require.Nil(t, msg)
}

func TestParseEnvelopeMalformed(t *testing.T) {
	_, err := ParseEnvelope([]byte("not json"))
	require.Error(t, err)

	_, err = ParseEnvelope([]byte(`{"entry": []}`))
	require.Error(t, err)

	_, err = ParseEnvelope([]byte(`{
  "entry": [{"changes": [{"value": {
    "messages": [{"id": "wamid.A7", "type": "text", "text": {"body": "no sender"}}]
  }}]}]
}`))
	require.Error(t, err)
}

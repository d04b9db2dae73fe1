// Package inbound turns raw Graph webhook deliveries into flow
// dispatches. It is the only place that understands the webhook wire
// format; everything past it works with normalized turns.
package inbound

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Message is one normalized inbound turn. Exactly one of Text or
// ButtonID is set; list selections arrive as ButtonID too.
type Message struct {
	ID       string
	From     string
	Text     string
	ButtonID string

	// ReceivingNumber is the display number of the WhatsApp line the
	// message was sent to. It decides which tenant owns the turn.
	ReceivingNumber string
}

type envelope struct {
	Object string `json:"object"`
	Entry  []struct {
		Changes []struct {
			Value changeValue `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type changeValue struct {
	Metadata struct {
		DisplayPhoneNumber string `json:"display_phone_number"`
		PhoneNumberID      string `json:"phone_number_id"`
	} `json:"metadata"`
	Messages []rawMessage      `json:"messages"`
	Statuses []json.RawMessage `json:"statuses"`
}

type rawMessage struct {
	ID   string `json:"id"`
	From string `json:"from"`
	Type string `json:"type"`
	Text *struct {
		Body string `json:"body"`
	} `json:"text"`
	Interactive *struct {
		Type        string `json:"type"`
		ButtonReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"button_reply"`
		ListReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"list_reply"`
	} `json:"interactive"`
}

// ParseEnvelope extracts the first message from a webhook delivery.
// Status-only deliveries and message types the bot does not handle
// return (nil, nil); only an undecodable body is an error.
func ParseEnvelope(raw []byte) (*Message, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decoding webhook envelope: %w", err)
	}
	if len(env.Entry) == 0 || len(env.Entry[0].Changes) == 0 {
		return nil, fmt.Errorf("webhook envelope has no changes")
	}

	value := env.Entry[0].Changes[0].Value
	if len(value.Messages) == 0 {
		return nil, nil
	}

	first := value.Messages[0]
	if first.From == "" {
		return nil, fmt.Errorf("webhook message missing sender")
	}

	msg := &Message{
		ID:              first.ID,
		From:            first.From,
		ReceivingNumber: value.Metadata.DisplayPhoneNumber,
	}

	switch {
	case first.Text != nil:
		msg.Text = strings.TrimSpace(first.Text.Body)
		if msg.Text == "" {
			return nil, nil
		}
	case first.Interactive != nil && first.Interactive.ButtonReply != nil:
		msg.ButtonID = first.Interactive.ButtonReply.ID
	case first.Interactive != nil && first.Interactive.ListReply != nil:
		msg.ButtonID = first.Interactive.ListReply.ID
	default:
		// Media and other unsupported types are acknowledged silently.
		return nil, nil
	}

	return msg, nil
}

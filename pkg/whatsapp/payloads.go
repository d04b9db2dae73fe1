package whatsapp

import (
	"strconv"
	"strings"
)

// Graph API wire limits. Oversized content is truncated, never
// rejected, so a long product description can not kill a send.
const (
	MaxHeaderLen      = 60
	MaxBodyLen        = 1024
	MaxFooterLen      = 60
	MaxButtonTitleLen = 20
	MaxButtonIDLen    = 256
	MaxRowTitleLen    = 24
	MaxRowDescLen     = 72

	// Reply buttons are capped by the provider.
	MaxButtons = 3
)

const messagingProduct = "whatsapp"

// Button is one interactive reply button.
type Button struct {
	ID    string
	Title string
}

// Row is one list-message entry.
type Row struct {
	ID          string
	Title       string
	Description string
}

// Section groups rows inside a list message.
type Section struct {
	Title string
	Rows  []Row
}

type textPayload struct {
	MessagingProduct string   `json:"messaging_product"`
	RecipientType    string   `json:"recipient_type"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             textBody `json:"text"`
}

type textBody struct {
	Body string `json:"body"`
}

type interactivePayload struct {
	MessagingProduct string          `json:"messaging_product"`
	RecipientType    string          `json:"recipient_type"`
	To               string          `json:"to"`
	Type             string          `json:"type"`
	Interactive      interactiveBody `json:"interactive"`
}

type interactiveBody struct {
	Type   string             `json:"type"`
	Header *interactiveHeader `json:"header,omitempty"`
	Body   textBody           `json:"body"`
	Footer *textBody          `json:"footer,omitempty"`
	Action interactiveAction  `json:"action"`
}

type interactiveHeader struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type interactiveAction struct {
	Buttons  []replyButton `json:"buttons,omitempty"`
	Button   string        `json:"button,omitempty"`
	Sections []listSection `json:"sections,omitempty"`
}

type replyButton struct {
	Type  string      `json:"type"`
	Reply buttonReply `json:"reply"`
}

type buttonReply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type listSection struct {
	Title string    `json:"title,omitempty"`
	Rows  []listRow `json:"rows"`
}

type listRow struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type documentPayload struct {
	MessagingProduct string       `json:"messaging_product"`
	RecipientType    string       `json:"recipient_type"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Document         documentBody `json:"document"`
}

type documentBody struct {
	Link     string `json:"link"`
	Filename string `json:"filename,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *apiError `json:"error"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

func buildTextPayload(to, body string) textPayload {
	return textPayload{
		MessagingProduct: messagingProduct,
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
		Text:             textBody{Body: truncate(body, MaxBodyLen)},
	}
}

func buildButtonsPayload(to, header, body, footer string, buttons []Button) interactivePayload {
	if len(buttons) > MaxButtons {
		buttons = buttons[:MaxButtons]
	}
	replies := make([]replyButton, 0, len(buttons))
	for _, b := range buttons {
		replies = append(replies, replyButton{
			Type: "reply",
			Reply: buttonReply{
				ID:    truncate(b.ID, MaxButtonIDLen),
				Title: truncate(b.Title, MaxButtonTitleLen),
			},
		})
	}

	return interactivePayload{
		MessagingProduct: messagingProduct,
		RecipientType:    "individual",
		To:               to,
		Type:             "interactive",
		Interactive: interactiveBody{
			Type:   "button",
			Header: headerFor(header),
			Body:   textBody{Body: truncate(body, MaxBodyLen)},
			Footer: footerFor(footer),
			Action: interactiveAction{Buttons: replies},
		},
	}
}

func buildListPayload(to, header, body, footer, buttonLabel string, sections []Section) interactivePayload {
	wireSections := make([]listSection, 0, len(sections))
	for _, s := range sections {
		rows := make([]listRow, 0, len(s.Rows))
		for _, r := range s.Rows {
			rows = append(rows, listRow{
				ID:          truncate(r.ID, MaxButtonIDLen),
				Title:       truncate(r.Title, MaxRowTitleLen),
				Description: truncate(r.Description, MaxRowDescLen),
			})
		}
		wireSections = append(wireSections, listSection{
			Title: truncate(s.Title, MaxRowTitleLen),
			Rows:  rows,
		})
	}

	return interactivePayload{
		MessagingProduct: messagingProduct,
		RecipientType:    "individual",
		To:               to,
		Type:             "interactive",
		Interactive: interactiveBody{
			Type:   "list",
			Header: headerFor(header),
			Body:   textBody{Body: truncate(body, MaxBodyLen)},
			Footer: footerFor(footer),
			Action: interactiveAction{
				Button:   truncate(buttonLabel, MaxButtonTitleLen),
				Sections: wireSections,
			},
		},
	}
}

func buildDocumentPayload(to, link, filename, caption string) documentPayload {
	return documentPayload{
		MessagingProduct: messagingProduct,
		RecipientType:    "individual",
		To:               to,
		Type:             "document",
		Document: documentBody{
			Link:     link,
			Filename: filename,
			Caption:  truncate(caption, MaxBodyLen),
		},
	}
}

func headerFor(header string) *interactiveHeader {
	if header == "" {
		return nil
	}
	return &interactiveHeader{Type: "text", Text: truncate(header, MaxHeaderLen)}
}

func footerFor(footer string) *textBody {
	if footer == "" {
		return nil
	}
	return &textBody{Body: truncate(footer, MaxFooterLen)}
}

// fallbackTextForButtons renders an interactive button message as a
// numbered plain-text equivalent.
func fallbackTextForButtons(header, body string, buttons []Button) string {
	var b strings.Builder
	if header != "" {
		b.WriteString(header)
		b.WriteString("\n\n")
	}
	b.WriteString(body)
	for i, btn := range buttons {
		b.WriteString("\n")
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". ")
		b.WriteString(btn.Title)
	}
	return b.String()
}

// fallbackTextForList renders a list message as plain text.
func fallbackTextForList(header, body string, sections []Section) string {
	var b strings.Builder
	if header != "" {
		b.WriteString(header)
		b.WriteString("\n\n")
	}
	b.WriteString(body)
	n := 0
	for _, s := range sections {
		for _, r := range s.Rows {
			n++
			b.WriteString("\n")
			b.WriteString(strconv.Itoa(n))
			b.WriteString(". ")
			b.WriteString(r.Title)
			if r.Description != "" {
				b.WriteString(" - ")
				b.WriteString(r.Description)
			}
		}
	}
	return b.String()
}

func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

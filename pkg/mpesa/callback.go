package mpesa

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// CallbackEnvelope is the body Daraja POSTs after an STK push resolves.
type CallbackEnvelope struct {
	Body struct {
		STKCallback STKCallback `json:"stkCallback"`
	} `json:"Body"`
}

// STKCallback is the inner callback record.
type STKCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        int               `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata"`
}

// CallbackMetadata carries the success-only (name, value) pairs.
type CallbackMetadata struct {
	Items []MetadataItem `json:"Item"`
}

// MetadataItem is one metadata pair. Value can be a string or a number
// on the wire.
type MetadataItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value"`
}

// PaymentResult is the normalized outcome the reconciler works with.
type PaymentResult struct {
	CheckoutRequestID string
	Success           bool
	ResultDesc        string
	Amount            decimal.Decimal
	ReceiptNumber     string
	Phone             string
}

// Ack is the body returned to the gateway on every callback,
// regardless of what happened internally.
type Ack struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

// AcceptedAck acknowledges receipt so the gateway never retries.
func AcceptedAck() Ack {
	return Ack{ResultCode: 0, ResultDesc: "Accepted"}
}

// ParseCallback decodes the raw body defensively and flattens the
// metadata items into a PaymentResult.
func ParseCallback(raw []byte) (*PaymentResult, error) {
	var envelope CallbackEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decoding stk callback: %w", err)
	}

	cb := envelope.Body.STKCallback
	if cb.CheckoutRequestID == "" {
		return nil, fmt.Errorf("stk callback missing CheckoutRequestID")
	}

	result := &PaymentResult{
		CheckoutRequestID: cb.CheckoutRequestID,
		Success:           cb.ResultCode == 0,
		ResultDesc:        cb.ResultDesc,
	}

	if cb.CallbackMetadata == nil {
		return result, nil
	}

	for _, item := range cb.CallbackMetadata.Items {
		switch item.Name {
		case "Amount":
			var amount float64
			if err := json.Unmarshal(item.Value, &amount); err == nil {
				result.Amount = decimal.NewFromFloat(amount)
			}
		case "MpesaReceiptNumber":
			var receipt string
			if err := json.Unmarshal(item.Value, &receipt); err == nil {
				result.ReceiptNumber = receipt
			}
		case "PhoneNumber":
			result.Phone = stringOrNumber(item.Value)
		}
	}

	return result, nil
}

func stringOrNumber(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

package enums

import "fmt"

// SenderType identifies who produced a chat message.
type SenderType string

const (
	SenderCustomer SenderType = "customer"
	SenderBot      SenderType = "bot"
	SenderVendor   SenderType = "vendor"
)

var validSenderTypes = []SenderType{
	SenderCustomer,
	SenderBot,
	SenderVendor,
}

// String implements fmt.Stringer.
func (s SenderType) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SenderType.
func (s SenderType) IsValid() bool {
	for _, candidate := range validSenderTypes {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSenderType converts raw input into a SenderType.
func ParseSenderType(value string) (SenderType, error) {
	for _, candidate := range validSenderTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sender type %q", value)
}

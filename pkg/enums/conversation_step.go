package enums

import "fmt"

// ConversationStep is the closed set of states a phone number can occupy
// in a conversational flow. Loading a value outside this set means the
// stored record is corrupt and must be cleared.
type ConversationStep string

// Onboarding flow (platform scope).
const (
	StepWelcome                    ConversationStep = "welcome"
	StepCollectName                ConversationStep = "collect_name"
	StepCollectEmail               ConversationStep = "collect_email"
	StepCollectPhone               ConversationStep = "collect_phone"
	StepCollectBusinessName        ConversationStep = "collect_business_name"
	StepCollectBusinessDescription ConversationStep = "collect_business_description"
	StepCollectBusinessWhatsApp    ConversationStep = "collect_business_whatsapp"
	StepCollectBusinessEmail       ConversationStep = "collect_business_email"
	StepCollectBusinessCategory    ConversationStep = "collect_business_category"
	StepCompleteRegistration       ConversationStep = "complete_registration"
)

// Commerce flow (business scope).
const (
	StepAwaitingPaymentPhone     ConversationStep = "awaiting_payment_phone"
	StepAwaitingCustomization    ConversationStep = "awaiting_customization"
	StepAwaitingIssueDescription ConversationStep = "awaiting_issue_description"
	StepAwaitingName             ConversationStep = "awaiting_name"
	StepAwaitingEmail            ConversationStep = "awaiting_email"
)

var validConversationSteps = []ConversationStep{
	StepWelcome,
	StepCollectName,
	StepCollectEmail,
	StepCollectPhone,
	StepCollectBusinessName,
	StepCollectBusinessDescription,
	StepCollectBusinessWhatsApp,
	StepCollectBusinessEmail,
	StepCollectBusinessCategory,
	StepCompleteRegistration,
	StepAwaitingPaymentPhone,
	StepAwaitingCustomization,
	StepAwaitingIssueDescription,
	StepAwaitingName,
	StepAwaitingEmail,
}

// String implements fmt.Stringer.
func (s ConversationStep) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ConversationStep.
func (s ConversationStep) IsValid() bool {
	for _, candidate := range validConversationSteps {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseConversationStep converts raw input into a ConversationStep.
func ParseConversationStep(value string) (ConversationStep, error) {
	for _, candidate := range validConversationSteps {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid conversation step %q", value)
}

// Package responder answers free-form customer text with the language
// model, grounded in the business profile and catalog. Everything that
// matched a structured flow never reaches this package.
package responder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/sasabothq/sasabot-backend/internal/catalog"
	"github.com/sasabothq/sasabot-backend/internal/chat"
	"github.com/sasabothq/sasabot-backend/pkg/db/models"
	"github.com/sasabothq/sasabot-backend/pkg/enums"
	"github.com/sasabothq/sasabot-backend/pkg/logger"
	"github.com/sasabothq/sasabot-backend/pkg/openai"
	"github.com/sasabothq/sasabot-backend/pkg/whatsapp"
)

const (
	historyTurns       = 20
	catalogPromptLimit = 20
)

var platformKeywords = []string{
	"sasabot", "platform", "how does it work", "what is this",
	"help", "support", "features", "benefits",
}

const platformContext = `You are a helpful assistant for the Sasabot platform, a digital transformation solution for businesses.

Sasabot helps businesses automate customer interactions through WhatsApp. We provide AI-powered chatbots, automated responses, product catalogs, order management, payment processing and customer support automation. Businesses can onboard to create their own chatbot for customer interactions.

Help users with general questions about the platform, its features and how to get started. Do not handle business-specific customer service, purchases or payments; guide those users to contact the specific business. Keep responses helpful, informative and focused on the Sasabot platform itself.`

const platformGuidance = "I can help you with questions about the Sasabot platform. " +
	"For specific business inquiries, please contact the business directly.\n\n" +
	"Ask me about:\n" +
	"• How Sasabot works\n" +
	"• Platform features and benefits\n" +
	"• Getting started with Sasabot\n" +
	"• Technical support\n\n" +
	"Or type 'onboarding' to register your business."

// Service produces model-backed replies. Both methods degrade to a
// static apology instead of failing the webhook when the model is
// unavailable.
type Service interface {
	RespondBusiness(ctx context.Context, business *models.Business, customer *models.Customer, text string) error
	RespondPlatform(ctx context.Context, phone, text string) error
}

type service struct {
	completer openai.Completer
	catalog   catalog.Repository
	chat      chat.Service
	sender    whatsapp.Sender
	logger    *logger.Logger
}

// NewService builds the responder.
func NewService(
	completer openai.Completer,
	catalogRepo catalog.Repository,
	chatSvc chat.Service,
	sender whatsapp.Sender,
	logg *logger.Logger,
) (Service, error) {
	if completer == nil {
		return nil, errors.New("completer is required")
	}
	if catalogRepo == nil {
		return nil, errors.New("catalog repository is required")
	}
	if chatSvc == nil {
		return nil, errors.New("chat service is required")
	}
	if sender == nil {
		return nil, errors.New("whatsapp sender is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &service{
		completer: completer,
		catalog:   catalogRepo,
		chat:      chatSvc,
		sender:    sender,
		logger:    logg,
	}, nil
}

func (s *service) RespondBusiness(ctx context.Context, business *models.Business, customer *models.Customer, text string) error {
	ctx = s.logger.WithBusinessID(ctx, business.ID.String())

	if err := s.chat.Record(ctx, business.ID, customer.ID, enums.SenderCustomer, enums.MessageTypeText, text); err != nil {
		s.logger.Error(ctx, "failed to record customer message", err)
	}

	messages := []openai.Message{{Role: openai.RoleSystem, Content: s.businessSystemPrompt(ctx, business)}}
	history, err := s.chat.History(ctx, business.ID, customer.ID, historyTurns)
	if err != nil {
		s.logger.Error(ctx, "failed to load chat history", err)
	}
	for _, msg := range history {
		switch msg.Sender {
		case enums.SenderCustomer:
			messages = append(messages, openai.Message{Role: openai.RoleUser, Content: msg.Body})
		case enums.SenderBot:
			messages = append(messages, openai.Message{Role: openai.RoleAssistant, Content: msg.Body})
		}
	}
	if len(history) == 0 || history[len(history)-1].Body != text {
		messages = append(messages, openai.Message{Role: openai.RoleUser, Content: text})
	}

	creds := s.sender.CredentialsFor(business.WhatsAppAPIToken, business.WhatsAppPhoneID)
	reply, err := s.completer.Complete(ctx, messages)
	if err != nil {
		s.logger.Error(ctx, "completion failed, sending fallback", err)
		fallback := fmt.Sprintf("I'm having trouble processing your request right now. Please try again or contact %s directly for assistance.", business.Name)
		return s.deliver(ctx, creds, business.ID, customer, fallback)
	}
	return s.deliver(ctx, creds, business.ID, customer, reply)
}

func (s *service) RespondPlatform(ctx context.Context, phone, text string) error {
	creds := s.sender.CredentialsFor(nil, nil)

	if !containsPlatformKeyword(text) {
		return s.sender.SendText(ctx, creds, phone, platformGuidance)
	}

	reply, err := s.completer.Complete(ctx, []openai.Message{
		{Role: openai.RoleSystem, Content: platformContext},
		{Role: openai.RoleUser, Content: text},
	})
	if err != nil {
		s.logger.Error(s.logger.WithPhone(ctx, phone), "platform completion failed, sending fallback", err)
		return s.sender.SendText(ctx, creds, phone, "Sorry, I'm having trouble processing your request right now.")
	}
	return s.sender.SendText(ctx, creds, phone, reply)
}

func (s *service) deliver(ctx context.Context, creds whatsapp.Credentials, businessID uuid.UUID, customer *models.Customer, body string) error {
	if err := s.sender.SendText(ctx, creds, customer.PhoneNumber, body); err != nil {
		return err
	}
	if err := s.chat.Record(ctx, businessID, customer.ID, enums.SenderBot, enums.MessageTypeText, body); err != nil {
		s.logger.Error(ctx, "failed to record assistant reply", err)
	}
	return nil
}

// businessSystemPrompt combines the business profile, its custom
// instructions and a compact catalog summary. Catalog load failures
// degrade to a profile-only prompt.
func (s *service) businessSystemPrompt(ctx context.Context, business *models.Business) string {
	instructions := "You are a helpful customer service assistant."
	if business.CustomInstructions != nil && *business.CustomInstructions != "" {
		instructions = *business.CustomInstructions
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Business Name: %s\n", business.Name)
	fmt.Fprintf(&b, "Business Description: %s\n", business.Description)
	fmt.Fprintf(&b, "Business Category: %s\n", business.Category)
	fmt.Fprintf(&b, "Custom Instructions: %s\n", instructions)
	fmt.Fprintf(&b, "\nYou are a customer service assistant for %s. Use the custom instructions to guide your responses. Keep responses helpful and business-focused. Handle customer inquiries, product questions, orders, and support for this specific business only.\n", business.Name)

	if summary := s.catalogSummary(ctx, business.ID); summary != "" {
		b.WriteString("\nCurrent catalog:\n")
		b.WriteString(summary)
	}
	return b.String()
}

func (s *service) catalogSummary(ctx context.Context, businessID uuid.UUID) string {
	categories, err := s.catalog.ListActiveCategories(ctx, businessID)
	if err != nil {
		s.logger.Error(ctx, "failed to load categories for prompt", err)
		return ""
	}

	var b strings.Builder
	total := 0
	for _, category := range categories {
		products, err := s.catalog.ListActiveProducts(ctx, category.ID)
		if err != nil {
			continue
		}
		for _, product := range products {
			if total >= catalogPromptLimit {
				return b.String()
			}
			fmt.Fprintf(&b, "- %s (%s): KSH %s\n", product.Name, category.Name, product.Price.StringFixed(2))
			total++
		}
	}
	return b.String()
}

func containsPlatformKeyword(text string) bool {
	lowered := strings.ToLower(text)
	for _, keyword := range platformKeywords {
		if strings.Contains(lowered, keyword) {
			return true
		}
	}
	return false
}

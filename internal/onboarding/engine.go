package onboarding

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"gorm.io/gorm"

	"github.com/sasabothq/sasabot-backend/internal/conversation"
	"github.com/sasabothq/sasabot-backend/internal/customers"
	"github.com/sasabothq/sasabot-backend/pkg/config"
	"github.com/sasabothq/sasabot-backend/pkg/db"
	"github.com/sasabothq/sasabot-backend/pkg/db/models"
	"github.com/sasabothq/sasabot-backend/pkg/enums"
	"github.com/sasabothq/sasabot-backend/pkg/logger"
	"github.com/sasabothq/sasabot-backend/pkg/security"
	"github.com/sasabothq/sasabot-backend/pkg/types"
	"github.com/sasabothq/sasabot-backend/pkg/whatsapp"
)

// pending_data keys shared between collection steps and provisioning.
const (
	keyVendorName          = "vendor_name"
	keyVendorEmail         = "vendor_email"
	keyVendorPhone         = "vendor_phone"
	keyBusinessName        = "business_name"
	keyBusinessDescription = "business_description"
	keyBusinessWhatsApp    = "business_whatsapp"
	keyBusinessEmail       = "business_email"
	keyBusinessCategory    = "business_category"
)

// Static button ids served at platform scope.
const (
	ButtonAbout          = "about"
	ButtonFAQs           = "faqs"
	ButtonOnboarding     = "onboarding"
	ButtonLetsGo         = "lets_go"
	ButtonCompleteSignup = "complete_registration"
	ButtonDashboardLogin = "dashboard_login"
)

const tempPasswordLength = 12

const aboutText = "🤖 *About Sasabot*\n\n" +
	"Sasabot is an innovative digital transformation platform that helps businesses:\n\n" +
	"✅ Automate customer interactions\n" +
	"✅ Improve response times\n" +
	"✅ Enhance service quality\n" +
	"✅ Reduce operational costs\n" +
	"✅ Scale customer support efficiently\n\n" +
	"We make it easy for businesses to connect with their customers through modern messaging platforms."

const faqsText = "❓ *Frequently Asked Questions*\n\n" +
	"*Q: What is Sasabot?*\n" +
	"A: Sasabot is a digital transformation platform for businesses to automate customer interactions.\n\n" +
	"*Q: How does it work?*\n" +
	"A: We integrate with your existing systems to provide automated responses and streamline customer communication.\n\n" +
	"*Q: What platforms do you support?*\n" +
	"A: We support WhatsApp, SMS, and other popular messaging platforms.\n\n" +
	"*Q: How much does it cost?*\n" +
	"A: Pricing varies based on your business needs. Contact us for a custom quote."

type engine struct {
	states       conversation.Store
	repo         Repository
	client       *db.Client
	sender       whatsapp.Sender
	customers    customers.Service
	passwordCfg  config.PasswordConfig
	dashboardURL string
	logger       *logger.Logger
}

// NewEngine builds the registration flow engine.
func NewEngine(
	states conversation.Store,
	repo Repository,
	client *db.Client,
	sender whatsapp.Sender,
	customerSvc customers.Service,
	passwordCfg config.PasswordConfig,
	dashboardURL string,
	logg *logger.Logger,
) (Engine, error) {
	if states == nil {
		return nil, fmt.Errorf("onboarding: conversation store is required")
	}
	if repo == nil {
		return nil, fmt.Errorf("onboarding: repository is required")
	}
	if client == nil {
		return nil, fmt.Errorf("onboarding: db client is required")
	}
	if sender == nil {
		return nil, fmt.Errorf("onboarding: whatsapp sender is required")
	}
	if customerSvc == nil {
		return nil, fmt.Errorf("onboarding: customer service is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("onboarding: logger is required")
	}
	return &engine{
		states:       states,
		repo:         repo,
		client:       client,
		sender:       sender,
		customers:    customerSvc,
		passwordCfg:  passwordCfg,
		dashboardURL: dashboardURL,
		logger:       logg,
	}, nil
}

func (e *engine) platformCreds() whatsapp.Credentials {
	return e.sender.CredentialsFor(nil, nil)
}

func (e *engine) Welcome(ctx context.Context, phone string) error {
	return e.sender.SendButtons(ctx, e.platformCreds(), phone,
		"Welcome to Sasabot",
		"Glad to have you here. We help businesses transition to digital interactions with their clients, improving speed and the quality of service",
		"Select an option to start",
		[]whatsapp.Button{
			{ID: ButtonAbout, Title: "About Sasabot"},
			{ID: ButtonFAQs, Title: "FAQs"},
			{ID: ButtonOnboarding, Title: "Begin Onboarding"},
		})
}

func (e *engine) About(ctx context.Context, phone string) error {
	return e.sender.SendText(ctx, e.platformCreds(), phone, aboutText)
}

func (e *engine) FAQs(ctx context.Context, phone string) error {
	return e.sender.SendText(ctx, e.platformCreds(), phone, faqsText)
}

func (e *engine) DashboardLogin(ctx context.Context, phone string) error {
	return e.sender.SendText(ctx, e.platformCreds(), phone,
		fmt.Sprintf("Log in to your vendor dashboard here: %s", e.dashboardURL))
}

func (e *engine) InProgress(ctx context.Context, phone string) (bool, error) {
	state, err := e.states.Get(ctx, phone, nil)
	if err != nil {
		return false, err
	}
	return state != nil, nil
}

// Start replaces any prior flow for the phone and opens at the welcome
// step.
func (e *engine) Start(ctx context.Context, phone string) error {
	if _, err := e.states.Begin(ctx, phone, nil, enums.StepWelcome, types.JSONMap{}); err != nil {
		return err
	}
	return e.sender.SendButtons(ctx, e.platformCreds(), phone,
		"Welcome Aboard Sasabot",
		"Hey there, Welcome aboard! My name is Sasha, your onboarding assistant. I'm here to help get your business set up so we can support your marketing and communication goals. Let's start with a few quick details. Ready?",
		"Select a button to start",
		[]whatsapp.Button{{ID: ButtonLetsGo, Title: "Yes. Let's Go!"}})
}

// Resume feeds one inbound turn into the step machine. Unexpected input
// re-prompts without advancing.
func (e *engine) Resume(ctx context.Context, phone string, input Input) error {
	state, err := e.states.Get(ctx, phone, nil)
	if err != nil {
		return err
	}
	if state == nil {
		return e.sender.SendText(ctx, e.platformCreds(), phone,
			"Please start onboarding by typing 'hello' or 'hi'.")
	}

	text := strings.TrimSpace(input.Text)

	switch state.CurrentStep {
	case enums.StepWelcome:
		if input.ButtonID != ButtonLetsGo {
			return e.reprompt(ctx, phone)
		}
		return e.advanceWithText(ctx, phone, state, enums.StepCollectName, "", "",
			"Great! First, I'd love to know who I'm speaking with. What's your name?")

	case enums.StepCollectName:
		if text == "" {
			return e.reprompt(ctx, phone)
		}
		return e.advanceWithText(ctx, phone, state, enums.StepCollectEmail, keyVendorName, text,
			fmt.Sprintf("Nice to meet you, %s! What's the best email address to reach you at?", text))

	case enums.StepCollectEmail:
		if text == "" {
			return e.reprompt(ctx, phone)
		}
		return e.advanceWithText(ctx, phone, state, enums.StepCollectPhone, keyVendorEmail, text,
			"And could I have your phone number, in case we need to get in touch?")

	case enums.StepCollectPhone:
		if text == "" {
			return e.reprompt(ctx, phone)
		}
		return e.advanceWithText(ctx, phone, state, enums.StepCollectBusinessName, keyVendorPhone, text,
			"Awesome, now let's talk about your business. What's your business called?")

	case enums.StepCollectBusinessName:
		if text == "" {
			return e.reprompt(ctx, phone)
		}
		return e.advanceWithText(ctx, phone, state, enums.StepCollectBusinessDescription, keyBusinessName, text,
			"Got it! Can you give me a quick description of what your business does?")

	case enums.StepCollectBusinessDescription:
		if text == "" {
			return e.reprompt(ctx, phone)
		}
		return e.advanceWithText(ctx, phone, state, enums.StepCollectBusinessWhatsApp, keyBusinessDescription, text,
			"Nice, that helps us tailor our support better. What WhatsApp number does your business use to connect with customers?")

	case enums.StepCollectBusinessWhatsApp:
		if text == "" {
			return e.reprompt(ctx, phone)
		}
		return e.advanceWithText(ctx, phone, state, enums.StepCollectBusinessEmail, keyBusinessWhatsApp, text,
			"And do you use a different email address for business communication? If yes, please drop it below. Type N/A if same as personal or you don't have a business email.")

	case enums.StepCollectBusinessEmail:
		if text == "" {
			return e.reprompt(ctx, phone)
		}
		pending := state.PendingData.Clone()
		if !strings.EqualFold(text, "N/A") {
			pending[keyBusinessEmail] = text
		}
		if err := e.states.Advance(ctx, state, enums.StepCollectBusinessCategory, pending); err != nil {
			return err
		}
		return e.sendCategorySelection(ctx, phone)

	case enums.StepCollectBusinessCategory:
		category, parseErr := enums.ParseBusinessCategory(input.ButtonID)
		if parseErr != nil {
			return e.sendCategorySelection(ctx, phone)
		}
		pending := state.PendingData.Clone()
		pending[keyBusinessCategory] = category.String()
		if err := e.states.Advance(ctx, state, enums.StepCompleteRegistration, pending); err != nil {
			return err
		}
		return e.sender.SendButtons(ctx, e.platformCreds(), phone,
			"Complete Sasabot Onboarding",
			"That's everything I need for now!",
			"Click the button to complete registration",
			[]whatsapp.Button{{ID: ButtonCompleteSignup, Title: "Complete registration"}})

	case enums.StepCompleteRegistration:
		if input.ButtonID != ButtonCompleteSignup {
			return e.reprompt(ctx, phone)
		}
		return e.provision(ctx, phone, state)
	}

	// Commerce-scope steps never occur under the platform key. Clear and
	// restart rather than strand the user.
	e.logger.Warn(e.logger.WithPhone(ctx, phone), "platform state held a business-scope step, clearing")
	if err := e.states.Clear(ctx, phone, nil); err != nil {
		return err
	}
	return e.sender.SendText(ctx, e.platformCreds(), phone,
		"Please start onboarding by typing 'hello' or 'hi'.")
}

func (e *engine) advanceWithText(ctx context.Context, phone string, state *models.ConversationState, next enums.ConversationStep, key, value, prompt string) error {
	pending := state.PendingData.Clone()
	if key != "" {
		pending[key] = value
	}
	if err := e.states.Advance(ctx, state, next, pending); err != nil {
		return err
	}
	return e.sender.SendText(ctx, e.platformCreds(), phone, prompt)
}

func (e *engine) reprompt(ctx context.Context, phone string) error {
	return e.sender.SendText(ctx, e.platformCreds(), phone,
		"I didn't understand that. Please follow the onboarding steps.")
}

func (e *engine) sendCategorySelection(ctx context.Context, phone string) error {
	categories := enums.AllBusinessCategories()
	buttons := make([]whatsapp.Button, 0, len(categories))
	for _, category := range categories {
		buttons = append(buttons, whatsapp.Button{
			ID:    category.String(),
			Title: titleCase(category.String()),
		})
	}
	return e.sender.SendButtons(ctx, e.platformCreds(), phone,
		"Your Business category",
		"What category does your business fall under?",
		"Select a button that represents your business category",
		buttons)
}

// provision creates the Vendor and Business in one transaction, ensures
// a Customer identity for the phone, clears the flow state and delivers
// the generated credential once.
func (e *engine) provision(ctx context.Context, phone string, state *models.ConversationState) error {
	pending := state.PendingData

	password, err := security.GenerateTempPassword(tempPasswordLength)
	if err != nil {
		return err
	}
	hash, err := security.HashPassword(password, e.passwordCfg)
	if err != nil {
		return err
	}

	vendorPhone := pending.GetString(keyVendorPhone)
	if vendorPhone == "" {
		vendorPhone = phone
	}
	category, err := enums.ParseBusinessCategory(pending.GetString(keyBusinessCategory))
	if err != nil {
		e.logger.Error(e.logger.WithPhone(ctx, phone), "stored category is invalid, restarting flow", err)
		if clearErr := e.states.Clear(ctx, phone, nil); clearErr != nil {
			return clearErr
		}
		return e.sender.SendText(ctx, e.platformCreds(), phone,
			"Something went wrong with your registration details. Please start over by typing 'hi'.")
	}

	var businessEmail *string
	if value := pending.GetString(keyBusinessEmail); value != "" {
		businessEmail = &value
	}

	txErr := e.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := e.repo.WithTx(tx)
		vendor, createErr := repo.CreateVendor(ctx, &models.Vendor{
			Name:         pending.GetString(keyVendorName),
			Email:        pending.GetString(keyVendorEmail),
			PhoneNumber:  vendorPhone,
			PasswordHash: hash,
		})
		if createErr != nil {
			return createErr
		}
		_, createErr = repo.CreateBusiness(ctx, &models.Business{
			VendorID:       vendor.ID,
			Name:           pending.GetString(keyBusinessName),
			Description:    pending.GetString(keyBusinessDescription),
			WhatsAppNumber: pending.GetString(keyBusinessWhatsApp),
			Email:          businessEmail,
			Category:       category,
			IsActive:       true,
		})
		return createErr
	})
	if txErr != nil {
		if db.IsUniqueViolation(txErr) {
			if clearErr := e.states.Clear(ctx, phone, nil); clearErr != nil {
				e.logger.Error(ctx, "failed to clear state after duplicate registration", clearErr)
			}
			return e.sender.SendText(ctx, e.platformCreds(), phone,
				"An account with this email or phone number is already registered. Log in to your dashboard or contact support.")
		}
		e.logger.Error(e.logger.WithPhone(ctx, phone), "registration provisioning failed", txErr)
		return e.sender.SendText(ctx, e.platformCreds(), phone,
			"Sorry, there was an error completing your registration. Please try again.")
	}

	if _, err := e.customers.EnsureByPhone(ctx, phone); err != nil {
		e.logger.Error(e.logger.WithPhone(ctx, phone), "failed to ensure customer after registration", err)
	}
	if err := e.states.Clear(ctx, phone, nil); err != nil {
		return err
	}

	body := fmt.Sprintf("You are successfully registered to SasaBot. You can login to the vendor dashboard to view your business profile, add products and more. Your password is %s. Keep it safe and do not send it to anybody. You can change your password via your dashboard profile.", password)
	return e.sender.SendButtons(ctx, e.platformCreds(), phone,
		"Your Registration to SasaBot is complete!",
		body,
		"Select the button to login to your dashboard",
		[]whatsapp.Button{{ID: ButtonDashboardLogin, Title: "Dashboard Login"}})
}

func titleCase(value string) string {
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

package commerce

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/sasabothq/sasabot-backend/internal/catalog"
	"github.com/sasabothq/sasabot-backend/internal/chat"
	"github.com/sasabothq/sasabot-backend/internal/conversation"
	"github.com/sasabothq/sasabot-backend/internal/customers"
	"github.com/sasabothq/sasabot-backend/internal/orders"
	"github.com/sasabothq/sasabot-backend/pkg/db/models"
	"github.com/sasabothq/sasabot-backend/pkg/enums"
	"github.com/sasabothq/sasabot-backend/pkg/logger"
	"github.com/sasabothq/sasabot-backend/pkg/phone"
	"github.com/sasabothq/sasabot-backend/pkg/types"
	"github.com/sasabothq/sasabot-backend/pkg/whatsapp"
)

// Menu entry and prefix ids. Entity ids embedded after a prefix are
// opaque strings, never parsed as integers.
const (
	menuBrowseCategories = "browse_categories"
	menuViewOrders       = "view_orders"
	menuOrderIssue       = "order_issue"
	menuUpdateDetails    = "update_details"

	prefixCategory     = "category_"
	prefixProduct      = "product_"
	prefixBuy          = "buy_"
	prefixVariations   = "variations_"
	prefixVariation    = "variation_"
	prefixCustomize    = "customize_"
	prefixConfirmOrder = "confirm_order_"
	prefixCancelOrder  = "cancel_order_"
	prefixIssueOrder   = "issue_order_"
	prefixOrder        = "order_"
)

const keyOrderID = "order_id"

const recentOrdersLimit = 10

var greetingWords = []string{"hello", "hi", "hey", "start", "menu", "help", "hola", "hujambo", "mambo"}

// IsGreeting reports whether the text is a business-scope trigger word.
func IsGreeting(text string) bool {
	lowered := strings.ToLower(text)
	for _, word := range greetingWords {
		if strings.Contains(lowered, word) {
			return true
		}
	}
	return false
}

type engine struct {
	states    conversation.Store
	catalog   catalog.Repository
	orders    orders.Service
	customers customers.Service
	chat      chat.Service
	sender    whatsapp.Sender
	payments  PaymentInitiator
	logger    *logger.Logger
}

// NewEngine builds the business-scoped flow engine.
func NewEngine(
	states conversation.Store,
	catalogRepo catalog.Repository,
	orderSvc orders.Service,
	customerSvc customers.Service,
	chatSvc chat.Service,
	sender whatsapp.Sender,
	payments PaymentInitiator,
	logg *logger.Logger,
) (Engine, error) {
	if states == nil {
		return nil, fmt.Errorf("commerce: conversation store is required")
	}
	if catalogRepo == nil {
		return nil, fmt.Errorf("commerce: catalog repository is required")
	}
	if orderSvc == nil {
		return nil, fmt.Errorf("commerce: order service is required")
	}
	if customerSvc == nil {
		return nil, fmt.Errorf("commerce: customer service is required")
	}
	if chatSvc == nil {
		return nil, fmt.Errorf("commerce: chat service is required")
	}
	if sender == nil {
		return nil, fmt.Errorf("commerce: whatsapp sender is required")
	}
	if payments == nil {
		return nil, fmt.Errorf("commerce: payment initiator is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("commerce: logger is required")
	}
	return &engine{
		states:    states,
		catalog:   catalogRepo,
		orders:    orderSvc,
		customers: customerSvc,
		chat:      chatSvc,
		sender:    sender,
		payments:  payments,
		logger:    logg,
	}, nil
}

func (e *engine) Greeting(ctx context.Context, business *models.Business, customer *models.Customer) error {
	body := fmt.Sprintf("Hello! Welcome to %s. How can I assist you today? If you have any questions or need information, feel free to ask. Just type it and our AI assistant will be able to assist you. We are also on hand to help you.", business.Name)
	rows := []whatsapp.Row{
		{ID: menuBrowseCategories, Title: "Browse Categories", Description: "View our product categories"},
		{ID: menuViewOrders, Title: "View My Orders", Description: "Check your order history and status"},
		{ID: menuOrderIssue, Title: "Issue with Order", Description: "Report a problem with your order"},
		{ID: menuUpdateDetails, Title: "Update Your Details", Description: "Update your contact information"},
	}
	return e.sendList(ctx, business, customer, "Hello Customer", body, "Please choose an option", "Select Option",
		[]whatsapp.Section{{Title: "How can we help?", Rows: rows}})
}

func (e *engine) HandleText(ctx context.Context, business *models.Business, customer *models.Customer, text string) (bool, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return true, nil
	}

	state, err := e.states.Get(ctx, customer.PhoneNumber, &business.ID)
	if err != nil {
		return false, err
	}
	if state != nil {
		return true, e.resumeState(ctx, business, customer, state, text)
	}
	if IsGreeting(text) {
		return true, e.Greeting(ctx, business, customer)
	}
	if phone.IsMSISDN(text) {
		return true, e.requestPayment(ctx, business, customer, nil, text)
	}
	return false, nil
}

func (e *engine) HandleButton(ctx context.Context, business *models.Business, customer *models.Customer, buttonID string) error {
	switch {
	case buttonID == menuBrowseCategories:
		return e.sendCategoriesMenu(ctx, business, customer)
	case buttonID == menuViewOrders:
		return e.sendOrdersMenu(ctx, business, customer, prefixOrder, "Your Orders",
			fmt.Sprintf("Here are your recent orders with %s:", business.Name), "Select an order to view details")
	case buttonID == menuOrderIssue:
		return e.sendOrdersMenu(ctx, business, customer, prefixIssueOrder, "Report Order Issue",
			"Which order would you like to report an issue for?", "Select an order")
	case buttonID == menuUpdateDetails:
		return e.startDetailsUpdate(ctx, business, customer)
	case strings.HasPrefix(buttonID, prefixCategory):
		return e.sendCategoryProducts(ctx, business, customer, strings.TrimPrefix(buttonID, prefixCategory))
	case strings.HasPrefix(buttonID, prefixProduct):
		return e.sendProductDetail(ctx, business, customer, strings.TrimPrefix(buttonID, prefixProduct))
	case strings.HasPrefix(buttonID, prefixBuy):
		return e.buyProduct(ctx, business, customer, strings.TrimPrefix(buttonID, prefixBuy))
	case strings.HasPrefix(buttonID, prefixVariations):
		return e.sendVariationsMenu(ctx, business, customer, strings.TrimPrefix(buttonID, prefixVariations))
	case strings.HasPrefix(buttonID, prefixVariation):
		return e.buyVariation(ctx, business, customer, strings.TrimPrefix(buttonID, prefixVariation))
	case strings.HasPrefix(buttonID, prefixCustomize):
		return e.startCustomization(ctx, business, customer, strings.TrimPrefix(buttonID, prefixCustomize))
	case strings.HasPrefix(buttonID, prefixConfirmOrder):
		return e.confirmOrder(ctx, business, customer, strings.TrimPrefix(buttonID, prefixConfirmOrder))
	case strings.HasPrefix(buttonID, prefixCancelOrder):
		return e.cancelOrder(ctx, business, customer, strings.TrimPrefix(buttonID, prefixCancelOrder))
	case strings.HasPrefix(buttonID, prefixIssueOrder):
		return e.startIssueReport(ctx, business, customer, strings.TrimPrefix(buttonID, prefixIssueOrder))
	case strings.HasPrefix(buttonID, prefixOrder):
		return e.sendOrderDetail(ctx, business, customer, strings.TrimPrefix(buttonID, prefixOrder))
	}
	return e.sendText(ctx, business, customer, "Sorry, I didn't understand that option. Please try again.")
}

// resumeState consumes one free-text turn for an in-flight business
// flow step.
func (e *engine) resumeState(ctx context.Context, business *models.Business, customer *models.Customer, state *models.ConversationState, text string) error {
	switch state.CurrentStep {
	case enums.StepAwaitingName:
		if err := e.customers.UpdateName(ctx, customer.ID, text); err != nil {
			return e.sendText(ctx, business, customer, "Please type a valid name:")
		}
		if err := e.states.Advance(ctx, state, enums.StepAwaitingEmail, state.PendingData.Clone()); err != nil {
			return err
		}
		currentEmail := "not set"
		if customer.Email != nil {
			currentEmail = *customer.Email
		}
		return e.sendText(ctx, business, customer,
			fmt.Sprintf("Great! Name updated to: %s\n\nYour current email is: %s\n\nPlease type your new email address:", strings.TrimSpace(text), currentEmail))

	case enums.StepAwaitingEmail:
		if err := e.customers.UpdateEmail(ctx, customer.ID, text); err != nil {
			return e.sendText(ctx, business, customer, "That doesn't look like a valid email. Please type your email address, or N/A to leave it blank:")
		}
		if err := e.states.Clear(ctx, customer.PhoneNumber, &business.ID); err != nil {
			return err
		}
		return e.sendText(ctx, business, customer,
			"Perfect! Your details have been updated.\n\nIs there anything else I can help you with today?")

	case enums.StepAwaitingIssueDescription:
		return e.recordIssue(ctx, business, customer, state, text)

	case enums.StepAwaitingCustomization:
		order, err := e.orders.AddCustomization(ctx, business.ID, customer.ID, text)
		if err != nil {
			if clearErr := e.states.Clear(ctx, customer.PhoneNumber, &business.ID); clearErr != nil {
				return clearErr
			}
			return e.sendText(ctx, business, customer, "No pending orders found. Please place an order first.")
		}
		pending := state.PendingData.Clone()
		pending[keyOrderID] = order.ID.String()
		if err := e.states.Advance(ctx, state, enums.StepAwaitingPaymentPhone, pending); err != nil {
			return err
		}
		return e.sendText(ctx, business, customer,
			fmt.Sprintf("✅ Customization noted: %s\n\nYour customization has been added to your order. Please reply with your M-PESA number to proceed with payment.", strings.TrimSpace(text)))

	case enums.StepAwaitingPaymentPhone:
		if !phone.IsMSISDN(text) {
			return e.sendText(ctx, business, customer,
				"That doesn't look like an M-PESA number. Please reply with your M-PESA number (e.g., 0712345678).")
		}
		order, err := e.orderFromState(ctx, business, customer, state)
		if clearErr := e.states.Clear(ctx, customer.PhoneNumber, &business.ID); clearErr != nil {
			return clearErr
		}
		if err != nil {
			return e.sendText(ctx, business, customer, "No pending orders found. Please place an order first.")
		}
		return e.requestPayment(ctx, business, customer, order, text)
	}

	// Any other stored step has no business-flow handler. Treat the
	// record as corrupt.
	e.logger.Warn(e.logger.WithBusinessID(e.logger.WithPhone(ctx, customer.PhoneNumber), business.ID.String()),
		"business state held an unexpected step, clearing")
	if err := e.states.Clear(ctx, customer.PhoneNumber, &business.ID); err != nil {
		return err
	}
	return e.sendText(ctx, business, customer, "I'm not sure what you're referring to. Please use the menu options to get started.")
}

func (e *engine) recordIssue(ctx context.Context, business *models.Business, customer *models.Customer, state *models.ConversationState, text string) error {
	orderIDRaw := state.PendingData.GetString(keyOrderID)
	if err := e.states.Clear(ctx, customer.PhoneNumber, &business.ID); err != nil {
		return err
	}

	orderID, err := uuid.Parse(orderIDRaw)
	if err != nil {
		return e.sendText(ctx, business, customer, "Sorry, there was an error processing your issue report. Please try again.")
	}
	if _, err := e.orders.ReportIssue(ctx, orderID, customer.ID, text); err != nil {
		return e.sendText(ctx, business, customer, "Sorry, there was an error processing your issue report. Please try again.")
	}

	order, err := e.orders.FindForCustomer(ctx, orderID, business.ID, customer.ID)
	orderNumber := ""
	if err == nil {
		orderNumber = order.OrderNumber
	}
	if recordErr := e.chat.Record(ctx, business.ID, customer.ID, enums.SenderCustomer, enums.MessageTypeText, text); recordErr != nil {
		e.logger.Error(ctx, "failed to record issue description", recordErr)
	}
	return e.sendText(ctx, business, customer,
		fmt.Sprintf("Thank you for reporting the issue with order %s. Your issue has been recorded and our team is working on it. You'll receive an update soon.", orderNumber))
}

// orderFromState resolves the order referenced by the state, falling
// back to the customer's latest payment-pending order.
func (e *engine) orderFromState(ctx context.Context, business *models.Business, customer *models.Customer, state *models.ConversationState) (*models.Order, error) {
	if raw := state.PendingData.GetString(keyOrderID); raw != "" {
		if orderID, err := uuid.Parse(raw); err == nil {
			if order, err := e.orders.FindForCustomer(ctx, orderID, business.ID, customer.ID); err == nil {
				return order, nil
			}
		}
	}
	return e.orders.FindLatestPaymentPendingForCustomer(ctx, business.ID, customer.ID)
}

func (e *engine) requestPayment(ctx context.Context, business *models.Business, customer *models.Customer, order *models.Order, msisdn string) error {
	if order == nil {
		found, err := e.orders.FindLatestPaymentPendingForCustomer(ctx, business.ID, customer.ID)
		if err != nil {
			return e.sendText(ctx, business, customer, "No pending orders found. Please place an order first.")
		}
		order = found
	}

	if err := e.payments.RequestPayment(ctx, business, order, msisdn); err != nil {
		e.logger.Error(e.logger.WithOrderID(ctx, order.ID.String()), "payment initiation failed", err)
		return e.sendText(ctx, business, customer,
			"Payment initiation failed. Please try again or contact support.")
	}

	body := fmt.Sprintf("💳 Payment request sent to %s\n\nOrder: #%s\nAmount: KSH %s\n\nPlease check your phone and enter your M-PESA PIN to complete the payment.",
		msisdn, order.OrderNumber, order.TotalAmount.StringFixed(2))
	return e.sendText(ctx, business, customer, body)
}

func (e *engine) buyProduct(ctx context.Context, business *models.Business, customer *models.Customer, productID string) error {
	product, err := e.findBusinessProduct(ctx, business, productID)
	if err != nil {
		return e.sendText(ctx, business, customer, "Sorry, this product is not available.")
	}
	if product.HasVariations {
		return e.sendVariationsMenu(ctx, business, customer, productID)
	}
	return e.createOrderAndConfirm(ctx, business, customer, product, nil)
}

func (e *engine) buyVariation(ctx context.Context, business *models.Business, customer *models.Customer, variationID string) error {
	id, err := uuid.Parse(variationID)
	if err != nil {
		return e.sendText(ctx, business, customer, "Sorry, this variation is not available.")
	}
	variation, err := e.catalog.FindVariation(ctx, id)
	if err != nil || !variation.IsActive {
		return e.sendText(ctx, business, customer, "Sorry, this variation is not available.")
	}
	product, err := e.findBusinessProduct(ctx, business, variation.ProductID.String())
	if err != nil {
		return e.sendText(ctx, business, customer, "Sorry, this product is not available.")
	}
	return e.createOrderAndConfirm(ctx, business, customer, product, variation)
}

func (e *engine) createOrderAndConfirm(ctx context.Context, business *models.Business, customer *models.Customer, product *models.Product, variation *models.ProductVariation) error {
	order, err := e.orders.CreateForProduct(ctx, orders.CreateParams{
		BusinessID: business.ID,
		CustomerID: customer.ID,
		Product:    product,
		Variation:  variation,
		Quantity:   1,
	})
	if err != nil {
		e.logger.Error(ctx, "order creation failed", err)
		return e.sendText(ctx, business, customer, "Sorry, there was an error processing your request.")
	}
	return e.sendOrderConfirmation(ctx, business, customer, order, product)
}

func (e *engine) confirmOrder(ctx context.Context, business *models.Business, customer *models.Customer, orderID string) error {
	id, err := uuid.Parse(orderID)
	if err != nil {
		return e.sendText(ctx, business, customer, "Order not found.")
	}
	order, err := e.orders.FindForCustomer(ctx, id, business.ID, customer.ID)
	if err != nil {
		return e.sendText(ctx, business, customer, "Order not found.")
	}

	pending := types.JSONMap{keyOrderID: order.ID.String()}
	if _, err := e.states.Begin(ctx, customer.PhoneNumber, &business.ID, enums.StepAwaitingPaymentPhone, pending); err != nil {
		return err
	}

	body := fmt.Sprintf("💳 *Payment Required*\n\nOrder: #%s\nAmount: KSH %s\n\nPlease reply with your M-PESA number (e.g., 0712345678) to receive a payment prompt.",
		order.OrderNumber, order.TotalAmount.StringFixed(2))
	return e.sendText(ctx, business, customer, body)
}

func (e *engine) cancelOrder(ctx context.Context, business *models.Business, customer *models.Customer, orderID string) error {
	id, err := uuid.Parse(orderID)
	if err != nil {
		return e.sendText(ctx, business, customer, "Order not found.")
	}
	cancelled, err := e.orders.Cancel(ctx, id, business.ID, customer.ID)
	if err != nil {
		return e.sendText(ctx, business, customer, "Order not found.")
	}
	order, findErr := e.orders.FindForCustomer(ctx, id, business.ID, customer.ID)
	if findErr != nil {
		return findErr
	}
	if !cancelled {
		return e.sendText(ctx, business, customer,
			fmt.Sprintf("Order #%s can no longer be cancelled. Its current status is %s.", order.OrderNumber, order.Status))
	}
	return e.sendText(ctx, business, customer,
		fmt.Sprintf("❌ Order #%s has been cancelled.\n\nYou can start a new order anytime by typing 'hi' or 'hello'.", order.OrderNumber))
}

func (e *engine) startCustomization(ctx context.Context, business *models.Business, customer *models.Customer, productID string) error {
	product, err := e.findBusinessProduct(ctx, business, productID)
	if err != nil || !product.AllowsCustomization {
		return e.sendText(ctx, business, customer, "Sorry, customizations are not available on this product.")
	}
	if _, err := e.states.Begin(ctx, customer.PhoneNumber, &business.ID, enums.StepAwaitingCustomization, types.JSONMap{}); err != nil {
		return err
	}
	return e.sendText(ctx, business, customer,
		fmt.Sprintf("Kindly describe what customizations you would like done to your %s", product.Name))
}

func (e *engine) startIssueReport(ctx context.Context, business *models.Business, customer *models.Customer, orderID string) error {
	id, err := uuid.Parse(orderID)
	if err != nil {
		return e.sendText(ctx, business, customer, "Sorry, I couldn't find that order.")
	}
	order, err := e.orders.FindForCustomer(ctx, id, business.ID, customer.ID)
	if err != nil {
		return e.sendText(ctx, business, customer, "Sorry, I couldn't find that order.")
	}
	pending := types.JSONMap{keyOrderID: order.ID.String()}
	if _, err := e.states.Begin(ctx, customer.PhoneNumber, &business.ID, enums.StepAwaitingIssueDescription, pending); err != nil {
		return err
	}
	return e.sendText(ctx, business, customer,
		fmt.Sprintf("Please describe the issue you're experiencing with order %s:", order.OrderNumber))
}

func (e *engine) startDetailsUpdate(ctx context.Context, business *models.Business, customer *models.Customer) error {
	if _, err := e.states.Begin(ctx, customer.PhoneNumber, &business.ID, enums.StepAwaitingName, types.JSONMap{}); err != nil {
		return err
	}
	currentName := "not set"
	if customer.Name != nil {
		currentName = *customer.Name
	}
	return e.sendText(ctx, business, customer,
		fmt.Sprintf("Let's update your details. Your current name is: %s\n\nPlease type your new name:", currentName))
}

func (e *engine) findBusinessProduct(ctx context.Context, business *models.Business, productID string) (*models.Product, error) {
	id, err := uuid.Parse(productID)
	if err != nil {
		return nil, err
	}
	product, err := e.catalog.FindProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if !product.IsActive || product.BusinessID != business.ID {
		return nil, fmt.Errorf("product %s is not sellable for business %s", productID, business.ID)
	}
	return product, nil
}

package commerce

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/sasabothq/sasabot-backend/pkg/db/models"
	"github.com/sasabothq/sasabot-backend/pkg/enums"
	"github.com/sasabothq/sasabot-backend/pkg/whatsapp"
)

func (e *engine) creds(business *models.Business) whatsapp.Credentials {
	return e.sender.CredentialsFor(business.WhatsAppAPIToken, business.WhatsAppPhoneID)
}

// sendText delivers and transcribes one bot text message. Transcript
// failures are logged, never propagated.
func (e *engine) sendText(ctx context.Context, business *models.Business, customer *models.Customer, body string) error {
	err := e.sender.SendText(ctx, e.creds(business), customer.PhoneNumber, body)
	if recordErr := e.chat.Record(ctx, business.ID, customer.ID, enums.SenderBot, enums.MessageTypeText, body); recordErr != nil {
		e.logger.Error(ctx, "failed to record outbound text", recordErr)
	}
	return err
}

func (e *engine) sendButtons(ctx context.Context, business *models.Business, customer *models.Customer, header, body, footer string, buttons []whatsapp.Button) error {
	err := e.sender.SendButtons(ctx, e.creds(business), customer.PhoneNumber, header, body, footer, buttons)
	if recordErr := e.chat.Record(ctx, business.ID, customer.ID, enums.SenderBot, enums.MessageTypeInteractive, body); recordErr != nil {
		e.logger.Error(ctx, "failed to record outbound buttons", recordErr)
	}
	return err
}

func (e *engine) sendList(ctx context.Context, business *models.Business, customer *models.Customer, header, body, footer, buttonLabel string, sections []whatsapp.Section) error {
	err := e.sender.SendList(ctx, e.creds(business), customer.PhoneNumber, header, body, footer, buttonLabel, sections)
	if recordErr := e.chat.Record(ctx, business.ID, customer.ID, enums.SenderBot, enums.MessageTypeInteractive, body); recordErr != nil {
		e.logger.Error(ctx, "failed to record outbound list", recordErr)
	}
	return err
}

// choice is one selectable entity rendered as a button or a list row.
type choice struct {
	id          string
	title       string
	description string
}

// sendChoices renders N selectable entities as reply buttons when N is
// at most three and as a list message otherwise.
func (e *engine) sendChoices(ctx context.Context, business *models.Business, customer *models.Customer, header, body, footer, buttonLabel, sectionTitle string, choices []choice) error {
	if len(choices) <= whatsapp.MaxButtons {
		buttons := make([]whatsapp.Button, 0, len(choices))
		for _, c := range choices {
			buttons = append(buttons, whatsapp.Button{ID: c.id, Title: c.title})
		}
		return e.sendButtons(ctx, business, customer, header, body, footer, buttons)
	}

	rows := make([]whatsapp.Row, 0, len(choices))
	for _, c := range choices {
		rows = append(rows, whatsapp.Row{ID: c.id, Title: c.title, Description: c.description})
	}
	return e.sendList(ctx, business, customer, header, body, footer, buttonLabel,
		[]whatsapp.Section{{Title: sectionTitle, Rows: rows}})
}

func (e *engine) sendCategoriesMenu(ctx context.Context, business *models.Business, customer *models.Customer) error {
	categories, err := e.catalog.ListActiveCategories(ctx, business.ID)
	if err != nil {
		return err
	}
	if len(categories) == 0 {
		return e.sendText(ctx, business, customer,
			fmt.Sprintf("Sorry, %s doesn't have any categories set up yet. Please check back later.", business.Name))
	}

	choices := make([]choice, 0, len(categories))
	for _, category := range categories {
		description := "Browse products"
		if category.Description != nil && *category.Description != "" {
			description = *category.Description
		}
		choices = append(choices, choice{
			id:          prefixCategory + category.ID.String(),
			title:       category.Name,
			description: description,
		})
	}
	return e.sendChoices(ctx, business, customer, "Browse Categories",
		fmt.Sprintf("Choose a category to browse products from %s:", business.Name),
		"Select a category", "Select Category", "Categories", choices)
}

func statusEmoji(status enums.OrderStatus) string {
	switch status {
	case enums.OrderStatusPending:
		return "🟡"
	case enums.OrderStatusCompleted:
		return "🟢"
	default:
		return "🔵"
	}
}

// sendOrdersMenu renders the customer's recent orders; idPrefix decides
// whether selection opens the detail view or the issue flow.
func (e *engine) sendOrdersMenu(ctx context.Context, business *models.Business, customer *models.Customer, idPrefix, header, body, footer string) error {
	recent, err := e.orders.ListRecent(ctx, business.ID, customer.ID, recentOrdersLimit)
	if err != nil {
		return err
	}
	if len(recent) == 0 {
		if idPrefix == prefixIssueOrder {
			return e.sendText(ctx, business, customer,
				fmt.Sprintf("You don't have any orders with %s to report issues for.", business.Name))
		}
		return e.sendText(ctx, business, customer,
			fmt.Sprintf("You don't have any orders with %s yet. Would you like to browse our products?", business.Name))
	}

	choices := make([]choice, 0, len(recent))
	for _, order := range recent {
		choices = append(choices, choice{
			id:          idPrefix + order.ID.String(),
			title:       fmt.Sprintf("%s %s", statusEmoji(order.Status), order.OrderNumber),
			description: fmt.Sprintf("Status: %s | Amount: KSH %s", order.Status, order.TotalAmount.StringFixed(2)),
		})
	}
	return e.sendChoices(ctx, business, customer, header, body, footer, "Select Order", "Orders", choices)
}

// sendCategoryProducts lists the category's active products as plain
// text, then offers them as a selection so the detail view is reachable.
func (e *engine) sendCategoryProducts(ctx context.Context, business *models.Business, customer *models.Customer, categoryID string) error {
	id, err := uuid.Parse(categoryID)
	if err != nil {
		return e.sendText(ctx, business, customer, "Sorry, I couldn't find that category.")
	}
	category, err := e.catalog.FindCategory(ctx, id)
	if err != nil || category.BusinessID != business.ID {
		return e.sendText(ctx, business, customer, "Sorry, I couldn't find that category.")
	}
	products, err := e.catalog.ListActiveProducts(ctx, category.ID)
	if err != nil {
		return err
	}
	if len(products) == 0 {
		return e.sendText(ctx, business, customer,
			fmt.Sprintf("Sorry, there are no products available in the %s category right now.", category.Name))
	}

	var listing strings.Builder
	fmt.Fprintf(&listing, "*%s Products*\n\n", category.Name)
	for i, product := range products {
		fmt.Fprintf(&listing, "%d. *%s*\n   Price: KSH %s\n", i+1, product.Name, product.Price.StringFixed(2))
		if product.Description != nil && *product.Description != "" {
			fmt.Fprintf(&listing, "   %s\n", *product.Description)
		}
		listing.WriteString("\n")
	}
	if err := e.sendText(ctx, business, customer, listing.String()); err != nil {
		return err
	}

	choices := make([]choice, 0, len(products))
	for _, product := range products {
		choices = append(choices, choice{
			id:          prefixProduct + product.ID.String(),
			title:       product.Name,
			description: fmt.Sprintf("KSH %s", product.Price.StringFixed(2)),
		})
	}
	return e.sendChoices(ctx, business, customer, category.Name,
		"Select a product to see details and purchase options:",
		"Select a product", "Select Product", "Products", choices)
}

func (e *engine) sendProductDetail(ctx context.Context, business *models.Business, customer *models.Customer, productID string) error {
	product, err := e.findBusinessProduct(ctx, business, productID)
	if err != nil {
		return e.sendText(ctx, business, customer, "Sorry, this product is not available.")
	}

	var body strings.Builder
	fmt.Fprintf(&body, "*%s*\nPrice: KSH %s\n", product.Name, product.Price.StringFixed(2))
	if product.Description != nil && *product.Description != "" {
		fmt.Fprintf(&body, "\n%s\n", *product.Description)
	}

	buttons := []whatsapp.Button{{ID: prefixBuy + product.ID.String(), Title: "Buy Now"}}
	if product.HasVariations {
		buttons = append(buttons, whatsapp.Button{ID: prefixVariations + product.ID.String(), Title: "See Variations"})
	}
	if product.AllowsCustomization {
		buttons = append(buttons, whatsapp.Button{ID: prefixCustomize + product.ID.String(), Title: "Customize"})
	}
	return e.sendButtons(ctx, business, customer, product.Name, body.String(), "Choose an option", buttons)
}

func (e *engine) sendVariationsMenu(ctx context.Context, business *models.Business, customer *models.Customer, productID string) error {
	product, err := e.findBusinessProduct(ctx, business, productID)
	if err != nil {
		return e.sendText(ctx, business, customer, "Sorry, this product is not available.")
	}
	variations, err := e.catalog.ListActiveVariations(ctx, product.ID)
	if err != nil {
		return err
	}
	if len(variations) == 0 {
		return e.sendText(ctx, business, customer, "No variations available for this product.")
	}

	choices := make([]choice, 0, len(variations))
	for _, variation := range variations {
		choices = append(choices, choice{
			id:          prefixVariation + variation.ID.String(),
			title:       fmt.Sprintf("%s - KSH %s", variation.Name, variation.Price.StringFixed(2)),
			description: fmt.Sprintf("%s of %s", variation.Name, product.Name),
		})
	}
	return e.sendChoices(ctx, business, customer,
		fmt.Sprintf("%s - Variations", product.Name),
		fmt.Sprintf("Choose from available variations of %s:", product.Name),
		"Select a variation to purchase", "Select Variation", "Variations", choices)
}

func (e *engine) sendOrderConfirmation(ctx context.Context, business *models.Business, customer *models.Customer, order *models.Order, product *models.Product) error {
	var summary strings.Builder
	summary.WriteString("📋 *Order Summary*\n\n")
	fmt.Fprintf(&summary, "Order #: %s\nBusiness: %s\n\n*Items:*\n", order.OrderNumber, business.Name)
	for _, item := range order.Items {
		fmt.Fprintf(&summary, "• %dx %s - KSH %s\n", item.Quantity, item.Name, item.TotalPrice.StringFixed(2))
	}
	fmt.Fprintf(&summary, "\n*Total: KSH %s*\n\nPlease confirm your order to proceed with payment.", order.TotalAmount.StringFixed(2))

	buttons := []whatsapp.Button{
		{ID: prefixConfirmOrder + order.ID.String(), Title: "✅ Confirm Order"},
	}
	if product.AllowsCustomization {
		buttons = append(buttons, whatsapp.Button{ID: prefixCustomize + product.ID.String(), Title: "🎨 Add Customization"})
	}
	buttons = append(buttons, whatsapp.Button{ID: prefixCancelOrder + order.ID.String(), Title: "❌ Cancel"})

	return e.sendButtons(ctx, business, customer, "Order Confirmation", summary.String(), "Choose an option", buttons)
}

func (e *engine) sendOrderDetail(ctx context.Context, business *models.Business, customer *models.Customer, orderID string) error {
	id, err := uuid.Parse(orderID)
	if err != nil {
		return e.sendText(ctx, business, customer, "Sorry, I couldn't find that order.")
	}
	order, err := e.orders.FindForCustomer(ctx, id, business.ID, customer.ID)
	if err != nil {
		return e.sendText(ctx, business, customer, "Sorry, I couldn't find that order.")
	}

	var details strings.Builder
	details.WriteString("*Order Details*\n\n")
	fmt.Fprintf(&details, "Order Number: %s\n", order.OrderNumber)
	fmt.Fprintf(&details, "Status: %s\n", order.Status)
	fmt.Fprintf(&details, "Payment Status: %s\n", order.PaymentStatus)
	fmt.Fprintf(&details, "Total Amount: KSH %s\n", order.TotalAmount.StringFixed(2))
	fmt.Fprintf(&details, "Order Date: %s\n\n", order.CreatedAt.Format("02 January 2006"))
	details.WriteString("*Items Ordered:*\n")
	for _, item := range order.Items {
		fmt.Fprintf(&details, "• %s x%d - KSH %s\n", item.Name, item.Quantity, item.TotalPrice.StringFixed(2))
	}
	if order.CustomizationNotes != nil && *order.CustomizationNotes != "" {
		fmt.Fprintf(&details, "\n*Special Instructions:*\n%s", *order.CustomizationNotes)
	}
	return e.sendText(ctx, business, customer, details.String())
}

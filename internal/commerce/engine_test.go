package commerce

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sasabothq/sasabot-backend/internal/catalog"
	"github.com/sasabothq/sasabot-backend/internal/chat"
	"github.com/sasabothq/sasabot-backend/internal/conversation"
	"github.com/sasabothq/sasabot-backend/internal/customers"
	"github.com/sasabothq/sasabot-backend/internal/orders"
	"github.com/sasabothq/sasabot-backend/pkg/config"
	"github.com/sasabothq/sasabot-backend/pkg/db"
	"github.com/sasabothq/sasabot-backend/pkg/db/models"
	"github.com/sasabothq/sasabot-backend/pkg/enums"
	"github.com/sasabothq/sasabot-backend/pkg/logger"
	"github.com/sasabothq/sasabot-backend/pkg/whatsapp"
)

const commerceSchema = `
CREATE TABLE IF NOT EXISTS businesses (
  id TEXT PRIMARY KEY,
  vendor_id TEXT NOT NULL,
  name TEXT NOT NULL,
  description TEXT NOT NULL,
  whatsapp_number TEXT NOT NULL,
  email TEXT,
  category TEXT NOT NULL,
  whatsapp_api_token TEXT,
  whatsapp_phone_id TEXT,
  custom_instructions TEXT,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS categories (
  id TEXT PRIMARY KEY,
  business_id TEXT NOT NULL,
  name TEXT NOT NULL,
  description TEXT,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  business_id TEXT NOT NULL,
  category_id TEXT NOT NULL,
  name TEXT NOT NULL,
  description TEXT,
  price NUMERIC NOT NULL,
  currency TEXT NOT NULL DEFAULT 'KES',
  is_active INTEGER NOT NULL DEFAULT 1,
  has_variations INTEGER NOT NULL DEFAULT 0,
  allows_customization INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS product_variations (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  name TEXT NOT NULL,
  price NUMERIC NOT NULL,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS customers (
  id TEXT PRIMARY KEY,
  phone_number TEXT NOT NULL UNIQUE,
  name TEXT,
  email TEXT,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  order_number TEXT NOT NULL UNIQUE,
  business_id TEXT NOT NULL,
  customer_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  payment_status TEXT NOT NULL DEFAULT 'pending',
  total_amount NUMERIC NOT NULL,
  currency TEXT NOT NULL DEFAULT 'KES',
  customization_notes TEXT,
  payment_phone TEXT,
  checkout_request_id TEXT UNIQUE,
  mpesa_receipt TEXT,
  paid_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  variation_id TEXT,
  name TEXT NOT NULL,
  quantity INTEGER NOT NULL DEFAULT 1,
  unit_price NUMERIC NOT NULL,
  total_price NUMERIC NOT NULL,
  created_at DATETIME
);
CREATE TABLE IF NOT EXISTS order_issues (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  customer_id TEXT NOT NULL,
  description TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'open',
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS chat_sessions (
  id TEXT PRIMARY KEY,
  business_id TEXT NOT NULL,
  customer_id TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (business_id, customer_id)
);
CREATE TABLE IF NOT EXISTS chat_messages (
  id TEXT PRIMARY KEY,
  session_id TEXT NOT NULL,
  sender TEXT NOT NULL,
  type TEXT NOT NULL DEFAULT 'text',
  body TEXT NOT NULL,
  created_at DATETIME
);
CREATE TABLE IF NOT EXISTS conversation_states (
  id TEXT PRIMARY KEY,
  phone_number TEXT NOT NULL,
  business_id TEXT,
  current_step TEXT NOT NULL,
  pending_data TEXT NOT NULL DEFAULT '{}',
  created_at DATETIME,
  updated_at DATETIME
);`

var testDBCounter int

type sentMessage struct {
	kind     string
	to       string
	header   string
	body     string
	buttons  []whatsapp.Button
	sections []whatsapp.Section
}

type fakeSender struct {
	sent []sentMessage
}

func (f *fakeSender) SendText(_ context.Context, _ whatsapp.Credentials, to, body string) error {
	f.sent = append(f.sent, sentMessage{kind: "text", to: to, body: body})
	return nil
}

func (f *fakeSender) SendButtons(_ context.Context, _ whatsapp.Credentials, to, header, body, _ string, buttons []whatsapp.Button) error {
	f.sent = append(f.sent, sentMessage{kind: "buttons", to: to, header: header, body: body, buttons: buttons})
	return nil
}

func (f *fakeSender) SendList(_ context.Context, _ whatsapp.Credentials, to, header, body, _, _ string, sections []whatsapp.Section) error {
	f.sent = append(f.sent, sentMessage{kind: "list", to: to, header: header, body: body, sections: sections})
	return nil
}

func (f *fakeSender) SendDocument(_ context.Context, _ whatsapp.Credentials, to, _, _, _ string) error {
	f.sent = append(f.sent, sentMessage{kind: "document", to: to})
	return nil
}

func (f *fakeSender) CredentialsFor(_, _ *string) whatsapp.Credentials {
	return whatsapp.Credentials{}
}

func (f *fakeSender) last(t *testing.T) sentMessage {
	t.Helper()
	require.NotEmpty(t, f.sent)
	return f.sent[len(f.sent)-1]
}

type paymentCall struct {
	orderID uuid.UUID
	phone   string
}

type fakePayments struct {
	calls []paymentCall
	fail  bool
}

func (f *fakePayments) RequestPayment(_ context.Context, _ *models.Business, order *models.Order, payerPhone string) error {
	f.calls = append(f.calls, paymentCall{orderID: order.ID, phone: payerPhone})
	if f.fail {
		return fmt.Errorf("gateway unavailable")
	}
	return nil
}

type fakeLocker struct{}

func (f *fakeLocker) AcquireLock(context.Context, string, time.Duration) (string, bool, error) {
	return "token", true, nil
}

func (f *fakeLocker) ReleaseLock(context.Context, string) error { return nil }

func (f *fakeLocker) LockKey(parts ...string) string { return fmt.Sprint(parts) }

func testLogger() *logger.Logger {
	return logger.New(logger.Options{
		ServiceName: "commerce-test",
		Level:       zerolog.Disabled,
		Output:      io.Discard,
	})
}

type fixture struct {
	engine   Engine
	sender   *fakeSender
	payments *fakePayments
	states   conversation.Store
	gdb      *gorm.DB
	business *models.Business
	customer *models.Customer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	testDBCounter++
	dsn := fmt.Sprintf("file:commerce_test_%d?mode=memory&cache=shared", testDBCounter)
	client, err := db.New(context.Background(), config.DBConfig{DSN: dsn, Driver: "sqlite"}, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	gdb := client.DB()
	require.NoError(t, gdb.Exec(commerceSchema).Error)

	states, err := conversation.NewStore(conversation.NewRepository(gdb), &fakeLocker{}, testLogger(), time.Second)
	require.NoError(t, err)

	orderSvc, err := orders.NewService(orders.NewRepository(gdb), testLogger())
	require.NoError(t, err)
	customerSvc, err := customers.NewService(customers.NewRepository(gdb))
	require.NoError(t, err)
	chatSvc, err := chat.NewService(chat.NewRepository(gdb))
	require.NoError(t, err)

	sender := &fakeSender{}
	payments := &fakePayments{}
	eng, err := NewEngine(states, catalog.NewRepository(gdb), orderSvc, customerSvc, chatSvc, sender, payments, testLogger())
	require.NoError(t, err)

	business := &models.Business{
		ID:             uuid.New(),
		VendorID:       uuid.New(),
		Name:           "Njeri Electronics",
		Description:    "Phones and laptops",
		WhatsAppNumber: "254798765432",
		Category:       enums.BusinessCategoryElectronics,
		IsActive:       true,
	}
	require.NoError(t, gdb.Create(business).Error)

	customer := &models.Customer{ID: uuid.New(), PhoneNumber: "254712345678"}
	require.NoError(t, gdb.Create(customer).Error)

	return &fixture{
		engine:   eng,
		sender:   sender,
		payments: payments,
		states:   states,
		gdb:      gdb,
		business: business,
		customer: customer,
	}
}

func (fx *fixture) addCategory(t *testing.T, name string) *models.Category {
	t.Helper()
	category := &models.Category{ID: uuid.New(), BusinessID: fx.business.ID, Name: name, IsActive: true}
	require.NoError(t, fx.gdb.Create(category).Error)
	return category
}

func (fx *fixture) addProduct(t *testing.T, categoryID uuid.UUID, name, price string, mutate func(*models.Product)) *models.Product {
	t.Helper()
	product := &models.Product{
		ID:         uuid.New(),
		BusinessID: fx.business.ID,
		CategoryID: categoryID,
		Name:       name,
		Price:      decimal.RequireFromString(price),
		Currency:   "KES",
		IsActive:   true,
	}
	if mutate != nil {
		mutate(product)
	}
	require.NoError(t, fx.gdb.Create(product).Error)
	return product
}

func (fx *fixture) step(t *testing.T) *models.ConversationState {
	t.Helper()
	state, err := fx.states.Get(context.Background(), fx.customer.PhoneNumber, &fx.business.ID)
	require.NoError(t, err)
	return state
}

func TestGreetingSendsMenuList(t *testing.T) {
	fx := newFixture(t)

	handled, err := fx.engine.HandleText(context.Background(), fx.business, fx.customer, "hujambo")
	require.NoError(t, err)
	require.True(t, handled)

	last := fx.sender.last(t)
	require.Equal(t, "list", last.kind)
	require.Len(t, last.sections, 1)
	require.Len(t, last.sections[0].Rows, 4)
	require.Equal(t, menuBrowseCategories, last.sections[0].Rows[0].ID)
}

func TestFreeFormTextIsNotHandled(t *testing.T) {
	fx := newFixture(t)

	handled, err := fx.engine.HandleText(context.Background(), fx.business, fx.customer, "do you sell solar panels?")
	require.NoError(t, err)
	require.False(t, handled)
	require.Empty(t, fx.sender.sent)
}

func TestCategoriesThresholdButtonsVersusList(t *testing.T) {
	for n := 0; n <= 20; n++ {
		t.Run(fmt.Sprintf("categories_%d", n), func(t *testing.T) {
			fx := newFixture(t)
			for i := 0; i < n; i++ {
				fx.addCategory(t, fmt.Sprintf("Category %02d", i))
			}

			require.NoError(t, fx.engine.HandleButton(context.Background(), fx.business, fx.customer, menuBrowseCategories))

			last := fx.sender.last(t)
			switch {
			case n == 0:
				require.Equal(t, "text", last.kind)
			case n <= 3:
				require.Equal(t, "buttons", last.kind)
				require.Len(t, last.buttons, n)
			default:
				require.Equal(t, "list", last.kind)
				require.Len(t, last.sections[0].Rows, n)
			}
		})
	}
}

func TestBuyCreatesSingleOrderAndConfirmation(t *testing.T) {
	fx := newFixture(t)
	category := fx.addCategory(t, "Phones")
	product := fx.addProduct(t, category.ID, "Feature Phone", "500", nil)

	require.NoError(t, fx.engine.HandleButton(context.Background(), fx.business, fx.customer, prefixBuy+product.ID.String()))

	var created []models.Order
	require.NoError(t, fx.gdb.Preload("Items").Find(&created).Error)
	require.Len(t, created, 1)
	order := created[0]
	require.Len(t, order.Items, 1)
	require.Equal(t, 1, order.Items[0].Quantity)
	require.True(t, order.Items[0].UnitPrice.Equal(decimal.RequireFromString("500")))
	require.True(t, order.TotalAmount.Equal(decimal.RequireFromString("500")))
	require.Equal(t, enums.OrderStatusPending, order.Status)
	require.Equal(t, enums.PaymentStatusPending, order.PaymentStatus)

	last := fx.sender.last(t)
	require.Equal(t, "buttons", last.kind)
	require.Contains(t, last.body, order.OrderNumber)
	require.Equal(t, prefixConfirmOrder+order.ID.String(), last.buttons[0].ID)
	require.Equal(t, prefixCancelOrder+order.ID.String(), last.buttons[len(last.buttons)-1].ID)
}

func TestBuyWithVariationsShowsVariationMenu(t *testing.T) {
	fx := newFixture(t)
	category := fx.addCategory(t, "Shirts")
	product := fx.addProduct(t, category.ID, "Polo Shirt", "1200", func(p *models.Product) {
		p.HasVariations = true
	})
	for _, name := range []string{"Small", "Medium"} {
		require.NoError(t, fx.gdb.Create(&models.ProductVariation{
			ID: uuid.New(), ProductID: product.ID, Name: name,
			Price: decimal.RequireFromString("1200"), IsActive: true,
		}).Error)
	}

	require.NoError(t, fx.engine.HandleButton(context.Background(), fx.business, fx.customer, prefixBuy+product.ID.String()))

	// No order yet, just the variation picker.
	var count int64
	require.NoError(t, fx.gdb.Model(&models.Order{}).Count(&count).Error)
	require.Zero(t, count)

	last := fx.sender.last(t)
	require.Equal(t, "buttons", last.kind)
	require.Len(t, last.buttons, 2)
	require.Contains(t, last.buttons[0].ID, prefixVariation)
}

func TestConfirmThenMSISDNInitiatesPayment(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	category := fx.addCategory(t, "Phones")
	product := fx.addProduct(t, category.ID, "Feature Phone", "500", nil)

	require.NoError(t, fx.engine.HandleButton(ctx, fx.business, fx.customer, prefixBuy+product.ID.String()))

	var order models.Order
	require.NoError(t, fx.gdb.First(&order).Error)

	require.NoError(t, fx.engine.HandleButton(ctx, fx.business, fx.customer, prefixConfirmOrder+order.ID.String()))
	state := fx.step(t)
	require.NotNil(t, state)
	require.Equal(t, enums.StepAwaitingPaymentPhone, state.CurrentStep)

	// Garbage first, then a valid M-PESA number.
	handled, err := fx.engine.HandleText(ctx, fx.business, fx.customer, "pay from my savings")
	require.NoError(t, err)
	require.True(t, handled)
	require.Empty(t, fx.payments.calls)

	handled, err = fx.engine.HandleText(ctx, fx.business, fx.customer, "0712345678")
	require.NoError(t, err)
	require.True(t, handled)
	require.Len(t, fx.payments.calls, 1)
	require.Equal(t, order.ID, fx.payments.calls[0].orderID)
	require.Equal(t, "0712345678", fx.payments.calls[0].phone)
	require.Nil(t, fx.step(t))
	require.Contains(t, fx.sender.last(t).body, "Payment request sent")
}

func TestPaymentInitiationFailureMessagesUser(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	category := fx.addCategory(t, "Phones")
	product := fx.addProduct(t, category.ID, "Feature Phone", "500", nil)
	fx.payments.fail = true

	require.NoError(t, fx.engine.HandleButton(ctx, fx.business, fx.customer, prefixBuy+product.ID.String()))
	var order models.Order
	require.NoError(t, fx.gdb.First(&order).Error)
	require.NoError(t, fx.engine.HandleButton(ctx, fx.business, fx.customer, prefixConfirmOrder+order.ID.String()))

	handled, err := fx.engine.HandleText(ctx, fx.business, fx.customer, "254712345678")
	require.NoError(t, err)
	require.True(t, handled)
	require.Contains(t, fx.sender.last(t).body, "Payment initiation failed")
}

func TestPaymentRetryAfterFailureFindsPendingOrder(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	category := fx.addCategory(t, "Phones")
	product := fx.addProduct(t, category.ID, "Feature Phone", "500", nil)
	fx.payments.fail = true

	require.NoError(t, fx.engine.HandleButton(ctx, fx.business, fx.customer, prefixBuy+product.ID.String()))
	var order models.Order
	require.NoError(t, fx.gdb.First(&order).Error)
	require.NoError(t, fx.engine.HandleButton(ctx, fx.business, fx.customer, prefixConfirmOrder+order.ID.String()))

	handled, err := fx.engine.HandleText(ctx, fx.business, fx.customer, "254712345678")
	require.NoError(t, err)
	require.True(t, handled)
	require.Contains(t, fx.sender.last(t).body, "Payment initiation failed")
	require.Nil(t, fx.step(t))

	// The gateway recovers. The order never got a payment_phone, so
	// the retry must resolve it by customer, not by payer phone.
	fx.payments.fail = false
	handled, err = fx.engine.HandleText(ctx, fx.business, fx.customer, "254712345678")
	require.NoError(t, err)
	require.True(t, handled)
	require.Len(t, fx.payments.calls, 2)
	require.Equal(t, order.ID, fx.payments.calls[1].orderID)
	require.Contains(t, fx.sender.last(t).body, "Payment request sent")
}

func TestCancelOrder(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	category := fx.addCategory(t, "Phones")
	product := fx.addProduct(t, category.ID, "Feature Phone", "500", nil)

	require.NoError(t, fx.engine.HandleButton(ctx, fx.business, fx.customer, prefixBuy+product.ID.String()))
	var order models.Order
	require.NoError(t, fx.gdb.First(&order).Error)

	require.NoError(t, fx.engine.HandleButton(ctx, fx.business, fx.customer, prefixCancelOrder+order.ID.String()))

	var reloaded models.Order
	require.NoError(t, fx.gdb.First(&reloaded, "id = ?", order.ID).Error)
	require.Equal(t, enums.OrderStatusCancelled, reloaded.Status)
	require.Contains(t, fx.sender.last(t).body, "cancelled")
}

func TestIssueReportFlow(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	category := fx.addCategory(t, "Phones")
	product := fx.addProduct(t, category.ID, "Feature Phone", "500", nil)

	require.NoError(t, fx.engine.HandleButton(ctx, fx.business, fx.customer, prefixBuy+product.ID.String()))
	var order models.Order
	require.NoError(t, fx.gdb.First(&order).Error)

	require.NoError(t, fx.engine.HandleButton(ctx, fx.business, fx.customer, prefixIssueOrder+order.ID.String()))
	state := fx.step(t)
	require.NotNil(t, state)
	require.Equal(t, enums.StepAwaitingIssueDescription, state.CurrentStep)
	require.Equal(t, order.ID.String(), state.PendingData.GetString("order_id"))

	handled, err := fx.engine.HandleText(ctx, fx.business, fx.customer, "The phone arrived with a cracked screen")
	require.NoError(t, err)
	require.True(t, handled)

	var issue models.OrderIssue
	require.NoError(t, fx.gdb.First(&issue).Error)
	require.Equal(t, order.ID, issue.OrderID)
	require.Equal(t, enums.IssueStatusOpen, issue.Status)
	require.Nil(t, fx.step(t))
}

func TestUpdateDetailsTwoStepFlow(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.engine.HandleButton(ctx, fx.business, fx.customer, menuUpdateDetails))
	state := fx.step(t)
	require.NotNil(t, state)
	require.Equal(t, enums.StepAwaitingName, state.CurrentStep)

	handled, err := fx.engine.HandleText(ctx, fx.business, fx.customer, "Wanjiku Kamau")
	require.NoError(t, err)
	require.True(t, handled)
	require.Equal(t, enums.StepAwaitingEmail, fx.step(t).CurrentStep)

	handled, err = fx.engine.HandleText(ctx, fx.business, fx.customer, "wanjiku@example.com")
	require.NoError(t, err)
	require.True(t, handled)
	require.Nil(t, fx.step(t))

	var customer models.Customer
	require.NoError(t, fx.gdb.First(&customer, "id = ?", fx.customer.ID).Error)
	require.NotNil(t, customer.Name)
	require.Equal(t, "Wanjiku Kamau", *customer.Name)
	require.NotNil(t, customer.Email)
	require.Equal(t, "wanjiku@example.com", *customer.Email)
}

func TestCustomizationStoresNotesOnPendingOrder(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	category := fx.addCategory(t, "Mugs")
	product := fx.addProduct(t, category.ID, "Branded Mug", "350", func(p *models.Product) {
		p.AllowsCustomization = true
	})

	require.NoError(t, fx.engine.HandleButton(ctx, fx.business, fx.customer, prefixBuy+product.ID.String()))
	var order models.Order
	require.NoError(t, fx.gdb.First(&order).Error)

	require.NoError(t, fx.engine.HandleButton(ctx, fx.business, fx.customer, prefixCustomize+product.ID.String()))
	require.Equal(t, enums.StepAwaitingCustomization, fx.step(t).CurrentStep)

	handled, err := fx.engine.HandleText(ctx, fx.business, fx.customer, "Print JK initials in gold")
	require.NoError(t, err)
	require.True(t, handled)

	var reloaded models.Order
	require.NoError(t, fx.gdb.First(&reloaded, "id = ?", order.ID).Error)
	require.NotNil(t, reloaded.CustomizationNotes)
	require.Equal(t, "Print JK initials in gold", *reloaded.CustomizationNotes)
	require.Equal(t, enums.StepAwaitingPaymentPhone, fx.step(t).CurrentStep)
}

func TestOrdersMenuThreshold(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	category := fx.addCategory(t, "Phones")
	product := fx.addProduct(t, category.ID, "Feature Phone", "500", nil)

	for n := 1; n <= 5; n++ {
		require.NoError(t, fx.engine.HandleButton(ctx, fx.business, fx.customer, prefixBuy+product.ID.String()))

		require.NoError(t, fx.engine.HandleButton(ctx, fx.business, fx.customer, menuViewOrders))
		last := fx.sender.last(t)
		if n <= 3 {
			require.Equal(t, "buttons", last.kind)
			require.Len(t, last.buttons, n)
		} else {
			require.Equal(t, "list", last.kind)
			require.Len(t, last.sections[0].Rows, n)
		}
	}
}

func TestTranscriptRecordsBotMessages(t *testing.T) {
	fx := newFixture(t)

	handled, err := fx.engine.HandleText(context.Background(), fx.business, fx.customer, "hello")
	require.NoError(t, err)
	require.True(t, handled)

	var count int64
	require.NoError(t, fx.gdb.Model(&models.ChatMessage{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

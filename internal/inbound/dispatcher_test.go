package inbound

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sasabothq/sasabot-backend/internal/catalog"
	"github.com/sasabothq/sasabot-backend/internal/conversation"
	"github.com/sasabothq/sasabot-backend/internal/customers"
	"github.com/sasabothq/sasabot-backend/internal/onboarding"
	"github.com/sasabothq/sasabot-backend/pkg/config"
	"github.com/sasabothq/sasabot-backend/pkg/db"
	"github.com/sasabothq/sasabot-backend/pkg/db/models"
	"github.com/sasabothq/sasabot-backend/pkg/enums"
	"github.com/sasabothq/sasabot-backend/pkg/logger"
)

const inboundSchema = `
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
CREATE TABLE IF NOT EXISTS vendors (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  email TEXT NOT NULL UNIQUE,
  phone_number TEXT NOT NULL,
  password_hash TEXT NOT NULL,
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

type engineCall struct {
	method string
	value  string
}

type fakeOnboarding struct {
	calls      []engineCall
	inProgress bool
}

func (f *fakeOnboarding) Welcome(_ context.Context, phone string) error {
	f.calls = append(f.calls, engineCall{method: "welcome", value: phone})
	return nil
}

func (f *fakeOnboarding) About(_ context.Context, phone string) error {
	f.calls = append(f.calls, engineCall{method: "about", value: phone})
	return nil
}

func (f *fakeOnboarding) FAQs(_ context.Context, phone string) error {
	f.calls = append(f.calls, engineCall{method: "faqs", value: phone})
	return nil
}

func (f *fakeOnboarding) DashboardLogin(_ context.Context, phone string) error {
	f.calls = append(f.calls, engineCall{method: "dashboard_login", value: phone})
	return nil
}

func (f *fakeOnboarding) Start(_ context.Context, phone string) error {
	f.calls = append(f.calls, engineCall{method: "start", value: phone})
	return nil
}

func (f *fakeOnboarding) Resume(_ context.Context, _ string, input onboarding.Input) error {
	value := input.Text
	if input.ButtonID != "" {
		value = input.ButtonID
	}
	f.calls = append(f.calls, engineCall{method: "resume", value: value})
	return nil
}

func (f *fakeOnboarding) InProgress(context.Context, string) (bool, error) {
	return f.inProgress, nil
}

type fakeCommerce struct {
	calls      []engineCall
	handleText bool
}

func (f *fakeCommerce) Greeting(_ context.Context, _ *models.Business, _ *models.Customer) error {
	f.calls = append(f.calls, engineCall{method: "greeting"})
	return nil
}

func (f *fakeCommerce) HandleButton(_ context.Context, _ *models.Business, _ *models.Customer, buttonID string) error {
	f.calls = append(f.calls, engineCall{method: "button", value: buttonID})
	return nil
}

func (f *fakeCommerce) HandleText(_ context.Context, _ *models.Business, _ *models.Customer, text string) (bool, error) {
	f.calls = append(f.calls, engineCall{method: "text", value: text})
	return f.handleText, nil
}

type fakeResponder struct {
	calls []engineCall
}

func (f *fakeResponder) RespondBusiness(_ context.Context, _ *models.Business, _ *models.Customer, text string) error {
	f.calls = append(f.calls, engineCall{method: "business", value: text})
	return nil
}

func (f *fakeResponder) RespondPlatform(_ context.Context, _ string, text string) error {
	f.calls = append(f.calls, engineCall{method: "platform", value: text})
	return nil
}

type fakeIdempotency struct {
	seen map[string]bool
}

func (f *fakeIdempotency) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

func (f *fakeIdempotency) IdempotencyKey(scope, id string) string {
	return "sb:idempotency:" + scope + ":" + id
}

func (f *fakeIdempotency) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.seen, key)
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
		ServiceName: "inbound-test",
		Level:       zerolog.Disabled,
		Output:      io.Discard,
	})
}

type fixture struct {
	dispatcher Dispatcher
	onboarding *fakeOnboarding
	commerce   *fakeCommerce
	responder  *fakeResponder
	gdb        *gorm.DB
	business   *models.Business
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	testDBCounter++
	dsn := fmt.Sprintf("file:inbound_test_%d?mode=memory&cache=shared", testDBCounter)
	client, err := db.New(context.Background(), config.DBConfig{DSN: dsn, Driver: "sqlite"}, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	gdb := client.DB()
	require.NoError(t, gdb.Exec(inboundSchema).Error)

	states, err := conversation.NewStore(conversation.NewRepository(gdb), &fakeLocker{}, testLogger(), time.Second)
	require.NoError(t, err)
	customerSvc, err := customers.NewService(customers.NewRepository(gdb))
	require.NoError(t, err)

	onboardingFake := &fakeOnboarding{}
	commerceFake := &fakeCommerce{}
	responderFake := &fakeResponder{}

	disp, err := NewDispatcher(
		states,
		onboardingFake,
		onboarding.NewRepository(gdb),
		commerceFake,
		catalog.NewRepository(gdb),
		customerSvc,
		responderFake,
		&fakeIdempotency{seen: map[string]bool{}},
		24*time.Hour,
		nil,
		testLogger(),
	)
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

	return &fixture{
		dispatcher: disp,
		onboarding: onboardingFake,
		commerce:   commerceFake,
		responder:  responderFake,
		gdb:        gdb,
		business:   business,
	}
}

func textDelivery(msgID, from, receiving, body string) []byte {
	return []byte(fmt.Sprintf(`{
  "entry": [{"changes": [{"value": {
    "metadata": {"display_phone_number": %q, "phone_number_id": "111"},
    "messages": [{"id": %q, "from": %q, "type": "text", "text": {"body": %q}}]
  }}]}]
}`, receiving, msgID, from, body))
}

func buttonDelivery(msgID, from, receiving, buttonID string) []byte {
	return []byte(fmt.Sprintf(`{
  "entry": [{"changes": [{"value": {
    "metadata": {"display_phone_number": %q, "phone_number_id": "111"},
    "messages": [{"id": %q, "from": %q, "type": "interactive",
      "interactive": {"type": "button_reply", "button_reply": {"id": %q, "title": "x"}}}]
  }}]}]
}`, receiving, msgID, from, buttonID))
}

func TestPlatformTriggerSendsWelcome(t *testing.T) {
	fx := newFixture(t)

	err := fx.dispatcher.HandlePlatform(context.Background(),
		textDelivery("wamid.1", "254712345678", "254100000000", "Hello"))
	require.NoError(t, err)

	require.Len(t, fx.onboarding.calls, 1)
	require.Equal(t, "welcome", fx.onboarding.calls[0].method)
	require.Empty(t, fx.responder.calls)
}

func TestPlatformStaticButtonsRoute(t *testing.T) {
	cases := map[string]string{
		onboarding.ButtonAbout:          "about",
		onboarding.ButtonFAQs:           "faqs",
		onboarding.ButtonDashboardLogin: "dashboard_login",
		onboarding.ButtonOnboarding:     "start",
	}
	for buttonID, wantMethod := range cases {
		t.Run(buttonID, func(t *testing.T) {
			fx := newFixture(t)

			err := fx.dispatcher.HandlePlatform(context.Background(),
				buttonDelivery("wamid.2", "254712345678", "254100000000", buttonID))
			require.NoError(t, err)
			require.Len(t, fx.onboarding.calls, 1)
			require.Equal(t, wantMethod, fx.onboarding.calls[0].method)
		})
	}
}

func TestPlatformInFlowButtonResumes(t *testing.T) {
	fx := newFixture(t)

	err := fx.dispatcher.HandlePlatform(context.Background(),
		buttonDelivery("wamid.3", "254712345678", "254100000000", onboarding.ButtonLetsGo))
	require.NoError(t, err)

	require.Len(t, fx.onboarding.calls, 1)
	require.Equal(t, engineCall{method: "resume", value: onboarding.ButtonLetsGo}, fx.onboarding.calls[0])
}

func TestPlatformOnboardingTextResumes(t *testing.T) {
	fx := newFixture(t)
	fx.onboarding.inProgress = true

	err := fx.dispatcher.HandlePlatform(context.Background(),
		textDelivery("wamid.4", "254712345678", "254100000000", "Wanjiku Kamau"))
	require.NoError(t, err)

	require.Len(t, fx.onboarding.calls, 1)
	require.Equal(t, engineCall{method: "resume", value: "Wanjiku Kamau"}, fx.onboarding.calls[0])
}

func TestPlatformFreeTextGoesToResponder(t *testing.T) {
	fx := newFixture(t)

	err := fx.dispatcher.HandlePlatform(context.Background(),
		textDelivery("wamid.5", "254712345678", "254100000000", "what is sasabot pricing?"))
	require.NoError(t, err)

	require.Empty(t, fx.onboarding.calls)
	require.Len(t, fx.responder.calls, 1)
	require.Equal(t, "platform", fx.responder.calls[0].method)
}

func TestDuplicateDeliveryIsDropped(t *testing.T) {
	fx := newFixture(t)
	raw := textDelivery("wamid.6", "254712345678", "254100000000", "hello")

	require.NoError(t, fx.dispatcher.HandlePlatform(context.Background(), raw))
	require.NoError(t, fx.dispatcher.HandlePlatform(context.Background(), raw))

	require.Len(t, fx.onboarding.calls, 1)
}

func TestStatusDeliveryIsIgnored(t *testing.T) {
	fx := newFixture(t)

	err := fx.dispatcher.HandlePlatform(context.Background(),
		[]byte(`{"entry": [{"changes": [{"value": {"statuses": [{"id": "wamid.7", "status": "read"}]}}]}]}`))
	require.NoError(t, err)
	require.Empty(t, fx.onboarding.calls)
	require.Empty(t, fx.responder.calls)
}

func TestReceivingNumberRoutesToBusiness(t *testing.T) {
	fx := newFixture(t)

	err := fx.dispatcher.HandlePlatform(context.Background(),
		textDelivery("wamid.8", "254712345678", fx.business.WhatsAppNumber, "hi"))
	require.NoError(t, err)

	require.Empty(t, fx.onboarding.calls)
	require.Len(t, fx.commerce.calls, 1)
	require.Equal(t, engineCall{method: "text", value: "hi"}, fx.commerce.calls[0])
}

func TestBusinessButtonDispatch(t *testing.T) {
	fx := newFixture(t)

	err := fx.dispatcher.HandleBusiness(context.Background(), fx.business.ID,
		buttonDelivery("wamid.9", "254712345678", fx.business.WhatsAppNumber, "browse_categories"))
	require.NoError(t, err)

	require.Len(t, fx.commerce.calls, 1)
	require.Equal(t, engineCall{method: "button", value: "browse_categories"}, fx.commerce.calls[0])
}

func TestBusinessUnhandledTextFallsToResponder(t *testing.T) {
	fx := newFixture(t)
	fx.commerce.handleText = false

	err := fx.dispatcher.HandleBusiness(context.Background(), fx.business.ID,
		textDelivery("wamid.10", "254712345678", fx.business.WhatsAppNumber, "do you deliver to Nakuru?"))
	require.NoError(t, err)

	require.Len(t, fx.commerce.calls, 1)
	require.Len(t, fx.responder.calls, 1)
	require.Equal(t, engineCall{method: "business", value: "do you deliver to Nakuru?"}, fx.responder.calls[0])
}

func TestBusinessHandledTextSkipsResponder(t *testing.T) {
	fx := newFixture(t)
	fx.commerce.handleText = true

	err := fx.dispatcher.HandleBusiness(context.Background(), fx.business.ID,
		textDelivery("wamid.11", "254712345678", fx.business.WhatsAppNumber, "hello"))
	require.NoError(t, err)

	require.Len(t, fx.commerce.calls, 1)
	require.Empty(t, fx.responder.calls)
}

func TestInactiveBusinessDropsTurn(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.gdb.Model(&models.Business{}).
		Where("id = ?", fx.business.ID).Update("is_active", false).Error)

	err := fx.dispatcher.HandleBusiness(context.Background(), fx.business.ID,
		textDelivery("wamid.12", "254712345678", fx.business.WhatsAppNumber, "hello"))
	require.NoError(t, err)
	require.Empty(t, fx.commerce.calls)
	require.Empty(t, fx.responder.calls)
}

package chat

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sasabothq/sasabot-backend/pkg/enums"
)

const chatSchema = `
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
);`

var testDBCounter int

func newTestService(t *testing.T) Service {
	t.Helper()

	testDBCounter++
	dsn := fmt.Sprintf("file:chat_test_%d?mode=memory&cache=shared", testDBCounter)
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.Exec(chatSchema).Error)

	svc, err := NewService(NewRepository(gdb))
	require.NoError(t, err)
	return svc
}

func TestEnsureSessionReusesExisting(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	businessID := uuid.New()
	customerID := uuid.New()

	first, err := svc.EnsureSession(ctx, businessID, customerID)
	require.NoError(t, err)

	second, err := svc.EnsureSession(ctx, businessID, customerID)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	other, err := svc.EnsureSession(ctx, uuid.New(), customerID)
	require.NoError(t, err)
	require.NotEqual(t, first.ID, other.ID)
}

func TestRecordAppendsChronologically(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	businessID := uuid.New()
	customerID := uuid.New()

	require.NoError(t, svc.Record(ctx, businessID, customerID, enums.SenderCustomer, enums.MessageTypeText, "hi"))
	require.NoError(t, svc.Record(ctx, businessID, customerID, enums.SenderBot, enums.MessageTypeInteractive, "Welcome! Pick an option."))
	require.NoError(t, svc.Record(ctx, businessID, customerID, enums.SenderCustomer, enums.MessageTypeText, "browse_categories"))

	messages, err := svc.History(ctx, businessID, customerID, 10)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	require.Equal(t, "hi", messages[0].Body)
	require.Equal(t, enums.SenderBot, messages[1].Sender)
	require.Equal(t, "browse_categories", messages[2].Body)
}

func TestRecordSkipsEmptyBody(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	businessID := uuid.New()
	customerID := uuid.New()

	require.NoError(t, svc.Record(ctx, businessID, customerID, enums.SenderBot, enums.MessageTypeText, "   "))

	messages, err := svc.History(ctx, businessID, customerID, 10)
	require.NoError(t, err)
	require.Empty(t, messages)
}

func TestCustomersForBusinessDeduplicates(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	businessID := uuid.New()
	customerA := uuid.New()
	customerB := uuid.New()

	require.NoError(t, svc.Record(ctx, businessID, customerA, enums.SenderCustomer, enums.MessageTypeText, "hello"))
	require.NoError(t, svc.Record(ctx, businessID, customerA, enums.SenderCustomer, enums.MessageTypeText, "menu"))
	require.NoError(t, svc.Record(ctx, businessID, customerB, enums.SenderCustomer, enums.MessageTypeText, "hello"))
	require.NoError(t, svc.Record(ctx, uuid.New(), customerB, enums.SenderCustomer, enums.MessageTypeText, "hello"))

	customers, err := svc.CustomersForBusiness(ctx, businessID)
	require.NoError(t, err)
	require.Len(t, customers, 2)
	require.ElementsMatch(t, []uuid.UUID{customerA, customerB}, customers)
}

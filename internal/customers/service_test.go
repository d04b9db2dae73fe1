package customers

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var testDBCounter int

func setupCustomersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	testDBCounter++
	dsn := fmt.Sprintf("file:customers_test_%d?mode=memory&cache=shared", testDBCounter)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS customers (
  id TEXT PRIMARY KEY,
  phone_number TEXT NOT NULL UNIQUE,
  name TEXT,
  email TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	db := setupCustomersTestDB(t)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)
	return svc, db
}

func TestEnsureByPhoneCreatesOnce(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.EnsureByPhone(ctx, "+254 712 345 678")
	require.NoError(t, err)
	require.Equal(t, "+254712345678", first.PhoneNumber)

	second, err := svc.EnsureByPhone(ctx, "+254712345678")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
}

func TestEnsureByPhoneRejectsEmpty(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.EnsureByPhone(context.Background(), "   ")
	require.Error(t, err)
}

func TestUpdateNameAndEmail(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	customer, err := svc.EnsureByPhone(ctx, "254700111222")
	require.NoError(t, err)

	require.NoError(t, svc.UpdateName(ctx, customer.ID, "  Wanjiku Kamau "))
	require.NoError(t, svc.UpdateEmail(ctx, customer.ID, "wanjiku@example.com"))

	var name, email string
	require.NoError(t, db.Raw("SELECT name, email FROM customers WHERE id = ?", customer.ID).Row().Scan(&name, &email))
	require.Equal(t, "Wanjiku Kamau", name)
	require.Equal(t, "wanjiku@example.com", email)
}

func TestUpdateEmailNAClears(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	customer, err := svc.EnsureByPhone(ctx, "254700111333")
	require.NoError(t, err)
	require.NoError(t, svc.UpdateEmail(ctx, customer.ID, "old@example.com"))
	require.NoError(t, svc.UpdateEmail(ctx, customer.ID, "N/A"))

	var email *string
	require.NoError(t, db.Raw("SELECT email FROM customers WHERE id = ?", customer.ID).Row().Scan(&email))
	require.Nil(t, email)
}

func TestUpdateEmailRejectsGarbage(t *testing.T) {
	svc, _ := newTestService(t)
	err := svc.UpdateEmail(context.Background(), uuid.New(), "not-an-email")
	require.Error(t, err)
}

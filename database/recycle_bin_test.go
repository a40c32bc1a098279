package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"invoicing-backend/models"
	"invoicing-backend/testutil"
)

func TestRecycleBin_MoveAndRestore(t *testing.T) {
	db := testutil.OpenDB(t)
	c := models.Customer{UID: "u1", Name: "ACME"}
	require.NoError(t, db.Create(&c).Error)

	entry, err := MoveToRecycleBin(db, "u1", models.RecycleCustomer, c.ID, c.Name, c)
	require.NoError(t, err)
	assert.Equal(t, c.ID, entry.OriginalID)
	assert.Contains(t, string(entry.Data), `"name":"ACME"`)

	var stored models.Customer
	require.NoError(t, db.First(&stored, c.ID).Error)
	assert.True(t, stored.IsDeleted)

	restored, err := RestoreFromRecycleBin(db, "u1", entry.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RecycleCustomer, restored.Type)

	require.NoError(t, db.First(&stored, c.ID).Error)
	assert.False(t, stored.IsDeleted)

	var n int64
	db.Model(&models.RecycleBin{}).Count(&n)
	assert.Zero(t, n)
}

func TestRecycleBin_OtherUserCannotTouch(t *testing.T) {
	db := testutil.OpenDB(t)
	c := models.Customer{UID: "u1", Name: "ACME"}
	require.NoError(t, db.Create(&c).Error)

	_, err := MoveToRecycleBin(db, "u2", models.RecycleCustomer, c.ID, c.Name, c)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	entry, err := MoveToRecycleBin(db, "u1", models.RecycleCustomer, c.ID, c.Name, c)
	require.NoError(t, err)
	_, err = RestoreFromRecycleBin(db, "u2", entry.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.ErrorIs(t, PurgeUserEntry(db, "u2", entry.ID), gorm.ErrRecordNotFound)
}

func TestRecycleBin_PurgeStatementRemovesChildren(t *testing.T) {
	db := testutil.OpenDB(t)
	st := models.Statement{
		UID: "u1", StatementNumber: "STM-100000", CustomerID: 1,
		Invoices: []models.StatementInvoice{{InvoiceID: 1, InvoiceNumber: "INV-100000", Total: 10}},
	}
	require.NoError(t, db.Create(&st).Error)

	entry, err := MoveToRecycleBin(db, "u1", models.RecycleStatement, st.ID, st.StatementNumber, st)
	require.NoError(t, err)
	require.NoError(t, PurgeUserEntry(db, "u1", entry.ID))

	var n int64
	db.Model(&models.Statement{}).Count(&n)
	assert.Zero(t, n)
	db.Model(&models.StatementInvoice{}).Count(&n)
	assert.Zero(t, n)
	db.Model(&models.RecycleBin{}).Count(&n)
	assert.Zero(t, n)
}

func TestRecycleBin_EmptyAndRetentionPurge(t *testing.T) {
	db := testutil.OpenDB(t)
	products := []models.Product{{UID: "u1", Name: "A"}, {UID: "u1", Name: "B"}, {UID: "u2", Name: "C"}}
	require.NoError(t, db.Create(&products).Error)
	for _, p := range products {
		_, err := MoveToRecycleBin(db, p.UID, models.RecycleProduct, p.ID, p.Name, p)
		require.NoError(t, err)
	}

	n, err := EmptyRecycleBin(db, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var count int64
	db.Model(&models.Product{}).Count(&count)
	assert.EqualValues(t, 1, count)

	// nothing is old enough yet
	purged, err := PurgeRecycleBinBefore(db, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, purged)

	purged, err = PurgeRecycleBinBefore(db, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, purged)
	db.Model(&models.Product{}).Count(&count)
	assert.Zero(t, count)
}

package csvfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thredvault/backend/internal/store"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := New(t.TempDir(), "")
	require.NoError(t, err)

	records := []store.Record{
		{"Brand": "ESSENTIALS", "Type": "HOODIE", "Color": "1977 D/O", "Size": "M", "Quantity": "3", "WAC_Cost": "22.50", "WAC_Group": "Ess_HoodiePant"},
		{"Brand": "ERIC EMANUEL", "Type": "SHORTS", "Color": "LIGHT BLUE", "Size": "XL", "Quantity": "1", "WAC_Cost": "40.00", "WAC_Group": "Eric_EmanShorts"},
	}
	require.NoError(t, s.Save(ctx, store.Inventory, records))

	loaded, err := s.Load(ctx, store.Inventory)
	require.NoError(t, err)
	assert.Equal(t, records, loaded)
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	s, err := New(t.TempDir(), "")
	require.NoError(t, err)

	loaded, err := s.Load(context.Background(), store.Orders)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestLoadLegacyFiles(t *testing.T) {
	dir := t.TempDir()
	legacySales := "\ufeffID,Date,Brand,Type,Color,Size,Sale_Price,Profit,WAC_Group\n1,01/02/2025,YZY,SLIDES,ONYX,9,90.0,29.0,YZY_Slides\n,,,,,,,,\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sales.csv"), []byte(legacySales), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "financials.csv"), []byte("Cash_On_Hand,250.5\nOutstanding_Payables,0.0\n"), 0o644))

	s, err := New(dir, "")
	require.NoError(t, err)

	sales, err := s.Load(context.Background(), store.Sales)
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, "1", sales[0]["ID"])
	assert.Equal(t, "", sales[0]["Status"])

	fin, err := s.Load(context.Background(), store.Financials)
	require.NoError(t, err)
	assert.Equal(t, []store.Record{
		{"Key": "Cash_On_Hand", "Value": "250.5"},
		{"Key": "Outstanding_Payables", "Value": "0.0"},
	}, fin)
}

func TestFinancialsWrittenHeaderless(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, "")
	require.NoError(t, err)

	require.NoError(t, s.Save(context.Background(), store.Financials, []store.Record{
		{"Key": "Cash_On_Hand", "Value": "10.00"},
		{"Key": "Outstanding_Payables", "Value": "0.00"},
	}))

	raw, err := os.ReadFile(filepath.Join(dir, "financials.csv"))
	require.NoError(t, err)
	assert.Equal(t, "Cash_On_Hand,10.00\nOutstanding_Payables,0.00\n", string(raw))
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, "")
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background(), store.Orders, []store.Record{{"Order_ID": "1"}}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "orders.csv", entries[0].Name())
}

func TestSaveCancelledContextKeepsFile(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, "")
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background(), store.Orders, []store.Record{{"Order_ID": "1"}}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, s.Save(ctx, store.Orders, nil))

	loaded, err := s.Load(context.Background(), store.Orders)
	require.NoError(t, err)
	assert.Len(t, loaded, 1)
}

func TestBackupCopiesExistingCollections(t *testing.T) {
	dir := t.TempDir()
	backups := t.TempDir()
	s, err := New(dir, backups)
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC) }
	require.NoError(t, s.Save(context.Background(), store.Inventory, []store.Record{{"Brand": "YZY"}}))

	target, err := s.Backup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(backups, "backup_20250601_093000"), target)

	_, err = os.Stat(filepath.Join(target, "inventory.csv"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(target, "sales.csv"))
	assert.True(t, os.IsNotExist(err))
}

func TestUnknownCollection(t *testing.T) {
	s, err := New(t.TempDir(), "")
	require.NoError(t, err)
	require.ErrorIs(t, s.Save(context.Background(), "customers", nil), store.ErrUnknownCollection)
}

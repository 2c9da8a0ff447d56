package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"thredvault/backend/internal/store"
)

func TestLoadReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Save(ctx, store.Inventory, []store.Record{{"Brand": "YZY"}}))

	loaded, err := s.Load(ctx, store.Inventory)
	require.NoError(t, err)
	loaded[0]["Brand"] = "MUTATED"

	again, err := s.Load(ctx, store.Inventory)
	require.NoError(t, err)
	assert.Equal(t, "YZY", again[0]["Brand"])
}

func TestUnknownCollection(t *testing.T) {
	_, err := New().Load(context.Background(), "customers")
	require.ErrorIs(t, err, store.ErrUnknownCollection)
}

func TestMissingCollectionLoadsEmpty(t *testing.T) {
	records, err := New().Load(context.Background(), store.Sales)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFailNextSaveKeepsPreviousContents(t *testing.T) {
	ctx := context.Background()
	s := NewSeeded()
	boom := errors.New("disk full")
	s.FailNextSave(store.Inventory, boom)

	err := s.Save(ctx, store.Inventory, nil)
	require.ErrorIs(t, err, boom)

	records, err := s.Load(ctx, store.Inventory)
	require.NoError(t, err)
	assert.Len(t, records, 3)
	assert.Zero(t, s.Saves(store.Inventory))

	require.NoError(t, s.Save(ctx, store.Inventory, nil))
	assert.Equal(t, 1, s.Saves(store.Inventory))
}

func TestUsersHashPasswords(t *testing.T) {
	users, err := NewUsers(Account{Username: " Admin ", Password: "s3cret-pass", Role: "admin"}, Account{Username: "ghost"})
	require.NoError(t, err)

	list, err := users.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "admin", list[0].Username)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(list[0].Password), []byte("s3cret-pass")))

	require.ErrorIs(t, users.UpdateUserPassword(context.Background(), "ghost", "x"), store.ErrNotFound)
}

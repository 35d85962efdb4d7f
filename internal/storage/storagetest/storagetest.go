// Package storagetest builds throwaway SQLite stores for package tests.
package storagetest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"event-invitations/internal/models"
	"event-invitations/internal/storage"
)

// Now is the fixed instant fixtures are created at
var Now = time.Date(2026, 1, 5, 18, 0, 0, 0, time.UTC)

// New opens an empty store in the test's temp dir
func New(t *testing.T) *storage.Storage {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "invitations.db")
	s, err := storage.NewStorage(context.Background(), dsn, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// User inserts a user with the given role
func User(t *testing.T, s *storage.Storage, role models.Role) models.User {
	t.Helper()
	id := uuid.NewString()
	u := models.User{
		ID:           id,
		Name:         "User " + id[:8],
		Phone:        "9725" + id[:8],
		Role:         role,
		PasscodeHash: []byte("unused"),
		CreatedAt:    Now,
	}
	require.NoError(t, s.AddUser(context.Background(), u))
	return u
}

// Event inserts an event in the given status owned by ownerID
func Event(t *testing.T, s *storage.Storage, ownerID string, status models.EventStatus) models.Event {
	t.Helper()
	e := models.Event{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		Title:      "Anat & David",
		Type:       models.EventWedding,
		Location:   "Ness Ziona",
		StartsAt:   Now.Add(72 * time.Hour),
		GuestCount: 3,
		Status:     status,
		CreatedAt:  Now,
	}
	require.NoError(t, s.AddEvent(context.Background(), e))
	return e
}

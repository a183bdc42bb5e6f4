// Package storetest opens throwaway sqlite stores for tests.
package storetest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mcclellann/coopledger/pkg/config"
	"github.com/mcclellann/coopledger/pkg/models"
	"github.com/mcclellann/coopledger/pkg/store"
	"github.com/shopspring/decimal"
)

// New opens a migrated sqlite store in a temp dir that is removed with the test.
func New(t testing.TB) *store.GormStore {
	t.Helper()
	s, err := store.Open(config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// Member creates a user with a device token.
func Member(t testing.TB, s store.Storage, name, phone string) *models.User {
	t.Helper()
	u := &models.User{Name: name, Phone: phone, Role: models.RoleMember, Status: "active", FCMToken: "token-" + phone}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	return u
}

// Membership creates a plan and assigns user to it, backdating the assignment to since.
func Membership(t testing.TB, s store.Storage, user *models.User, fee int64, since time.Time) *models.MembershipUser {
	t.Helper()
	ctx := context.Background()
	m := &models.Membership{Name: "Standard", Amount: decimal.NewFromInt(fee)}
	if err := s.CreateMembership(ctx, m); err != nil {
		t.Fatalf("Failed to create membership: %v", err)
	}
	mu := &models.MembershipUser{MembershipID: m.ID, UserID: user.ID, CreatedAt: since}
	if err := s.CreateMembershipUser(ctx, mu); err != nil {
		t.Fatalf("Failed to assign membership: %v", err)
	}
	mu.Membership = *m
	mu.User = *user
	return mu
}

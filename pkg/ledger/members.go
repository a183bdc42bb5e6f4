package ledger

import (
	"context"

	"github.com/mcclellann/coopledger/pkg/models"
)

func (l *Ledger) CreateUser(ctx context.Context, u *models.User) error {
	if u.Role == "" {
		u.Role = models.RoleMember
	}
	if u.Status == "" {
		u.Status = "active"
	}
	if err := models.Validate(u); err != nil {
		return err
	}
	return l.storage.CreateUser(ctx, u)
}

func (l *Ledger) CreateMembership(ctx context.Context, m *models.Membership) error {
	if err := models.Validate(m); err != nil {
		return err
	}
	return l.storage.CreateMembership(ctx, m)
}

// AssignMembership enrolls a user in a membership plan. Monthly deposits are
// generated from the assignment's creation month.
func (l *Ledger) AssignMembership(ctx context.Context, membershipID, userID uint) (*models.MembershipUser, error) {
	mu := &models.MembershipUser{MembershipID: membershipID, UserID: userID}
	if err := models.Validate(mu); err != nil {
		return nil, err
	}
	if _, err := l.storage.GetMembership(ctx, membershipID); err != nil {
		return nil, err
	}
	if _, err := l.storage.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	if err := l.storage.CreateMembershipUser(ctx, mu); err != nil {
		return nil, err
	}
	return mu, nil
}

func (l *Ledger) Settings(ctx context.Context) (*models.Settings, error) {
	return l.storage.GetSettings(ctx)
}

func (l *Ledger) SaveSettings(ctx context.Context, s *models.Settings) error {
	return l.storage.SaveSettings(ctx, s)
}

package store

import (
	"context"

	"github.com/mcclellann/coopledger/pkg/models"
)

func (s *GormStore) CreateUser(ctx context.Context, u *models.User) error {
	return translate(s.write(ctx).Create(u).Error, "failed to create user")
}

func (s *GormStore) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := s.conn(ctx).First(&u, id).Error; err != nil {
		return nil, translate(err, "failed to get user")
	}
	return &u, nil
}

func (s *GormStore) CreateMembership(ctx context.Context, m *models.Membership) error {
	return translate(s.write(ctx).Create(m).Error, "failed to create membership")
}

func (s *GormStore) GetMembership(ctx context.Context, id uint) (*models.Membership, error) {
	var m models.Membership
	if err := s.conn(ctx).First(&m, id).Error; err != nil {
		return nil, translate(err, "failed to get membership")
	}
	return &m, nil
}

func (s *GormStore) CreateMembershipUser(ctx context.Context, mu *models.MembershipUser) error {
	return translate(s.write(ctx).Create(mu).Error, "failed to assign membership")
}

// ListMembershipUsers returns every assignment with its user and membership loaded.
func (s *GormStore) ListMembershipUsers(ctx context.Context) ([]models.MembershipUser, error) {
	var out []models.MembershipUser
	err := s.conn(ctx).Preload("User").Preload("Membership").Order("id").Find(&out).Error
	return out, translate(err, "failed to list membership users")
}

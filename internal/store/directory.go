package store

import (
	"context"
	"strings"

	"plantops-backend/internal/model"
)

func (s *gormStore) FindUser(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, translate(err, "user "+id)
	}
	return &u, nil
}

// UserIDsByRole returns the ids of users holding any of roles, compared
// case-insensitively.
func (s *gormStore) UserIDsByRole(ctx context.Context, roles ...string) ([]string, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	lowered := make([]string, len(roles))
	for i, r := range roles {
		lowered[i] = strings.ToLower(r)
	}

	var ids []string
	err := s.db.WithContext(ctx).Model(&model.User{}).
		Where("LOWER(role) IN ?", lowered).
		Order("id ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, translate(err, "users by role")
	}
	return ids, nil
}

package memory

import (
	"context"

	"quiz-attempt-service/internal/domain"
)

// StaticUserRepository resolves users from a fixed map (tests/demo mode).
type StaticUserRepository struct {
	users map[string]domain.User
}

func NewStaticUserRepository(users map[string]domain.User) *StaticUserRepository {
	return &StaticUserRepository{users: users}
}

func (r *StaticUserRepository) GetUser(_ context.Context, userID string) (domain.User, error) {
	if user, ok := r.users[userID]; ok {
		return user, nil
	}
	return domain.User{}, domain.ErrUserNotFound
}

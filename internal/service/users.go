package service

import (
	"context"
	"strings"

	"shopdesk/backend/internal/domain"
	"shopdesk/backend/internal/store"
)

func userFromRecord(row store.Record) domain.User {
	return domain.User{
		ID:       store.RecordID(row),
		Username: store.Text(row, "username", "Username"),
		Password: store.Text(row, "password", "Password"),
		Email:    store.Text(row, "email", "Email"),
		Role:     store.TextOr(row, "admin", "role", "Role"),
	}
}

func userRecord(u domain.User) store.Record {
	return store.Record{
		"id":       u.ID,
		"username": u.Username,
		"password": u.Password,
		"email":    u.Email,
		"role":     u.Role,
	}
}

func (s *Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.repo.ReadSheet(ctx, store.SheetUsers)
	if err != nil {
		return nil, err
	}
	users := make([]domain.User, 0, len(rows))
	for _, row := range rows {
		user := userFromRecord(row)
		if user.Username == "" {
			continue
		}
		users = append(users, user)
	}
	return users, nil
}

// FindUserByEmail matches case-insensitively.
func (s *Service) FindUserByEmail(ctx context.Context, email string) (domain.User, error) {
	email = strings.TrimSpace(email)
	users, err := s.ListUsers(ctx)
	if err != nil {
		return domain.User{}, err
	}
	for _, u := range users {
		if email != "" && strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return domain.User{}, notFound("User not found")
}

// UpdateUserPassword stores password as given; callers pass a hash.
func (s *Service) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.TrimSpace(username)
	err := s.repo.Mutate(ctx, store.SheetUsers, func(rows []store.Record) ([]store.Record, error) {
		for i, row := range rows {
			if !strings.EqualFold(store.Text(row, "username", "Username"), username) {
				continue
			}
			user := userFromRecord(row)
			if user.ID < 1 {
				user.ID = i + 1
			}
			user.Password = password
			rows[i] = userRecord(user)
			return rows, nil
		}
		return nil, notFound("User not found")
	})
	if err != nil {
		return err
	}
	entry := s.log.WithField("action", "update password").WithField("entity", "user").WithField("username", username)
	if actor, ok := ActorFromContext(ctx); ok {
		entry = entry.WithField("actor", actor.Username)
	}
	entry.Info("record changed")
	return nil
}

// EnsureDefaultAdmin writes admin as the first user when the sheet holds no
// users. It reports whether a user was created.
func (s *Service) EnsureDefaultAdmin(ctx context.Context, admin domain.User) (bool, error) {
	users, err := s.ListUsers(ctx)
	if err != nil {
		return false, err
	}
	if len(users) > 0 {
		return false, nil
	}

	created := false
	err = s.repo.Mutate(ctx, store.SheetUsers, func(rows []store.Record) ([]store.Record, error) {
		for _, row := range rows {
			if store.Text(row, "username", "Username") != "" {
				return rows, nil
			}
		}
		admin.ID = 1
		if admin.Role == "" {
			admin.Role = "admin"
		}
		created = true
		return []store.Record{userRecord(admin)}, nil
	})
	if err != nil {
		return false, err
	}
	if created {
		s.log.WithField("username", admin.Username).Info("created default admin user")
	}
	return created, nil
}

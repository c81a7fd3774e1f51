package console

import (
	"context"

	"go.uber.org/zap"

	apperrors "github.com/moderniselife/GFM/internal/common/errors"
)

// UserPagination describes a page of users.
type UserPagination struct {
	Page            int  `json:"page"`
	Limit           int  `json:"limit"`
	TotalUsers      int  `json:"totalUsers"`
	TotalPages      int  `json:"totalPages"`
	HasNextPage     bool `json:"hasNextPage"`
	HasPreviousPage bool `json:"hasPreviousPage"`
}

// UserPage is one page of Auth users.
type UserPage struct {
	Users      []User         `json:"users"`
	Pagination UserPagination `json:"pagination"`
}

// ListUsers returns one page of users. dir may point at a project holding the key.
func (s *Service) ListUsers(ctx context.Context, dir, projectID string, page PageRequest) (*UserPage, error) {
	var out *UserPage
	err := s.with(ctx, dir, projectID, func(sess Session) error {
		store, err := sess.Users(ctx)
		if err != nil {
			return err
		}
		users, total, err := store.Page(ctx, page.Offset(), page.Limit)
		if err != nil {
			return err
		}
		if users == nil {
			users = []User{}
		}
		out = &UserPage{
			Users: users,
			Pagination: UserPagination{
				Page:            page.Page,
				Limit:           page.Limit,
				TotalUsers:      total,
				TotalPages:      page.TotalPages(total),
				HasNextPage:     page.HasNext(total),
				HasPreviousPage: page.HasPrevious(),
			},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetUserDisabled enables or disables a user.
func (s *Service) SetUserDisabled(ctx context.Context, dir, projectID, uid string, disabled bool) (*User, error) {
	if uid == "" {
		return nil, apperrors.Precondition("uid is required")
	}
	var user *User
	err := s.with(ctx, dir, projectID, func(sess Session) error {
		store, err := sess.Users(ctx)
		if err != nil {
			return err
		}
		user, err = store.SetDisabled(ctx, uid, disabled)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("auth user updated", zap.String("project_id", projectID), zap.String("uid", uid), zap.Bool("disabled", disabled))
	return user, nil
}

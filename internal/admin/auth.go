package admin

import (
	"context"
	"errors"
	"time"

	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/iterator"

	"github.com/moderniselife/GFM/internal/console"
)

type userStore struct {
	client *auth.Client
}

func msTime(ms int64) *time.Time {
	if ms <= 0 {
		return nil
	}
	t := time.UnixMilli(ms).UTC()
	return &t
}

func toUser(u *auth.UserRecord) console.User {
	out := console.User{
		EmailVerified: u.EmailVerified,
		Disabled:      u.Disabled,
	}
	if u.UserInfo != nil {
		out.UID = u.UID
		out.Email = u.Email
		out.DisplayName = u.DisplayName
	}
	if u.UserMetadata != nil {
		out.CreatedAt = msTime(u.UserMetadata.CreationTimestamp)
		out.LastSignedInAt = msTime(u.UserMetadata.LastLogInTimestamp)
	}
	return out
}

// Page walks the whole user list to count it; Auth exposes no total.
func (s *userStore) Page(ctx context.Context, offset, limit int) ([]console.User, int, error) {
	it := s.client.Users(ctx, "")
	users := make([]console.User, 0, limit)
	total := 0
	for {
		rec, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, 0, translate(err, "Auth users")
		}
		if total >= offset && total < offset+limit {
			users = append(users, toUser(rec.UserRecord))
		}
		total++
	}
	return users, total, nil
}

func (s *userStore) SetDisabled(ctx context.Context, uid string, disabled bool) (*console.User, error) {
	rec, err := s.client.UpdateUser(ctx, uid, (&auth.UserToUpdate{}).Disabled(disabled))
	if err != nil {
		return nil, translate(err, "User "+uid)
	}
	u := toUser(rec)
	return &u, nil
}

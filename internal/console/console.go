// Package console implements the Firestore, Cloud Storage, Auth and Security Rules browsers.
//
// Every request acquires a credential-bound Session for the target project and releases it
// before returning. The SDK-backed implementation lives in internal/admin.
package console

import (
	"context"
	"io"
	"math"
	"strconv"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/moderniselife/GFM/internal/common/errors"
	"github.com/moderniselife/GFM/internal/common/logger"
	"github.com/moderniselife/GFM/internal/project"
)

// Document is a Firestore document rendered as JSON-friendly values.
type Document struct {
	ID   string         `json:"id"`
	Path string         `json:"path"`
	Data map[string]any `json:"data"`
}

// FirestoreStore reads and deletes documents.
type FirestoreStore interface {
	Get(ctx context.Context, path string) (*Document, error)
	List(ctx context.Context, collection string, offset, limit int) ([]Document, error)
	Count(ctx context.Context, collection string) (int, error)
	RootCollections(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, path string) error
}

// Object is a Cloud Storage object.
type Object struct {
	Name        string    `json:"name"`
	Path        string    `json:"path"`
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType"`
	Updated     time.Time `json:"updated"`
}

// ObjectStore manages objects in the project's default bucket.
type ObjectStore interface {
	// List returns the immediate sub-folders and objects under prefix.
	List(ctx context.Context, prefix string) ([]string, []Object, error)
	Upload(ctx context.Context, path, contentType string, r io.Reader) (*Object, error)
	Copy(ctx context.Context, src, dst string) error
	Delete(ctx context.Context, path string) error
	Open(ctx context.Context, path string) (io.ReadCloser, *Object, error)
}

// User is a Firebase Auth user record.
type User struct {
	UID            string     `json:"uid"`
	Email          string     `json:"email"`
	EmailVerified  bool       `json:"emailVerified"`
	DisplayName    string     `json:"displayName"`
	Disabled       bool       `json:"disabled"`
	CreatedAt      *time.Time `json:"createdAt,omitempty"`
	LastSignedInAt *time.Time `json:"lastSignedInAt,omitempty"`
}

// UserStore pages through and updates Auth users.
type UserStore interface {
	// Page returns users [offset, offset+limit) and the total user count.
	Page(ctx context.Context, offset, limit int) ([]User, int, error)
	SetDisabled(ctx context.Context, uid string, disabled bool) (*User, error)
}

// RuleFile is one source file of a ruleset.
type RuleFile struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Ruleset is a released ruleset. Name doubles as the etag.
type Ruleset struct {
	Name  string
	Files []RuleFile
}

// RulesStore reads and publishes Security Rules releases.
type RulesStore interface {
	Current(ctx context.Context, service RulesService) (*Ruleset, error)
	Publish(ctx context.Context, service RulesService, files []RuleFile) (*Ruleset, error)
}

// Session is a credential-bound connection to one project. Close must always be called.
type Session interface {
	Firestore(ctx context.Context) (FirestoreStore, error)
	Objects(ctx context.Context) (ObjectStore, error)
	Users(ctx context.Context) (UserStore, error)
	Rules(ctx context.Context) (RulesStore, error)
	Close() error
}

// Opener acquires sessions. dir is an optional project directory holding service account keys.
type Opener interface {
	Acquire(ctx context.Context, dir, projectID string) (Session, error)
}

// Service exposes the console operations.
type Service struct {
	opener Opener
	logger *logger.Logger
}

// NewService creates a console service.
func NewService(opener Opener, log *logger.Logger) *Service {
	return &Service{
		opener: opener,
		logger: log.WithFields(zap.String("component", "console")),
	}
}

// with runs fn inside a session for projectID and always releases it.
func (s *Service) with(ctx context.Context, dir, projectID string, fn func(Session) error) error {
	if projectID == "" {
		return apperrors.Precondition("projectId is required")
	}
	if err := project.ValidateProjectID(projectID); err != nil {
		return err
	}
	sess, err := s.opener.Acquire(ctx, dir, projectID)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			s.logger.Warn("failed to release admin session", zap.String("project_id", projectID), zap.Error(cerr))
		}
	}()
	return fn(sess)
}

const (
	defaultLimit = 10
	maxLimit     = 500
)

// PageRequest is a 1-based page selection.
type PageRequest struct {
	Page  int
	Limit int
}

// ParsePage reads page and limit query values, falling back to page 1 and defaultLimit.
func ParsePage(page, limit string) PageRequest {
	p, err := strconv.Atoi(page)
	if err != nil || p < 1 {
		p = 1
	}
	l, err := strconv.Atoi(limit)
	if err != nil || l < 1 {
		l = defaultLimit
	}
	if l > maxLimit {
		l = maxLimit
	}
	// (p-1)*l must not overflow.
	p = min(p, math.MaxInt/l)
	return PageRequest{Page: p, Limit: l}
}

// Offset is the index of the first item on the page.
func (p PageRequest) Offset() int { return (p.Page - 1) * p.Limit }

// TotalPages returns ceil(total/limit).
func (p PageRequest) TotalPages(total int) int {
	if total <= 0 {
		return 0
	}
	return (total + p.Limit - 1) / p.Limit
}

// HasNext reports whether a page follows this one.
func (p PageRequest) HasNext(total int) bool { return p.Page < p.TotalPages(total) }

// HasPrevious reports whether a page precedes this one.
func (p PageRequest) HasPrevious() bool { return p.Page > 1 }

func window[T any](items []T, p PageRequest) []T {
	start := p.Offset()
	if start < 0 || start >= len(items) {
		return []T{}
	}
	end := min(start+p.Limit, len(items))
	return items[start:end]
}

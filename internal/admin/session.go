// Package admin opens credential-bound Firebase Admin SDK and Google Cloud API sessions.
//
// A Session is scoped to one request: clients are created lazily on first use and every
// client is released by Close.
package admin

import (
	"context"
	"errors"
	"sync"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/api/analyticsdata/v1beta"
	"google.golang.org/api/firebaserules/v1"
	"google.golang.org/api/option"

	"github.com/moderniselife/GFM/internal/analytics"
	"github.com/moderniselife/GFM/internal/common/config"
	apperrors "github.com/moderniselife/GFM/internal/common/errors"
	"github.com/moderniselife/GFM/internal/common/logger"
	"github.com/moderniselife/GFM/internal/common/tracing"
	"github.com/moderniselife/GFM/internal/console"
)

// CredentialSource returns the service account JSON key for a project.
type CredentialSource interface {
	Lookup(dir, projectID string) ([]byte, error)
}

// Manager opens sessions.
type Manager struct {
	creds  CredentialSource
	cfg    config.AdminConfig
	opts   []option.ClientOption
	logger *logger.Logger
}

// NewManager creates a session manager. opts are appended to every client, after the credentials.
func NewManager(creds CredentialSource, cfg config.AdminConfig, log *logger.Logger, opts ...option.ClientOption) *Manager {
	return &Manager{
		creds:  creds,
		cfg:    cfg,
		opts:   opts,
		logger: log.WithFields(zap.String("component", "admin")),
	}
}

// Session is one project's set of lazily created clients.
type Session struct {
	projectID string
	bucket    string
	opts      []option.ClientOption
	app       *firebase.App
	span      trace.Span
	logger    *logger.Logger

	mu        sync.Mutex
	firestore *firestore.Client
	storage   *storage.Client
	auth      *auth.Client
	rules     *firebaserules.Service
	reports   *analyticsdata.Service
	closed    bool
}

// Acquire opens a session for projectID using the key found for dir or the cache.
func (m *Manager) Acquire(ctx context.Context, dir, projectID string) (*Session, error) {
	key, err := m.creds.Lookup(dir, projectID)
	if err != nil {
		return nil, err
	}
	_, span := tracing.TraceSession(ctx, projectID)

	opts := append([]option.ClientOption{option.WithCredentialsJSON(key)}, m.opts...)
	bucket := m.cfg.BucketFor(projectID)
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID, StorageBucket: bucket}, opts...)
	if err != nil {
		span.End()
		return nil, apperrors.External("Failed to initialise Firebase Admin SDK", err)
	}
	return &Session{
		projectID: projectID,
		bucket:    bucket,
		opts:      opts,
		app:       app,
		span:      span,
		logger:    m.logger.WithFields(zap.String("project_id", projectID)),
	}, nil
}

// With runs fn inside a session and always closes it.
func (m *Manager) With(ctx context.Context, dir, projectID string, fn func(*Session) error) error {
	sess, err := m.Acquire(ctx, dir, projectID)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			m.logger.Warn("failed to close admin session", zap.String("project_id", projectID), zap.Error(cerr))
		}
	}()
	return fn(sess)
}

var errSessionClosed = errors.New("admin session already closed")

func (s *Session) check() error {
	if s.closed {
		return apperrors.Internal("Admin session used after release", errSessionClosed)
	}
	return nil
}

// Firestore returns the project's Firestore store.
func (s *Session) Firestore(ctx context.Context) (console.FirestoreStore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	if s.firestore == nil {
		client, err := s.app.Firestore(ctx)
		if err != nil {
			return nil, translate(err, "Firestore client")
		}
		s.firestore = client
	}
	return &firestoreStore{client: s.firestore}, nil
}

// Objects returns the default bucket's object store.
func (s *Session) Objects(ctx context.Context) (console.ObjectStore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	if s.storage == nil {
		client, err := storage.NewClient(ctx, s.opts...)
		if err != nil {
			return nil, translate(err, "Cloud Storage client")
		}
		s.storage = client
	}
	return &objectStore{bucket: s.storage.Bucket(s.bucket), name: s.bucket}, nil
}

// Users returns the Auth user store.
func (s *Session) Users(ctx context.Context) (console.UserStore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	if s.auth == nil {
		client, err := s.app.Auth(ctx)
		if err != nil {
			return nil, translate(err, "Auth client")
		}
		s.auth = client
	}
	return &userStore{client: s.auth}, nil
}

// Rules returns the Security Rules store.
func (s *Session) Rules(ctx context.Context) (console.RulesStore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	if s.rules == nil {
		svc, err := firebaserules.NewService(ctx, s.opts...)
		if err != nil {
			return nil, translate(err, "Security Rules client")
		}
		s.rules = svc
	}
	return &rulesStore{svc: s.rules, projectID: s.projectID, bucket: s.bucket}, nil
}

// Reports returns a GA4 Data API report runner.
func (s *Session) Reports(ctx context.Context) (analytics.ReportRunner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	if s.reports == nil {
		svc, err := analyticsdata.NewService(ctx, s.opts...)
		if err != nil {
			return nil, translate(err, "Analytics Data client")
		}
		s.reports = svc
	}
	return &reportRunner{svc: s.reports}, nil
}

// Close releases every client the session opened. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if s.firestore != nil {
		errs = append(errs, s.firestore.Close())
	}
	if s.storage != nil {
		errs = append(errs, s.storage.Close())
	}
	// The REST-based services and the auth client hold no connections of their own.
	s.firestore, s.storage, s.auth, s.rules, s.reports = nil, nil, nil, nil, nil
	s.span.End()
	return errors.Join(errs...)
}

// Console adapts the manager to console.Opener.
func (m *Manager) Console() console.Opener { return consoleOpener{m} }

// Analytics adapts the manager to analytics.Opener.
func (m *Manager) Analytics() analytics.Opener { return analyticsOpener{m} }

type consoleOpener struct{ m *Manager }

func (o consoleOpener) Acquire(ctx context.Context, dir, projectID string) (console.Session, error) {
	sess, err := o.m.Acquire(ctx, dir, projectID)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

type analyticsOpener struct{ m *Manager }

func (o analyticsOpener) Acquire(ctx context.Context, dir, projectID string) (analytics.Session, error) {
	sess, err := o.m.Acquire(ctx, dir, projectID)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

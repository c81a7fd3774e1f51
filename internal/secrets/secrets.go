// Package secrets fetches environment files from and stores values in Google Secret Manager.
//
// Calls use Application Default Credentials, set up with "gcloud auth application-default login".
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	apperrors "github.com/moderniselife/GFM/internal/common/errors"
	"github.com/moderniselife/GFM/internal/common/logger"
	"github.com/moderniselife/GFM/internal/project"
)

// Client is the subset of Secret Manager used here.
type Client interface {
	// Access returns the payload of a secret version.
	Access(ctx context.Context, name string) ([]byte, error)
	// CreateSecret creates an automatically replicated secret under projectID.
	CreateSecret(ctx context.Context, projectID, secretID string) error
	// AddVersion adds a version holding value to the secret.
	AddVersion(ctx context.Context, secret string, value []byte) error
	Close() error
}

// Dialer opens a Client.
type Dialer func(ctx context.Context) (Client, error)

// ErrCredentials marks a failure to load Application Default Credentials.
var ErrCredentials = errors.New("credentials unavailable")

// Config holds the Secret Manager deadlines.
type Config struct {
	DefaultDir    string
	AccessTimeout time.Duration
	CreateTimeout time.Duration
}

// Service implements fetch and create.
type Service struct {
	dial   Dialer
	cfg    Config
	logger *logger.Logger
}

// NewService creates the secrets service.
func NewService(dial Dialer, cfg Config, log *logger.Logger) *Service {
	return &Service{
		dial:   dial,
		cfg:    cfg,
		logger: log.WithFields(zap.String("component", "secrets")),
	}
}

// SecretID is the secret holding the env file of environment.
func SecretID(environment string) string { return environment + "-env" }

// VersionName is the resource name of the latest version of environment's secret.
func VersionName(projectID, environment string) string {
	return fmt.Sprintf("projects/%s/secrets/%s/versions/latest", projectID, SecretID(environment))
}

// EnvFileName is the file the environment's secret is written to.
func EnvFileName(environment string) string { return ".env." + environment }

// translate maps Secret Manager failures to application errors.
func translate(err error, secret, projectID string) error {
	if errors.Is(err, ErrCredentials) {
		return apperrors.Precondition("Google Cloud credentials not found. Run: gcloud auth application-default login")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Timeout("Secret Manager request timed out. Check your authentication and try again.", err)
	}
	switch status.Code(err) {
	case codes.NotFound:
		return apperrors.NotFound(fmt.Sprintf(
			"Secret %s does not exist. Create it here: https://console.cloud.google.com/security/secret-manager?project=%s",
			secret, projectID))
	case codes.PermissionDenied:
		return apperrors.External(fmt.Sprintf(
			"Permission denied accessing secret %s. Make sure your account can access Secret Manager in %s and run: gcloud auth application-default login",
			secret, projectID), err)
	case codes.Unauthenticated:
		return apperrors.Precondition("Google Cloud credentials not found. Run: gcloud auth application-default login")
	case codes.DeadlineExceeded:
		return apperrors.Timeout("Secret Manager request timed out. Check your authentication and try again.", err)
	case codes.AlreadyExists:
		return apperrors.Conflict(fmt.Sprintf("Secret %s already exists", secret))
	}
	return apperrors.External("Secret Manager request failed", err)
}

func (s *Service) open(ctx context.Context) (Client, error) {
	client, err := s.dial(ctx)
	if err != nil {
		s.logger.Warn("secret manager client unavailable", zap.Error(err))
		return nil, translate(fmt.Errorf("%w: %v", ErrCredentials, err), "", "")
	}
	return client, nil
}

// FetchRequest writes one environment's secret to <dir>/.env.<environment>.
type FetchRequest struct {
	Dir         string
	Environment string
	ProjectID   string
}

// FetchResult names the written file relative to the project directory.
type FetchResult struct {
	Success  bool   `json:"success"`
	FilePath string `json:"filePath"`
}

// Fetch reads the latest "<environment>-env" secret version and writes it as an env file.
func (s *Service) Fetch(ctx context.Context, req FetchRequest) (*FetchResult, error) {
	if err := project.ValidateProjectID(req.ProjectID); err != nil {
		return nil, err
	}
	if err := project.ValidateSecretKey(req.Environment); err != nil {
		return nil, apperrors.Preconditionf("Invalid environment: %q", req.Environment)
	}
	dir, err := project.ResolveDir(req.Dir, s.cfg.DefaultDir)
	if err != nil {
		return nil, err
	}

	client, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Close() }()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.AccessTimeout)
	defer cancel()
	payload, err := client.Access(ctx, VersionName(req.ProjectID, req.Environment))
	if err != nil {
		return nil, translate(err, SecretID(req.Environment), req.ProjectID)
	}

	name := EnvFileName(req.Environment)
	if err := os.WriteFile(filepath.Join(dir, name), payload, 0o600); err != nil {
		return nil, apperrors.Internal("Failed to write "+name, err)
	}
	s.logger.Info("secret written", zap.String("project_id", req.ProjectID), zap.String("file", name))
	return &FetchResult{Success: true, FilePath: name}, nil
}

// CreateRequest stores Value under SecretKey.
type CreateRequest struct {
	ProjectID string
	SecretKey string
	Value     string
}

// Create creates the secret when missing and adds Value as its newest version.
func (s *Service) Create(ctx context.Context, req CreateRequest) error {
	if err := project.ValidateProjectID(req.ProjectID); err != nil {
		return err
	}
	if err := project.ValidateSecretKey(req.SecretKey); err != nil {
		return err
	}
	if strings.TrimSpace(req.Value) == "" {
		return apperrors.Precondition("secretValue is required")
	}

	client, err := s.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.CreateTimeout)
	defer cancel()

	if err := client.CreateSecret(ctx, req.ProjectID, req.SecretKey); err != nil {
		if status.Code(err) != codes.AlreadyExists {
			return translate(err, req.SecretKey, req.ProjectID)
		}
		s.logger.Debug("secret exists, adding version", zap.String("secret", req.SecretKey))
	}
	secret := fmt.Sprintf("projects/%s/secrets/%s", req.ProjectID, req.SecretKey)
	if err := client.AddVersion(ctx, secret, []byte(req.Value)); err != nil {
		return translate(err, req.SecretKey, req.ProjectID)
	}
	s.logger.Info("secret version added", zap.String("project_id", req.ProjectID), zap.String("secret", req.SecretKey))
	return nil
}

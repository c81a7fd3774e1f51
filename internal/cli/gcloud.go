package cli

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/moderniselife/GFM/internal/common/errors"
	"github.com/moderniselife/GFM/internal/common/logger"
)

// AuthStatus summarises gcloud credentials.
type AuthStatus struct {
	IsAuthenticated bool   `json:"isAuthenticated"`
	Account         string `json:"account,omitempty"`
	IsADCConfigured bool   `json:"isADCConfigured"`
}

type gcloudAccount struct {
	Account string `json:"account"`
	Status  string `json:"status"`
}

// Gcloud drives the gcloud CLI.
type Gcloud struct {
	exec    Executor
	bin     string
	timeout time.Duration
	logger  *logger.Logger
}

// NewGcloud creates a Gcloud wrapper. bin defaults to "gcloud".
func NewGcloud(exec Executor, bin string, timeout time.Duration, log *logger.Logger) *Gcloud {
	if bin == "" {
		bin = "gcloud"
	}
	return &Gcloud{
		exec:    exec,
		bin:     bin,
		timeout: timeout,
		logger:  log.WithFields(zap.String("component", "gcloud-cli")),
	}
}

// AuthStatus reports the active account and whether application default credentials work.
func (g *Gcloud) AuthStatus(ctx context.Context) (*AuthStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	status := &AuthStatus{}
	res, err := g.exec.Run(ctx, "", g.bin, "auth", "list", "--format=json")
	if err != nil {
		if apperrors.IsTimeout(err) {
			return nil, err
		}
		g.logger.Debug("gcloud auth list failed", zap.Error(err))
		return status, nil
	}

	var accounts []gcloudAccount
	if err := json.Unmarshal([]byte(res.Stdout), &accounts); err != nil {
		return nil, apperrors.External("unexpected gcloud auth list output", err)
	}
	for _, a := range accounts {
		if a.Status == "ACTIVE" {
			status.IsAuthenticated = true
			status.Account = a.Account
			break
		}
	}

	if _, err := g.exec.Run(ctx, "", g.bin, "auth", "application-default", "print-access-token"); err == nil {
		status.IsADCConfigured = true
	}
	return status, nil
}

// Login runs "gcloud auth login" and waits for the browser flow.
func (g *Gcloud) Login(ctx context.Context) error {
	_, err := g.exec.Run(ctx, "", g.bin, "auth", "login")
	return err
}

// SetupADC runs "gcloud auth application-default login".
func (g *Gcloud) SetupADC(ctx context.Context) error {
	_, err := g.exec.Run(ctx, "", g.bin, "auth", "application-default", "login")
	return err
}

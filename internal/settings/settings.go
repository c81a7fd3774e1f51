// Package settings persists per-project dashboard settings and service account keys under
// <projectDir>/.gfm and keeps an in-memory cache of credentials by project ID.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	apperrors "github.com/moderniselife/GFM/internal/common/errors"
	"github.com/moderniselife/GFM/internal/common/logger"
	"github.com/moderniselife/GFM/internal/project"
)

const (
	// DirName is the per-project settings directory.
	DirName = ".gfm"
	// FileName is the settings file inside DirName.
	FileName = "settings.json"

	dirPerm  os.FileMode = 0o700
	filePerm os.FileMode = 0o600
)

// ServiceAccount is a stored service account key reference.
type ServiceAccount struct {
	ProjectID   string `json:"projectId"`
	ClientEmail string `json:"clientEmail"`
	Active      bool   `json:"active"`
}

// Settings is the content of .gfm/settings.json.
type Settings struct {
	MeasurementID   string           `json:"measurementId,omitempty"`
	PropertyID      string           `json:"propertyId,omitempty"`
	ServiceAccounts []ServiceAccount `json:"serviceAccounts"`
}

// Active returns the active service account, if any.
func (s *Settings) Active() (ServiceAccount, bool) {
	for _, sa := range s.ServiceAccounts {
		if sa.Active {
			return sa, true
		}
	}
	return ServiceAccount{}, false
}

// setActive marks projectID active and every other record inactive.
func (s *Settings) setActive(projectID string) bool {
	found := false
	for i := range s.ServiceAccounts {
		s.ServiceAccounts[i].Active = s.ServiceAccounts[i].ProjectID == projectID
		found = found || s.ServiceAccounts[i].Active
	}
	return found
}

// normalize keeps at most one active record, the first one.
func (s *Settings) normalize() {
	if s.ServiceAccounts == nil {
		s.ServiceAccounts = []ServiceAccount{}
	}
	seen := false
	for i := range s.ServiceAccounts {
		if s.ServiceAccounts[i].Active {
			if seen {
				s.ServiceAccounts[i].Active = false
			}
			seen = true
		}
	}
}

// serviceAccountKey is the subset of a Google service account JSON key we validate.
type serviceAccountKey struct {
	Type        string `json:"type"`
	ProjectID   string `json:"project_id"`
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
}

// ParseKey validates a service account JSON key.
func ParseKey(data []byte) (*ServiceAccount, error) {
	var key serviceAccountKey
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, apperrors.Precondition("Service account key is not valid JSON")
	}
	if key.Type != "service_account" {
		return nil, apperrors.Precondition("File is not a service account key")
	}
	if key.ClientEmail == "" || key.PrivateKey == "" {
		return nil, apperrors.Precondition("Service account key is missing client_email or private_key")
	}
	if err := project.ValidateProjectID(key.ProjectID); err != nil {
		return nil, err
	}
	return &ServiceAccount{ProjectID: key.ProjectID, ClientEmail: key.ClientEmail}, nil
}

// Store reads and writes project settings. Writes are serialised.
type Store struct {
	mu     sync.Mutex
	cache  *CredentialCache
	logger *logger.Logger
}

// NewStore creates a Store that keeps cache in sync with the key files it writes.
func NewStore(cache *CredentialCache, log *logger.Logger) *Store {
	return &Store{
		cache:  cache,
		logger: log.WithFields(zap.String("component", "settings")),
	}
}

func settingsPath(dir string) string { return filepath.Join(dir, DirName, FileName) }

// KeyPath is where the key for projectID is stored inside dir.
func KeyPath(dir, projectID string) string {
	return filepath.Join(dir, DirName, projectID+".json")
}

// Load returns the settings of dir. A missing file yields empty settings.
func (s *Store) Load(dir string) (*Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(dir)
}

func (s *Store) load(dir string) (*Settings, error) {
	data, err := os.ReadFile(settingsPath(dir))
	if errors.Is(err, os.ErrNotExist) {
		return &Settings{ServiceAccounts: []ServiceAccount{}}, nil
	}
	if err != nil {
		return nil, apperrors.Internal("Failed to read settings", err)
	}
	var st Settings
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, apperrors.Internal("Settings file is corrupt", err)
	}
	st.normalize()
	return &st, nil
}

func (s *Store) save(dir string, st *Settings) error {
	st.normalize()
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return apperrors.Internal("Failed to encode settings", err)
	}
	return writeFile(settingsPath(dir), data)
}

// writeFile atomically replaces path with data, creating the settings directory if needed.
func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return apperrors.Internal("Failed to create settings directory", err)
	}
	if err := os.Chmod(dir, dirPerm); err != nil {
		return apperrors.Internal("Failed to secure settings directory", err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return apperrors.Internal("Failed to write settings", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return apperrors.Internal("Failed to write settings", err)
	}
	if err := tmp.Chmod(filePerm); err != nil {
		_ = tmp.Close()
		return apperrors.Internal("Failed to write settings", err)
	}
	if err := tmp.Close(); err != nil {
		return apperrors.Internal("Failed to write settings", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return apperrors.Internal("Failed to write settings", err)
	}
	return nil
}

// Update replaces the editable fields of dir's settings. Service account records are owned
// by the store and are not taken from the caller.
func (s *Store) Update(dir string, in Settings) (*Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.load(dir)
	if err != nil {
		return nil, err
	}
	st.MeasurementID = strings.TrimSpace(in.MeasurementID)
	st.PropertyID = strings.TrimSpace(in.PropertyID)
	if err := s.save(dir, st); err != nil {
		return nil, err
	}
	return st, nil
}

// AddServiceAccount stores key for its project and makes it the active account.
func (s *Store) AddServiceAccount(dir string, key []byte) (*ServiceAccount, error) {
	sa, err := ParseKey(key)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.load(dir)
	if err != nil {
		return nil, err
	}
	if err := writeFile(KeyPath(dir, sa.ProjectID), key); err != nil {
		return nil, err
	}

	replaced := false
	for i := range st.ServiceAccounts {
		if st.ServiceAccounts[i].ProjectID == sa.ProjectID {
			st.ServiceAccounts[i].ClientEmail = sa.ClientEmail
			replaced = true
		}
	}
	if !replaced {
		st.ServiceAccounts = append(st.ServiceAccounts, *sa)
	}
	st.setActive(sa.ProjectID)
	if err := s.save(dir, st); err != nil {
		return nil, err
	}

	s.cache.Put(sa.ProjectID, key)
	s.logger.Info("service account added", zap.String("project_id", sa.ProjectID), zap.String("client_email", sa.ClientEmail))
	sa.Active = true
	return sa, nil
}

// SetActive activates projectID's account and deactivates all others in the same write.
func (s *Store) SetActive(dir, projectID string) (*Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.load(dir)
	if err != nil {
		return nil, err
	}
	if !st.setActive(projectID) {
		return nil, apperrors.NotFound(fmt.Sprintf("No service account for project %s", projectID))
	}
	if err := s.save(dir, st); err != nil {
		return nil, err
	}
	return st, nil
}

// DeleteServiceAccount removes projectID's record and key file.
func (s *Store) DeleteServiceAccount(dir, projectID string) (*Settings, error) {
	if err := project.ValidateProjectID(projectID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.load(dir)
	if err != nil {
		return nil, err
	}
	kept := st.ServiceAccounts[:0]
	found := false
	for _, sa := range st.ServiceAccounts {
		if sa.ProjectID == projectID {
			found = true
			continue
		}
		kept = append(kept, sa)
	}
	if !found {
		return nil, apperrors.NotFound(fmt.Sprintf("No service account for project %s", projectID))
	}
	st.ServiceAccounts = kept
	if err := s.save(dir, st); err != nil {
		return nil, err
	}
	if err := os.Remove(KeyPath(dir, projectID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("failed to remove service account key", zap.String("project_id", projectID), zap.Error(err))
	}
	s.cache.Delete(projectID)
	return st, nil
}

// Warm loads every stored key of dir into the credential cache and returns how many were loaded.
func (s *Store) Warm(dir string) int {
	st, err := s.Load(dir)
	if err != nil {
		s.logger.Warn("could not load settings for credential warm-up", zap.String("dir", dir), zap.Error(err))
		return 0
	}
	loaded := 0
	for _, sa := range st.ServiceAccounts {
		key, err := os.ReadFile(KeyPath(dir, sa.ProjectID))
		if err != nil {
			s.logger.Warn("service account key missing", zap.String("project_id", sa.ProjectID), zap.Error(err))
			continue
		}
		s.cache.Put(sa.ProjectID, key)
		loaded++
	}
	return loaded
}

package console

import (
	"context"

	"go.uber.org/zap"

	apperrors "github.com/moderniselife/GFM/internal/common/errors"
)

// RulesService identifies which product a ruleset governs.
type RulesService string

const (
	RulesFirestore RulesService = "firestore"
	RulesStorage   RulesService = "storage"
)

// ParseRulesService validates the ?type= value.
func ParseRulesService(s string) (RulesService, error) {
	switch RulesService(s) {
	case RulesFirestore, RulesStorage:
		return RulesService(s), nil
	case "":
		return "", apperrors.Precondition("type is required")
	}
	return "", apperrors.Preconditionf("Invalid rules type: %s", s)
}

// FileName is the conventional source file name for the service's rules.
func (r RulesService) FileName() string {
	if r == RulesStorage {
		return "storage.rules"
	}
	return "firestore.rules"
}

// RulesDocument is the rules payload returned to the UI.
type RulesDocument struct {
	Content []RuleFile `json:"content"`
	ETag    string     `json:"etag"`
}

func rulesDocument(rs *Ruleset) *RulesDocument {
	files := rs.Files
	if files == nil {
		files = []RuleFile{}
	}
	return &RulesDocument{Content: files, ETag: rs.Name}
}

// GetRules returns the released ruleset of service.
func (s *Service) GetRules(ctx context.Context, projectID string, service RulesService) (*RulesDocument, error) {
	var doc *RulesDocument
	err := s.with(ctx, "", projectID, func(sess Session) error {
		store, err := sess.Rules(ctx)
		if err != nil {
			return err
		}
		rs, err := store.Current(ctx, service)
		if err != nil {
			return err
		}
		doc = rulesDocument(rs)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// SetRulesRequest publishes new rules. A non-empty ETag must match the current release.
type SetRulesRequest struct {
	ProjectID string
	Service   RulesService
	Content   string
	ETag      string
}

// SetRules publishes content for the service, failing with CONFLICT when ETag is stale.
func (s *Service) SetRules(ctx context.Context, req SetRulesRequest) (*RulesDocument, error) {
	if req.Content == "" {
		return nil, apperrors.Precondition("content is required")
	}
	var doc *RulesDocument
	err := s.with(ctx, "", req.ProjectID, func(sess Session) error {
		store, err := sess.Rules(ctx)
		if err != nil {
			return err
		}
		if req.ETag != "" {
			current, err := store.Current(ctx, req.Service)
			if err != nil && !apperrors.IsNotFound(err) {
				return err
			}
			if current != nil && current.Name != req.ETag {
				return apperrors.Conflict("Rules were changed since they were loaded; reload and try again")
			}
		}
		rs, err := store.Publish(ctx, req.Service, []RuleFile{{Name: req.Service.FileName(), Content: req.Content}})
		if err != nil {
			return err
		}
		doc = rulesDocument(rs)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("rules published",
		zap.String("project_id", req.ProjectID),
		zap.String("type", string(req.Service)),
		zap.String("ruleset", doc.ETag))
	return doc, nil
}

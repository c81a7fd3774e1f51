package console

import (
	"context"
	"strings"

	"go.uber.org/zap"

	apperrors "github.com/moderniselife/GFM/internal/common/errors"
)

// FirestorePagination describes a collection page.
type FirestorePagination struct {
	Page            int  `json:"page"`
	Limit           int  `json:"limit"`
	TotalDocs       int  `json:"totalDocs"`
	TotalPages      int  `json:"totalPages"`
	HasNextPage     bool `json:"hasNextPage"`
	HasPreviousPage bool `json:"hasPreviousPage"`
}

// FirestoreResult is either a single document or a page of a collection.
type FirestoreResult struct {
	IsDocument bool                 `json:"isDocument"`
	Data       any                  `json:"data"`
	Pagination *FirestorePagination `json:"pagination,omitempty"`
}

// SplitPath trims slashes and splits a Firestore path into segments. Empty segments are rejected.
func SplitPath(path string) ([]string, error) {
	path = strings.Trim(strings.TrimSpace(path), "/")
	if path == "" {
		return nil, nil
	}
	segments := strings.Split(path, "/")
	for _, s := range segments {
		if s == "" {
			return nil, apperrors.Preconditionf("Invalid Firestore path: %s", path)
		}
	}
	return segments, nil
}

// IsDocumentPath reports whether segments address a document (an even, non-zero count).
func IsDocumentPath(segments []string) bool {
	return len(segments) > 0 && len(segments)%2 == 0
}

// GetFirestore returns the document at path, a page of the collection at path, or the root
// collections when path is empty.
func (s *Service) GetFirestore(ctx context.Context, projectID, path string, page PageRequest) (*FirestoreResult, error) {
	segments, err := SplitPath(path)
	if err != nil {
		return nil, err
	}
	clean := strings.Join(segments, "/")

	var result *FirestoreResult
	err = s.with(ctx, "", projectID, func(sess Session) error {
		fs, err := sess.Firestore(ctx)
		if err != nil {
			return err
		}

		switch {
		case len(segments) == 0:
			ids, err := fs.RootCollections(ctx)
			if err != nil {
				return err
			}
			docs := make([]Document, 0, len(ids))
			for _, id := range ids {
				docs = append(docs, Document{ID: id, Path: id, Data: map[string]any{}})
			}
			result = collectionResult(window(docs, page), len(docs), page)

		case IsDocumentPath(segments):
			doc, err := fs.Get(ctx, clean)
			if err != nil {
				return err
			}
			result = &FirestoreResult{IsDocument: true, Data: doc.Data}

		default:
			total, err := fs.Count(ctx, clean)
			if err != nil {
				return err
			}
			docs, err := fs.List(ctx, clean, page.Offset(), page.Limit)
			if err != nil {
				return err
			}
			result = collectionResult(docs, total, page)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func collectionResult(docs []Document, total int, page PageRequest) *FirestoreResult {
	if docs == nil {
		docs = []Document{}
	}
	return &FirestoreResult{
		Data: docs,
		Pagination: &FirestorePagination{
			Page:            page.Page,
			Limit:           page.Limit,
			TotalDocs:       total,
			TotalPages:      page.TotalPages(total),
			HasNextPage:     page.HasNext(total),
			HasPreviousPage: page.HasPrevious(),
		},
	}
}

// DeleteDocument deletes the document at path.
func (s *Service) DeleteDocument(ctx context.Context, projectID, path string) error {
	segments, err := SplitPath(path)
	if err != nil {
		return err
	}
	if !IsDocumentPath(segments) {
		return apperrors.Preconditionf("Path does not address a document: %s", path)
	}
	clean := strings.Join(segments, "/")
	return s.with(ctx, "", projectID, func(sess Session) error {
		fs, err := sess.Firestore(ctx)
		if err != nil {
			return err
		}
		if err := fs.Delete(ctx, clean); err != nil {
			return err
		}
		s.logger.Info("firestore document deleted", zap.String("project_id", projectID), zap.String("path", clean))
		return nil
	})
}

package console

import (
	"context"
	"io"
	"path"
	"strings"

	"go.uber.org/zap"

	apperrors "github.com/moderniselife/GFM/internal/common/errors"
)

// StorageListing is a page of a storage folder.
type StorageListing struct {
	Folders         []string `json:"folders"`
	Files           []Object `json:"files"`
	TotalFiles      int      `json:"totalFiles"`
	TotalPages      int      `json:"totalPages"`
	CurrentPage     int      `json:"currentPage"`
	HasNextPage     bool     `json:"hasNextPage"`
	HasPreviousPage bool     `json:"hasPreviousPage"`
}

// CleanObjectPath normalises an object name. Parent references are rejected.
func CleanObjectPath(p string) (string, error) {
	p = strings.TrimSpace(p)
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", apperrors.Preconditionf("Invalid storage path: %s", p)
		}
	}
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	return p, nil
}

// FolderPrefix turns a folder path into a listing prefix ("" or "dir/").
func FolderPrefix(p string) (string, error) {
	clean, err := CleanObjectPath(p)
	if err != nil || clean == "" {
		return "", err
	}
	return clean + "/", nil
}

func requireObjectPath(p string) (string, error) {
	clean, err := CleanObjectPath(p)
	if err != nil {
		return "", err
	}
	if clean == "" {
		return "", apperrors.Precondition("path is required")
	}
	return clean, nil
}

// ListStorage lists one folder of the default bucket.
func (s *Service) ListStorage(ctx context.Context, projectID, folder string, page PageRequest) (*StorageListing, error) {
	prefix, err := FolderPrefix(folder)
	if err != nil {
		return nil, err
	}
	var listing *StorageListing
	err = s.with(ctx, "", projectID, func(sess Session) error {
		store, err := sess.Objects(ctx)
		if err != nil {
			return err
		}
		folders, objects, err := store.List(ctx, prefix)
		if err != nil {
			return err
		}
		if folders == nil {
			folders = []string{}
		}
		total := len(objects)
		listing = &StorageListing{
			Folders:         folders,
			Files:           window(objects, page),
			TotalFiles:      total,
			TotalPages:      page.TotalPages(total),
			CurrentPage:     page.Page,
			HasNextPage:     page.HasNext(total),
			HasPreviousPage: page.HasPrevious(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return listing, nil
}

// UploadRequest uploads a file into folder.
type UploadRequest struct {
	ProjectID   string
	Folder      string
	FileName    string
	ContentType string
	Body        io.Reader
}

// Upload stores the file at <folder>/<file name>.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*Object, error) {
	name := path.Base(strings.ReplaceAll(req.FileName, "\\", "/"))
	if name == "" || name == "." || name == "/" {
		return nil, apperrors.Precondition("file name is required")
	}
	prefix, err := FolderPrefix(req.Folder)
	if err != nil {
		return nil, err
	}
	target := prefix + name
	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	var obj *Object
	err = s.with(ctx, "", req.ProjectID, func(sess Session) error {
		store, err := sess.Objects(ctx)
		if err != nil {
			return err
		}
		obj, err = store.Upload(ctx, target, contentType, req.Body)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("storage object uploaded", zap.String("project_id", req.ProjectID), zap.String("path", target))
	return obj, nil
}

// MoveRequest copies an object and, unless KeepSource is set, deletes the original.
type MoveRequest struct {
	ProjectID   string
	Source      string
	Destination string
	KeepSource  bool
}

// Move copies Source to Destination and removes Source unless KeepSource.
func (s *Service) Move(ctx context.Context, req MoveRequest) error {
	src, err := requireObjectPath(req.Source)
	if err != nil {
		return err
	}
	dst, err := requireObjectPath(req.Destination)
	if err != nil {
		return err
	}
	if src == dst {
		return apperrors.Precondition("Source and destination are the same")
	}
	return s.with(ctx, "", req.ProjectID, func(sess Session) error {
		store, err := sess.Objects(ctx)
		if err != nil {
			return err
		}
		if err := store.Copy(ctx, src, dst); err != nil {
			return err
		}
		if req.KeepSource {
			return nil
		}
		if err := store.Delete(ctx, src); err != nil {
			return apperrors.Wrap(err, "Copied to "+dst+" but failed to delete "+src)
		}
		return nil
	})
}

// DeleteObject removes one object.
func (s *Service) DeleteObject(ctx context.Context, projectID, objectPath string) error {
	p, err := requireObjectPath(objectPath)
	if err != nil {
		return err
	}
	return s.with(ctx, "", projectID, func(sess Session) error {
		store, err := sess.Objects(ctx)
		if err != nil {
			return err
		}
		return store.Delete(ctx, p)
	})
}

// Download streams the object to w through the supplied start callback, which receives the
// object metadata before any bytes are written.
func (s *Service) Download(ctx context.Context, projectID, objectPath string, w io.Writer, start func(*Object)) error {
	p, err := requireObjectPath(objectPath)
	if err != nil {
		return err
	}
	return s.with(ctx, "", projectID, func(sess Session) error {
		store, err := sess.Objects(ctx)
		if err != nil {
			return err
		}
		rc, obj, err := store.Open(ctx, p)
		if err != nil {
			return err
		}
		defer func() { _ = rc.Close() }()
		start(obj)
		if _, err := io.Copy(w, rc); err != nil {
			s.logger.Warn("download interrupted", zap.String("path", p), zap.Error(err))
		}
		return nil
	})
}

// Package api exposes the project console over HTTP.
package api

// DeleteDocumentRequest is the body of POST /api/firebase/firestore/delete.
type DeleteDocumentRequest struct {
	Path string `json:"path"`
}

// MoveRequest is the body of POST /api/firebase/storage/move.
// The object is moved unless deleteSource is false or keepSource is true.
type MoveRequest struct {
	ProjectID       string `json:"projectId"`
	SourcePath      string `json:"sourcePath"`
	DestinationPath string `json:"destinationPath"`
	DeleteSource    *bool  `json:"deleteSource,omitempty"`
	KeepSource      bool   `json:"keepSource,omitempty"`
}

func (r MoveRequest) keepSource() bool {
	if r.KeepSource {
		return true
	}
	return r.DeleteSource != nil && !*r.DeleteSource
}

// DeleteObjectRequest is the body of POST /api/firebase/storage/delete.
type DeleteObjectRequest struct {
	ProjectID string `json:"projectId"`
	Path      string `json:"path"`
}

// UpdateUserRequest is the body of POST /api/firebase/auth/update-user.
type UpdateUserRequest struct {
	UID      string `json:"uid"`
	Disabled *bool  `json:"disabled"`
}

// SetRulesRequest is the body of POST /api/firebase/rules/set.
type SetRulesRequest struct {
	ProjectID string `json:"projectId"`
	Type      string `json:"type"`
	Content   string `json:"content"`
	ETag      string `json:"etag"`
}

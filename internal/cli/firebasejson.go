package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	apperrors "github.com/moderniselife/GFM/internal/common/errors"
)

// ConfigFile is the Firebase project config file name.
const ConfigFile = "firebase.json"

// DeployCandidate is one selectable deploy target derived from firebase.json.
type DeployCandidate struct {
	Type string `json:"type"`
	Name string `json:"name"`
	Path string `json:"path,omitempty"`
}

// ReadConfig parses <dir>/firebase.json.
func ReadConfig(dir string) (map[string]any, error) {
	data, err := os.ReadFile(filepath.Join(dir, ConfigFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NotFound("firebase.json not found in " + dir)
		}
		return nil, apperrors.Internal("failed to read firebase.json", err)
	}
	var cfg map[string]any
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, apperrors.Precondition("firebase.json is not valid JSON: " + err.Error())
	}
	return cfg, nil
}

// asList normalises a section that may be a single object or an array of objects.
func asList(v any) []map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return []map[string]any{t}
	case []any:
		out := make([]map[string]any, 0, len(t))
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

func str(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// DeployTargets lists deploy candidates in hosting, functions, storage, firestore order.
func DeployTargets(cfg map[string]any) []DeployCandidate {
	out := []DeployCandidate{}
	for i, h := range asList(cfg["hosting"]) {
		out = append(out, DeployCandidate{
			Type: "hosting",
			Name: firstNonEmpty(str(h, "site"), str(h, "target"), fmt.Sprintf("hosting-%d", i)),
			Path: str(h, "public"),
		})
	}
	for i, f := range asList(cfg["functions"]) {
		out = append(out, DeployCandidate{
			Type: "functions",
			Name: firstNonEmpty(str(f, "codebase"), fmt.Sprintf("functions-%d", i)),
			Path: str(f, "source"),
		})
	}
	for i, s := range asList(cfg["storage"]) {
		if rules := str(s, "rules"); rules != "" {
			out = append(out, DeployCandidate{Type: "storage", Name: fmt.Sprintf("storage-rules-%d", i), Path: rules})
		}
	}
	if fs, ok := cfg["firestore"].(map[string]any); ok {
		if rules := str(fs, "rules"); rules != "" {
			out = append(out, DeployCandidate{Type: "firestore", Name: "firestore-rules", Path: rules})
		}
		if indexes := str(fs, "indexes"); indexes != "" {
			out = append(out, DeployCandidate{Type: "firestore", Name: "firestore-indexes", Path: indexes})
		}
	}
	return out
}

package admin

import (
	"context"
	"fmt"

	"google.golang.org/api/firebaserules/v1"

	apperrors "github.com/moderniselife/GFM/internal/common/errors"
	"github.com/moderniselife/GFM/internal/console"
)

type rulesStore struct {
	svc       *firebaserules.Service
	projectID string
	bucket    string
}

// releaseName is the release that binds a ruleset to a product.
func releaseName(projectID, bucket string, service console.RulesService) string {
	if service == console.RulesStorage {
		return fmt.Sprintf("projects/%s/releases/firebase.storage/%s", projectID, bucket)
	}
	return fmt.Sprintf("projects/%s/releases/cloud.firestore", projectID)
}

func (r *rulesStore) Current(ctx context.Context, service console.RulesService) (*console.Ruleset, error) {
	name := releaseName(r.projectID, r.bucket, service)
	release, err := r.svc.Projects.Releases.Get(name).Context(ctx).Do()
	if err != nil {
		return nil, translate(err, "Release "+name)
	}
	rs, err := r.svc.Projects.Rulesets.Get(release.RulesetName).Context(ctx).Do()
	if err != nil {
		return nil, translate(err, "Ruleset "+release.RulesetName)
	}
	return toRuleset(rs), nil
}

func (r *rulesStore) Publish(ctx context.Context, service console.RulesService, files []console.RuleFile) (*console.Ruleset, error) {
	source := &firebaserules.Source{}
	for _, f := range files {
		source.Files = append(source.Files, &firebaserules.File{Name: f.Name, Content: f.Content})
	}
	parent := "projects/" + r.projectID
	created, err := r.svc.Projects.Rulesets.Create(parent, &firebaserules.Ruleset{Source: source}).Context(ctx).Do()
	if err != nil {
		return nil, translate(err, "Ruleset")
	}

	name := releaseName(r.projectID, r.bucket, service)
	release := &firebaserules.Release{Name: name, RulesetName: created.Name}
	_, err = r.svc.Projects.Releases.Patch(name, &firebaserules.UpdateReleaseRequest{Release: release}).Context(ctx).Do()
	if err != nil {
		if !apperrors.IsNotFound(translate(err, "Release")) {
			return nil, translate(err, "Release "+name)
		}
		// First publish for this product.
		if _, err := r.svc.Projects.Releases.Create(parent, release).Context(ctx).Do(); err != nil {
			return nil, translate(err, "Release "+name)
		}
	}
	return toRuleset(created), nil
}

func toRuleset(rs *firebaserules.Ruleset) *console.Ruleset {
	out := &console.Ruleset{Name: rs.Name, Files: []console.RuleFile{}}
	if rs.Source == nil {
		return out
	}
	for _, f := range rs.Source.Files {
		out.Files = append(out.Files, console.RuleFile{Name: f.Name, Content: f.Content})
	}
	return out
}

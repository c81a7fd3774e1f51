package operations

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	apperrors "github.com/moderniselife/GFM/internal/common/errors"
	"github.com/moderniselife/GFM/internal/project"
	"github.com/moderniselife/GFM/internal/runner"
)

// ViteServer is a package that builds or serves with vite.
type ViteServer struct {
	Path    string            `json:"path"`
	Name    string            `json:"name,omitempty"`
	Scripts map[string]string `json:"scripts"`
}

type packageJSON struct {
	Name            string            `json:"name"`
	Scripts         map[string]string `json:"scripts"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

func (p *packageJSON) usesVite() bool {
	if _, ok := p.Dependencies["vite"]; ok {
		return true
	}
	if _, ok := p.DevDependencies["vite"]; ok {
		return true
	}
	for _, cmd := range p.Scripts {
		if strings.Contains(cmd, "vite") {
			return true
		}
	}
	return false
}

func readPackageJSON(dir string) (*packageJSON, error) {
	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return nil, err
	}
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, err
	}
	return &pkg, nil
}

// DiscoverViteServers scans dir and its immediate subdirectories for vite packages.
func DiscoverViteServers(dir string) ([]ViteServer, error) {
	candidates := []string{dir}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, apperrors.Internal("Failed to read project directory", err)
	}
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || name == "node_modules" || strings.HasPrefix(name, ".") {
			continue
		}
		candidates = append(candidates, filepath.Join(dir, name))
	}

	servers := []ViteServer{}
	for _, candidate := range candidates {
		pkg, err := readPackageJSON(candidate)
		if err != nil || !pkg.usesVite() {
			continue
		}
		scripts := pkg.Scripts
		if scripts == nil {
			scripts = map[string]string{}
		}
		servers = append(servers, ViteServer{Path: candidate, Name: pkg.Name, Scripts: scripts})
	}
	return servers, nil
}

// ViteServers resolves dir and lists its vite packages.
func (s *Service) ViteServers(dir string) ([]ViteServer, error) {
	resolved, err := project.ResolveDir(dir, s.cfg.DefaultDir)
	if err != nil {
		return nil, err
	}
	return DiscoverViteServers(resolved)
}

// RunScriptRequest runs one package.json script.
type RunScriptRequest struct {
	ScriptPath string
	ScriptName string
	ClientID   string
}

// RunScript streams "npm run <script>" in the package directory.
func (s *Service) RunScript(ctx context.Context, req RunScriptRequest) (*Ack, error) {
	if err := project.ValidateName("script", req.ScriptName); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.ScriptPath) == "" {
		return nil, apperrors.Precondition("scriptPath is required")
	}
	dir, err := project.ResolveDir(req.ScriptPath, "")
	if err != nil {
		return nil, err
	}
	pkg, err := readPackageJSON(dir)
	if err != nil {
		return nil, apperrors.NotFound("package.json not found in " + dir)
	}
	if _, ok := pkg.Scripts[req.ScriptName]; !ok {
		return nil, apperrors.NotFound(fmt.Sprintf("Script %s not found in package.json", req.ScriptName))
	}
	client, err := s.hub.Resolve(req.ClientID)
	if err != nil {
		return nil, err
	}

	line := commandLine(s.cfg.NpmBin, "run", req.ScriptName)
	s.logger.Info("running script", zap.String("dir", dir), zap.String("script", req.ScriptName))
	s.runner.Launch(client, runner.Job{
		ClientID: req.ClientID,
		Kind:     "script",
		Name:     "Script " + req.ScriptName,
		Dir:      dir,
		Success:  fmt.Sprintf("Script %s finished successfully", req.ScriptName),
		Body: func(ctx context.Context, st *runner.Stream) error {
			st.Info(fmt.Sprintf("Running %s in %s", line, dir))
			if err := s.runner.Exec(ctx, st, runner.Command{Line: line, Dir: dir}); err != nil {
				return exitFailure(fmt.Sprintf("Script %s exited with code", req.ScriptName), err)
			}
			return nil
		},
	})
	return &Ack{Message: fmt.Sprintf("Script %s started", req.ScriptName), Command: line}, nil
}

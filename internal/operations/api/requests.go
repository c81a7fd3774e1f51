// Package api exposes the streamed operations over HTTP.
package api

import "github.com/moderniselife/GFM/internal/operations"

// InstallRequest for POST /api/firebase/install-dependencies
type InstallRequest struct {
	ClientID string `json:"clientId"`
}

// DeployRequest for POST /api/firebase/deploy
type DeployRequest struct {
	ClientID  string              `json:"clientId"`
	ProjectID string              `json:"projectId"`
	Options   map[string]bool     `json:"options"`
	Targets   map[string][]string `json:"targets"`
}

// CancelRequest for POST /api/firebase/deploy/cancel
type CancelRequest struct {
	ClientID string `json:"clientId"`
}

// EmulatorsRequest for POST /api/firebase/emulators
type EmulatorsRequest struct {
	Action    string   `json:"action"`
	Services  []string `json:"services"`
	ProjectID string   `json:"projectId"`
	ClientID  string   `json:"clientId"`
}

// RunScriptRequest for POST /api/scripts/run
type RunScriptRequest struct {
	ScriptPath string `json:"scriptPath"`
	ScriptName string `json:"scriptName"`
	ClientID   string `json:"clientId"`
}

// Response types

// RunningEmulatorsResponse lists the services of every running emulator process.
type RunningEmulatorsResponse struct {
	RunningEmulators []string                     `json:"runningEmulators"`
	Processes        []operations.RunningEmulator `json:"processes"`
}

// ViteServersResponse lists discovered vite packages.
type ViteServersResponse struct {
	Servers []operations.ViteServer `json:"servers"`
}

// Package client provides a transport-agnostic interface for the studio
// backend and an HTTP/JSON implementation that talks to its REST API.
package client

import (
	"context"

	"github.com/alfredjeanlab/flowstudio/internal/model"
)

// StudioClient is the interface the coordinator and CLI commands use to
// reach the studio backend. It is implemented by HTTPClient.
type StudioClient interface {
	// Sessions
	ListSessions(ctx context.Context) ([]string, error)
	CreateSession(ctx context.Context) (string, error)
	GetHistory(ctx context.Context, sessionID string) ([]model.Message, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Workflow
	CompileWorkflow(ctx context.Context, g model.Graph) error
	ExportWorkflow(ctx context.Context, g model.Graph, format string) ([]byte, error)
	GetToolSchemas(ctx context.Context) (model.ToolSchemas, error)

	// Status
	Status(ctx context.Context) (*StatusResponse, error)

	// Lifecycle
	Close() error
}

// ExportRequest is the body of a workflow export call.
type ExportRequest struct {
	Graph  model.Graph `json:"graph"`
	Format string      `json:"format"`
}

// StatusResponse reports backend health and the loaded workflow. Studio
// servers fill WorkflowStatus and RootNode; session servers fill
// WorkflowLoaded.
type StatusResponse struct {
	Status         string `json:"status"`
	WorkflowStatus string `json:"workflow_status,omitempty"`
	RootNode       string `json:"root_node,omitempty"`
	WorkflowLoaded *bool  `json:"workflow_loaded,omitempty"`
}

// Ready reports whether the backend has a workflow to run.
func (s *StatusResponse) Ready() bool {
	if s.WorkflowLoaded != nil {
		return *s.WorkflowLoaded
	}
	return s.WorkflowStatus == "loaded"
}

// DefaultExportFormat is the artifact format requested when none is given.
const DefaultExportFormat = "yaml"

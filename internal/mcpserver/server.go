package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/PAIR-code/deliberate-lab-sub002/internal/app/negotiation"
	"github.com/PAIR-code/deliberate-lab-sub002/internal/stage"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const resourcePrefix = "chipstage://"

type Server struct {
	svc *negotiation.Service

	mcpServer  *server.MCPServer
	httpServer *server.StreamableHTTPServer
}

func New(svc *negotiation.Service) *Server {
	mcpSrv := server.NewMCPServer(
		"chip-negotiation",
		"0.1.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithRecovery(),
		server.WithResourceRecovery(),
	)
	s := &Server{
		svc:        svc,
		mcpServer:  mcpSrv,
		httpServer: server.NewStreamableHTTPServer(mcpSrv, server.WithStateLess(true), server.WithDisableStreaming(true)),
	}
	s.registerStateTools()
	s.registerCommandTools()
	s.registerResources()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.httpServer
}

func (s *Server) registerResources() {
	s.mcpServer.AddResourceTemplate(
		mcp.NewResourceTemplate(
			resourcePrefix+"{experiment_id}/{cohort_id}/{stage_id}/public_state",
			"chip_stage_public_state",
			mcp.WithTemplateDescription("Public chip negotiation state of one cohort stage"),
			mcp.WithTemplateMIMEType("application/json"),
		),
		func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			raw := request.Params.URI
			key, ok := parseResourceURI(raw)
			if !ok {
				return nil, nil
			}
			view, err := s.svc.State(ctx, key, "")
			if err != nil {
				return nil, err
			}
			payload, err := json.Marshal(view)
			if err != nil {
				return nil, err
			}
			return []mcp.ResourceContents{
				mcp.TextResourceContents{
					URI:      raw,
					MIMEType: "application/json",
					Text:     string(payload),
				},
			}, nil
		},
	)
}

func parseResourceURI(raw string) (stage.Key, bool) {
	if !strings.HasPrefix(raw, resourcePrefix) || !strings.HasSuffix(raw, "/public_state") {
		return stage.Key{}, false
	}
	parts := strings.Split(strings.TrimSuffix(strings.TrimPrefix(raw, resourcePrefix), "/public_state"), "/")
	if len(parts) != 3 {
		return stage.Key{}, false
	}
	key := stage.Key{ExperimentID: parts[0], CohortID: parts[1], StageID: parts[2]}
	if key.Validate() != nil {
		return stage.Key{}, false
	}
	return key, true
}

// stageKey reads the three stage coordinates every tool takes.
func stageKey(request mcp.CallToolRequest) (stage.Key, *mcp.CallToolResult) {
	var key stage.Key
	var err error
	if key.ExperimentID, err = request.RequireString("experiment_id"); err != nil {
		return key, toolError("invalid_request", err.Error())
	}
	if key.CohortID, err = request.RequireString("cohort_id"); err != nil {
		return key, toolError("invalid_request", err.Error())
	}
	if key.StageID, err = request.RequireString("stage_id"); err != nil {
		return key, toolError("invalid_request", err.Error())
	}
	if err := key.Validate(); err != nil {
		return key, toolError(negotiation.ErrorKind(err), err.Error())
	}
	return key, nil
}

func stageKeyOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("experiment_id", mcp.Required(), mcp.Description("Experiment id")),
		mcp.WithString("cohort_id", mcp.Required(), mcp.Description("Cohort id")),
		mcp.WithString("stage_id", mcp.Required(), mcp.Description("Chip stage id")),
	}
}

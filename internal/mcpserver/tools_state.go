package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerStateTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("get_chip_state", append(stageKeyOptions(),
			mcp.WithDescription("Current public chip state. With participant_id it also returns your valuations and the offers awaiting your answer."),
			mcp.WithString("participant_id", mcp.Description("Your private participant id")),
		)...),
		s.handleGetState,
	)
	s.mcpServer.AddTool(
		mcp.NewTool("get_chip_transcript", append(stageKeyOptions(),
			mcp.WithDescription("Human-readable negotiation log, written from your point of view when participant_id is set."),
			mcp.WithString("participant_id", mcp.Description("Your private participant id")),
		)...),
		s.handleGetTranscript,
	)
	s.mcpServer.AddTool(
		mcp.NewTool("get_chip_payout", append(stageKeyOptions(),
			mcp.WithDescription("Value of your starting and current inventory under your own valuations."),
			mcp.WithString("participant_id", mcp.Required(), mcp.Description("Your private participant id")),
		)...),
		s.handleGetPayout,
	)
}

func (s *Server) handleGetState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, errRes := stageKey(request)
	if errRes != nil {
		return errRes, nil
	}
	view, err := s.svc.State(ctx, key, request.GetString("participant_id", ""))
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(view), nil
}

func (s *Server) handleGetTranscript(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, errRes := stageKey(request)
	if errRes != nil {
		return errRes, nil
	}
	items, err := s.svc.Transcript(ctx, key, request.GetString("participant_id", ""))
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(map[string]any{"items": items}), nil
}

func (s *Server) handleGetPayout(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, errRes := stageKey(request)
	if errRes != nil {
		return errRes, nil
	}
	participantID, err := request.RequireString("participant_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	payout, err := s.svc.Payout(ctx, key, participantID)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(payout), nil
}

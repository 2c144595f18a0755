package mcpserver

import (
	"context"
	"math"

	"github.com/PAIR-code/deliberate-lab-sub002/internal/app/negotiation"
	"github.com/PAIR-code/deliberate-lab-sub002/internal/chip"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerCommandTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("submit_chip_offer", append(stageKeyOptions(),
			mcp.WithDescription("Offer sell_qty of sell_type chips in exchange for buy_qty of buy_type chips. Only valid on your turn."),
			mcp.WithString("participant_id", mcp.Required(), mcp.Description("Your private participant id")),
			mcp.WithString("request_id", mcp.Required(), mcp.Description("Idempotency key; retries with the same id replay the first result")),
			mcp.WithString("buy_type", mcp.Required(), mcp.Description("Chip id you want to receive")),
			mcp.WithNumber("buy_qty", mcp.Required(), mcp.Description("Quantity to receive")),
			mcp.WithString("sell_type", mcp.Required(), mcp.Description("Chip id you give away")),
			mcp.WithNumber("sell_qty", mcp.Required(), mcp.Description("Quantity to give")),
		)...),
		s.handleSubmitOffer,
	)
	s.mcpServer.AddTool(
		mcp.NewTool("respond_chip_offer", append(stageKeyOptions(),
			mcp.WithDescription("Accept or reject another participant's open offer."),
			mcp.WithString("participant_id", mcp.Required(), mcp.Description("Your private participant id")),
			mcp.WithString("request_id", mcp.Required(), mcp.Description("Idempotency key")),
			mcp.WithNumber("round", mcp.Required(), mcp.Description("Round of the offer")),
			mcp.WithString("sender_id", mcp.Required(), mcp.Description("Public id of the offer sender")),
			mcp.WithBoolean("accept", mcp.Required(), mcp.Description("true to accept, false to reject")),
		)...),
		s.handleRespondOffer,
	)
}

func (s *Server) handleSubmitOffer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, errRes := stageKey(request)
	if errRes != nil {
		return errRes, nil
	}
	in := negotiation.OfferInput{Key: key}
	var err error
	if in.ParticipantID, err = request.RequireString("participant_id"); err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	if in.RequestID, err = request.RequireString("request_id"); err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	buyType, err := request.RequireString("buy_type")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	sellType, err := request.RequireString("sell_type")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	buyQty, errRes := requireQty(request, "buy_qty")
	if errRes != nil {
		return errRes, nil
	}
	sellQty, errRes := requireQty(request, "sell_qty")
	if errRes != nil {
		return errRes, nil
	}
	in.Buy = chip.Inventory{buyType: buyQty}
	in.Sell = chip.Inventory{sellType: sellQty}
	return commandResult(s.svc.SubmitOffer(ctx, in)), nil
}

func (s *Server) handleRespondOffer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, errRes := stageKey(request)
	if errRes != nil {
		return errRes, nil
	}
	in := negotiation.ResponseInput{Key: key}
	var err error
	if in.ParticipantID, err = request.RequireString("participant_id"); err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	if in.RequestID, err = request.RequireString("request_id"); err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	if in.SenderID, err = request.RequireString("sender_id"); err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	round, errRes := requireQty(request, "round")
	if errRes != nil {
		return errRes, nil
	}
	in.Round = int(round)
	if in.Accept, err = request.RequireBool("accept"); err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	return commandResult(s.svc.SubmitResponse(ctx, in)), nil
}

// requireQty reads a JSON number that must be a non-negative integer.
func requireQty(request mcp.CallToolRequest, name string) (int64, *mcp.CallToolResult) {
	v, err := request.RequireFloat(name)
	if err != nil {
		return 0, toolError("invalid_request", err.Error())
	}
	if v < 0 || v != math.Trunc(v) || v > math.MaxInt32 {
		return 0, toolError("invalid_request", name+" must be a non-negative integer")
	}
	return int64(v), nil
}

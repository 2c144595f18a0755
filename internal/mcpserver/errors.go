package mcpserver

import (
	"fmt"

	"github.com/PAIR-code/deliberate-lab-sub002/internal/app/negotiation"

	"github.com/mark3labs/mcp-go/mcp"
)

func toolResult(data any) *mcp.CallToolResult {
	return mcp.NewToolResultStructuredOnly(data)
}

func toolError(code, message string) *mcp.CallToolResult {
	result := mcp.NewToolResultStructured(
		map[string]any{
			"error": map[string]any{
				"code":    code,
				"message": message,
			},
		},
		fmt.Sprintf("%s: %s", code, message),
	)
	result.IsError = true
	return result
}

func mapDomainError(err error) *mcp.CallToolResult {
	if err == nil {
		return toolError("internal_error", "unknown error")
	}
	return toolError(negotiation.ErrorKind(err), err.Error())
}

// commandResult reports a rejected command as a tool error but keeps the
// full result so callers still see version and validation messages.
func commandResult(res *negotiation.CommandResult, err error) *mcp.CallToolResult {
	if err == nil {
		return toolResult(res)
	}
	if res == nil {
		return mapDomainError(err)
	}
	msg := err.Error()
	if len(res.Errors) > 0 {
		msg = res.Errors[0]
	}
	out := mcp.NewToolResultStructured(map[string]any{
		"error":  map[string]any{"code": res.ErrorKind, "message": msg},
		"result": res,
	}, fmt.Sprintf("%s: %s", res.ErrorKind, msg))
	out.IsError = true
	return out
}

package platforms

import (
	"context"
	"strings"
)

// FeishuAdapter posts an interactive card to a Feishu/Lark bot webhook.
type FeishuAdapter struct {
	client *HTTPClient
}

func NewFeishuAdapter(client *HTTPClient) *FeishuAdapter {
	return &FeishuAdapter{client: client}
}

func (a *FeishuAdapter) Name() string { return "feishu" }

// Send signs the request when secret is set. secret is the bare signature
// or "sig:<signature>".
func (a *FeishuAdapter) Send(ctx context.Context, endpoint, secret string, msg Message) error {
	body := msg.Body
	if body == "" {
		body = msg.Text
	}
	elements := []map[string]string{markdown(body)}
	for _, f := range msg.Fields {
		elements = append(elements, markdown("**"+f.Label+"**: "+f.Value))
	}
	if msg.Footer != "" {
		elements = append(elements, map[string]string{"tag": "note", "content": msg.Footer})
	}
	card := map[string]any{
		"header": map[string]any{
			"title":    map[string]string{"tag": "plain_text", "content": msg.Title},
			"template": "blue",
		},
		"elements": elements,
	}

	var headers map[string]string
	if sig := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(secret), "sig:")); sig != "" {
		headers = map[string]string{"X-Lark-Signature": sig}
	}
	return a.client.Post(ctx, endpoint, headers, map[string]any{"msg_type": "interactive", "card": card})
}

func markdown(text string) map[string]string {
	return map[string]string{"tag": "markdown", "text": text}
}

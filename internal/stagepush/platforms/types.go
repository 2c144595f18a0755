package platforms

import "context"

// Field is one labelled value in a notification card.
type Field struct {
	Label string
	Value string
	Short bool
}

// Message is the platform-neutral notification. Text is the one-line plain
// summary; Body may carry markdown.
type Message struct {
	Title     string
	Text      string
	Body      string
	Color     int
	Timestamp string
	Footer    string
	Fields    []Field
}

type Adapter interface {
	Name() string
	Send(ctx context.Context, endpoint, secret string, msg Message) error
}

package gmail

import (
	"fmt"
	"slices"
	"time"
)

// Message is one email as seen by the pipeline.
type Message struct {
	ID       string
	ThreadID string
	From     string
	Subject  string
	Date     time.Time
	// Body is the plain-text body. HTML-only mail is converted to text.
	Body     string
	LabelIDs []string
}

// Unread reports whether the message carries the UNREAD label.
func (m *Message) Unread() bool {
	return slices.Contains(m.LabelIDs, LabelUnread)
}

// Thread is a conversation with its messages in mailbox order.
type Thread struct {
	ID       string
	Messages []*Message
	// LabelIDs is the union of the labels of all messages.
	LabelIDs []string
	// Unfetched lists the messages that could not be fetched or parsed.
	Unfetched []FetchError
	// Err is set when the thread itself could not be fetched.
	Err error
}

// FetchError records a message that could not be fetched or parsed.
type FetchError struct {
	MessageID string
	Err       error
}

func (e FetchError) Error() string {
	return fmt.Sprintf("message %s: %v", e.MessageID, e.Err)
}

func (e FetchError) Unwrap() error {
	return e.Err
}

// HasLabel reports whether any message of the thread carries labelID.
func (t *Thread) HasLabel(labelID string) bool {
	return slices.Contains(t.LabelIDs, labelID)
}

// AddLabel records labelID on the local view of the thread.
func (t *Thread) AddLabel(labelID string) {
	if !t.HasLabel(labelID) {
		t.LabelIDs = append(t.LabelIDs, labelID)
	}
}

// Label is a Gmail label.
type Label struct {
	ID   string
	Name string
}

// LabelUnread is the system label of unread messages.
const LabelUnread = "UNREAD"

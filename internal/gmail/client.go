package gmail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/teemow/dealscout/internal/instrumentation"
	"github.com/teemow/dealscout/internal/logging"
)

const userID = "me"

// Options configure a Client.
type Options struct {
	// Account is the token account the client acts for.
	Account    string
	HTTPClient *http.Client
	Logger     *slog.Logger
	Metrics    *instrumentation.Metrics
	// ClientOptions are passed to the Gmail service, e.g. an endpoint override.
	ClientOptions []option.ClientOption
}

// Client wraps the Gmail Users service
type Client struct {
	svc     *gmail.UsersService
	account string
	logger  *slog.Logger
	metrics *instrumentation.Metrics
}

// NewClient creates a Gmail client using an authenticated HTTP client.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if opts.HTTPClient == nil {
		return nil, errors.New("an authenticated HTTP client is required")
	}

	clientOpts := append([]option.ClientOption{option.WithHTTPClient(opts.HTTPClient)}, opts.ClientOptions...)
	svc, err := gmail.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		svc:     svc.Users,
		account: opts.Account,
		logger:  logging.WithService(logger, instrumentation.ServiceGmail),
		metrics: opts.Metrics,
	}, nil
}

// Account returns the account name this client is associated with
func (c *Client) Account() string {
	return c.account
}

// observe runs one API call inside a span and records its metrics.
func (c *Client) observe(ctx context.Context, operation string, call func(ctx context.Context) error) error {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceGmail, operation,
		instrumentation.NewSpanAttributeBuilder().WithAccount(c.account).Build()...)
	defer span.End()

	start := time.Now()
	err := call(ctx)

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	c.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceGmail, operation, status, time.Since(start))
	return err
}

// ListThreads returns up to max threads matching query, in the order the API
// returns them. Only the first page is read. Only a failed search is an
// error: a thread that cannot be fetched is returned with Err set, and a
// message that cannot be fetched or parsed is listed in Unfetched.
func (c *Client) ListThreads(ctx context.Context, query string, max int) ([]*Thread, error) {
	var res *gmail.ListThreadsResponse
	err := c.observe(ctx, instrumentation.OperationList, func(ctx context.Context) error {
		var err error
		res, err = c.svc.Threads.List(userID).Q(query).MaxResults(int64(max)).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search threads: %w", err)
	}

	threads := make([]*Thread, 0, len(res.Threads))
	for _, t := range res.Threads {
		if len(threads) == max {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		thread, err := c.GetThread(ctx, t.Id)
		if err != nil {
			c.logger.Error("failed to fetch thread, skipping it",
				logging.ThreadID(t.Id),
				logging.Err(err))
			thread = &Thread{ID: t.Id, Err: err}
		}
		threads = append(threads, thread)
	}

	c.logger.Info("threads found",
		slog.Int("count", len(threads)),
		slog.String("query", query))
	c.metrics.RecordThreadsFetched(ctx, len(threads))

	return threads, nil
}

// GetThread retrieves a thread with its messages parsed. Messages that cannot
// be fetched or parsed are logged and listed in Unfetched.
func (c *Client) GetThread(ctx context.Context, threadID string) (*Thread, error) {
	var res *gmail.Thread
	err := c.observe(ctx, instrumentation.OperationGet, func(ctx context.Context) error {
		var err error
		res, err = c.svc.Threads.Get(userID, threadID).Format("minimal").Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get thread %s: %w", threadID, err)
	}

	thread := &Thread{ID: res.Id}
	for _, m := range res.Messages {
		for _, id := range m.LabelIds {
			thread.AddLabel(id)
		}

		msg, err := c.GetMessage(ctx, m.Id)
		if err != nil {
			c.logger.Error("failed to fetch message, skipping it",
				logging.MessageID(m.Id),
				logging.ThreadID(res.Id),
				logging.Err(err))
			thread.Unfetched = append(thread.Unfetched, FetchError{MessageID: m.Id, Err: err})
			continue
		}
		thread.Messages = append(thread.Messages, msg)
	}

	return thread, nil
}

// GetMessage fetches a message in raw form and parses it.
func (c *Client) GetMessage(ctx context.Context, messageID string) (*Message, error) {
	var res *gmail.Message
	err := c.observe(ctx, instrumentation.OperationGet, func(ctx context.Context) error {
		var err error
		res, err = c.svc.Messages.Get(userID, messageID).Format("raw").Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", messageID, err)
	}

	data, err := decodeRaw(res.Raw)
	if err != nil {
		return nil, fmt.Errorf("message %s: %w", messageID, err)
	}

	parsed, err := parseMessage(data, time.UnixMilli(res.InternalDate))
	if err != nil {
		return nil, fmt.Errorf("message %s: %w", messageID, err)
	}

	return &Message{
		ID:       res.Id,
		ThreadID: res.ThreadId,
		From:     parsed.From,
		Subject:  parsed.Subject,
		Date:     parsed.Date,
		Body:     parsed.Body,
		LabelIDs: res.LabelIds,
	}, nil
}

// FindLabel returns the label called name, or nil if there is none.
func (c *Client) FindLabel(ctx context.Context, name string) (*Label, error) {
	var res *gmail.ListLabelsResponse
	err := c.observe(ctx, instrumentation.OperationList, func(ctx context.Context) error {
		var err error
		res, err = c.svc.Labels.List(userID).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list labels: %w", err)
	}

	for _, l := range res.Labels {
		if l.Name == name {
			return &Label{ID: l.Id, Name: l.Name}, nil
		}
	}
	return nil, nil
}

// EnsureLabel returns the label called name, creating it if it does not exist.
func (c *Client) EnsureLabel(ctx context.Context, name string) (*Label, error) {
	label, err := c.FindLabel(ctx, name)
	if err != nil || label != nil {
		return label, err
	}

	var created *gmail.Label
	err = c.observe(ctx, instrumentation.OperationCreate, func(ctx context.Context) error {
		var err error
		created, err = c.svc.Labels.Create(userID, &gmail.Label{
			Name:                  name,
			LabelListVisibility:   "labelShow",
			MessageListVisibility: "show",
		}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create label %q: %w", name, err)
	}

	c.logger.Info("created label", slog.String("label", name))
	return &Label{ID: created.Id, Name: created.Name}, nil
}

// MarkRead removes the UNREAD label from a message.
func (c *Client) MarkRead(ctx context.Context, messageID string) error {
	err := c.observe(ctx, instrumentation.OperationModify, func(ctx context.Context) error {
		_, err := c.svc.Messages.Modify(userID, messageID, &gmail.ModifyMessageRequest{
			RemoveLabelIds: []string{LabelUnread},
		}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to mark message %s read: %w", messageID, err)
	}
	return nil
}

// AddThreadLabel adds labelID to every message of a thread.
func (c *Client) AddThreadLabel(ctx context.Context, threadID, labelID string) error {
	err := c.observe(ctx, instrumentation.OperationModify, func(ctx context.Context) error {
		_, err := c.svc.Threads.Modify(userID, threadID, &gmail.ModifyThreadRequest{
			AddLabelIds: []string{labelID},
		}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to label thread %s: %w", threadID, err)
	}
	return nil
}

package pipeline

import (
	"context"
	"slices"
	"strconv"
	"sync"

	"github.com/teemow/dealscout/internal/enrich"
	"github.com/teemow/dealscout/internal/extract"
	"github.com/teemow/dealscout/internal/gmail"
)

// fakeMailbox keeps threads in memory. ListThreads returns copies so the
// runner's local label updates do not leak into the stored state.
type fakeMailbox struct {
	mu sync.Mutex

	threads []*gmail.Thread
	labels  map[string]string

	// hideProcessed drops threads carrying hideLabel from search results,
	// as a "-label:" query does.
	hideProcessed bool

	listErr     error
	labelErr    error
	markReadErr error
	addLabelErr error

	listCalls    int
	createdLabel []string
	markedRead   []string
	labelled     []string
}

func newFakeMailbox(threads ...*gmail.Thread) *fakeMailbox {
	return &fakeMailbox{threads: threads, labels: map[string]string{}}
}

func (f *fakeMailbox) ListThreads(_ context.Context, _ string, max int) ([]*gmail.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}

	var out []*gmail.Thread
	for _, th := range f.threads {
		if len(out) == max {
			break
		}
		if f.hideProcessed && f.isProcessed(th) {
			continue
		}
		cp := &gmail.Thread{
			ID:        th.ID,
			LabelIDs:  slices.Clone(th.LabelIDs),
			Unfetched: slices.Clone(th.Unfetched),
			Err:       th.Err,
		}
		for _, m := range th.Messages {
			mc := *m
			cp.Messages = append(cp.Messages, &mc)
		}
		out = append(out, cp)
	}
	return out, nil
}

func (f *fakeMailbox) isProcessed(th *gmail.Thread) bool {
	for _, id := range f.labels {
		if th.HasLabel(id) {
			return true
		}
	}
	return false
}

func (f *fakeMailbox) FindLabel(_ context.Context, name string) (*gmail.Label, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.labelErr != nil {
		return nil, f.labelErr
	}
	if id, ok := f.labels[name]; ok {
		return &gmail.Label{ID: id, Name: name}, nil
	}
	return nil, nil
}

func (f *fakeMailbox) EnsureLabel(ctx context.Context, name string) (*gmail.Label, error) {
	label, err := f.FindLabel(ctx, name)
	if err != nil || label != nil {
		return label, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	id := "Label_" + strconv.Itoa(len(f.labels)+1)
	f.labels[name] = id
	f.createdLabel = append(f.createdLabel, name)
	return &gmail.Label{ID: id, Name: name}, nil
}

func (f *fakeMailbox) MarkRead(_ context.Context, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markReadErr != nil {
		return f.markReadErr
	}
	f.markedRead = append(f.markedRead, messageID)
	return nil
}

func (f *fakeMailbox) AddThreadLabel(_ context.Context, threadID, labelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addLabelErr != nil {
		return f.addLabelErr
	}
	f.labelled = append(f.labelled, threadID)
	for _, th := range f.threads {
		if th.ID == threadID {
			th.AddLabel(labelID)
		}
	}
	return nil
}

type extractReply struct {
	res extract.Result
	err error
}

// fakeExtractor answers by body; unknown bodies yield a deal with an address.
type fakeExtractor struct {
	replies map[string]extractReply
	calls   []string
}

func (f *fakeExtractor) Extract(_ context.Context, body string) (extract.Result, error) {
	f.calls = append(f.calls, body)
	if r, ok := f.replies[body]; ok {
		return r.res, r.err
	}
	return extract.Result{
		Kind: extract.KindExtracted,
		Deal: &extract.Deal{PropertyStreetAddress: ptr("123 Main St")},
	}, nil
}

type fakeEnricher struct {
	owner enrich.Owner
	err   error
	calls int
}

func (f *fakeEnricher) Lookup(context.Context, *extract.Deal) (enrich.Owner, error) {
	f.calls++
	return f.owner, f.err
}

type recordingSink struct {
	records []Record
	fail    bool
}

func (s *recordingSink) Log(_ context.Context, rec Record) bool {
	if s.fail {
		return false
	}
	s.records = append(s.records, rec)
	return true
}

// fakeClaimer refuses ids in taken and records releases.
type fakeClaimer struct {
	taken    map[string]bool
	err      error
	claimed  []string
	released []string
}

func (c *fakeClaimer) Claim(_ context.Context, id string) (bool, error) {
	if c.err != nil {
		return false, c.err
	}
	if c.taken[id] {
		return false, nil
	}
	c.claimed = append(c.claimed, id)
	return true, nil
}

func (c *fakeClaimer) Release(_ context.Context, id string) error {
	c.released = append(c.released, id)
	return nil
}

func (c *fakeClaimer) Close() error { return nil }

func message(threadID, id, body string) *gmail.Message {
	return &gmail.Message{
		ID:       id,
		ThreadID: threadID,
		From:     "Wholesale Deals <deals@example.com>",
		Subject:  "Deal " + id,
		Body:     body,
		LabelIDs: []string{gmail.LabelUnread},
	}
}

func thread(id string, msgs ...*gmail.Message) *gmail.Thread {
	return &gmail.Thread{ID: id, Messages: msgs, LabelIDs: []string{gmail.LabelUnread}}
}

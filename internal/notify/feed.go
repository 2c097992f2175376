package notify

import (
	"github.com/crack2116/fleettrack/pkg/model"
	"github.com/crack2116/fleettrack/pkg/storeerr"
)

// Feed is the held notification sequence of one user, newest first.
type Feed struct {
	Items   []*model.Notification
	Unread  int
	Loading bool
	Err     error
}

func newFeed(items []*model.Notification) *Feed {
	f := &Feed{Items: items}

	for _, n := range items {
		if !n.Read {
			f.Unread++
		}
	}

	return f
}

func (f *Feed) Clone() *Feed {
	if f == nil {
		return nil
	}

	c := &Feed{
		Items:   make([]*model.Notification, len(f.Items)),
		Unread:  f.Unread,
		Loading: f.Loading,
		Err:     f.Err,
	}

	for i, n := range f.Items {
		nn := *n
		c.Items[i] = &nn
	}

	return c
}

// BulkResult is the outcome of MarkAllRead.
type BulkResult struct {
	Total   int              `json:"total"`
	Updated int              `json:"updated"`
	Failed  map[string]error `json:"-"`
}

func (b *BulkResult) FailedIDs() []string {
	ids := make([]string, 0, len(b.Failed))
	for id := range b.Failed {
		ids = append(ids, id)
	}

	return ids
}

type FeedDTO struct {
	Items   []*model.Notification `json:"items"`
	Unread  int                   `json:"unread"`
	Loading bool                  `json:"loading"`
	Error   string                `json:"error,omitempty"`
	Code    string                `json:"code,omitempty"`
}

func (f *Feed) ToWeb() *FeedDTO {
	if f == nil {
		return nil
	}

	dto := &FeedDTO{
		Items:   f.Items,
		Unread:  f.Unread,
		Loading: f.Loading,
	}

	if dto.Items == nil {
		dto.Items = []*model.Notification{}
	}

	if f.Err != nil {
		dto.Error = storeerr.Message(f.Err)
		dto.Code = string(storeerr.Classify(f.Err))
	}

	return dto
}

package model

import (
	"fmt"
	"time"

	"github.com/spf13/cast"
)

const NotificationsCollection = "notifications"

type Category string

const (
	CategoryInfo    Category = "info"
	CategorySuccess Category = "success"
	CategoryWarning Category = "warning"
	CategoryError   Category = "error"
)

func ParseCategory(s string) Category {
	switch c := Category(s); c {
	case CategorySuccess, CategoryWarning, CategoryError:
		return c
	default:
		return CategoryInfo
	}
}

type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Category  Category  `json:"category"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
	Link      string    `json:"link,omitempty"`
}

func NotificationFromRecord(id string, fields map[string]any) *Notification {
	n := &Notification{
		ID:       id,
		UserID:   cast.ToString(fields["user_id"]),
		Title:    cast.ToString(fields["title"]),
		Message:  cast.ToString(fields["message"]),
		Category: ParseCategory(cast.ToString(fields["category"])),
		Read:     cast.ToBool(fields["read"]),
		Link:     cast.ToString(fields["link"]),
	}

	switch t := fields["created_at"].(type) {
	case time.Time:
		n.CreatedAt = t
	case nil:
	default:
		if ms, err := cast.ToInt64E(t); err == nil {
			n.CreatedAt = time.UnixMilli(ms)
		}
	}

	return n
}

// Fields returns the document representation. created_at is stored as unix millis.
func (n *Notification) Fields() map[string]any {
	f := map[string]any{
		"user_id":    n.UserID,
		"title":      n.Title,
		"message":    n.Message,
		"category":   string(ParseCategory(string(n.Category))),
		"read":       n.Read,
		"created_at": n.CreatedAt.UnixMilli(),
	}

	if n.Link != "" {
		f["link"] = n.Link
	}

	return f
}

func (n *Notification) String() string {
	if n == nil {
		return "nil"
	}

	return fmt.Sprintf("%s %s [%s] read=%t", n.ID, n.UserID, n.Title, n.Read)
}

// Package events publishes domain events about accounts and tokens.
// Publishing is best-effort: callers log failures and carry on.
package events

import (
	"context"
	"time"
)

type Type string

const (
	UserRegistered Type = "user.registered"
	UserLoggedIn   Type = "user.logged_in"
	TokenRefreshed Type = "token.refreshed"
)

// Event never carries credentials or tokens.
type Event struct {
	Type       Type      `json:"type"`
	UserID     string    `json:"userId"`
	UserName   string    `json:"userName"`
	OccurredAt time.Time `json:"occurredAt"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

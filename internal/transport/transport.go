// Package transport defines the chat-transport port the rest of the
// service depends on. The concrete implementation lives in
// internal/bridge; tests use in-memory fakes.
package transport

import "context"

// InboundMessage is one chat event delivered by the transport.
type InboundMessage struct {
	Phone    string `json:"phone"`    // E.164 digits, no '+'
	Body     string `json:"body"`
	HasMedia bool   `json:"hasMedia"`
	FromSelf bool   `json:"fromSelf"`
	IsGroup  bool   `json:"isGroup"`
	MediaID  string `json:"mediaId,omitempty"`
}

// Media is a fully downloaded attachment.
type Media struct {
	Data     []byte
	Mime     string
	Filename string
}

// Transport is the outbound side of the chat connection.
type Transport interface {
	// ResolveIdentity maps E.164 digits to the transport's internal
	// address, or "" when the number is not on the network.
	ResolveIdentity(ctx context.Context, e164 string) (string, error)
	SendText(ctx context.Context, to, text string) error
	SendMedia(ctx context.Context, to string, media Media, caption string) error
	// DownloadMedia fetches the payload attached to an inbound message.
	DownloadMedia(ctx context.Context, mediaID string) (Media, error)
	// Ready reports whether the chat session is linked and usable.
	Ready() bool
}

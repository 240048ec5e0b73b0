package transport

import (
	"context"
	"time"
)

// Sender is the outbound messaging capability consumed by the scheduler,
// the notification dispatcher and the bulk messenger.
//
// Send delivers text to a single recipient and returns once the underlying
// client has accepted or rejected the message. It must not retry on its
// own; retry policy belongs to the caller.
type Sender interface {
	Send(ctx context.Context, number string, text string) error
}

// Driver is a Sender bound to a concrete chat backend. Start begins
// receiving inbound traffic where the backend supports it (used to feed
// the recent-senders list); outbound-only backends make it a no-op.
type Driver interface {
	Sender
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// InboundHandler observes inbound messages: the sender's number (or chat
// id rendered as a string) and their display name.
type InboundHandler func(number, name string)

// Config selects and configures the chat backend.
//
// Driver values:
//   - "telegram": telebot long-polling client; recipient numbers are chat ids
//   - "gateway":  HTTP POST to a WhatsApp-gateway endpoint
//   - "log":      log-only sink for development
type Config struct {
	Driver   string
	Telegram TelegramConfig
	Gateway  GatewayConfig
}

type TelegramConfig struct {
	Token       string
	PollTimeout time.Duration
}

type GatewayConfig struct {
	URL     string
	Token   string
	Timeout time.Duration
}

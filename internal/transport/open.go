package transport

import (
	"errors"
	"strings"

	logx "salonbot/pkg/logx"
)

// Open initializes the configured chat backend. inbound may be nil when
// nothing cares about incoming traffic.
func Open(cfg Config, log logx.Logger, inbound InboundHandler) (Driver, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "telegram":
		return newTelegram(cfg.Telegram, log, inbound)
	case "gateway":
		return newGateway(cfg.Gateway, log)
	case "", "log":
		return &logDriver{log: log}, nil
	default:
		return nil, errors.New("unknown transport driver: " + driver)
	}
}

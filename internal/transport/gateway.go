package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	logx "salonbot/pkg/logx"
)

// gatewayDriver posts messages to an HTTP WhatsApp-gateway endpoint.
// The gateway owns the session (QR login etc.); this side only sends.
type gatewayDriver struct {
	log   logx.Logger
	url   string
	token string
	http  *http.Client
}

func newGateway(cfg GatewayConfig, log logx.Logger) (Driver, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("gateway url is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &gatewayDriver{
		log:   log,
		url:   cfg.URL,
		token: cfg.Token,
		http:  &http.Client{Timeout: timeout},
	}, nil
}

func (d *gatewayDriver) Start(ctx context.Context) error { return nil }
func (d *gatewayDriver) Stop(ctx context.Context) error  { return nil }

func (d *gatewayDriver) Send(ctx context.Context, number, text string) error {
	body, err := json.Marshal(map[string]string{
		"number":  number,
		"message": text,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if d.token != "" {
		req.Header.Set("Authorization", "Bearer "+d.token)
	}

	resp, err := d.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway send to %s: %w", number, err)
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gateway send to %s: status %d", number, resp.StatusCode)
	}
	return nil
}

// logDriver is an outbound sink for development: every send succeeds and
// lands in the log.
type logDriver struct {
	log logx.Logger
}

func (d *logDriver) Start(ctx context.Context) error { return nil }
func (d *logDriver) Stop(ctx context.Context) error  { return nil }

func (d *logDriver) Send(ctx context.Context, number, text string) error {
	d.log.Info("message (log driver)", logx.String("to", number), logx.String("text", text))
	return nil
}

package transport

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	logx "salonbot/pkg/logx"
)

// telegramDriver delivers messages over Telegram. Recipient "numbers" are
// chat ids rendered as decimal strings: the salon's contacts store whatever
// identifier the active backend understands.
type telegramDriver struct {
	log logx.Logger
	bot *tele.Bot

	runMu   sync.Mutex
	running bool
	stopped chan struct{}
}

func newTelegram(cfg TelegramConfig, log logx.Logger, inbound InboundHandler) (Driver, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}

	d := &telegramDriver{log: log, bot: b}

	// Inbound traffic only feeds the recent-senders list; the bot has no
	// command surface.
	b.Handle(tele.OnText, func(c tele.Context) error {
		m := c.Message()
		if m == nil || m.Sender == nil || inbound == nil {
			return nil
		}
		name := strings.TrimSpace(m.Sender.FirstName + " " + m.Sender.LastName)
		if name == "" {
			name = m.Sender.Username
		}
		inbound(strconv.FormatInt(m.Chat.ID, 10), name)
		return nil
	})

	return d, nil
}

func (d *telegramDriver) Start(ctx context.Context) error {
	d.runMu.Lock()
	if d.running {
		d.runMu.Unlock()
		return nil
	}
	d.running = true
	d.stopped = make(chan struct{})
	stopped := d.stopped
	d.runMu.Unlock()

	go func() {
		defer close(stopped)
		d.bot.Start() // blocks until bot.Stop()
	}()
	go func() {
		<-ctx.Done()
		_ = d.Stop(context.Background())
	}()

	d.log.Info("telegram transport started")
	return nil
}

func (d *telegramDriver) Stop(ctx context.Context) error {
	d.runMu.Lock()
	if !d.running {
		d.runMu.Unlock()
		return nil
	}
	d.running = false
	stopped := d.stopped
	d.runMu.Unlock()

	d.bot.Stop()
	select {
	case <-stopped:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (d *telegramDriver) Send(ctx context.Context, number, text string) error {
	id, err := strconv.ParseInt(strings.TrimSpace(number), 10, 64)
	if err != nil {
		return fmt.Errorf("telegram recipient %q is not a chat id: %w", number, err)
	}

	// telebot's API calls are not context-aware; bound them ourselves so a
	// shutdown never hangs on a slow round trip.
	done := make(chan error, 1)
	go func() {
		_, err := d.bot.Send(&tele.Chat{ID: id}, text)
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("telegram send to %s: %w", number, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package broadcast

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	logx "salonbot/pkg/logx"
)

type countingSender struct {
	mu      sync.Mutex
	sent    map[string]int
	failFor map[string]bool
}

func (c *countingSender) Send(ctx context.Context, number, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sent == nil {
		c.sent = map[string]int{}
	}
	c.sent[number]++
	if c.failFor[number] {
		return errors.New("unreachable")
	}
	return nil
}

func TestParseNumbers(t *testing.T) {
	t.Parallel()
	csvData := strings.Join([]string{
		"+393331234567,Ada",
		"00invalid",
		"  3487654321 ",
		"+393331234567", // duplicate
		"",
		"12345", // too short
	}, "\n")

	got, err := ParseNumbers(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("ParseNumbers: %v", err)
	}
	want := []string{"+393331234567", "3487654321"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestValidNumber(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want bool
	}{
		{"+393331234567", true},
		{"3331234567", true},
		{"0123456789", false}, // leading zero
		{"12345", false},      // too short
		{"+1234567890123456", false}, // too long
		{"abc", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidNumber(tt.in); got != tt.want {
			t.Fatalf("ValidNumber(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestEnqueueAndProgress(t *testing.T) {
	t.Parallel()
	sender := &countingSender{failFor: map[string]bool{"2222222222": true}}
	svc := New(Config{Workers: 1, RatePerSec: 1000, RetryMax: 1}, sender, nil, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	id, err := svc.Enqueue("campaign", []string{"1111111111", "2222222222", "3333333333"}, "hello")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	var st JobStatus
	for time.Now().Before(deadline) {
		st, _ = svc.Status(id)
		if st.Finished {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !st.Finished {
		t.Fatalf("job did not finish: %+v", st)
	}
	if st.Total != 3 || st.Done != 3 || st.Failed != 1 {
		t.Fatalf("status = %+v, want total 3 done 3 failed 1", st)
	}

	// The failing number was retried once, the others were not.
	sender.mu.Lock()
	defer sender.mu.Unlock()
	if sender.sent["2222222222"] != 2 {
		t.Fatalf("failing number tried %d times, want 2", sender.sent["2222222222"])
	}
	if sender.sent["1111111111"] != 1 || sender.sent["3333333333"] != 1 {
		t.Fatalf("unexpected retries: %v", sender.sent)
	}
}

func TestEnqueueValidation(t *testing.T) {
	t.Parallel()
	svc := New(Config{}, &countingSender{}, nil, logx.Nop())
	if _, err := svc.Enqueue("x", nil, "text"); err == nil {
		t.Fatal("expected error for empty number list")
	}
	if _, err := svc.Enqueue("x", []string{"1234567890"}, ""); err == nil {
		t.Fatal("expected error for empty text")
	}
}

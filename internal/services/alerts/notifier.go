package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// Notifier delivers one rendered message to the outside world. Delivery is
// fire-and-forget: the caller logs failures and never retries or surfaces
// them to the triggering pipeline.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// TelegramNotifier posts messages to a Telegram chat through the Bot API.
// Calls go through a circuit breaker so an unreachable endpoint stops
// burning sockets while alerts keep flowing.
type TelegramNotifier struct {
	url     string
	chatID  string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewTelegramNotifier(token, chatID string, timeout time.Duration) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &TelegramNotifier{
		url:    fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", token),
		chatID: chatID,
		client: &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "telegram",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 3
			},
		}),
	}
}

func (n *TelegramNotifier) Notify(ctx context.Context, text string) error {
	payload, _ := json.Marshal(map[string]string{"chat_id": n.chatID, "text": text})
	_, err := n.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := n.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("telegram status %d", resp.StatusCode)
		}
		return nil, nil
	})
	return err
}

// LogNotifier is the degraded notifier when no Telegram credentials are
// configured: messages land in the service log.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, text string) error {
	log.Printf("notify: %s", text)
	return nil
}

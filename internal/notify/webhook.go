// Package notify POSTs per-message metadata to an external webhook.
// Best effort: failures are logged and never surface to the dialog.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/soporte-digital/whatsapp-bot/internal/phone"
)

// Sink is implemented by Client; the engine depends on it so tests can
// capture notifications.
type Sink interface {
	NotifyAsync(originPhone, destPhone, message string)
}

type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient returns a webhook client. Empty url makes every call a no-op.
func NewClient(url string) *Client {
	return &Client{
		url: url,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Payload carries only metadata, never attachment bytes. Phone numbers
// are reduced to their last 10 digits (national format).
type Payload struct {
	NumeroOrigen  string `json:"Numero_origen"`
	NumeroDestino string `json:"Numero_destino"`
	Mensaje       string `json:"Mensaje"`
}

// Notify POSTs one notification and returns only for the caller's logs.
func (c *Client) Notify(ctx context.Context, originPhone, destPhone, message string) {
	if c.url == "" {
		return
	}
	body, err := json.Marshal(Payload{
		NumeroOrigen:  phone.Last10(originPhone),
		NumeroDestino: phone.Last10(destPhone),
		Mensaje:       message,
	})
	if err != nil {
		log.Printf("notify: marshal: %v", err)
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		log.Printf("notify: new request: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("notify: request: %v", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Printf("notify: status %d", resp.StatusCode)
	}
}

// NotifyAsync fires Notify in its own goroutine with a 10s bound, so the
// user-visible reply is never blocked on the webhook.
func (c *Client) NotifyAsync(originPhone, destPhone, message string) {
	if c.url == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		c.Notify(ctx, originPhone, destPhone, message)
	}()
}

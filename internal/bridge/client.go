// Package bridge connects to the WhatsApp bridge over WebSocket. The
// bridge owns the actual WhatsApp session (QR bootstrap, media store);
// this client receives inbound message events and exposes the outbound
// transport.Transport surface as id-correlated request/response frames.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/soporte-digital/whatsapp-bot/internal/transport"
)

// Frame is the wire envelope in both directions.
type Frame struct {
	Type    string          `json:"type"` // "event" | "request" | "response"
	ID      int64           `json:"id,omitempty"`
	Event   string          `json:"event,omitempty"`
	Method  string          `json:"method,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

const callTimeout = 30 * time.Second

type Client struct {
	url   string
	token string

	// onMessage receives every inbound chat event; onReady fires once
	// per (re)connect with the linked session's own phone number.
	onMessage func(transport.InboundMessage)
	onReady   func(selfPhone string)

	writeMu sync.Mutex
	connMu  sync.Mutex
	conn    *websocket.Conn

	pendingMu sync.Mutex
	pending   map[int64]chan Frame
	seq       atomic.Int64

	// inboxMu guards inbox; a phone's presence in the map means a drain
	// worker is alive for it.
	inboxMu sync.Mutex
	inbox   map[string][]transport.InboundMessage

	ready atomic.Bool

	reconnectWait time.Duration
}

func NewClient(url, token string, onMessage func(transport.InboundMessage), onReady func(string)) *Client {
	return &Client{
		url:           url,
		token:         token,
		onMessage:     onMessage,
		onReady:       onReady,
		pending:       make(map[int64]chan Frame),
		inbox:         make(map[string][]transport.InboundMessage),
		reconnectWait: 5 * time.Second,
	}
}

// Ready reports whether the bridge has announced a linked session.
func (c *Client) Ready() bool { return c.ready.Load() }

// Run dials the bridge and processes frames until ctx is cancelled,
// reconnecting with a flat backoff on any connection loss.
func (c *Client) Run(ctx context.Context) {
	for {
		if err := c.runOnce(ctx); err != nil && ctx.Err() == nil {
			log.Printf("bridge: connection lost: %v", err)
		}
		c.ready.Store(false)
		c.failPending(errors.New("bridge disconnected"))
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.reconnectWait):
		}
	}
}

func (c *Client) runOnce(ctx context.Context) error {
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, header)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}
	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	defer conn.Close()
	log.Printf("bridge: connected to %s", c.url)

	// The watcher must not outlive this connection, or a flapping
	// bridge accumulates one goroutine per reconnect.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			return err
		}
		switch f.Type {
		case "event":
			c.handleEvent(f)
		case "response":
			c.handleResponse(f)
		}
	}
}

func (c *Client) handleEvent(f Frame) {
	switch f.Event {
	case "ready":
		var p struct {
			SelfPhone string `json:"selfPhone"`
		}
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			log.Printf("bridge: ready payload: %v", err)
			return
		}
		c.ready.Store(true)
		log.Printf("bridge: session ready, self=%s", p.SelfPhone)
		if c.onReady != nil {
			c.onReady(p.SelfPhone)
		}
	case "message":
		var msg transport.InboundMessage
		if err := json.Unmarshal(f.Payload, &msg); err != nil {
			log.Printf("bridge: message payload: %v", err)
			return
		}
		c.enqueue(msg)
	case "disconnected":
		c.ready.Store(false)
	}
}

// enqueue appends the message to its phone's FIFO inbox and starts a
// drain worker when the phone has none. One worker per phone keeps
// same-phone frames in arrival order; distinct phones fan out.
func (c *Client) enqueue(msg transport.InboundMessage) {
	c.inboxMu.Lock()
	defer c.inboxMu.Unlock()
	queue, active := c.inbox[msg.Phone]
	c.inbox[msg.Phone] = append(queue, msg)
	if !active {
		go c.drain(msg.Phone)
	}
}

func (c *Client) drain(phone string) {
	for {
		c.inboxMu.Lock()
		queue := c.inbox[phone]
		if len(queue) == 0 {
			delete(c.inbox, phone)
			c.inboxMu.Unlock()
			return
		}
		msg := queue[0]
		c.inbox[phone] = queue[1:]
		c.inboxMu.Unlock()
		c.onMessage(msg)
	}
}

func (c *Client) handleResponse(f Frame) {
	c.pendingMu.Lock()
	ch, ok := c.pending[f.ID]
	if ok {
		delete(c.pending, f.ID)
	}
	c.pendingMu.Unlock()
	if ok {
		ch <- f
	}
}

func (c *Client) failPending(err error) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for id, ch := range c.pending {
		ch <- Frame{Type: "response", ID: id, Error: err.Error()}
		delete(c.pending, id)
	}
}

// call sends one request frame and waits for its response.
func (c *Client) call(ctx context.Context, method string, payload interface{}, out interface{}) error {
	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn == nil {
		return errors.New("bridge: not connected")
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("bridge: marshal %s: %w", method, err)
	}
	id := c.seq.Add(1)
	ch := make(chan Frame, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()

	c.writeMu.Lock()
	err = conn.WriteJSON(Frame{Type: "request", ID: id, Method: method, Payload: raw})
	c.writeMu.Unlock()
	if err != nil {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return fmt.Errorf("bridge: write %s: %w", method, err)
	}

	timer := time.NewTimer(callTimeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("bridge: %s: timeout", method)
	case resp := <-ch:
		if resp.Error != "" {
			return fmt.Errorf("bridge: %s: %s", method, resp.Error)
		}
		if out != nil && len(resp.Payload) > 0 {
			if err := json.Unmarshal(resp.Payload, out); err != nil {
				return fmt.Errorf("bridge: decode %s response: %w", method, err)
			}
		}
		return nil
	}
}

// ResolveIdentity maps E.164 digits to the bridge's chat address, or ""
// when the number is not on WhatsApp.
func (c *Client) ResolveIdentity(ctx context.Context, e164 string) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	err := c.call(ctx, "resolveNumber", map[string]string{"number": e164}, &resp)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c *Client) SendText(ctx context.Context, to, text string) error {
	return c.call(ctx, "sendText", map[string]string{"to": to, "text": text}, nil)
}

func (c *Client) SendMedia(ctx context.Context, to string, media transport.Media, caption string) error {
	payload := map[string]interface{}{
		"to":       to,
		"caption":  caption,
		"data":     media.Data, // base64 on the wire
		"mime":     media.Mime,
		"filename": media.Filename,
	}
	return c.call(ctx, "sendMedia", payload, nil)
}

func (c *Client) DownloadMedia(ctx context.Context, mediaID string) (transport.Media, error) {
	var resp struct {
		Data     []byte `json:"data"`
		Mime     string `json:"mime"`
		Filename string `json:"filename"`
	}
	if err := c.call(ctx, "downloadMedia", map[string]string{"mediaId": mediaID}, &resp); err != nil {
		return transport.Media{}, err
	}
	return transport.Media{Data: resp.Data, Mime: resp.Mime, Filename: resp.Filename}, nil
}

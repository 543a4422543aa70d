// Package osticket submits tickets to an osTicket HTTP endpoint and
// tolerates the variance of its response shapes.
package osticket

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Creator is implemented by Client; the intake pipeline depends on it so
// tests can substitute a fake.
type Creator interface {
	Create(ctx context.Context, req CreateRequest) (*CreateResult, error)
}

// Attachment is one file to attach to the ticket.
type Attachment struct {
	Data     []byte
	Mime     string
	Filename string
}

// CreateRequest carries everything osTicket needs for one ticket.
type CreateRequest struct {
	Name        string
	Email       string
	Phone       string
	Message     string
	TopicID     int
	Attachments []Attachment
}

// CreateResult reports the upstream outcome. TicketID is "" when the
// response carried no recognizable identifier.
type CreateResult struct {
	HTTPStatus int
	TicketID   string
	RawBody    string
}

type Client struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

// NewClient returns a client for the tickets.json endpoint. No request
// timeout is set on purpose: osTicket can be slow under load and the
// caller retries only on explicit user action.
func NewClient(url, apiKey string) *Client {
	return &Client{
		url:        url,
		apiKey:     apiKey,
		httpClient: &http.Client{},
	}
}

type createPayload struct {
	Name        string              `json:"name"`
	Email       string              `json:"email"`
	Subject     string              `json:"subject"`
	Message     string              `json:"message"`
	TopicID     int                 `json:"topicId,omitempty"`
	IP          string              `json:"ip"`
	Attachments []map[string]string `json:"attachments,omitempty"`
}

// Create POSTs the ticket. A non-2xx status is returned as an error
// carrying the raw body; a 200/201 never fails, even when the body is
// malformed or not JSON at all.
func (c *Client) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	payload := createPayload{
		Name:    req.Name,
		Email:   req.Email,
		Subject: fmt.Sprintf("Soporte WhatsApp - %s", req.Phone),
		Message: fmt.Sprintf("📱 WhatsApp: %s\n\n%s", req.Phone, req.Message),
		TopicID: req.TopicID,
		IP:      "127.0.0.1",
	}
	for _, a := range req.Attachments {
		payload.Attachments = append(payload.Attachments, map[string]string{
			a.Filename: encodeAttachment(a),
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("osticket: marshal: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("osticket: new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("osticket: request: %w", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		log.Printf("osticket: status %d body=%q", resp.StatusCode, truncate(string(raw), 200))
		return nil, fmt.Errorf("osticket: respondió %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	return &CreateResult{
		HTTPStatus: resp.StatusCode,
		TicketID:   ExtractTicketID(raw),
		RawBody:    string(raw),
	}, nil
}

// encodeAttachment produces osTicket's data-URI form. Any data-URI
// prefix already present in the byte stream is stripped first so the
// payload is never double-wrapped. A generic declared mime is replaced
// by one inferred from the filename extension.
func encodeAttachment(a Attachment) string {
	data := a.Data
	if i := bytes.Index(data, []byte(";base64,")); i >= 0 && bytes.HasPrefix(data, []byte("data:")) {
		if decoded, err := base64.StdEncoding.DecodeString(string(data[i+len(";base64,"):])); err == nil {
			data = decoded
		}
	}
	mimeType := a.Mime
	if mimeType == "" || mimeType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(filepath.Ext(a.Filename)); byExt != "" {
			mimeType = byExt
		} else {
			mimeType = "application/octet-stream"
		}
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

var ticketNumberPattern = regexp.MustCompile(`\b\d{5,}\b`)

// ExtractTicketID pulls a ticket identifier out of whichever response
// shape osTicket produced: structured JSON fields first (number may be
// a string or a number, nested under "ticket" or top-level), then a
// best-effort numeric scan of the raw text.
func ExtractTicketID(raw []byte) string {
	var parsed map[string]interface{}
	if err := json.Unmarshal(raw, &parsed); err == nil {
		if nested, ok := parsed["ticket"].(map[string]interface{}); ok {
			if id := scalarID(nested["number"]); id != "" {
				return id
			}
		}
		for _, key := range []string{"number", "ticket_number", "id"} {
			if id := scalarID(parsed[key]); id != "" {
				return id
			}
		}
	}
	// Plain-text bodies often carry just the number.
	return ticketNumberPattern.FindString(string(raw))
}

func scalarID(v interface{}) string {
	switch n := v.(type) {
	case string:
		return strings.TrimSpace(n)
	case float64:
		return strconv.FormatInt(int64(n), 10)
	default:
		return ""
	}
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n]) + "…"
	}
	return s
}

// Package dispatch sends outbound text and media to raw phone numbers,
// taking care of normalization, identity resolution and attachment
// loading.
package dispatch

import (
	"context"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/soporte-digital/whatsapp-bot/internal/errs"
	"github.com/soporte-digital/whatsapp-bot/internal/phone"
	"github.com/soporte-digital/whatsapp-bot/internal/transport"
)

// Options selects an optional attachment for a send. At most one of
// AttachmentPath / AttachmentURL is used; Caption falls back to the
// message text.
type Options struct {
	AttachmentPath string
	AttachmentURL  string
	Caption        string
}

// Result reports the outcome of one send.
type Result struct {
	OK              bool
	Reason          string // one of the errs.Reason* codes when !OK
	ResolvedAddress string
}

type Dispatcher struct {
	transport      transport.Transport
	defaultCountry string
	httpClient     *http.Client
}

func New(t transport.Transport, defaultCountry string) *Dispatcher {
	return &Dispatcher{
		transport:      t,
		defaultCountry: defaultCountry,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Send normalizes rawNumber, resolves it on the transport and delivers
// text or media. It never returns an error for expected failure modes;
// those come back as a Result with a reason code.
func (d *Dispatcher) Send(ctx context.Context, rawNumber, text string, opts Options) Result {
	e164 := phone.Normalize(rawNumber, d.defaultCountry)
	if e164 == "" {
		log.Printf("dispatch: %s | raw=%q", errs.ReasonInvalidNumber, rawNumber)
		return Result{Reason: errs.ReasonInvalidNumber}
	}

	log.Printf("dispatch: envio | numeroE164=%s | mensaje=%q", e164, preview(text, 200))

	to, err := d.transport.ResolveIdentity(ctx, e164)
	if err != nil || to == "" {
		log.Printf("dispatch: %s | e164=%s", errs.ReasonNotOnWhatsApp, e164)
		return Result{Reason: errs.ReasonNotOnWhatsApp}
	}

	if opts.AttachmentPath == "" && opts.AttachmentURL == "" {
		if err := d.transport.SendText(ctx, to, text); err != nil {
			log.Printf("dispatch: %s: %v", errs.ReasonSendError, err)
			return Result{Reason: errs.ReasonSendError}
		}
		log.Printf("dispatch: enviado | to=%s", to)
		return Result{OK: true, ResolvedAddress: to}
	}

	caption := opts.Caption
	if caption == "" {
		caption = text
	}

	var media transport.Media
	switch {
	case opts.AttachmentPath != "":
		if _, err := os.Stat(opts.AttachmentPath); err != nil {
			log.Printf("dispatch: %s | %s", errs.ReasonLocalFileMissing, opts.AttachmentPath)
			return Result{Reason: errs.ReasonLocalFileMissing}
		}
		log.Printf("dispatch: media | local=%q | caption=%q", opts.AttachmentPath, preview(caption, 120))
		media, err = loadLocal(opts.AttachmentPath)
	default:
		log.Printf("dispatch: media | url=%q | caption=%q", opts.AttachmentURL, preview(caption, 120))
		media, err = d.fetchRemote(ctx, opts.AttachmentURL)
	}
	if err != nil {
		log.Printf("dispatch: %s: %v", errs.ReasonSendError, err)
		return Result{Reason: errs.ReasonSendError}
	}

	if err := d.transport.SendMedia(ctx, to, media, caption); err != nil {
		log.Printf("dispatch: %s: %v", errs.ReasonSendError, err)
		return Result{Reason: errs.ReasonSendError}
	}
	log.Printf("dispatch: enviado | to=%s", to)
	return Result{OK: true, ResolvedAddress: to}
}

func loadLocal(path string) (transport.Media, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return transport.Media{}, fmt.Errorf("read %s: %w", path, err)
	}
	return transport.Media{
		Data:     data,
		Mime:     mimeByName(path),
		Filename: filepath.Base(path),
	}, nil
}

func (d *Dispatcher) fetchRemote(ctx context.Context, url string) (transport.Media, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return transport.Media{}, fmt.Errorf("new request: %w", err)
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return transport.Media{}, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return transport.Media{}, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return transport.Media{}, fmt.Errorf("read body: %w", err)
	}
	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = mimeByName(url)
	}
	return transport.Media{
		Data:     data,
		Mime:     mimeType,
		Filename: filepath.Base(req.URL.Path),
	}, nil
}

func mimeByName(name string) string {
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}

// preview collapses whitespace and truncates so full payloads never hit
// the logs.
func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n]) + "…"
	}
	return s
}

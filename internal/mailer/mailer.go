// Package mailer delivers notification e-mails through an external relay.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
)

// ErrRateLimited means the send window is exhausted; the message is dropped.
var ErrRateLimited = errors.New("limite de envios de e-mail atingido")

// Message is one outbound notification.
type Message struct {
	De      string `json:"de"`
	Para    string `json:"para"`
	Assunto string `json:"assunto"`
	Corpo   string `json:"corpo"`
}

// Mailer posts messages to the relay endpoint, retrying transient failures.
// Sends beyond the fixed window cap are dropped, not queued.
type Mailer struct {
	Endpoint   string
	Remetente  string
	Tentativas int
	// Janela and LimitePorJanela bound the outbound send rate. Zero values
	// disable the limit.
	Janela          time.Duration
	LimitePorJanela int
	HTTPClient      *http.Client
	Log             zerolog.Logger
	Now             func() time.Time

	mu          sync.Mutex
	windowStart time.Time
	windowSent  int
}

func New(endpoint, remetente string, tentativas int, log zerolog.Logger) *Mailer {
	return &Mailer{
		Endpoint:   endpoint,
		Remetente:  remetente,
		Tentativas: tentativas,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Log:        log,
		Now:        time.Now,
	}
}

// allow consumes one slot of the current send window.
func (m *Mailer) allow() bool {
	if m.LimitePorJanela <= 0 || m.Janela <= 0 {
		return true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	nowFn := m.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	now := nowFn()
	if now.Sub(m.windowStart) >= m.Janela {
		m.windowStart = now
		m.windowSent = 0
	}
	if m.windowSent >= m.LimitePorJanela {
		return false
	}
	m.windowSent++
	return true
}

// Enabled reports whether a relay endpoint is configured. Without one the
// mailer silently drops messages.
func (m *Mailer) Enabled() bool {
	return m != nil && m.Endpoint != ""
}

// Send delivers one message. 5xx and transport failures are retried; 4xx
// means the relay rejected the message and retrying cannot help.
func (m *Mailer) Send(ctx context.Context, para, assunto, corpo string) error {
	if !m.Enabled() {
		return nil
	}
	if !m.allow() {
		m.Log.Warn().Str("para", para).Msg("mailer: janela de envio esgotada, mensagem descartada")
		return ErrRateLimited
	}
	msg := Message{De: m.Remetente, Para: para, Assunto: assunto, Corpo: corpo}
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.Endpoint, bytes.NewReader(body))
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := m.HTTPClient.Do(req)
		if err != nil {
			return struct{}{}, err
		}
		resp.Body.Close()
		switch {
		case resp.StatusCode < 300:
			return struct{}{}, nil
		case resp.StatusCode >= 500:
			return struct{}{}, fmt.Errorf("relay status %d", resp.StatusCode)
		default:
			return struct{}{}, backoff.Permanent(fmt.Errorf("relay rejected message: status %d", resp.StatusCode))
		}
	}, backoff.WithMaxTries(uint(m.Tentativas)))
	if err != nil {
		m.Log.Error().Str("para", para).Err(err).Msg("mailer: entrega falhou")
		return err
	}
	m.Log.Debug().Str("para", para).Str("assunto", assunto).Msg("mailer: mensagem entregue")
	return nil
}

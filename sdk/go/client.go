// Package ouvidoriasdk is a minimal HTTP client for the ouvidoria API.
package ouvidoriasdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/domain"
)

// ErrNetwork marks failures reaching the portal, as opposed to the portal
// rejecting a request. Callers use it to decide whether to park the
// submission in the offline queue.
var ErrNetwork = errors.New("portal inacessível")

// Client talks to one ouvidoria instance.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// APIError wraps non-2xx responses, carrying the server's error envelope.
type APIError struct {
	StatusCode int
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
}

// Online probes the health endpoint. Any 2xx means reachable.
func (c *Client) Online(ctx context.Context) bool {
	return c.do(ctx, http.MethodGet, "v0/health", nil, nil) == nil
}

// EnviarManifestacao submits a new manifestation and returns it with the
// assigned protocol and tracking password.
func (c *Client) EnviarManifestacao(ctx context.Context, dados domain.ManifestacaoDados) (domain.Manifestacao, error) {
	var resp domain.Manifestacao
	err := c.do(ctx, http.MethodPost, "v0/manifestacoes", dados, &resp)
	return resp, err
}

// ConsultarTimeline fetches the status timeline for a protocol, gated by
// the tracking password handed out at submission time.
func (c *Client) ConsultarTimeline(ctx context.Context, protocolo, senha string) (domain.Timeline, error) {
	var resp domain.Timeline
	endpoint := fmt.Sprintf("v0/manifestacoes/%s/timeline?senha=%s",
		url.PathEscape(protocolo), url.QueryEscape(senha))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// ListOrgaos returns the responsible bodies manifestations can be routed to.
func (c *Client) ListOrgaos(ctx context.Context) ([]domain.Orgao, error) {
	var resp struct {
		Items []domain.Orgao `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, "v0/orgaos", nil, &resp)
	return resp.Items, err
}

// EnviarAnexo uploads a binary for a manifestation. The channel payload of
// audio, image and video submissions goes through here as well.
func (c *Client) EnviarAnexo(ctx context.Context, manifestacaoID, nome, tipoMIME string, blob []byte) (domain.Anexo, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("arquivo", nome)
	if err != nil {
		return domain.Anexo{}, err
	}
	if _, err := part.Write(blob); err != nil {
		return domain.Anexo{}, err
	}
	if err := w.WriteField("tipo_mime", tipoMIME); err != nil {
		return domain.Anexo{}, err
	}
	if err := w.Close(); err != nil {
		return domain.Anexo{}, err
	}

	endpoint := fmt.Sprintf("v0/manifestacoes/%s/anexos", url.PathEscape(manifestacaoID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base()+"/"+endpoint, &buf)
	if err != nil {
		return domain.Anexo{}, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	var resp domain.Anexo
	err = c.send(req, &resp)
	return resp, err
}

// SetStatus moves a manifestation to a new status. Requires an admin token.
func (c *Client) SetStatus(ctx context.Context, protocolo, status, observacao string) (domain.Manifestacao, error) {
	body := map[string]any{"status": status}
	if observacao != "" {
		body["observacao"] = observacao
	}
	var resp domain.Manifestacao
	endpoint := fmt.Sprintf("v0/manifestacoes/%s/status", url.PathEscape(protocolo))
	err := c.do(ctx, http.MethodPut, endpoint, body, &resp)
	return resp, err
}

// AddResposta attaches an official answer. Requires an admin token.
func (c *Client) AddResposta(ctx context.Context, protocolo, texto string) (domain.Resposta, error) {
	body := map[string]any{"texto": texto}
	var resp domain.Resposta
	endpoint := fmt.Sprintf("v0/manifestacoes/%s/respostas", url.PathEscape(protocolo))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base()+"/"+strings.TrimLeft(endpoint, "/"), &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		b, _ := io.ReadAll(resp.Body)
		var envelope struct {
			Error APIError `json:"error"`
		}
		if json.Unmarshal(b, &envelope) == nil && envelope.Error.Message != "" {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
			apiErr.Details = envelope.Error.Details
		} else {
			apiErr.Message = strings.TrimSpace(string(b))
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}

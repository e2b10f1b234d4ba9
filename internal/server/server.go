// Package server exposes the ouvidoria HTTP API: a public surface for
// citizens to submit and track manifestations, and a JWT-guarded surface
// for operators to work them.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/domain"
	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/engine"
	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/mailer"
	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/protocol"
	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
	Mailer   *mailer.Mailer
	// AnexoDir is where uploaded binaries land on disk.
	AnexoDir string
	// EnviosPorMinuto caps submissions per client IP. Zero disables it.
	EnviosPorMinuto int
	Logger          zerolog.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"senha_invalida"`
	Message string         `json:"message" example:"senha de acompanhamento inválida"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the ouvidoria API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(cfg.Auth))
	if cfg.EnviosPorMinuto > 0 {
		limiter := httprate.LimitByIP(cfg.EnviosPorMinuto, time.Minute)
		submitPath := basePath + "/manifestacoes"
		router.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method == http.MethodPost && r.URL.Path == submitPath {
					limiter(next).ServeHTTP(w, r)
					return
				}
				next.ServeHTTP(w, r)
			})
		})
	}

	title := "Ouvidoria API"
	if pc := cfg.Engine.Config; pc != nil && pc.Portal.Nome != "" {
		title = pc.Portal.Nome
		if pc.Portal.Sigla != "" {
			title += " (" + pc.Portal.Sigla + ")"
		}
	}
	hcfg := huma.DefaultConfig(title, "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerManifestacoes(group, cfg)
	registerOrgaos(group, cfg.Engine)
	registerEventos(group, cfg.Engine)
	registerAnexoUpload(router, basePath, cfg)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// handleError maps engine sentinels onto the error envelope.
func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", "protocolo não encontrado", nil)
	case errors.Is(err, engine.ErrSenhaInvalida):
		return newAPIError(http.StatusForbidden, "senha_invalida", err.Error(), nil)
	case errors.Is(err, engine.ErrTransicaoInvalida):
		return newAPIError(http.StatusConflict, "transicao_invalida", err.Error(), nil)
	case errors.Is(err, engine.ErrCanalInvalido),
		errors.Is(err, engine.ErrCategoriaInvalida),
		errors.Is(err, engine.ErrConteudoObrigatorio),
		errors.Is(err, engine.ErrConteudoInvalido),
		errors.Is(err, engine.ErrAssuntoObrigatorio),
		errors.Is(err, engine.ErrOrgaoObrigatorio):
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error",
			map[string]any{"error": err.Error()})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusTooManyRequests:
		return "rate_limited"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerManifestacoes(api huma.API, cfg Config) {
	e := cfg.Engine

	huma.Register(api, huma.Operation{
		OperationID:   "create-manifestacao",
		Method:        http.MethodPost,
		Path:          "/manifestacoes",
		Summary:       "Registrar manifestação",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateManifestacaoRequest `json:"body"`
	}) (*struct {
		Body domain.Manifestacao `json:"body"`
	}, error) {
		in := engine.ManifestacaoInput{
			Canal:      input.Body.Canal,
			Conteudo:   input.Body.Conteudo,
			Categorias: input.Body.Categorias,
			Assunto:    input.Body.Assunto,
			OrgaoID:    input.Body.OrgaoID,
			Anonima:    input.Body.Anonima,
			Sigilosa:   input.Body.Sigilosa,
		}
		if !input.Body.Anonima {
			in.Nome = stringOrEmpty(input.Body.Nome)
			in.Email = stringOrEmpty(input.Body.Email)
		}
		in.Local = stringOrEmpty(input.Body.Local)
		in.DataFato = stringOrEmpty(input.Body.DataFato)
		in.Envolvidos = stringOrEmpty(input.Body.Envolvidos)
		in.Testemunhas = stringOrEmpty(input.Body.Testemunhas)

		m, err := e.CreateManifestacao(ctx, in)
		if err != nil {
			return nil, handleError(err)
		}
		notifyProtocolo(cfg, m)
		return &struct {
			Body domain.Manifestacao `json:"body"`
		}{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "consultar-timeline",
		Method:      http.MethodGet,
		Path:        "/manifestacoes/{protocolo}/timeline",
		Summary:     "Acompanhar manifestação",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Protocolo string `path:"protocolo"`
		Senha     string `query:"senha"`
	}) (*struct {
		Body domain.Timeline `json:"body"`
	}, error) {
		if !protocol.ValidProtocolo(input.Protocolo) {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "protocolo em formato inválido", nil)
		}
		t, err := e.ConsultarTimeline(ctx, input.Protocolo, input.Senha)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Timeline `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-manifestacoes",
		Method:      http.MethodGet,
		Path:        "/manifestacoes",
		Summary:     "Listar manifestações (ouvidor)",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Status  string `query:"status"`
		Canal   string `query:"canal"`
		OrgaoID string `query:"orgao_id"`
		Limit   int    `query:"limit"`
		Cursor  string `query:"cursor"`
	}) (*struct {
		Body ManifestacaoList `json:"body"`
	}, error) {
		if _, authErr := requireOuvidor(ctx); authErr != nil {
			return nil, authErr
		}
		limit := input.Limit
		if limit <= 0 || limit > 200 {
			limit = 50
		}
		cursorCriadaEm, cursorID := splitCursor(input.Cursor)
		items, err := e.Repo.ListManifestacoes(ctx, repo.ManifestacaoFilters{
			Status:  input.Status,
			Canal:   input.Canal,
			OrgaoID: input.OrgaoID,
		}, limit, cursorCriadaEm, cursorID)
		if err != nil {
			return nil, handleError(err)
		}
		out := ManifestacaoList{Items: publicViews(items)}
		if len(items) == limit {
			last := items[len(items)-1]
			out.NextCursor = last.CriadaEm + "|" + last.ID
		}
		return &struct {
			Body ManifestacaoList `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-manifestacao",
		Method:      http.MethodGet,
		Path:        "/manifestacoes/{protocolo}",
		Summary:     "Detalhar manifestação (ouvidor)",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		Protocolo string `path:"protocolo"`
	}) (*struct {
		Body ManifestacaoDetail `json:"body"`
	}, error) {
		if _, authErr := requireOuvidor(ctx); authErr != nil {
			return nil, authErr
		}
		m, err := e.Repo.GetManifestacaoByProtocolo(ctx, input.Protocolo)
		if err != nil {
			return nil, handleError(err)
		}
		anexos, err := e.Repo.ListAnexos(ctx, m.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ManifestacaoDetail `json:"body"`
		}{Body: ManifestacaoDetail{Manifestacao: publicView(m), Anexos: anexos}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "estatisticas",
		Method:      http.MethodGet,
		Path:        "/estatisticas",
		Summary:     "Resumo por status (ouvidor)",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body Estatisticas `json:"body"`
	}, error) {
		if _, authErr := requireOuvidor(ctx); authErr != nil {
			return nil, authErr
		}
		counts, err := e.Repo.CountManifestacoesByStatus(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		total := 0
		for _, n := range counts {
			total += n
		}
		return &struct {
			Body Estatisticas `json:"body"`
		}{Body: Estatisticas{PorStatus: counts, Total: total}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-status",
		Method:      http.MethodPut,
		Path:        "/manifestacoes/{protocolo}/status",
		Summary:     "Mudar status (ouvidor)",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		Protocolo string           `path:"protocolo"`
		Body      SetStatusRequest `json:"body"`
	}) (*struct {
		Body domain.Manifestacao `json:"body"`
	}, error) {
		p, authErr := requireOuvidor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := e.SetStatus(ctx, input.Protocolo, input.Body.Status, input.Body.Observacao, p.AtorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Manifestacao `json:"body"`
		}{Body: publicView(m)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-resposta",
		Method:        http.MethodPost,
		Path:          "/manifestacoes/{protocolo}/respostas",
		Summary:       "Registrar resposta (ouvidor)",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		Protocolo string             `path:"protocolo"`
		Body      AddRespostaRequest `json:"body"`
	}) (*struct {
		Body domain.Resposta `json:"body"`
	}, error) {
		p, authErr := requireOuvidor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if strings.TrimSpace(input.Body.Texto) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "texto é obrigatório", nil)
		}
		resp, err := e.AddResposta(ctx, input.Protocolo, input.Body.Texto, p.AtorID)
		if err != nil {
			return nil, handleError(err)
		}
		notifyResposta(ctx, cfg, input.Protocolo)
		return &struct {
			Body domain.Resposta `json:"body"`
		}{Body: resp}, nil
	})
}

func registerOrgaos(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-orgaos",
		Method:      http.MethodGet,
		Path:        "/orgaos",
		Summary:     "Listar órgãos",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body OrgaoList `json:"body"`
	}, error) {
		items, err := e.Repo.ListOrgaos(ctx, true)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body OrgaoList `json:"body"`
		}{Body: OrgaoList{Items: items}}, nil
	})
}

func registerEventos(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-eventos",
		Method:      http.MethodGet,
		Path:        "/eventos",
		Summary:     "Eventos recentes (ouvidor)",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Limit          int    `query:"limit"`
		Tipo           string `query:"tipo"`
		ManifestacaoID string `query:"manifestacao_id"`
	}) (*struct {
		Body EventoList `json:"body"`
	}, error) {
		if _, authErr := requireOuvidor(ctx); authErr != nil {
			return nil, authErr
		}
		limit := input.Limit
		if limit <= 0 || limit > 500 {
			limit = 100
		}
		items, err := e.Repo.LatestEventos(ctx, limit, input.Tipo, input.ManifestacaoID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body EventoList `json:"body"`
		}{Body: EventoList{Items: items}}, nil
	})
}

// registerAnexoUpload handles multipart uploads outside huma so the binary
// never passes through JSON. The wildcard name must match the huma routes on
// the same segment; both the manifestation id and the protocol are accepted.
func registerAnexoUpload(r chi.Router, basePath string, cfg Config) {
	maxBytes := cfg.Engine.Config.Canais.Video.TamanhoMaxBytes
	r.Post(basePath+"/manifestacoes/{protocolo}/anexos", func(w http.ResponseWriter, req *http.Request) {
		req.Body = http.MaxBytesReader(w, req.Body, maxBytes+1<<20)
		if err := req.ParseMultipartForm(8 << 20); err != nil {
			respondStatusError(w, newAPIError(http.StatusBadRequest, "bad_request", "multipart inválido", nil))
			return
		}
		file, header, err := req.FormFile("arquivo")
		if err != nil {
			respondStatusError(w, newAPIError(http.StatusBadRequest, "bad_request", "campo arquivo é obrigatório", nil))
			return
		}
		defer file.Close()

		dir := cfg.AnexoDir
		if dir == "" {
			dir = os.TempDir()
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			respondStatusError(w, handleError(err))
			return
		}
		fileID := uuid.NewString()
		dest := filepath.Join(dir, fileID)
		out, err := os.Create(dest)
		if err != nil {
			respondStatusError(w, handleError(err))
			return
		}
		size, err := io.Copy(out, file)
		out.Close()
		if err != nil {
			os.Remove(dest)
			respondStatusError(w, handleError(err))
			return
		}

		a := domain.Anexo{
			Nome:     header.Filename,
			TipoMIME: req.FormValue("tipo_mime"),
			Tamanho:  size,
			URL:      fmt.Sprintf("%s/anexos/%s", basePath, fileID),
		}
		if a.TipoMIME == "" {
			a.TipoMIME = header.Header.Get("Content-Type")
		}
		ref := chi.URLParam(req, "protocolo")
		if protocol.ValidProtocolo(ref) {
			m, err := cfg.Engine.Repo.GetManifestacaoByProtocolo(req.Context(), ref)
			if err != nil {
				os.Remove(dest)
				respondStatusError(w, handleError(err))
				return
			}
			ref = m.ID
		}
		saved, err := cfg.Engine.AddAnexo(req.Context(), ref, a)
		if err != nil {
			os.Remove(dest)
			respondStatusError(w, handleError(err))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		writeJSON(w, saved, cfg.Logger)
	})
}

func notifyProtocolo(cfg Config, m domain.Manifestacao) {
	if !cfg.Mailer.Enabled() || m.Email == nil {
		return
	}
	corpo := fmt.Sprintf(
		"Sua manifestação foi registrada.\n\nProtocolo: %s\nSenha de acompanhamento: %s\n\nGuarde estes dados para consultar o andamento.",
		m.Protocolo, m.Senha)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = cfg.Mailer.Send(ctx, *m.Email, "Manifestação registrada: "+m.Protocolo, corpo)
	}()
}

func notifyResposta(ctx context.Context, cfg Config, protocolo string) {
	if !cfg.Mailer.Enabled() {
		return
	}
	m, err := cfg.Engine.Repo.GetManifestacaoByProtocolo(ctx, protocolo)
	if err != nil || m.Email == nil {
		return
	}
	email := *m.Email
	go func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = cfg.Mailer.Send(sendCtx, email, "Sua manifestação recebeu uma resposta",
			fmt.Sprintf("A manifestação %s recebeu uma resposta da ouvidoria. Acesse o acompanhamento para ler.", protocolo))
	}()
}

func writeJSON(w http.ResponseWriter, v any, log zerolog.Logger) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("server: falha ao serializar resposta")
	}
}

func splitCursor(cursor string) (criadaEm, id string) {
	if cursor == "" {
		return "", ""
	}
	parts := strings.SplitN(cursor, "|", 2)
	if len(parts) != 2 {
		return "", ""
	}
	return parts[0], parts[1]
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/config"
	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/domain"
	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/events"
	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/protocol"
	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/repo"
)

// Typed failure causes. Handlers map these to HTTP statuses and the client
// maps them to user copy; nothing downstream inspects message text.
var (
	ErrSenhaInvalida       = errors.New("senha de acompanhamento inválida")
	ErrTransicaoInvalida   = errors.New("transição de status inválida")
	ErrCanalInvalido       = errors.New("canal de manifestação inválido")
	ErrCategoriaInvalida   = errors.New("categoria desconhecida")
	ErrConteudoObrigatorio = errors.New("conteúdo é obrigatório")
	ErrConteudoInvalido    = errors.New("conteúdo fora dos limites do canal")
	ErrAssuntoObrigatorio  = errors.New("assunto é obrigatório")
	ErrOrgaoObrigatorio    = errors.New("órgão responsável é obrigatório")
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// SeedOrgaos upserts the configured responsible-body directory.
func (e Engine) SeedOrgaos(ctx context.Context) error {
	if e.Config == nil {
		return errors.New("config not loaded")
	}
	for _, o := range e.Config.Orgaos {
		if err := e.Repo.UpsertOrgao(ctx, domain.Orgao{ID: o.ID, Sigla: o.Sigla, Nome: o.Nome, Ativo: true}); err != nil {
			return fmt.Errorf("seed orgao %s: %w", o.ID, err)
		}
	}
	return nil
}

// ManifestacaoInput carries a submission payload before protocol assignment.
type ManifestacaoInput struct {
	Canal       string
	Conteudo    string
	Categorias  []string
	Assunto     string
	OrgaoID     string
	Anonima     bool
	Nome        string
	Email       string
	Local       string
	DataFato    string
	Envolvidos  string
	Testemunhas string
	Sigilosa    bool
}

// CreateManifestacao validates the payload, assigns protocol and senha, and
// records the initial "recebida" history entry, all in one transaction.
func (e Engine) CreateManifestacao(ctx context.Context, in ManifestacaoInput) (domain.Manifestacao, error) {
	if e.Config == nil {
		return domain.Manifestacao{}, errors.New("config not loaded")
	}
	switch in.Canal {
	case domain.CanalTexto, domain.CanalAudio, domain.CanalImagem, domain.CanalVideo:
	default:
		return domain.Manifestacao{}, fmt.Errorf("%w: %q", ErrCanalInvalido, in.Canal)
	}
	if in.Canal == domain.CanalTexto {
		n := len([]rune(in.Conteudo))
		if n == 0 {
			return domain.Manifestacao{}, ErrConteudoObrigatorio
		}
		if n < e.Config.Canais.Texto.MinCaracteres || n > e.Config.Canais.Texto.MaxCaracteres {
			return domain.Manifestacao{}, fmt.Errorf("%w: entre %d e %d caracteres", ErrConteudoInvalido,
				e.Config.Canais.Texto.MinCaracteres, e.Config.Canais.Texto.MaxCaracteres)
		}
	}
	if in.Assunto == "" {
		return domain.Manifestacao{}, ErrAssuntoObrigatorio
	}
	if in.OrgaoID == "" {
		return domain.Manifestacao{}, ErrOrgaoObrigatorio
	}
	for _, cat := range in.Categorias {
		if !e.Config.ContemCategoria(cat) {
			return domain.Manifestacao{}, fmt.Errorf("%w: %q", ErrCategoriaInvalida, cat)
		}
	}
	if _, err := e.Repo.GetOrgao(ctx, in.OrgaoID); err != nil {
		return domain.Manifestacao{}, err
	}

	now := e.now().UTC()
	nowStr := now.Format(time.RFC3339)
	senha, err := protocol.NewSenha()
	if err != nil {
		return domain.Manifestacao{}, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Manifestacao{}, err
	}
	defer tx.Rollback()

	seq, err := e.Repo.CountManifestacoesNoDia(ctx, tx, now.Format("20060102"))
	if err != nil {
		return domain.Manifestacao{}, err
	}

	m := domain.Manifestacao{
		ID:           uuid.New().String(),
		Protocolo:    protocol.Format(now, seq+1),
		Senha:        senha,
		Canal:        in.Canal,
		Conteudo:     in.Conteudo,
		Categorias:   in.Categorias,
		Assunto:      in.Assunto,
		OrgaoID:      in.OrgaoID,
		Anonima:      in.Anonima,
		Sigilosa:     in.Sigilosa,
		Status:       domain.StatusRecebida,
		CriadaEm:     nowStr,
		AtualizadaEm: nowStr,
	}
	if !in.Anonima {
		m.Nome = optionalString(in.Nome)
		m.Email = optionalString(in.Email)
	}
	m.Local = optionalString(in.Local)
	m.DataFato = optionalString(in.DataFato)
	m.Envolvidos = optionalString(in.Envolvidos)
	m.Testemunhas = optionalString(in.Testemunhas)

	if err := e.Repo.InsertManifestacao(ctx, tx, m); err != nil {
		return domain.Manifestacao{}, fmt.Errorf("insert manifestacao: %w", err)
	}
	obs := "Manifestação recebida pela ouvidoria"
	if err := e.Repo.InsertHistorico(ctx, tx, domain.Historico{
		ManifestacaoID: m.ID,
		Status:         domain.StatusRecebida,
		Observacao:     &obs,
		RegistradoEm:   nowStr,
	}); err != nil {
		return domain.Manifestacao{}, fmt.Errorf("insert historico: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "manifestacao.criada", m.ID, "cidadao", events.EventPayload{
		"protocolo": m.Protocolo,
		"canal":     m.Canal,
		"anonima":   m.Anonima,
	}); err != nil {
		return domain.Manifestacao{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Manifestacao{}, err
	}
	return m, nil
}

// ConsultarTimeline returns the status timeline for a protocol, gated on the
// tracking senha matching.
func (e Engine) ConsultarTimeline(ctx context.Context, protocolo, senha string) (domain.Timeline, error) {
	m, err := e.Repo.GetManifestacaoByProtocolo(ctx, protocolo)
	if err != nil {
		return domain.Timeline{}, err
	}
	if m.Senha != senha {
		return domain.Timeline{}, ErrSenhaInvalida
	}
	historico, err := e.Repo.ListHistorico(ctx, m.ID)
	if err != nil {
		return domain.Timeline{}, err
	}
	respostas, err := e.Repo.ListRespostas(ctx, m.ID)
	if err != nil {
		return domain.Timeline{}, err
	}
	return domain.Timeline{
		Protocolo: m.Protocolo,
		Status:    m.Status,
		Historico: historico,
		Respostas: respostas,
	}, nil
}

func ensureStatusTransition(oldStatus, newStatus string) error {
	if newStatus == domain.StatusArquivada && oldStatus != domain.StatusArquivada {
		return nil
	}
	switch oldStatus {
	case domain.StatusRecebida:
		if newStatus == domain.StatusEmAnalise {
			return nil
		}
	case domain.StatusEmAnalise:
		if newStatus == domain.StatusEmAndamento {
			return nil
		}
	case domain.StatusEmAndamento:
		if newStatus == domain.StatusRespondida {
			return nil
		}
	case domain.StatusRespondida:
		if newStatus == domain.StatusConcluida {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrTransicaoInvalida, oldStatus, newStatus)
}

// SetStatus advances a manifestation's status and appends a timeline entry.
func (e Engine) SetStatus(ctx context.Context, protocolo, status, observacao, atorID string) (domain.Manifestacao, error) {
	m, err := e.Repo.GetManifestacaoByProtocolo(ctx, protocolo)
	if err != nil {
		return m, err
	}
	if err := ensureStatusTransition(m.Status, status); err != nil {
		return m, err
	}
	nowStr := e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return m, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateManifestacaoStatus(ctx, tx, m.ID, status, nowStr); err != nil {
		return m, err
	}
	if err := e.Repo.InsertHistorico(ctx, tx, domain.Historico{
		ManifestacaoID: m.ID,
		Status:         status,
		Observacao:     optionalString(observacao),
		RegistradoEm:   nowStr,
	}); err != nil {
		return m, err
	}
	if err := e.Events.Append(ctx, tx, "manifestacao.status", m.ID, atorID, events.EventPayload{
		"de":   m.Status,
		"para": status,
	}); err != nil {
		return m, err
	}
	if err := tx.Commit(); err != nil {
		return m, err
	}
	m.Status = status
	m.AtualizadaEm = nowStr
	return m, nil
}

// AddResposta records an official answer and moves the manifestation to
// "respondida" when it is still in progress.
func (e Engine) AddResposta(ctx context.Context, protocolo, texto, autorID string) (domain.Resposta, error) {
	if texto == "" {
		return domain.Resposta{}, errors.New("texto da resposta é obrigatório")
	}
	m, err := e.Repo.GetManifestacaoByProtocolo(ctx, protocolo)
	if err != nil {
		return domain.Resposta{}, err
	}
	nowStr := e.now().UTC().Format(time.RFC3339)
	resp := domain.Resposta{
		ID:             uuid.New().String(),
		ManifestacaoID: m.ID,
		AutorID:        autorID,
		Texto:          texto,
		CriadaEm:       nowStr,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return resp, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertResposta(ctx, tx, resp); err != nil {
		return resp, err
	}
	if m.Status == domain.StatusEmAndamento {
		if err := e.Repo.UpdateManifestacaoStatus(ctx, tx, m.ID, domain.StatusRespondida, nowStr); err != nil {
			return resp, err
		}
		if err := e.Repo.InsertHistorico(ctx, tx, domain.Historico{
			ManifestacaoID: m.ID,
			Status:         domain.StatusRespondida,
			RegistradoEm:   nowStr,
		}); err != nil {
			return resp, err
		}
	}
	if err := e.Events.Append(ctx, tx, "manifestacao.respondida", m.ID, autorID, events.EventPayload{
		"resposta_id": resp.ID,
	}); err != nil {
		return resp, err
	}
	if err := tx.Commit(); err != nil {
		return resp, err
	}
	return resp, nil
}

// AddAnexo records attachment metadata for an existing manifestation.
func (e Engine) AddAnexo(ctx context.Context, manifestacaoID string, a domain.Anexo) (domain.Anexo, error) {
	m, err := e.Repo.GetManifestacao(ctx, manifestacaoID)
	if err != nil {
		return a, err
	}
	a.ID = uuid.New().String()
	a.ManifestacaoID = m.ID
	a.CriadoEm = e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return a, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertAnexo(ctx, tx, a); err != nil {
		return a, err
	}
	if err := e.Events.Append(ctx, tx, "manifestacao.anexo", m.ID, "cidadao", events.EventPayload{
		"anexo_id": a.ID,
		"nome":     a.Nome,
	}); err != nil {
		return a, err
	}
	if err := tx.Commit(); err != nil {
		return a, err
	}
	return a, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

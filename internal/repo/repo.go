package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const manifestacaoCols = `id,protocolo,senha,canal,COALESCE(conteudo,''),categorias_json,assunto,orgao_id,anonima,nome,email,local,data_fato,envolvidos,testemunhas,sigilosa,status,criada_em,atualizada_em`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanManifestacao(row rowScanner) (domain.Manifestacao, error) {
	var m domain.Manifestacao
	var categorias sql.NullString
	err := row.Scan(&m.ID, &m.Protocolo, &m.Senha, &m.Canal, &m.Conteudo, &categorias,
		&m.Assunto, &m.OrgaoID, &m.Anonima, &m.Nome, &m.Email, &m.Local, &m.DataFato,
		&m.Envolvidos, &m.Testemunhas, &m.Sigilosa, &m.Status, &m.CriadaEm, &m.AtualizadaEm)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	if err != nil {
		return m, err
	}
	if categorias.Valid && categorias.String != "" {
		_ = json.Unmarshal([]byte(categorias.String), &m.Categorias)
	}
	return m, nil
}

func (r Repo) InsertManifestacao(ctx context.Context, tx *sql.Tx, m domain.Manifestacao) error {
	var categorias any
	if len(m.Categorias) > 0 {
		b, err := json.Marshal(m.Categorias)
		if err != nil {
			return err
		}
		categorias = string(b)
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO manifestacoes(id,protocolo,senha,canal,conteudo,categorias_json,assunto,orgao_id,anonima,nome,email,local,data_fato,envolvidos,testemunhas,sigilosa,status,criada_em,atualizada_em)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		m.ID, m.Protocolo, m.Senha, m.Canal, nullable(m.Conteudo), categorias, m.Assunto, m.OrgaoID,
		m.Anonima, nullableStringPtr(m.Nome), nullableStringPtr(m.Email), nullableStringPtr(m.Local),
		nullableStringPtr(m.DataFato), nullableStringPtr(m.Envolvidos), nullableStringPtr(m.Testemunhas),
		m.Sigilosa, m.Status, m.CriadaEm, m.AtualizadaEm)
	return err
}

func (r Repo) GetManifestacao(ctx context.Context, id string) (domain.Manifestacao, error) {
	return scanManifestacao(r.DB.QueryRowContext(ctx,
		`SELECT `+manifestacaoCols+` FROM manifestacoes WHERE id=?`, id))
}

func (r Repo) GetManifestacaoByProtocolo(ctx context.Context, protocolo string) (domain.Manifestacao, error) {
	return scanManifestacao(r.DB.QueryRowContext(ctx,
		`SELECT `+manifestacaoCols+` FROM manifestacoes WHERE protocolo=?`, protocolo))
}

// CountManifestacoesNoDia returns how many manifestations were created on the
// given UTC day (YYYYMMDD); used to derive the per-day protocol sequence.
func (r Repo) CountManifestacoesNoDia(ctx context.Context, tx *sql.Tx, dia string) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM manifestacoes WHERE protocolo LIKE ?`, "OUV-"+dia+"-%").Scan(&n)
	return n, err
}

func (r Repo) UpdateManifestacaoStatus(ctx context.Context, tx *sql.Tx, id, status, atualizadaEm string) error {
	res, err := tx.ExecContext(ctx, `UPDATE manifestacoes SET status=?, atualizada_em=? WHERE id=?`,
		status, atualizadaEm, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ManifestacaoFilters narrows the admin listing.
type ManifestacaoFilters struct {
	Status  string
	Canal   string
	OrgaoID string
}

func (r Repo) ListManifestacoes(ctx context.Context, f ManifestacaoFilters, limit int, cursorCriadaEm, cursorID string) ([]domain.Manifestacao, error) {
	var clauses []string
	var args []any
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.Canal != "" {
		clauses = append(clauses, "canal=?")
		args = append(args, f.Canal)
	}
	if f.OrgaoID != "" {
		clauses = append(clauses, "orgao_id=?")
		args = append(args, f.OrgaoID)
	}
	if cursorCriadaEm != "" && cursorID != "" {
		clauses = append(clauses, "(criada_em < ? OR (criada_em = ? AND id < ?))")
		args = append(args, cursorCriadaEm, cursorCriadaEm, cursorID)
	}
	query := `SELECT ` + manifestacaoCols + ` FROM manifestacoes`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY criada_em DESC, id DESC`
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Manifestacao
	for rows.Next() {
		m, err := scanManifestacao(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func (r Repo) CountManifestacoesByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM manifestacoes GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// --- histórico ---

func (r Repo) InsertHistorico(ctx context.Context, tx *sql.Tx, h domain.Historico) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO manifestacao_historico(manifestacao_id,status,observacao,registrado_em) VALUES (?,?,?,?)`,
		h.ManifestacaoID, h.Status, nullableStringPtr(h.Observacao), h.RegistradoEm)
	return err
}

func (r Repo) ListHistorico(ctx context.Context, manifestacaoID string) ([]domain.Historico, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id,manifestacao_id,status,observacao,registrado_em FROM manifestacao_historico WHERE manifestacao_id=? ORDER BY id ASC`,
		manifestacaoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Historico
	for rows.Next() {
		var h domain.Historico
		if err := rows.Scan(&h.ID, &h.ManifestacaoID, &h.Status, &h.Observacao, &h.RegistradoEm); err != nil {
			return nil, err
		}
		res = append(res, h)
	}
	return res, rows.Err()
}

// --- respostas ---

func (r Repo) InsertResposta(ctx context.Context, tx *sql.Tx, resp domain.Resposta) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO manifestacao_respostas(id,manifestacao_id,autor_id,texto,criada_em) VALUES (?,?,?,?,?)`,
		resp.ID, resp.ManifestacaoID, resp.AutorID, resp.Texto, resp.CriadaEm)
	return err
}

func (r Repo) ListRespostas(ctx context.Context, manifestacaoID string) ([]domain.Resposta, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id,manifestacao_id,autor_id,texto,criada_em FROM manifestacao_respostas WHERE manifestacao_id=? ORDER BY criada_em ASC, id ASC`,
		manifestacaoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Resposta
	for rows.Next() {
		var resp domain.Resposta
		if err := rows.Scan(&resp.ID, &resp.ManifestacaoID, &resp.AutorID, &resp.Texto, &resp.CriadaEm); err != nil {
			return nil, err
		}
		res = append(res, resp)
	}
	return res, rows.Err()
}

// --- órgãos ---

func (r Repo) UpsertOrgao(ctx context.Context, o domain.Orgao) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO orgaos(id,sigla,nome,ativo) VALUES (?,?,?,?)
ON CONFLICT(id) DO UPDATE SET sigla=excluded.sigla, nome=excluded.nome, ativo=excluded.ativo`,
		o.ID, o.Sigla, o.Nome, o.Ativo)
	return err
}

func (r Repo) GetOrgao(ctx context.Context, id string) (domain.Orgao, error) {
	var o domain.Orgao
	err := r.DB.QueryRowContext(ctx, `SELECT id,sigla,nome,ativo FROM orgaos WHERE id=?`, id).
		Scan(&o.ID, &o.Sigla, &o.Nome, &o.Ativo)
	if err == sql.ErrNoRows {
		return o, ErrNotFound
	}
	return o, err
}

func (r Repo) ListOrgaos(ctx context.Context, somenteAtivos bool) ([]domain.Orgao, error) {
	query := `SELECT id,sigla,nome,ativo FROM orgaos`
	if somenteAtivos {
		query += ` WHERE ativo=1`
	}
	query += ` ORDER BY sigla ASC`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Orgao
	for rows.Next() {
		var o domain.Orgao
		if err := rows.Scan(&o.ID, &o.Sigla, &o.Nome, &o.Ativo); err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, rows.Err()
}

// --- anexos ---

func (r Repo) InsertAnexo(ctx context.Context, tx *sql.Tx, a domain.Anexo) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO anexos(id,manifestacao_id,nome,tipo_mime,tamanho,url,criado_em) VALUES (?,?,?,?,?,?,?)`,
		a.ID, a.ManifestacaoID, a.Nome, a.TipoMIME, a.Tamanho, nullable(a.URL), a.CriadoEm)
	return err
}

func (r Repo) ListAnexos(ctx context.Context, manifestacaoID string) ([]domain.Anexo, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id,manifestacao_id,nome,tipo_mime,tamanho,COALESCE(url,''),criado_em FROM anexos WHERE manifestacao_id=? ORDER BY criado_em ASC`,
		manifestacaoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Anexo
	for rows.Next() {
		var a domain.Anexo
		if err := rows.Scan(&a.ID, &a.ManifestacaoID, &a.Nome, &a.TipoMIME, &a.Tamanho, &a.URL, &a.CriadoEm); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// --- eventos ---

func (r Repo) LatestEventos(ctx context.Context, n int, tipo, manifestacaoID string) ([]domain.Evento, error) {
	var clauses []string
	var args []any
	if tipo != "" {
		clauses = append(clauses, "tipo=?")
		args = append(args, tipo)
	}
	if manifestacaoID != "" {
		clauses = append(clauses, "manifestacao_id=?")
		args = append(args, manifestacaoID)
	}
	query := `SELECT id,ts,tipo,COALESCE(manifestacao_id,''),ator_id,payload_json FROM eventos`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY id DESC`
	if n > 0 {
		query += " LIMIT ?"
		args = append(args, n)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Evento
	for rows.Next() {
		var e domain.Evento
		if err := rows.Scan(&e.ID, &e.TS, &e.Tipo, &e.ManifestacaoID, &e.AtorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

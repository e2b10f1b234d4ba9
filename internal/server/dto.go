package server

import "github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/domain"

// CreateManifestacaoRequest is the public submission payload.
type CreateManifestacaoRequest struct {
	Canal       string   `json:"canal" enum:"texto,audio,imagem,video"`
	Conteudo    string   `json:"conteudo,omitempty"`
	Categorias  []string `json:"categorias,omitempty"`
	Assunto     string   `json:"assunto"`
	OrgaoID     string   `json:"orgao_id"`
	Anonima     bool     `json:"anonima"`
	Nome        *string  `json:"nome,omitempty"`
	Email       *string  `json:"email,omitempty"`
	Local       *string  `json:"local,omitempty"`
	DataFato    *string  `json:"data_fato,omitempty" format:"date-time"`
	Envolvidos  *string  `json:"envolvidos,omitempty"`
	Testemunhas *string  `json:"testemunhas,omitempty"`
	Sigilosa    bool     `json:"sigilosa"`
}

// SetStatusRequest moves a manifestation through its status flow.
type SetStatusRequest struct {
	Status     string `json:"status" enum:"recebida,em_analise,em_andamento,respondida,concluida,arquivada"`
	Observacao string `json:"observacao,omitempty"`
}

// AddRespostaRequest attaches an official answer.
type AddRespostaRequest struct {
	Texto string `json:"texto"`
}

// ManifestacaoList is a cursor-paginated admin listing.
type ManifestacaoList struct {
	Items      []domain.Manifestacao `json:"items"`
	NextCursor string                `json:"next_cursor,omitempty"`
}

// ManifestacaoDetail is the admin view of one manifestation with its
// supporting files.
type ManifestacaoDetail struct {
	Manifestacao domain.Manifestacao `json:"manifestacao"`
	Anexos       []domain.Anexo      `json:"anexos,omitempty"`
}

// Estatisticas aggregates the backlog by status.
type Estatisticas struct {
	PorStatus map[string]int `json:"por_status"`
	Total     int            `json:"total"`
}

// OrgaoList wraps the responsible-body directory.
type OrgaoList struct {
	Items []domain.Orgao `json:"items"`
}

// EventoList wraps recent audit-log entries.
type EventoList struct {
	Items []domain.Evento `json:"items"`
}

// publicView strips the tracking password from listings; it is only handed
// out once, at submission time.
func publicView(m domain.Manifestacao) domain.Manifestacao {
	m.Senha = ""
	return m
}

func publicViews(items []domain.Manifestacao) []domain.Manifestacao {
	out := make([]domain.Manifestacao, 0, len(items))
	for _, m := range items {
		out = append(out, publicView(m))
	}
	return out
}

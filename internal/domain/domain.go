package domain

// Canal is the media type of a manifestation's primary content.
const (
	CanalTexto  = "texto"
	CanalAudio  = "audio"
	CanalImagem = "imagem"
	CanalVideo  = "video"
)

// Manifestation status flow: recebida -> em_analise -> em_andamento ->
// respondida -> concluida; arquivada is a terminal exit from any state.
const (
	StatusRecebida    = "recebida"
	StatusEmAnalise   = "em_analise"
	StatusEmAndamento = "em_andamento"
	StatusRespondida  = "respondida"
	StatusConcluida   = "concluida"
	StatusArquivada   = "arquivada"
)

type Manifestacao struct {
	ID           string   `json:"id"`
	Protocolo    string   `json:"protocolo"`
	Senha        string   `json:"senha,omitempty"`
	Canal        string   `json:"canal" enum:"texto,audio,imagem,video"`
	Conteudo     string   `json:"conteudo,omitempty"`
	Categorias   []string `json:"categorias,omitempty"`
	Assunto      string   `json:"assunto"`
	OrgaoID      string   `json:"orgao_id"`
	Anonima      bool     `json:"anonima"`
	Nome         *string  `json:"nome,omitempty"`
	Email        *string  `json:"email,omitempty"`
	Local        *string  `json:"local,omitempty"`
	DataFato     *string  `json:"data_fato,omitempty" format:"date-time"`
	Envolvidos   *string  `json:"envolvidos,omitempty"`
	Testemunhas  *string  `json:"testemunhas,omitempty"`
	Sigilosa     bool     `json:"sigilosa"`
	Status       string   `json:"status" enum:"recebida,em_analise,em_andamento,respondida,concluida,arquivada"`
	CriadaEm     string   `json:"criada_em" format:"date-time"`
	AtualizadaEm string   `json:"atualizada_em" format:"date-time"`
}

// Historico is one entry of a manifestation's status timeline.
type Historico struct {
	ID             int64   `json:"id"`
	ManifestacaoID string  `json:"manifestacao_id"`
	Status         string  `json:"status"`
	Observacao     *string `json:"observacao,omitempty"`
	RegistradoEm   string  `json:"registrado_em" format:"date-time"`
}

// Resposta is an official answer attached to a manifestation.
type Resposta struct {
	ID             string `json:"id"`
	ManifestacaoID string `json:"manifestacao_id"`
	AutorID        string `json:"autor_id"`
	Texto          string `json:"texto"`
	CriadaEm       string `json:"criada_em" format:"date-time"`
}

// Orgao is a responsible government body manifestations are routed to.
type Orgao struct {
	ID    string `json:"id"`
	Sigla string `json:"sigla"`
	Nome  string `json:"nome"`
	Ativo bool   `json:"ativo"`
}

// Anexo is attachment metadata; the binary lives in file storage.
type Anexo struct {
	ID             string `json:"id"`
	ManifestacaoID string `json:"manifestacao_id"`
	Nome           string `json:"nome"`
	TipoMIME       string `json:"tipo_mime"`
	Tamanho        int64  `json:"tamanho"`
	URL            string `json:"url,omitempty"`
	CriadoEm       string `json:"criado_em" format:"date-time"`
}

// Evento is one audit-log entry.
type Evento struct {
	ID             int64  `json:"id"`
	TS             string `json:"ts" format:"date-time"`
	Tipo           string `json:"tipo"`
	ManifestacaoID string `json:"manifestacao_id,omitempty"`
	AtorID         string `json:"ator_id"`
	Payload        string `json:"payload_json"`
}

// Timeline is the citizen-facing view returned by the tracking query.
type Timeline struct {
	Protocolo string      `json:"protocolo"`
	Status    string      `json:"status"`
	Historico []Historico `json:"historico"`
	Respostas []Resposta  `json:"respostas"`
}

// ManifestacaoDados is the wire payload of a new submission, before the
// server assigns a protocol and tracking password.
type ManifestacaoDados struct {
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

// PendingManifestacao is a submission parked in the offline queue.
type PendingManifestacao struct {
	ID         string `json:"id"`
	Dados      string `json:"dados"`
	CriadoEm   string `json:"criado_em" format:"date-time"`
	Tentativas int    `json:"tentativas"`
}

// Package form holds the in-progress manifestation being assembled by the
// wizard and validates it step by step against the portal configuration.
package form

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/config"
	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/domain"
)

// Conteudo is the channel-specific payload of a manifestation. Exactly one
// concrete type is held at a time; switching channels replaces it wholesale.
type Conteudo interface {
	Canal() string
}

// Texto is a written manifestation.
type Texto struct {
	Texto string `json:"texto"`
}

func (Texto) Canal() string { return domain.CanalTexto }

// Audio is a recorded voice manifestation.
type Audio struct {
	Blob            []byte `json:"-"`
	DuracaoSegundos int    `json:"duracao_segundos"`
}

func (Audio) Canal() string { return domain.CanalAudio }

// Imagem is a photo manifestation.
type Imagem struct {
	Blob     []byte `json:"-"`
	Nome     string `json:"nome"`
	TipoMIME string `json:"tipo_mime"`
}

func (Imagem) Canal() string { return domain.CanalImagem }

// Video is a recorded video manifestation.
type Video struct {
	Blob     []byte `json:"-"`
	Nome     string `json:"nome"`
	TipoMIME string `json:"tipo_mime"`
}

func (Video) Canal() string { return domain.CanalVideo }

// Anexo is a supporting file attached on the optional attachments step.
type Anexo struct {
	Nome     string `json:"nome"`
	TipoMIME string `json:"tipo_mime"`
	Tamanho  int64  `json:"tamanho"`
	Blob     []byte `json:"-"`
}

// State is the full form being filled in across the wizard steps.
type State struct {
	Conteudo   Conteudo
	Categorias []string
	Assunto    string
	OrgaoID    string

	Local       string
	DataFato    *time.Time
	Envolvidos  string
	Testemunhas string

	Anexos []Anexo

	Anonima       bool
	Nome          string
	Email         string
	Sigilosa      bool
	Consentimento bool

	// Erros maps a field key to its current validation message. Cleared
	// per field as the user edits, and rebuilt by ValidateStep.
	Erros map[string]string
}

// New returns an empty anonymous form.
func New() *State {
	return &State{Anonima: true, Erros: map[string]string{}}
}

// SetConteudo replaces the channel payload and clears any stale content
// errors from a previous channel choice.
func (s *State) SetConteudo(c Conteudo) {
	s.Conteudo = c
	s.clearErros("canal", "conteudo")
}

// SetAssunto updates the subject and clears its error.
func (s *State) SetAssunto(v string) {
	s.Assunto = v
	s.clearErros("assunto")
}

// SetOrgao updates the responsible body and clears its error.
func (s *State) SetOrgao(id string) {
	s.OrgaoID = id
	s.clearErros("orgao")
}

// SetIdentificacao switches between anonymous and identified submission.
// Identification fields are kept so the user can toggle back without
// retyping; their errors are cleared either way.
func (s *State) SetIdentificacao(anonima bool, nome, email string) {
	s.Anonima = anonima
	s.Nome = nome
	s.Email = email
	s.clearErros("nome", "email")
}

// SetConsentimento records the data-use consent checkbox.
func (s *State) SetConsentimento(ok bool) {
	s.Consentimento = ok
	s.clearErros("consentimento")
}

// ToggleCategoria adds the tag when absent and removes it when present.
func (s *State) ToggleCategoria(tag string) {
	for i, c := range s.Categorias {
		if c == tag {
			s.Categorias = append(s.Categorias[:i], s.Categorias[i+1:]...)
			return
		}
	}
	s.Categorias = append(s.Categorias, tag)
	s.clearErros("categorias")
}

// AddAnexo appends a supporting file.
func (s *State) AddAnexo(a Anexo) {
	s.Anexos = append(s.Anexos, a)
}

// RemoveAnexo drops the attachment at the given index. Out of range is a
// no-op.
func (s *State) RemoveAnexo(i int) {
	if i < 0 || i >= len(s.Anexos) {
		return
	}
	s.Anexos = append(s.Anexos[:i], s.Anexos[i+1:]...)
}

func (s *State) clearErros(keys ...string) {
	if s.Erros == nil {
		s.Erros = map[string]string{}
		return
	}
	for _, k := range keys {
		delete(s.Erros, k)
	}
}

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Validator applies the portal configuration's bounds to a form.
type Validator struct {
	Config *config.Config
}

// ValidateStep checks the rules of a single wizard step, merges any
// violations into the form's error map and reports whether the step is
// clean. Optional steps never fail. Unknown steps are clean.
func (v Validator) ValidateStep(n int, s *State) bool {
	if s.Erros == nil {
		s.Erros = map[string]string{}
	}
	switch n {
	case 1:
		return v.validateConteudo(s)
	case 2:
		return v.validateCategorias(s)
	case 3:
		return v.validateAssunto(s)
	case 6:
		return v.validateIdentificacao(s)
	}
	return true
}

// Validate re-runs every non-optional step before submission. The optional
// steps (contextual info, attachments) can never block a submission.
func (v Validator) Validate(s *State) bool {
	ok := v.validateConteudo(s)
	ok = v.validateAssunto(s) && ok
	ok = v.validateIdentificacao(s) && ok
	return ok
}

func (v Validator) validateConteudo(s *State) bool {
	if s.Conteudo == nil {
		s.Erros["canal"] = "Escolha como deseja se manifestar"
		return false
	}
	switch c := s.Conteudo.(type) {
	case Texto:
		texto := strings.TrimSpace(c.Texto)
		min := v.Config.Canais.Texto.MinCaracteres
		max := v.Config.Canais.Texto.MaxCaracteres
		if len([]rune(texto)) < min {
			s.Erros["conteudo"] = fmt.Sprintf("Descreva sua manifestação com pelo menos %d caracteres", min)
			return false
		}
		if len([]rune(texto)) > max {
			s.Erros["conteudo"] = fmt.Sprintf("A manifestação não pode passar de %d caracteres", max)
			return false
		}
	case Audio:
		if len(c.Blob) == 0 {
			s.Erros["conteudo"] = "Grave um áudio antes de continuar"
			return false
		}
		if c.DuracaoSegundos > v.Config.Canais.Audio.DuracaoMaxSegundos {
			s.Erros["conteudo"] = fmt.Sprintf("O áudio não pode passar de %d segundos", v.Config.Canais.Audio.DuracaoMaxSegundos)
			return false
		}
	case Imagem:
		if len(c.Blob) == 0 {
			s.Erros["conteudo"] = "Envie uma imagem antes de continuar"
			return false
		}
		if int64(len(c.Blob)) > v.Config.Canais.Imagem.TamanhoMaxBytes {
			s.Erros["conteudo"] = "A imagem excede o tamanho máximo permitido"
			return false
		}
	case Video:
		if len(c.Blob) == 0 {
			s.Erros["conteudo"] = "Grave um vídeo antes de continuar"
			return false
		}
		if int64(len(c.Blob)) > v.Config.Canais.Video.TamanhoMaxBytes {
			s.Erros["conteudo"] = "O vídeo excede o tamanho máximo permitido"
			return false
		}
	}
	delete(s.Erros, "canal")
	delete(s.Erros, "conteudo")
	return true
}

func (v Validator) validateCategorias(s *State) bool {
	if len(s.Categorias) == 0 {
		s.Erros["categorias"] = "Selecione pelo menos uma categoria"
		return false
	}
	for _, tag := range s.Categorias {
		if !v.Config.ContemCategoria(tag) {
			s.Erros["categorias"] = fmt.Sprintf("Categoria desconhecida: %s", tag)
			return false
		}
	}
	delete(s.Erros, "categorias")
	return true
}

func (v Validator) validateAssunto(s *State) bool {
	ok := true
	if strings.TrimSpace(s.Assunto) == "" {
		s.Erros["assunto"] = "Informe o assunto da manifestação"
		ok = false
	} else {
		delete(s.Erros, "assunto")
	}
	if s.OrgaoID == "" {
		s.Erros["orgao"] = "Selecione o órgão responsável"
		ok = false
	} else {
		delete(s.Erros, "orgao")
	}
	return ok
}

func (v Validator) validateIdentificacao(s *State) bool {
	if s.Anonima {
		delete(s.Erros, "nome")
		delete(s.Erros, "email")
		delete(s.Erros, "consentimento")
		return true
	}
	ok := true
	if strings.TrimSpace(s.Nome) == "" {
		s.Erros["nome"] = "Informe seu nome"
		ok = false
	} else {
		delete(s.Erros, "nome")
	}
	if !emailRe.MatchString(s.Email) {
		s.Erros["email"] = "Informe um e-mail válido"
		ok = false
	} else {
		delete(s.Erros, "email")
	}
	if !s.Consentimento {
		s.Erros["consentimento"] = "É necessário autorizar o uso dos seus dados"
		ok = false
	} else {
		delete(s.Erros, "consentimento")
	}
	return ok
}

// Input converts the form into the payload the API expects. The caller is
// responsible for uploading the channel blob and attachments separately.
func (s *State) Input() domain.ManifestacaoDados {
	dados := domain.ManifestacaoDados{
		Canal:      domain.CanalTexto,
		Categorias: append([]string(nil), s.Categorias...),
		Assunto:    s.Assunto,
		OrgaoID:    s.OrgaoID,
		Anonima:    s.Anonima,
		Sigilosa:   s.Sigilosa,
	}
	switch c := s.Conteudo.(type) {
	case Texto:
		dados.Canal = domain.CanalTexto
		dados.Conteudo = c.Texto
	case Audio:
		dados.Canal = domain.CanalAudio
	case Imagem:
		dados.Canal = domain.CanalImagem
	case Video:
		dados.Canal = domain.CanalVideo
	}
	if !s.Anonima {
		dados.Nome = optional(s.Nome)
		dados.Email = optional(s.Email)
	}
	dados.Local = optional(s.Local)
	if s.DataFato != nil {
		df := s.DataFato.Format(time.RFC3339)
		dados.DataFato = &df
	}
	dados.Envolvidos = optional(s.Envolvidos)
	dados.Testemunhas = optional(s.Testemunhas)
	return dados
}

func optional(v string) *string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return &v
}

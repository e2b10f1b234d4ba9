// Package submit orchestrates the final wizard step: validate the form,
// send it to the portal, upload binaries, and either hand back a protocol
// or park the submission offline.
package submit

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/config"
	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/domain"
	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/errlog"
	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/form"
	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/protocol"
	ouvidoriasdk "github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/sdk/go"
)

// API is the slice of the portal client the orchestrator needs.
type API interface {
	EnviarManifestacao(ctx context.Context, dados domain.ManifestacaoDados) (domain.Manifestacao, error)
	EnviarAnexo(ctx context.Context, manifestacaoID, nome, tipoMIME string, blob []byte) (domain.Anexo, error)
}

// Fila parks a payload for later replay.
type Fila interface {
	Add(ctx context.Context, dados domain.ManifestacaoDados) (string, error)
}

// Rascunho is cleared after a submission leaves the device.
type Rascunho interface {
	Clear() error
}

// Outcome is what the confirmation screen renders.
type Outcome struct {
	Protocolo string
	Senha     string
	Offline   bool
	Mensagem  string
	Avisos    []string
}

// ErrFormularioInvalido means validation failed; the form's error map holds
// the details.
var ErrFormularioInvalido = errors.New("formulário inválido")

// Falha is a portal rejection already translated for the citizen. The
// wrapped error keeps the technical cause for logs and the error journal.
type Falha struct {
	Err      error
	Mensagem string
}

func (f *Falha) Error() string { return f.Mensagem }
func (f *Falha) Unwrap() error { return f.Err }

// Orchestrator drives a submission end to end.
type Orchestrator struct {
	API      API
	Fila     Fila
	Rascunho Rascunho
	Erros    *errlog.Log
	Config   *config.Config
	Log      zerolog.Logger
}

// Enviar validates and submits the form. Unreachable portal parks the text
// payload in the offline queue; binaries cannot wait there, so the citizen
// is told to resend them once online.
func (o *Orchestrator) Enviar(ctx context.Context, st *form.State) (Outcome, error) {
	v := form.Validator{Config: o.Config}
	if !v.Validate(st) {
		return Outcome{}, ErrFormularioInvalido
	}
	dados := st.Input()

	m, err := o.API.EnviarManifestacao(ctx, dados)
	if errors.Is(err, ouvidoriasdk.ErrNetwork) {
		return o.parkOffline(ctx, dados)
	}
	if err != nil {
		msg := mensagemUsuario(err)
		o.Log.Error().Err(err).Msg("envio: portal rejeitou a manifestação")
		o.journal("Manifestação não enviada: "+msg, err)
		return Outcome{}, &Falha{Err: err, Mensagem: msg}
	}

	out := Outcome{
		Protocolo: m.Protocolo,
		Senha:     m.Senha,
		Mensagem:  confirmacao(dados.Categorias),
	}

	if blob, nome, mime := channelBlob(st); len(blob) > 0 {
		if _, err := o.upload(ctx, m.ID, nome, mime, blob); err != nil {
			o.Log.Warn().Str("protocolo", m.Protocolo).Err(err).Msg("envio: falha ao subir conteúdo")
			o.journal("Arquivo principal não enviado para "+m.Protocolo, err)
			out.Avisos = append(out.Avisos,
				"Não foi possível enviar o arquivo principal. Entre em contato informando seu protocolo.")
		}
	}
	for _, a := range st.Anexos {
		if _, err := o.upload(ctx, m.ID, a.Nome, a.TipoMIME, a.Blob); err != nil {
			o.Log.Warn().Str("protocolo", m.Protocolo).Str("anexo", a.Nome).Err(err).
				Msg("envio: falha ao subir anexo")
			o.journal("Anexo "+a.Nome+" não enviado para "+m.Protocolo, err)
			out.Avisos = append(out.Avisos,
				fmt.Sprintf("O anexo %s não pôde ser enviado.", a.Nome))
		}
	}

	if o.Rascunho != nil {
		if err := o.Rascunho.Clear(); err != nil {
			o.Log.Warn().Err(err).Msg("envio: falha ao limpar rascunho")
		}
	}
	return out, nil
}

func (o *Orchestrator) parkOffline(ctx context.Context, dados domain.ManifestacaoDados) (Outcome, error) {
	if o.Fila == nil {
		return Outcome{}, ouvidoriasdk.ErrNetwork
	}
	if _, err := o.Fila.Add(ctx, dados); err != nil {
		return Outcome{}, err
	}
	o.Log.Info().Msg("envio: portal fora do ar, manifestação guardada na fila")
	out := Outcome{
		Protocolo: protocol.PlaceholderOffline,
		Offline:   true,
		Mensagem: "Você está sem conexão. Sua manifestação foi guardada e será " +
			"enviada automaticamente assim que a conexão voltar.",
	}
	if dados.Canal != domain.CanalTexto {
		out.Avisos = append(out.Avisos,
			"Arquivos de áudio, imagem e vídeo não podem esperar na fila. Grave ou anexe novamente quando estiver online.")
	}
	if o.Rascunho != nil {
		if err := o.Rascunho.Clear(); err != nil {
			o.Log.Warn().Err(err).Msg("envio: falha ao limpar rascunho")
		}
	}
	return out, nil
}

// upload pushes one binary with exponential retry.
func (o *Orchestrator) upload(ctx context.Context, manifestacaoID, nome, mime string, blob []byte) (domain.Anexo, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = o.Config.UploadInitialDelay()
	bo.Multiplier = o.Config.Upload.Multiplicador
	return backoff.Retry(ctx, func() (domain.Anexo, error) {
		a, err := o.API.EnviarAnexo(ctx, manifestacaoID, nome, mime, blob)
		if err != nil && !errors.Is(err, ouvidoriasdk.ErrNetwork) {
			return domain.Anexo{}, backoff.Permanent(err)
		}
		return a, err
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(uint(o.Config.Upload.Tentativas)))
}

// journal records a failure in the device's bounded error log.
func (o *Orchestrator) journal(mensagem string, cause error) {
	if o.Erros == nil {
		return
	}
	if err := o.Erros.Append("envio", mensagem, cause.Error()); err != nil {
		o.Log.Error().Err(err).Msg("envio: falha ao registrar no diário de erros")
	}
}

// mensagemUsuario translates a portal rejection into the copy shown to the
// citizen. Classification keys on the error code the portal returns, never
// on message text.
func mensagemUsuario(err error) string {
	var apiErr *ouvidoriasdk.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case "bad_request":
			return "O portal recusou alguns campos da manifestação. Revise o conteúdo e tente novamente."
		case "unauthorized", "invalid_credentials":
			return "Sua sessão expirou. Entre novamente para enviar a manifestação."
		case "forbidden":
			return "Você não tem permissão para esta operação."
		case "not_found":
			return "O portal não encontrou o registro informado."
		case "rate_limited":
			return "Muitos envios em pouco tempo. Aguarde um instante e tente novamente."
		}
		if apiErr.StatusCode >= 500 {
			return "O portal está com problemas no momento. Tente novamente em alguns minutos."
		}
	}
	return "Não foi possível enviar sua manifestação. Tente novamente."
}

func channelBlob(st *form.State) (blob []byte, nome, mime string) {
	switch c := st.Conteudo.(type) {
	case form.Audio:
		return c.Blob, "manifestacao-audio", "audio/webm"
	case form.Imagem:
		return c.Blob, c.Nome, c.TipoMIME
	case form.Video:
		return c.Blob, c.Nome, c.TipoMIME
	}
	return nil, "", ""
}

// confirmacao picks the confirmation message by the first selected tag.
func confirmacao(categorias []string) string {
	tag := ""
	if len(categorias) > 0 {
		tag = categorias[0]
	}
	switch tag {
	case "denuncia":
		return "Sua denúncia foi registrada com sigilo. Acompanhe pelo protocolo e guarde sua senha."
	case "elogio":
		return "Obrigado pelo seu elogio! Ele será encaminhado à equipe responsável."
	case "sugestao":
		return "Sua sugestão foi registrada e será avaliada pelo órgão responsável."
	case "solicitacao_informacao":
		return "Seu pedido de informação foi registrado. A resposta chegará pelo acompanhamento do protocolo."
	default:
		return "Sua manifestação foi registrada. Acompanhe pelo protocolo e guarde sua senha."
	}
}

package submit

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/config"
	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/domain"
	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/errlog"
	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/form"
	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/protocol"
	ouvidoriasdk "github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/sdk/go"
)

type stubAPI struct {
	networkDown  bool
	sendErr      error
	anexoFails   int
	anexosSent   []string
	manifestacao domain.Manifestacao
}

func (s *stubAPI) EnviarManifestacao(_ context.Context, _ domain.ManifestacaoDados) (domain.Manifestacao, error) {
	if s.networkDown {
		return domain.Manifestacao{}, ouvidoriasdk.ErrNetwork
	}
	if s.sendErr != nil {
		return domain.Manifestacao{}, s.sendErr
	}
	return s.manifestacao, nil
}

func (s *stubAPI) EnviarAnexo(_ context.Context, _, nome, _ string, _ []byte) (domain.Anexo, error) {
	if s.anexoFails > 0 {
		s.anexoFails--
		return domain.Anexo{}, ouvidoriasdk.ErrNetwork
	}
	s.anexosSent = append(s.anexosSent, nome)
	return domain.Anexo{Nome: nome}, nil
}

type stubFila struct {
	added []domain.ManifestacaoDados
}

func (s *stubFila) Add(_ context.Context, dados domain.ManifestacaoDados) (string, error) {
	s.added = append(s.added, dados)
	return "fila-1", nil
}

type stubRascunho struct {
	cleared bool
}

func (s *stubRascunho) Clear() error {
	s.cleared = true
	return nil
}

func validForm() *form.State {
	st := form.New()
	st.SetConteudo(form.Texto{Texto: strings.Repeat("Poste apagado na rua. ", 3)})
	st.ToggleCategoria("reclamacao")
	st.SetAssunto("Iluminação pública")
	st.SetOrgao("semob")
	return st
}

func newOrchestrator(api *stubAPI, fila *stubFila, rascunho *stubRascunho) *Orchestrator {
	cfg := config.Default()
	cfg.Upload.AtrasoInicialMS = 1
	o := &Orchestrator{API: api, Fila: fila, Config: cfg, Log: zerolog.Nop()}
	if rascunho != nil {
		o.Rascunho = rascunho
	}
	return o
}

func TestEnviarHappyPath(t *testing.T) {
	api := &stubAPI{manifestacao: domain.Manifestacao{
		ID: "m1", Protocolo: "OUV-20260901-000001", Senha: "A1B2C3",
	}}
	rascunho := &stubRascunho{}
	o := newOrchestrator(api, &stubFila{}, rascunho)

	out, err := o.Enviar(context.Background(), validForm())
	if err != nil {
		t.Fatalf("enviar: %v", err)
	}
	if out.Protocolo != "OUV-20260901-000001" || out.Senha != "A1B2C3" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if out.Offline {
		t.Fatal("online submission must not report offline")
	}
	if out.Mensagem == "" {
		t.Fatal("expected a confirmation message")
	}
	if !rascunho.cleared {
		t.Fatal("draft must be cleared after submission")
	}
}

func TestEnviarRejectsInvalidForm(t *testing.T) {
	o := newOrchestrator(&stubAPI{}, &stubFila{}, &stubRascunho{})
	st := form.New()
	st.SetConteudo(form.Texto{Texto: "curto"})

	_, err := o.Enviar(context.Background(), st)
	if !errors.Is(err, ErrFormularioInvalido) {
		t.Fatalf("expected ErrFormularioInvalido, got %v", err)
	}
	if st.Erros["conteudo"] == "" {
		t.Fatal("expected validation errors on the form")
	}
}

func TestEnviarOfflineParksInQueue(t *testing.T) {
	fila := &stubFila{}
	rascunho := &stubRascunho{}
	o := newOrchestrator(&stubAPI{networkDown: true}, fila, rascunho)

	out, err := o.Enviar(context.Background(), validForm())
	if err != nil {
		t.Fatalf("enviar offline: %v", err)
	}
	if !out.Offline || out.Protocolo != protocol.PlaceholderOffline {
		t.Fatalf("expected offline placeholder outcome, got %+v", out)
	}
	if len(fila.added) != 1 {
		t.Fatalf("expected one queued payload, got %d", len(fila.added))
	}
	if !rascunho.cleared {
		t.Fatal("draft must be cleared when parked offline")
	}
}

func TestEnviarOfflineWarnsAboutDroppedBinaries(t *testing.T) {
	o := newOrchestrator(&stubAPI{networkDown: true}, &stubFila{}, nil)
	st := validForm()
	st.SetConteudo(form.Audio{Blob: []byte{1, 2, 3}, DuracaoSegundos: 12})

	out, err := o.Enviar(context.Background(), st)
	if err != nil {
		t.Fatalf("enviar offline: %v", err)
	}
	if len(out.Avisos) == 0 {
		t.Fatal("expected a warning about the dropped audio payload")
	}
}

func TestUploadRetriesThenSucceeds(t *testing.T) {
	api := &stubAPI{
		manifestacao: domain.Manifestacao{ID: "m1", Protocolo: "OUV-20260901-000002", Senha: "X9Y8Z7"},
		anexoFails:   2,
	}
	o := newOrchestrator(api, &stubFila{}, nil)
	st := validForm()
	st.AddAnexo(form.Anexo{Nome: "foto.jpg", TipoMIME: "image/jpeg", Blob: []byte{1}})

	out, err := o.Enviar(context.Background(), st)
	if err != nil {
		t.Fatalf("enviar: %v", err)
	}
	if len(out.Avisos) != 0 {
		t.Fatalf("retried upload should succeed silently, got %v", out.Avisos)
	}
	if len(api.anexosSent) != 1 || api.anexosSent[0] != "foto.jpg" {
		t.Fatalf("attachment not uploaded: %v", api.anexosSent)
	}
}

func TestAnexoFailureIsNonFatal(t *testing.T) {
	api := &stubAPI{
		manifestacao: domain.Manifestacao{ID: "m1", Protocolo: "OUV-20260901-000003", Senha: "K4L5M6"},
		anexoFails:   10,
	}
	o := newOrchestrator(api, &stubFila{}, nil)
	st := validForm()
	st.AddAnexo(form.Anexo{Nome: "laudo.pdf", TipoMIME: "application/pdf", Blob: []byte{1}})

	out, err := o.Enviar(context.Background(), st)
	if err != nil {
		t.Fatalf("attachment failure must not fail the submission: %v", err)
	}
	if out.Protocolo == "" {
		t.Fatal("protocol must survive an attachment failure")
	}
	if len(out.Avisos) == 0 {
		t.Fatal("expected a warning about the failed attachment")
	}
}

func TestEnviarTraduzRejeicaoDoPortal(t *testing.T) {
	api := &stubAPI{sendErr: &ouvidoriasdk.APIError{
		StatusCode: 400, Code: "bad_request", Message: "conteúdo inválido",
	}}
	o := newOrchestrator(api, &stubFila{}, &stubRascunho{})
	o.Erros = errlog.New(t.TempDir())

	_, err := o.Enviar(context.Background(), validForm())
	var falha *Falha
	if !errors.As(err, &falha) {
		t.Fatalf("expected a translated failure, got %v", err)
	}
	if !strings.Contains(falha.Mensagem, "Revise") {
		t.Fatalf("unexpected user copy: %q", falha.Mensagem)
	}
	if strings.Contains(err.Error(), "api error") {
		t.Fatalf("developer-facing string leaked to the user: %q", err.Error())
	}
	var apiErr *ouvidoriasdk.APIError
	if !errors.As(err, &apiErr) {
		t.Fatal("technical cause must stay reachable through Unwrap")
	}
	entries, _ := o.Erros.List()
	if len(entries) != 1 || entries[0].Origem != "envio" {
		t.Fatalf("expected one journaled failure, got %+v", entries)
	}
}

func TestAnexoFailureIsJournaled(t *testing.T) {
	api := &stubAPI{
		manifestacao: domain.Manifestacao{ID: "m1", Protocolo: "OUV-20260901-000004", Senha: "Q1W2E3"},
		anexoFails:   10,
	}
	o := newOrchestrator(api, &stubFila{}, nil)
	o.Erros = errlog.New(t.TempDir())
	st := validForm()
	st.AddAnexo(form.Anexo{Nome: "laudo.pdf", TipoMIME: "application/pdf", Blob: []byte{1}})

	if _, err := o.Enviar(context.Background(), st); err != nil {
		t.Fatalf("enviar: %v", err)
	}
	entries, _ := o.Erros.List()
	if len(entries) != 1 || !strings.Contains(entries[0].Mensagem, "laudo.pdf") {
		t.Fatalf("expected the failed attachment in the journal, got %+v", entries)
	}
}

func TestMensagemUsuarioPorCategoria(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{&ouvidoriasdk.APIError{StatusCode: 401, Code: "unauthorized"}, "sessão expirou"},
		{&ouvidoriasdk.APIError{StatusCode: 429, Code: "rate_limited"}, "Aguarde"},
		{&ouvidoriasdk.APIError{StatusCode: 500, Code: "internal_error"}, "problemas no momento"},
		{errors.New("boom"), "Tente novamente"},
	}
	for _, c := range cases {
		if msg := mensagemUsuario(c.err); !strings.Contains(msg, c.want) {
			t.Fatalf("mensagemUsuario(%v) = %q, want %q", c.err, msg, c.want)
		}
	}
}

func TestConfirmacaoByCategoria(t *testing.T) {
	if msg := confirmacao([]string{"denuncia"}); !strings.Contains(msg, "denúncia") {
		t.Fatalf("unexpected message: %q", msg)
	}
	if msg := confirmacao(nil); msg == "" {
		t.Fatal("default message must not be empty")
	}
}

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/config"
	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/db"
	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/domain"
	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/engine"
	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/migrate"
	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/protocol"
)

const testSecret = "test-secret"

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T, enviosPorMinuto int) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	cfg := config.Default()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, cfg)
	if err := e.SeedOrgaos(context.Background()); err != nil {
		t.Fatalf("seed orgaos: %v", err)
	}
	handler, err := New(Config{
		Engine:          e,
		BasePath:        "/v0",
		Auth:            AuthConfig{JWTSecret: testSecret, Logger: zerolog.Nop()},
		AnexoDir:        t.TempDir(),
		EnviosPorMinuto: enviosPorMinuto,
		Logger:          zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func ouvidorHeaders(t *testing.T) map[string]string {
	t.Helper()
	token, err := NewToken(testSecret, "maria.ouvidora", []string{"ouvidor"})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

func submitPayload() map[string]any {
	return map[string]any{
		"canal":      "texto",
		"conteudo":   strings.Repeat("Falta de iluminação na quadra. ", 2),
		"categorias": []string{"reclamacao"},
		"assunto":    "Iluminação pública",
		"orgao_id":   "semob",
		"anonima":    true,
	}
}

func TestSubmitAndTrack(t *testing.T) {
	srv, cleanup := newTestServer(t, 0)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/manifestacoes", submitPayload(), nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status %d: %s", res.StatusCode, string(data))
	}
	var created domain.Manifestacao
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !protocol.ValidProtocolo(created.Protocolo) {
		t.Fatalf("protocolo malformado: %s", created.Protocolo)
	}
	if !protocol.ValidSenha(created.Senha) {
		t.Fatalf("senha malformada: %s", created.Senha)
	}
	if created.Status != domain.StatusRecebida {
		t.Fatalf("expected recebida, got %s", created.Status)
	}

	res, data = doJSON(t, client, http.MethodGet,
		srv.URL+"/v0/manifestacoes/"+created.Protocolo+"/timeline?senha="+created.Senha, nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("timeline status %d: %s", res.StatusCode, string(data))
	}
	var tl domain.Timeline
	if err := json.Unmarshal(data, &tl); err != nil {
		t.Fatalf("unmarshal timeline: %v", err)
	}
	if tl.Status != domain.StatusRecebida || len(tl.Historico) != 1 {
		t.Fatalf("unexpected timeline: %+v", tl)
	}

	res, data = doJSON(t, client, http.MethodGet,
		srv.URL+"/v0/manifestacoes/"+created.Protocolo+"/timeline?senha=WRONG0", nil, nil)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for wrong senha, got %d: %s", res.StatusCode, string(data))
	}
}

func TestSubmitRejectsShortText(t *testing.T) {
	srv, cleanup := newTestServer(t, 0)
	defer cleanup()

	payload := submitPayload()
	payload["conteudo"] = "curto demais"
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/manifestacoes", payload, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", res.StatusCode, string(data))
	}
	if !bytes.Contains(data, []byte("bad_request")) {
		t.Fatalf("expected error envelope, got %s", string(data))
	}
}

func TestStatusFlowAndAuth(t *testing.T) {
	srv, cleanup := newTestServer(t, 0)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/manifestacoes", submitPayload(), nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create: %d %s", res.StatusCode, string(data))
	}
	var created domain.Manifestacao
	_ = json.Unmarshal(data, &created)

	statusURL := srv.URL + "/v0/manifestacoes/" + created.Protocolo + "/status"

	res, data = doJSON(t, client, http.MethodPut, statusURL, map[string]any{"status": "em_analise"}, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d: %s", res.StatusCode, string(data))
	}

	headers := ouvidorHeaders(t)
	res, data = doJSON(t, client, http.MethodPut, statusURL, map[string]any{"status": "em_analise"}, headers)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("em_analise: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPut, statusURL, map[string]any{"status": "concluida"}, headers)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for skipped transition, got %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPut, statusURL, map[string]any{"status": "arquivada"}, headers)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("arquivada from any state: %d %s", res.StatusCode, string(data))
	}
}

func TestRespostaAdvancesStatus(t *testing.T) {
	srv, cleanup := newTestServer(t, 0)
	defer cleanup()
	client := srv.Client()
	headers := ouvidorHeaders(t)

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/manifestacoes", submitPayload(), nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create: %d %s", res.StatusCode, string(data))
	}
	var created domain.Manifestacao
	_ = json.Unmarshal(data, &created)
	statusURL := srv.URL + "/v0/manifestacoes/" + created.Protocolo + "/status"

	for _, status := range []string{"em_analise", "em_andamento"} {
		res, data = doJSON(t, client, http.MethodPut, statusURL, map[string]any{"status": status}, headers)
		if res.StatusCode != http.StatusOK {
			t.Fatalf("%s: %d %s", status, res.StatusCode, string(data))
		}
	}

	res, data = doJSON(t, client, http.MethodPost,
		srv.URL+"/v0/manifestacoes/"+created.Protocolo+"/respostas",
		map[string]any{"texto": "A equipe de manutenção foi acionada."}, headers)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("resposta: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet,
		srv.URL+"/v0/manifestacoes/"+created.Protocolo+"/timeline?senha="+created.Senha, nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("timeline: %d %s", res.StatusCode, string(data))
	}
	var tl domain.Timeline
	_ = json.Unmarshal(data, &tl)
	if tl.Status != domain.StatusRespondida || len(tl.Respostas) != 1 {
		t.Fatalf("expected respondida with one answer, got %+v", tl)
	}
}

func TestListOrgaos(t *testing.T) {
	srv, cleanup := newTestServer(t, 0)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/orgaos", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("orgaos: %d %s", res.StatusCode, string(data))
	}
	var list OrgaoList
	if err := json.Unmarshal(data, &list); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(list.Items) == 0 {
		t.Fatal("expected seeded orgaos")
	}
}

func TestListManifestacoesRequiresOuvidor(t *testing.T) {
	srv, cleanup := newTestServer(t, 0)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/manifestacoes", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/manifestacoes", nil, ouvidorHeaders(t))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d: %s", res.StatusCode, string(data))
	}
	var list ManifestacaoList
	if err := json.Unmarshal(data, &list); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, m := range list.Items {
		if m.Senha != "" {
			t.Fatal("listing must not leak tracking passwords")
		}
	}
}

func TestAnexoUploadAndDetail(t *testing.T) {
	srv, cleanup := newTestServer(t, 0)
	defer cleanup()
	client := srv.Client()
	headers := ouvidorHeaders(t)

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/manifestacoes", submitPayload(), nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create: %d %s", res.StatusCode, string(data))
	}
	var created domain.Manifestacao
	_ = json.Unmarshal(data, &created)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("arquivo", "foto.jpg")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	if _, err := part.Write([]byte("jpegdata")); err != nil {
		t.Fatalf("write part: %v", err)
	}
	_ = mw.WriteField("tipo_mime", "image/jpeg")
	_ = mw.Close()

	req, err := http.NewRequest(http.MethodPost,
		srv.URL+"/v0/manifestacoes/"+created.Protocolo+"/anexos", &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	upRes, err := client.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	upBody, _ := io.ReadAll(upRes.Body)
	upRes.Body.Close()
	if upRes.StatusCode != http.StatusCreated {
		t.Fatalf("upload status %d: %s", upRes.StatusCode, string(upBody))
	}

	res, data = doJSON(t, client, http.MethodGet,
		srv.URL+"/v0/manifestacoes/"+created.Protocolo, nil, headers)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("detail: %d %s", res.StatusCode, string(data))
	}
	var detail ManifestacaoDetail
	if err := json.Unmarshal(data, &detail); err != nil {
		t.Fatalf("unmarshal detail: %v", err)
	}
	if len(detail.Anexos) != 1 || detail.Anexos[0].Nome != "foto.jpg" {
		t.Fatalf("expected uploaded anexo, got %+v", detail.Anexos)
	}
	if detail.Manifestacao.Senha != "" {
		t.Fatal("detail must not leak the tracking password")
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/estatisticas", nil, headers)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("estatisticas: %d %s", res.StatusCode, string(data))
	}
	var stats Estatisticas
	if err := json.Unmarshal(data, &stats); err != nil {
		t.Fatalf("unmarshal stats: %v", err)
	}
	if stats.Total != 1 || stats.PorStatus[domain.StatusRecebida] != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestSubmitRateLimit(t *testing.T) {
	srv, cleanup := newTestServer(t, 2)
	defer cleanup()
	client := srv.Client()

	for i := 0; i < 2; i++ {
		res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/manifestacoes", submitPayload(), nil)
		if res.StatusCode != http.StatusCreated {
			t.Fatalf("submit %d: %d %s", i, res.StatusCode, string(data))
		}
	}
	res, _ := doJSON(t, client, http.MethodPost, srv.URL+"/v0/manifestacoes", submitPayload(), nil)
	if res.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after the cap, got %d", res.StatusCode)
	}
}

package draft

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/form"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(t.TempDir(), 24*time.Hour)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	s := newStore(t)
	st := form.New()
	st.SetConteudo(form.Texto{Texto: "A iluminação da quadra está apagada há semanas."})
	st.ToggleCategoria("reclamacao")
	st.SetAssunto("Iluminação pública")
	st.SetOrgao("semob")
	df := time.Date(2026, 8, 12, 21, 30, 0, 0, time.UTC)
	st.DataFato = &df

	if err := s.Save(st, 4); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, passo, ok := s.Load()
	if !ok {
		t.Fatal("expected a draft")
	}
	if passo != 4 {
		t.Fatalf("expected step 4, got %d", passo)
	}
	texto, isTexto := got.Conteudo.(form.Texto)
	if !isTexto || texto.Texto != "A iluminação da quadra está apagada há semanas." {
		t.Fatalf("text not restored: %#v", got.Conteudo)
	}
	if got.DataFato == nil || !got.DataFato.Equal(df) {
		t.Fatalf("date not restored exactly: %v", got.DataFato)
	}
	if got.Assunto != "Iluminação pública" || got.OrgaoID != "semob" {
		t.Fatalf("fields not restored: %+v", got)
	}
}

func TestBlobsAreDropped(t *testing.T) {
	s := newStore(t)
	st := form.New()
	st.SetConteudo(form.Audio{Blob: []byte{1, 2, 3}, DuracaoSegundos: 10})
	st.AddAnexo(form.Anexo{Nome: "foto.jpg", Blob: []byte{4, 5}})

	if err := s.Save(st, 5); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, _, ok := s.Load()
	if !ok {
		t.Fatal("expected a draft")
	}
	if got.Conteudo != nil {
		t.Fatalf("audio payload must not survive a save, got %#v", got.Conteudo)
	}
	if len(got.Anexos) != 0 {
		t.Fatalf("attachments must not survive a save, got %d", len(got.Anexos))
	}
}

func TestExpiredDraftIsDeleted(t *testing.T) {
	s := newStore(t)
	st := form.New()
	st.SetAssunto("Teste")
	if err := s.Save(st, 2); err != nil {
		t.Fatalf("save: %v", err)
	}

	s.Now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	if _, _, ok := s.Load(); ok {
		t.Fatal("expected expired draft to be discarded")
	}
	if _, err := os.Stat(filepath.Join(s.Workspace, fileName)); !os.IsNotExist(err) {
		t.Fatal("expected expired draft file to be removed")
	}
}

func TestCorruptDraftBehavesLikeNone(t *testing.T) {
	s := newStore(t)
	if err := os.WriteFile(filepath.Join(s.Workspace, fileName), []byte("{nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if s.Has() {
		t.Fatal("corrupt draft must read as no draft")
	}
}

func TestClearMissingIsNoError(t *testing.T) {
	s := newStore(t)
	if err := s.Clear(); err != nil {
		t.Fatalf("clear on empty workspace: %v", err)
	}
}

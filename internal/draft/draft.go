// Package draft persists an in-progress manifestation to the workspace so
// the citizen can resume later. Binary payloads never survive a save: only
// text fields, selections and the wizard position are kept.
package draft

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/form"
)

const fileName = "rascunho.json"

// Snapshot is the serializable slice of a form plus the step the citizen
// stopped at.
type Snapshot struct {
	Passo       int      `json:"passo"`
	Canal       string   `json:"canal,omitempty"`
	Texto       string   `json:"texto,omitempty"`
	Categorias  []string `json:"categorias,omitempty"`
	Assunto     string   `json:"assunto,omitempty"`
	OrgaoID     string   `json:"orgao_id,omitempty"`
	Local       string   `json:"local,omitempty"`
	DataFato    string   `json:"data_fato,omitempty"`
	Envolvidos  string   `json:"envolvidos,omitempty"`
	Testemunhas string   `json:"testemunhas,omitempty"`
	Anonima     bool     `json:"anonima"`
	Nome        string   `json:"nome,omitempty"`
	Email       string   `json:"email,omitempty"`
	Sigilosa    bool     `json:"sigilosa"`
	SalvoEm     string   `json:"salvo_em"`
}

// Store reads and writes the single draft slot of a workspace.
type Store struct {
	Workspace string
	TTL       time.Duration
	Now       func() time.Time
}

func NewStore(workspace string, ttl time.Duration) *Store {
	return &Store{Workspace: workspace, TTL: ttl, Now: time.Now}
}

func (s *Store) path() string {
	return filepath.Join(s.Workspace, fileName)
}

// Save snapshots the form at the given step, stamping the save time.
// Channel blobs and attachments are dropped; a resumed draft starts over
// on those.
func (s *Store) Save(st *form.State, passo int) error {
	snap := Snapshot{
		Passo:       passo,
		Categorias:  append([]string(nil), st.Categorias...),
		Assunto:     st.Assunto,
		OrgaoID:     st.OrgaoID,
		Local:       st.Local,
		Envolvidos:  st.Envolvidos,
		Testemunhas: st.Testemunhas,
		Anonima:     st.Anonima,
		Nome:        st.Nome,
		Email:       st.Email,
		Sigilosa:    st.Sigilosa,
		SalvoEm:     s.Now().UTC().Format(time.RFC3339Nano),
	}
	if st.Conteudo != nil {
		snap.Canal = st.Conteudo.Canal()
	}
	if t, ok := st.Conteudo.(form.Texto); ok {
		snap.Texto = t.Texto
	}
	if st.DataFato != nil {
		snap.DataFato = st.DataFato.Format(time.RFC3339Nano)
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(), data, 0o644)
}

// Load returns the saved draft when one exists and is still fresh. An
// expired draft is deleted on sight. Unreadable or corrupt files behave
// like no draft at all.
func (s *Store) Load() (*form.State, int, bool) {
	data, err := os.ReadFile(s.path())
	if err != nil {
		return nil, 0, false
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, 0, false
	}
	saved, err := time.Parse(time.RFC3339Nano, snap.SalvoEm)
	if err != nil {
		return nil, 0, false
	}
	if s.Now().Sub(saved) > s.TTL {
		s.Clear()
		return nil, 0, false
	}

	st := form.New()
	st.Categorias = append([]string(nil), snap.Categorias...)
	st.Assunto = snap.Assunto
	st.OrgaoID = snap.OrgaoID
	st.Local = snap.Local
	st.Envolvidos = snap.Envolvidos
	st.Testemunhas = snap.Testemunhas
	st.Anonima = snap.Anonima
	st.Nome = snap.Nome
	st.Email = snap.Email
	st.Sigilosa = snap.Sigilosa
	if snap.Texto != "" || snap.Canal == "texto" {
		st.SetConteudo(form.Texto{Texto: snap.Texto})
	}
	if snap.DataFato != "" {
		if df, err := time.Parse(time.RFC3339Nano, snap.DataFato); err == nil {
			st.DataFato = &df
		}
	}
	passo := snap.Passo
	if passo < 1 {
		passo = 1
	}
	return st, passo, true
}

// Has reports whether a fresh draft is waiting, without deserializing the
// whole form. Expiry is applied the same way Load applies it.
func (s *Store) Has() bool {
	_, _, ok := s.Load()
	return ok
}

// Clear removes the draft file. A missing file is not an error.
func (s *Store) Clear() error {
	err := os.Remove(s.path())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

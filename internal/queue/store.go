// Package queue parks submissions made while the portal is unreachable and
// replays them once connectivity returns.
package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/domain"
)

// Store persists pending submissions in the local queue database.
type Store struct {
	DB  *sql.DB
	Now func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{DB: db, Now: time.Now}
}

// Add parks a submission payload and returns its queue id.
func (s *Store) Add(ctx context.Context, dados domain.ManifestacaoDados) (string, error) {
	raw, err := json.Marshal(dados)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO fila_pendentes(id, dados, criado_em, tentativas) VALUES (?, ?, ?, 0)`,
		id, string(raw), s.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", err
	}
	return id, nil
}

// Pending returns the parked submissions, oldest first. Read failures are
// reported as an empty queue so a broken local file never blocks the UI.
func (s *Store) Pending(ctx context.Context) []domain.PendingManifestacao {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, dados, criado_em, tentativas FROM fila_pendentes ORDER BY criado_em ASC, id ASC`)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var out []domain.PendingManifestacao
	for rows.Next() {
		var p domain.PendingManifestacao
		if err := rows.Scan(&p.ID, &p.Dados, &p.CriadoEm, &p.Tentativas); err != nil {
			return nil
		}
		out = append(out, p)
	}
	if rows.Err() != nil {
		return nil
	}
	return out
}

// Remove deletes one parked submission. Unknown ids are a no-op.
func (s *Store) Remove(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM fila_pendentes WHERE id = ?`, id)
	return err
}

// Bump increments the retry counter of one parked submission.
func (s *Store) Bump(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE fila_pendentes SET tentativas = tentativas + 1 WHERE id = ?`, id)
	return err
}

// Count returns the number of parked submissions, zero on read failure.
func (s *Store) Count(ctx context.Context) int {
	var n int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM fila_pendentes`).Scan(&n); err != nil {
		return 0
	}
	return n
}

// Clear empties the queue.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM fila_pendentes`)
	return err
}

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/domain"
	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/errlog"
)

// Sender submits a parked payload to the portal. It is the API client in
// production and a stub in tests.
type Sender interface {
	EnviarManifestacao(ctx context.Context, dados domain.ManifestacaoDados) (domain.Manifestacao, error)
	Online(ctx context.Context) bool
}

// Result summarizes one sync pass, for the user-facing notification.
type Result struct {
	Enviadas    []domain.Manifestacao
	Falhas      int
	Descartadas int
}

// Mensagem renders the aggregate notification for a finished pass.
func (r Result) Mensagem() string {
	switch {
	case len(r.Enviadas) == 0 && r.Falhas == 0 && r.Descartadas == 0:
		return ""
	case len(r.Enviadas) == 1 && r.Falhas == 0:
		return fmt.Sprintf("1 manifestação pendente foi enviada. Protocolo: %s", r.Enviadas[0].Protocolo)
	case r.Falhas == 0 && r.Descartadas == 0:
		return fmt.Sprintf("%d manifestações pendentes foram enviadas.", len(r.Enviadas))
	default:
		return fmt.Sprintf("%d enviadas, %d ainda pendentes, %d descartadas após muitas tentativas.",
			len(r.Enviadas), r.Falhas, r.Descartadas)
	}
}

// Controller drains the offline queue when the portal is reachable. At most
// one sync pass runs at a time.
type Controller struct {
	Store         *Store
	Sender        Sender
	Erros         *errlog.Log
	MaxTentativas int
	Log           zerolog.Logger

	syncing atomic.Bool
}

func NewController(store *Store, sender Sender, erros *errlog.Log, maxTentativas int, log zerolog.Logger) *Controller {
	return &Controller{Store: store, Sender: sender, Erros: erros, MaxTentativas: maxTentativas, Log: log}
}

// IsSyncing reports whether a pass is in flight.
func (c *Controller) IsSyncing() bool {
	return c.syncing.Load()
}

// Sync replays parked submissions in arrival order. Items that fail stay
// parked with their retry counter bumped; when a retry cap is configured,
// items at the cap are moved to the error log and dropped. A second caller
// while a pass runs gets an empty result.
func (c *Controller) Sync(ctx context.Context) Result {
	if !c.syncing.CompareAndSwap(false, true) {
		return Result{}
	}
	defer c.syncing.Store(false)

	var res Result
	if !c.Sender.Online(ctx) {
		c.Log.Debug().Msg("fila: portal fora do ar, sincronização adiada")
		return res
	}

	for _, p := range c.Store.Pending(ctx) {
		var dados domain.ManifestacaoDados
		if err := json.Unmarshal([]byte(p.Dados), &dados); err != nil {
			c.Log.Warn().Str("id", p.ID).Err(err).Msg("fila: item corrompido descartado")
			c.evict(ctx, p, "payload corrompido")
			res.Descartadas++
			continue
		}
		m, err := c.Sender.EnviarManifestacao(ctx, dados)
		if err != nil {
			c.Log.Warn().Str("id", p.ID).Int("tentativas", p.Tentativas+1).Err(err).
				Msg("fila: envio falhou")
			if c.MaxTentativas > 0 && p.Tentativas+1 >= c.MaxTentativas {
				c.evict(ctx, p, err.Error())
				res.Descartadas++
				continue
			}
			if err := c.Store.Bump(ctx, p.ID); err != nil {
				c.Log.Error().Str("id", p.ID).Err(err).Msg("fila: falha ao registrar tentativa")
			}
			res.Falhas++
			continue
		}
		if err := c.Store.Remove(ctx, p.ID); err != nil {
			c.Log.Error().Str("id", p.ID).Err(err).Msg("fila: falha ao remover item enviado")
		}
		c.Log.Info().Str("id", p.ID).Str("protocolo", m.Protocolo).Msg("fila: manifestação enviada")
		res.Enviadas = append(res.Enviadas, m)
	}
	return res
}

func (c *Controller) evict(ctx context.Context, p domain.PendingManifestacao, motivo string) {
	if c.Erros != nil {
		if err := c.Erros.Append("fila", "Manifestação pendente descartada", motivo); err != nil {
			c.Log.Error().Err(err).Msg("fila: falha ao registrar descarte")
		}
	}
	if err := c.Store.Remove(ctx, p.ID); err != nil {
		c.Log.Error().Str("id", p.ID).Err(err).Msg("fila: falha ao descartar item")
	}
}

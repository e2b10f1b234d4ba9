package config_test

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/config"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := config.Default()
	if cfg.Canais.Texto.MinCaracteres != 20 || cfg.Canais.Texto.MaxCaracteres != 5000 {
		t.Fatalf("unexpected text bounds: %+v", cfg.Canais.Texto)
	}
	if !cfg.ContemCategoria("denuncia") || cfg.ContemCategoria("piada") {
		t.Fatalf("category catalog mismatch")
	}
	if cfg.DraftTTL() != 24*time.Hour {
		t.Fatalf("unexpected draft ttl %v", cfg.DraftTTL())
	}
	if cfg.UploadInitialDelay() != time.Second {
		t.Fatalf("unexpected upload delay %v", cfg.UploadInitialDelay())
	}
	if cfg.SyncInterval() != 30*time.Second {
		t.Fatalf("unexpected sync interval %v", cfg.SyncInterval())
	}
	cfg.Fila.IntervaloSegundos = 5
	if cfg.SyncInterval() != 5*time.Second {
		t.Fatalf("unexpected sync interval %v", cfg.SyncInterval())
	}
}

func TestFromYAMLValidation(t *testing.T) {
	if _, err := config.FromYAML([]byte("portal: [")); err == nil {
		t.Fatalf("expected parse error")
	}
	broken := strings.Replace(config.GenerateDefault(), "min_caracteres: 20", "min_caracteres: 0", 1)
	if _, err := config.FromYAML([]byte(broken)); err == nil || !strings.Contains(err.Error(), "min_caracteres") {
		t.Fatalf("expected min_caracteres validation, got %v", err)
	}
	dup := strings.Replace(config.GenerateDefault(), "id: semob", "id: seduc", 1)
	if _, err := config.FromYAML([]byte(dup)); err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("expected duplicate orgao validation, got %v", err)
	}
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.LoadOptional(dir)
	if err != nil {
		t.Fatalf("load optional without file: %v", err)
	}
	if cfg.Portal.Nome != "Ouvidoria GDF" {
		t.Fatalf("expected default config, got %q", cfg.Portal.Nome)
	}
	custom := strings.Replace(config.GenerateDefault(), "nome: Ouvidoria GDF", "nome: Ouvidoria Teste", 1)
	if err := os.WriteFile(config.Path(dir), []byte(custom), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err = config.LoadOptional(dir)
	if err != nil {
		t.Fatalf("load optional with file: %v", err)
	}
	if cfg.Portal.Nome != "Ouvidoria Teste" {
		t.Fatalf("expected file config, got %q", cfg.Portal.Nome)
	}
	if _, err := config.Load(t.TempDir()); err == nil || !strings.Contains(err.Error(), "config init") {
		t.Fatalf("expected missing-file hint, got %v", err)
	}
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models ouvidoria.yml.
type Config struct {
	Portal struct {
		Nome  string `yaml:"nome"`
		Sigla string `yaml:"sigla"`
	} `yaml:"portal"`
	Canais struct {
		Texto struct {
			MinCaracteres int `yaml:"min_caracteres"`
			MaxCaracteres int `yaml:"max_caracteres"`
		} `yaml:"texto"`
		Audio struct {
			DuracaoMaxSegundos int `yaml:"duracao_max_segundos"`
		} `yaml:"audio"`
		Imagem struct {
			TamanhoMaxBytes int64 `yaml:"tamanho_max_bytes"`
		} `yaml:"imagem"`
		Video struct {
			TamanhoMaxBytes int64 `yaml:"tamanho_max_bytes"`
		} `yaml:"video"`
	} `yaml:"canais"`
	Categorias []string `yaml:"categorias"`
	Orgaos     []struct {
		ID    string `yaml:"id"`
		Sigla string `yaml:"sigla"`
		Nome  string `yaml:"nome"`
	} `yaml:"orgaos"`
	Rascunho struct {
		ValidadeHoras int `yaml:"validade_horas"`
	} `yaml:"rascunho"`
	Fila struct {
		MaxTentativas     int `yaml:"max_tentativas"`
		IntervaloSegundos int `yaml:"intervalo_segundos"`
	} `yaml:"fila"`
	Upload struct {
		Tentativas      int     `yaml:"tentativas"`
		AtrasoInicialMS int     `yaml:"atraso_inicial_ms"`
		Multiplicador   float64 `yaml:"multiplicador"`
	} `yaml:"upload"`
	Envios struct {
		LimitePorMinuto int `yaml:"limite_por_minuto"`
	} `yaml:"envios"`
	Email struct {
		Endpoint        string `yaml:"endpoint"`
		Remetente       string `yaml:"remetente"`
		Tentativas      int    `yaml:"tentativas"`
		JanelaSegundos  int    `yaml:"janela_segundos"`
		LimitePorJanela int    `yaml:"limite_por_janela"`
	} `yaml:"email"`
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Portal.Nome == "" {
		return fmt.Errorf("config.portal.nome is required")
	}
	if c.Canais.Texto.MinCaracteres <= 0 {
		return fmt.Errorf("config.canais.texto.min_caracteres must be positive")
	}
	if c.Canais.Texto.MaxCaracteres <= c.Canais.Texto.MinCaracteres {
		return fmt.Errorf("config.canais.texto.max_caracteres must exceed min_caracteres")
	}
	if c.Canais.Audio.DuracaoMaxSegundos <= 0 {
		return fmt.Errorf("config.canais.audio.duracao_max_segundos must be positive")
	}
	if len(c.Categorias) == 0 {
		return fmt.Errorf("config.categorias is required")
	}
	if len(c.Orgaos) == 0 {
		return fmt.Errorf("config.orgaos is required")
	}
	seen := map[string]bool{}
	for _, o := range c.Orgaos {
		if o.ID == "" || o.Sigla == "" {
			return fmt.Errorf("config.orgaos entries require id and sigla")
		}
		if seen[o.ID] {
			return fmt.Errorf("config.orgaos has duplicate id %s", o.ID)
		}
		seen[o.ID] = true
	}
	if c.Rascunho.ValidadeHoras <= 0 {
		return fmt.Errorf("config.rascunho.validade_horas must be positive")
	}
	if c.Fila.MaxTentativas < 0 {
		return fmt.Errorf("config.fila.max_tentativas cannot be negative")
	}
	if c.Upload.Tentativas <= 0 {
		return fmt.Errorf("config.upload.tentativas must be positive")
	}
	if c.Upload.Multiplicador < 1 {
		return fmt.Errorf("config.upload.multiplicador must be >= 1")
	}
	if c.Email.LimitePorJanela <= 0 || c.Email.JanelaSegundos <= 0 {
		return fmt.Errorf("config.email rate limit requires limite_por_janela and janela_segundos")
	}
	if c.Envios.LimitePorMinuto < 0 {
		return fmt.Errorf("config.envios.limite_por_minuto cannot be negative")
	}
	return nil
}

// DraftTTL returns the draft expiry window.
func (c *Config) DraftTTL() time.Duration {
	return time.Duration(c.Rascunho.ValidadeHoras) * time.Hour
}

// SyncInterval returns the periodic queue-sync interval, defaulting to 30s
// when unset.
func (c *Config) SyncInterval() time.Duration {
	if c.Fila.IntervaloSegundos <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Fila.IntervaloSegundos) * time.Second
}

// UploadInitialDelay returns the first retry delay for uploads.
func (c *Config) UploadInitialDelay() time.Duration {
	return time.Duration(c.Upload.AtrasoInicialMS) * time.Millisecond
}

// ContemCategoria reports whether tag belongs to the catalog.
func (c *Config) ContemCategoria(tag string) bool {
	for _, cat := range c.Categorias {
		if cat == tag {
			return true
		}
	}
	return false
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "ouvidoria.yml")
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; generate with ouv config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in default Config.
func Default() *Config {
	cfg, err := FromYAML([]byte(defaultTemplate))
	if err != nil {
		panic(fmt.Sprintf("default config invalid: %v", err))
	}
	return cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

const defaultTemplate = `portal:
  nome: Ouvidoria GDF
  sigla: OUV

canais:
  texto:
    min_caracteres: 20
    max_caracteres: 5000
  audio:
    duracao_max_segundos: 300
  imagem:
    tamanho_max_bytes: 10485760
  video:
    tamanho_max_bytes: 52428800

categorias:
  - reclamacao
  - denuncia
  - sugestao
  - elogio
  - solicitacao_informacao

orgaos:
  - id: seduc
    sigla: SEDUC
    nome: Secretaria de Educação
  - id: ses
    sigla: SES
    nome: Secretaria de Saúde
  - id: ssp
    sigla: SSP
    nome: Secretaria de Segurança Pública
  - id: semob
    sigla: SEMOB
    nome: Secretaria de Mobilidade
  - id: geral
    sigla: OUV
    nome: Ouvidoria Geral

rascunho:
  validade_horas: 24

fila:
  max_tentativas: 0
  intervalo_segundos: 0

upload:
  tentativas: 3
  atraso_inicial_ms: 1000
  multiplicador: 2

envios:
  limite_por_minuto: 5

email:
  endpoint: ""
  remetente: nao-responda@ouvidoria.df.gov.br
  tentativas: 3
  janela_segundos: 60
  limite_por_janela: 5
`

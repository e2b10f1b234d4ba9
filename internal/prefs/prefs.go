// Package prefs stores accessibility preferences in an env-style file in
// the workspace, one KEY=value per line.
package prefs

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const fileName = "preferencias.env"

const (
	KeyTamanhoFonte  = "TAMANHO_FONTE"
	KeyTema          = "TEMA"
	KeyAltoContraste = "ALTO_CONTRASTE"
)

// Known values per preference key.
var (
	TamanhosFonte = []string{"pequeno", "normal", "grande", "extra_grande"}
	Temas         = []string{"claro", "escuro"}
)

// Prefs reads and writes the preference file of one workspace.
type Prefs struct {
	Workspace string
}

func New(workspace string) *Prefs {
	return &Prefs{Workspace: workspace}
}

func (p *Prefs) path() string {
	return filepath.Join(p.Workspace, fileName)
}

// Get returns the stored value for key, or fallback when unset.
func (p *Prefs) Get(key, fallback string) string {
	f, err := os.Open(p.path())
	if err != nil {
		return fallback
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, key+"=") {
			return strings.TrimPrefix(line, key+"=")
		}
	}
	return fallback
}

// Set writes key=value, replacing an existing line for the key.
func (p *Prefs) Set(key, value string) error {
	if err := validate(key, value); err != nil {
		return err
	}
	var lines []string
	seen := false
	f, err := os.Open(p.path())
	if err == nil {
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, key+"=") {
				lines = append(lines, fmt.Sprintf("%s=%s", key, value))
				seen = true
			} else {
				lines = append(lines, line)
			}
		}
		if err := scanner.Err(); err != nil {
			f.Close()
			return err
		}
		f.Close()
	} else if !os.IsNotExist(err) {
		return err
	}
	if !seen {
		lines = append(lines, fmt.Sprintf("%s=%s", key, value))
	}
	content := strings.Join(lines, "\n")
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return os.WriteFile(p.path(), []byte(content), 0o644)
}

func validate(key, value string) error {
	switch key {
	case KeyTamanhoFonte:
		return oneOf(key, value, TamanhosFonte)
	case KeyTema:
		return oneOf(key, value, Temas)
	case KeyAltoContraste:
		return oneOf(key, value, []string{"sim", "nao"})
	}
	return fmt.Errorf("preferência desconhecida: %s", key)
}

func oneOf(key, value string, allowed []string) error {
	for _, v := range allowed {
		if v == value {
			return nil
		}
	}
	return fmt.Errorf("valor inválido para %s: %s (aceitos: %s)", key, value, strings.Join(allowed, ", "))
}

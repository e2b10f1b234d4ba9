package protocol_test

import (
	"testing"
	"time"

	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/protocol"
)

func TestFormat(t *testing.T) {
	got := protocol.Format(time.Date(2024, 3, 15, 23, 59, 0, 0, time.UTC), 7)
	if got != "OUV-20240315-000007" {
		t.Fatalf("unexpected protocolo %q", got)
	}
	if !protocol.ValidProtocolo(got) {
		t.Fatalf("formatted protocolo should validate")
	}
}

func TestValidProtocolo(t *testing.T) {
	for _, bad := range []string{"", "OUV-2024315-000001", "ouv-20240315-000001", "OUV-20240315-1", protocol.PlaceholderOffline} {
		if protocol.ValidProtocolo(bad) {
			t.Fatalf("%q should not validate", bad)
		}
	}
}

func TestNewSenha(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		s, err := protocol.NewSenha()
		if err != nil {
			t.Fatalf("new senha: %v", err)
		}
		if !protocol.ValidSenha(s) {
			t.Fatalf("generated senha %q should validate", s)
		}
		seen[s] = true
	}
	if len(seen) < 2 {
		t.Fatalf("senhas should not be constant")
	}
	for _, bad := range []string{"", "abc123", "ABC12", "ABC-12"} {
		if protocol.ValidSenha(bad) {
			t.Fatalf("%q should not validate", bad)
		}
	}
}

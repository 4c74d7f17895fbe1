package deploy_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/PetJs/Soroban-Registry/pkg/deploy"
)

func TestResolveNetwork(t *testing.T) {
	cases := []struct {
		raw     string
		want    deploy.Network
		wantErr bool
	}{
		{"", deploy.NetworkMainnet, false},
		{"mainnet", deploy.NetworkMainnet, false},
		{"TESTNET", deploy.NetworkTestnet, false},
		{" futurenet ", deploy.NetworkFuturenet, false},
		{"devnet", "", true},
		{"main net", "", true},
	}
	for _, tc := range cases {
		got, err := deploy.ResolveNetwork(tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ResolveNetwork(%q): expected error", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Errorf("ResolveNetwork(%q): %v", tc.raw, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ResolveNetwork(%q) = %s, want %s", tc.raw, got, tc.want)
		}
	}
}

func TestLoadProfiles_Defaults(t *testing.T) {
	profiles, err := deploy.LoadProfiles("")
	if err != nil {
		t.Fatalf("LoadProfiles failed: %v", err)
	}
	if len(profiles) != 3 {
		t.Fatalf("expected 3 default profiles, got %d", len(profiles))
	}
	main := profiles[deploy.NetworkMainnet]
	if main.Passphrase != "Public Global Stellar Network ; September 2015" {
		t.Errorf("unexpected mainnet passphrase: %q", main.Passphrase)
	}
	if main.RPCURL == "" {
		t.Error("mainnet RPC URL empty")
	}
}

func TestLoadProfiles_Overlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "networks.yaml")
	content := `networks:
  - network: testnet
    rpc_url: http://localhost:8000
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	profiles, err := deploy.LoadProfiles(path)
	if err != nil {
		t.Fatalf("LoadProfiles failed: %v", err)
	}
	test := profiles[deploy.NetworkTestnet]
	if test.RPCURL != "http://localhost:8000" {
		t.Errorf("overlay did not apply: %q", test.RPCURL)
	}
	if test.Passphrase != "Test SDF Network ; September 2015" {
		t.Errorf("default passphrase lost: %q", test.Passphrase)
	}
	if profiles[deploy.NetworkMainnet].RPCURL == "" {
		t.Error("untouched profile lost")
	}
}

func TestLoadProfiles_UnknownNetwork(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "networks.yaml")
	content := `networks:
  - network: devnet
    rpc_url: http://localhost:8000
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := deploy.LoadProfiles(path); err == nil {
		t.Error("expected error for unknown network")
	}
}

func TestRPCDeployer_Deploy(t *testing.T) {
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/deploy" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok", "tx_hash": "txabc123"})
	}))
	defer srv.Close()

	d := deploy.NewRPCDeployer(map[deploy.Network]deploy.Profile{
		deploy.NetworkTestnet: {Network: deploy.NetworkTestnet, RPCURL: srv.URL, Passphrase: "Test SDF Network ; September 2015"},
	})

	tx, err := d.Deploy(context.Background(), "contract-1", "sha256:abcd", "testnet")
	if err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}
	if tx != "txabc123" {
		t.Errorf("expected tx hash txabc123, got %q", tx)
	}
	if gotBody["contract_id"] != "contract-1" {
		t.Errorf("request missing contract_id: %v", gotBody)
	}
	if gotBody["network_passphrase"] == "" {
		t.Error("request missing network passphrase")
	}
}

func TestRPCDeployer_Errors(t *testing.T) {
	t.Run("http error status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "backend down", http.StatusBadGateway)
		}))
		defer srv.Close()

		d := deploy.NewRPCDeployer(map[deploy.Network]deploy.Profile{
			deploy.NetworkTestnet: {Network: deploy.NetworkTestnet, RPCURL: srv.URL},
		})
		if _, err := d.Deploy(context.Background(), "c", "h", "testnet"); err == nil {
			t.Error("expected error for 502")
		}
	})

	t.Run("rejection in body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "failed", "error": "insufficient fee"})
		}))
		defer srv.Close()

		d := deploy.NewRPCDeployer(map[deploy.Network]deploy.Profile{
			deploy.NetworkTestnet: {Network: deploy.NetworkTestnet, RPCURL: srv.URL},
		})
		if _, err := d.Deploy(context.Background(), "c", "h", "testnet"); err == nil {
			t.Error("expected error for rejected deployment")
		}
	})

	t.Run("unknown network skips HTTP", func(t *testing.T) {
		d := deploy.NewRPCDeployer(deploy.DefaultProfiles())
		if _, err := d.Deploy(context.Background(), "c", "h", "devnet"); err == nil {
			t.Error("expected error for unknown network")
		}
	})

	t.Run("unconfigured network", func(t *testing.T) {
		d := deploy.NewRPCDeployer(map[deploy.Network]deploy.Profile{})
		if _, err := d.Deploy(context.Background(), "c", "h", "testnet"); err == nil {
			t.Error("expected error for missing profile")
		}
	})
}

func TestRecorder(t *testing.T) {
	rec := deploy.NewRecorder("tx-1")
	tx, err := rec.Deploy(context.Background(), "c-1", "h-1", "testnet")
	if err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}
	if tx != "tx-1" {
		t.Errorf("expected tx-1, got %q", tx)
	}

	rec.Err = errors.New("rpc unavailable")
	if _, err := rec.Deploy(context.Background(), "c-2", "h-2", "mainnet"); err == nil {
		t.Error("expected configured error")
	}

	calls := rec.Calls()
	if len(calls) != 2 {
		t.Fatalf("expected 2 recorded calls, got %d", len(calls))
	}
	if calls[0].ContractID != "c-1" || calls[1].Network != "mainnet" {
		t.Errorf("unexpected call records: %+v", calls)
	}
}

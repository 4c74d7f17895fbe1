package deploy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// RPCDeployer deploys contracts by posting to the deployment endpoint of the
// network's Soroban RPC bridge. It satisfies the engine's Deployer
// capability.
type RPCDeployer struct {
	profiles map[Network]Profile
	client   *http.Client
	logger   *slog.Logger
}

// NewRPCDeployer creates a deployer over the given network profiles.
func NewRPCDeployer(profiles map[Network]Profile) *RPCDeployer {
	return &RPCDeployer{
		profiles: profiles,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   slog.Default(),
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func (d *RPCDeployer) WithHTTPClient(c *http.Client) *RPCDeployer {
	d.client = c
	return d
}

// WithLogger overrides the logger.
func (d *RPCDeployer) WithLogger(l *slog.Logger) *RPCDeployer {
	d.logger = l
	return d
}

type deployRequest struct {
	ContractID string `json:"contract_id"`
	WasmHash   string `json:"wasm_hash"`
	Network    string `json:"network"`
	Passphrase string `json:"network_passphrase"`
}

type deployResponse struct {
	Status string `json:"status"`
	TxHash string `json:"tx_hash"`
	Error  string `json:"error,omitempty"`
}

// Deploy submits the contract to the target network and returns the
// transaction hash. The caller's context bounds the whole call.
func (d *RPCDeployer) Deploy(ctx context.Context, contractID, wasmHash, network string) (string, error) {
	net, err := ResolveNetwork(network)
	if err != nil {
		return "", err
	}
	profile, ok := d.profiles[net]
	if !ok || profile.RPCURL == "" {
		return "", fmt.Errorf("no RPC endpoint configured for network %s", net)
	}

	body, err := json.Marshal(deployRequest{
		ContractID: contractID,
		WasmHash:   wasmHash,
		Network:    net.String(),
		Passphrase: profile.Passphrase,
	})
	if err != nil {
		return "", fmt.Errorf("marshal deploy request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, profile.RPCURL+"/deploy", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create deploy request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	d.logger.Info("submitting deployment",
		"contract_id", contractID,
		"network", net.String(),
		"endpoint", profile.RPCURL)

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("deploy request to %s: %w", net, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("deploy endpoint returned %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var out deployResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode deploy response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("deployment rejected: %s", out.Error)
	}
	if out.TxHash == "" {
		return "", fmt.Errorf("deploy endpoint returned no transaction hash")
	}
	return out.TxHash, nil
}

package deploy

import (
	"context"
	"sync"
)

// RecordedCall is one Deploy invocation seen by a Recorder.
type RecordedCall struct {
	ContractID string
	WasmHash   string
	Network    string
}

// Recorder is a Deployer that records calls instead of touching a network.
// Tests and local development use it in place of the RPC deployer.
type Recorder struct {
	mu      sync.Mutex
	calls   []RecordedCall
	Outcome string
	Err     error
}

// NewRecorder creates a recorder that reports the given outcome.
func NewRecorder(outcome string) *Recorder {
	return &Recorder{Outcome: outcome}
}

// Deploy records the call and returns the configured outcome or error.
func (r *Recorder) Deploy(ctx context.Context, contractID, wasmHash, network string) (string, error) {
	r.mu.Lock()
	r.calls = append(r.calls, RecordedCall{ContractID: contractID, WasmHash: wasmHash, Network: network})
	r.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if r.Err != nil {
		return "", r.Err
	}
	return r.Outcome, nil
}

// Calls returns a copy of the recorded invocations.
func (r *Recorder) Calls() []RecordedCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RecordedCall, len(r.calls))
	copy(out, r.calls)
	return out
}

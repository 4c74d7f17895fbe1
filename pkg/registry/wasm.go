package registry

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
)

// wasmMemoryLimitPages caps module memory during validation at 16 MiB
// (wazero pages are 64 KiB).
const wasmMemoryLimitPages = 256

// WasmValidator compile-checks Wasm artifacts before they enter the catalog.
// Validation runs in a deny-by-default runtime: no filesystem, no network, no
// host functions.
type WasmValidator struct{}

// NewWasmValidator creates a validator.
func NewWasmValidator() *WasmValidator {
	return &WasmValidator{}
}

// Validate compiles the module and rejects artifacts that are not valid Wasm.
// Nothing is instantiated or run.
func (v *WasmValidator) Validate(ctx context.Context, wasmBytes []byte) error {
	if len(wasmBytes) == 0 {
		return fmt.Errorf("%w: empty wasm artifact", ErrInvalidRecord)
	}

	cfg := wazero.NewRuntimeConfig().WithMemoryLimitPages(wasmMemoryLimitPages)
	r := wazero.NewRuntimeWithConfig(ctx, cfg)
	defer func() { _ = r.Close(ctx) }()

	compiled, err := r.CompileModule(ctx, wasmBytes)
	if err != nil {
		return fmt.Errorf("%w: wasm compilation failed: %v", ErrInvalidRecord, err)
	}
	_ = compiled.Close(ctx)
	return nil
}

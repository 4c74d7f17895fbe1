package audit

import (
	"context"
	"log/slog"

	"github.com/PetJs/Soroban-Registry/pkg/multisig"
)

// Sink adapts the log into an engine event sink so every governance event
// lands on the chain.
func (l *Log) Sink(logger *slog.Logger) multisig.EventSinkFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, ev multisig.Event) {
		data := make(map[string]any, len(ev.Detail)+2)
		for k, v := range ev.Detail {
			data[k] = v
		}
		if ev.PolicyID != "" {
			data["policy_id"] = ev.PolicyID
		}
		if ev.ProposalID != "" {
			data["proposal_id"] = ev.ProposalID
		}
		if _, err := l.Append(ev.Kind, ev.Actor, data); err != nil {
			logger.Warn("audit append failed", "kind", ev.Kind, "error", err)
		}
	}
}

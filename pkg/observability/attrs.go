package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Semantic convention attributes for registry and governance spans.
var (
	AttrContractID      = attribute.Key("registry.contract.id")
	AttrContractVersion = attribute.Key("registry.contract.version")
	AttrNetwork         = attribute.Key("registry.network")

	AttrPolicyID       = attribute.Key("governance.policy.id")
	AttrProposalID     = attribute.Key("governance.proposal.id")
	AttrProposalStatus = attribute.Key("governance.proposal.status")
	AttrSigner         = attribute.Key("governance.signer")

	AttrPatchID       = attribute.Key("registry.patch.id")
	AttrPatchSeverity = attribute.Key("registry.patch.severity")

	AttrDeploymentState = attribute.Key("deploy.state")
)

// ProposalOperation creates attributes for proposal lifecycle spans.
func ProposalOperation(policyID, proposalID, status string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrPolicyID.String(policyID),
		AttrProposalID.String(proposalID),
		AttrProposalStatus.String(status),
	}
}

// DeployOperation creates attributes for deployment spans.
func DeployOperation(contractID, network, state string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrContractID.String(contractID),
		AttrNetwork.String(network),
		AttrDeploymentState.String(state),
	}
}

// PatchOperation creates attributes for patch spans.
func PatchOperation(patchID, severity, contractID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrPatchID.String(patchID),
		AttrPatchSeverity.String(severity),
		AttrContractID.String(contractID),
	}
}

// SpanFromContext extracts the span from context.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// AddSpanEvent adds an event to the current span.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// SetSpanStatus records err on the current span when non-nil.
func SetSpanStatus(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if err != nil {
		span.RecordError(err)
	}
}

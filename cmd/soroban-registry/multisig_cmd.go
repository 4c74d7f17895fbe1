package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/PetJs/Soroban-Registry/pkg/client"
	"github.com/PetJs/Soroban-Registry/pkg/crypto"
	"github.com/PetJs/Soroban-Registry/pkg/multisig"
)

const clientTimeout = 30 * time.Second

func newClientFlagSet(name string, args []string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

// apiURLFlag registers --api-url, defaulting to SOROBAN_REGISTRY_API_URL.
func apiURLFlag(fs *flag.FlagSet) *string {
	def := os.Getenv("SOROBAN_REGISTRY_API_URL")
	if def == "" {
		def = "http://localhost:3001"
	}
	return fs.String("api-url", def, "Registry API base URL")
}

func newClient(apiURL string) *client.Client {
	c := client.New(apiURL).WithTimeout(clientTimeout)
	if token := os.Getenv("SOROBAN_REGISTRY_TOKEN"); token != "" {
		c = c.WithToken(token)
	}
	return c
}

func printJSON(w io.Writer, v any) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(w, string(data))
}

func statusColor(status multisig.Status) string {
	switch status {
	case multisig.StatusApproved:
		return ColorCyan
	case multisig.StatusExecuted:
		return ColorGreen
	case multisig.StatusExpired:
		return ColorGray
	default:
		return ColorYellow
	}
}

func printProposal(w io.Writer, p *multisig.Proposal) {
	fmt.Fprintf(w, "%s%s%s  %s%s%s\n", ColorBold, p.ID, ColorReset,
		statusColor(p.Status), p.Status, ColorReset)
	fmt.Fprintf(w, "   Contract: %s (%s)\n", p.ContractName, p.ContractID)
	fmt.Fprintf(w, "   Network:  %s\n", p.Network)
	fmt.Fprintf(w, "   Wasm:     %s\n", p.WasmHash)
	fmt.Fprintf(w, "   Signed:   %d signature(s)\n", len(p.Signatures))
	if p.ExpiresAt != nil {
		fmt.Fprintf(w, "   Expires:  %s\n", p.ExpiresAt.Format(time.RFC3339))
	}
	if p.DeploymentState != "" {
		fmt.Fprintf(w, "   Deploy:   %s", p.DeploymentState)
		if p.DeployOutcome != "" {
			fmt.Fprintf(w, " (%s)", p.DeployOutcome)
		}
		if p.ExecutionError != "" {
			fmt.Fprintf(w, " %s%s%s", ColorRed, p.ExecutionError, ColorReset)
		}
		fmt.Fprintln(w)
	}
}

func runMultisigCmd(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "Usage: soroban-registry multisig <create-policy|create-proposal|sign|execute|info|list-proposals>")
		return 2
	}
	switch args[0] {
	case "create-policy":
		return runCreatePolicy(args[1:], stdout, stderr)
	case "create-proposal":
		return runCreateProposal(args[1:], stdout, stderr)
	case "sign":
		return runSignProposal(args[1:], stdout, stderr)
	case "execute":
		return runExecuteProposal(args[1:], stdout, stderr)
	case "info":
		return runProposalInfo(args[1:], stdout, stderr)
	case "list-proposals":
		return runListProposals(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown multisig subcommand: %s\n", args[0])
		return 2
	}
}

func runCreatePolicy(args []string, stdout, stderr io.Writer) int {
	fs := newClientFlagSet("multisig create-policy", args, stderr)
	apiURL := apiURLFlag(fs)
	var (
		name       string
		signers    string
		threshold  int
		expirySecs int64
		createdBy  string
		jsonOut    bool
	)
	fs.StringVar(&name, "name", "", "Policy name (REQUIRED)")
	fs.StringVar(&signers, "signers", "", "Comma-separated signer identities (REQUIRED)")
	fs.IntVar(&threshold, "threshold", 0, "Signatures required to approve (REQUIRED)")
	fs.Int64Var(&expirySecs, "expiry-secs", 0, "Proposal lifetime in seconds (0 = no expiry)")
	fs.StringVar(&createdBy, "created-by", "", "Creator identity")
	fs.BoolVar(&jsonOut, "json", false, "Output result as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if name == "" || signers == "" || threshold == 0 {
		fmt.Fprintln(stderr, "Error: --name, --signers, and --threshold are required")
		fs.Usage()
		return 2
	}

	var signerList []string
	for _, s := range strings.Split(signers, ",") {
		if s = strings.TrimSpace(s); s != "" {
			signerList = append(signerList, s)
		}
	}

	policy, err := newClient(*apiURL).CreatePolicy(context.Background(), client.PolicyInput{
		Name:          name,
		Signers:       signerList,
		Threshold:     threshold,
		ExpirySeconds: expirySecs,
		CreatedBy:     createdBy,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error creating policy: %v\n", err)
		return 1
	}

	if jsonOut {
		printJSON(stdout, policy)
	} else {
		fmt.Fprintf(stdout, "✅ Policy created: %s%s%s\n", ColorBold, policy.ID, ColorReset)
		fmt.Fprintf(stdout, "   Name:      %s\n", policy.Name)
		fmt.Fprintf(stdout, "   Threshold: %d of %d signers\n", policy.Threshold, len(policy.Signers))
	}
	return 0
}

func runCreateProposal(args []string, stdout, stderr io.Writer) int {
	fs := newClientFlagSet("multisig create-proposal", args, stderr)
	apiURL := apiURLFlag(fs)
	var (
		policyID     string
		contractName string
		contractID   string
		wasmHash     string
		network      string
		proposer     string
		description  string
		jsonOut      bool
	)
	fs.StringVar(&policyID, "policy-id", "", "Policy ID (REQUIRED)")
	fs.StringVar(&contractName, "contract-name", "", "Contract name (REQUIRED)")
	fs.StringVar(&contractID, "contract-id", "", "Contract ID (REQUIRED)")
	fs.StringVar(&wasmHash, "wasm-hash", "", "Wasm digest, sha256:<hex> (REQUIRED)")
	fs.StringVar(&network, "network", os.Getenv("SOROBAN_NETWORK"), "Target network (mainnet, testnet, futurenet)")
	fs.StringVar(&proposer, "proposer", "", "Proposer identity (REQUIRED)")
	fs.StringVar(&description, "description", "", "Human-readable description")
	fs.BoolVar(&jsonOut, "json", false, "Output result as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if policyID == "" || contractName == "" || contractID == "" || wasmHash == "" || proposer == "" {
		fmt.Fprintln(stderr, "Error: --policy-id, --contract-name, --contract-id, --wasm-hash, and --proposer are required")
		fs.Usage()
		return 2
	}

	proposal, err := newClient(*apiURL).CreateProposal(context.Background(), client.ProposalInput{
		PolicyID:     policyID,
		ContractName: contractName,
		ContractID:   contractID,
		WasmHash:     wasmHash,
		Network:      network,
		Proposer:     proposer,
		Description:  description,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error creating proposal: %v\n", err)
		return 1
	}

	if jsonOut {
		printJSON(stdout, proposal)
	} else {
		fmt.Fprintf(stdout, "✅ Proposal created\n")
		printProposal(stdout, proposal)
	}
	return 0
}

func runSignProposal(args []string, stdout, stderr io.Writer) int {
	fs := newClientFlagSet("multisig sign", args, stderr)
	apiURL := apiURLFlag(fs)
	var (
		proposalID string
		signer     string
		signature  string
		signingKey string
		jsonOut    bool
	)
	fs.StringVar(&proposalID, "proposal-id", "", "Proposal ID (REQUIRED)")
	fs.StringVar(&signer, "signer", "", "Signer identity")
	fs.StringVar(&signature, "signature-data", "", "Precomputed signature artifact")
	fs.StringVar(&signingKey, "signing-key", os.Getenv("SOROBAN_SIGNING_KEY"), "Hex Ed25519 private key; signs the proposal payload locally")
	fs.BoolVar(&jsonOut, "json", false, "Output result as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if proposalID == "" {
		fmt.Fprintln(stderr, "Error: --proposal-id is required")
		fs.Usage()
		return 2
	}
	if signer == "" && signingKey == "" {
		fmt.Fprintln(stderr, "Error: --signer or --signing-key is required")
		fs.Usage()
		return 2
	}

	c := newClient(*apiURL)
	ctx := context.Background()

	if signingKey != "" {
		key, err := crypto.NewSignerFromHex(signingKey)
		if err != nil {
			fmt.Fprintf(stderr, "Error loading signing key: %v\n", err)
			return 2
		}
		proposal, err := c.GetProposal(ctx, proposalID)
		if err != nil {
			fmt.Fprintf(stderr, "Error fetching proposal: %v\n", err)
			return 1
		}
		payload, err := multisig.SigningPayload(proposal)
		if err != nil {
			fmt.Fprintf(stderr, "Error building signing payload: %v\n", err)
			return 1
		}
		signature = key.Sign(payload)
		if signer == "" {
			signer = key.Identity()
		}
	}

	proposal, err := c.Sign(ctx, proposalID, signer, signature)
	if err != nil {
		fmt.Fprintf(stderr, "Error signing proposal: %v\n", err)
		return 1
	}

	if jsonOut {
		printJSON(stdout, proposal)
	} else {
		fmt.Fprintf(stdout, "✅ Signature recorded\n")
		printProposal(stdout, proposal)
	}
	return 0
}

func runExecuteProposal(args []string, stdout, stderr io.Writer) int {
	fs := newClientFlagSet("multisig execute", args, stderr)
	apiURL := apiURLFlag(fs)
	var (
		proposalID string
		jsonOut    bool
	)
	fs.StringVar(&proposalID, "proposal-id", "", "Proposal ID (REQUIRED)")
	fs.BoolVar(&jsonOut, "json", false, "Output result as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if proposalID == "" {
		fmt.Fprintln(stderr, "Error: --proposal-id is required")
		fs.Usage()
		return 2
	}

	result, err := newClient(*apiURL).Execute(context.Background(), proposalID)
	if err != nil {
		fmt.Fprintf(stderr, "Error executing proposal: %v\n", err)
		return 1
	}

	if jsonOut {
		printJSON(stdout, result)
		return 0
	}
	fmt.Fprintf(stdout, "✅ Proposal executed\n")
	printProposal(stdout, result.Proposal)
	if result.Receipt != nil {
		fmt.Fprintf(stdout, "   Receipt:  %s\n", result.Receipt.ContentHash)
	}
	return 0
}

func runProposalInfo(args []string, stdout, stderr io.Writer) int {
	fs := newClientFlagSet("multisig info", args, stderr)
	apiURL := apiURLFlag(fs)
	proposalID := fs.String("proposal-id", "", "Proposal ID (REQUIRED)")
	jsonOut := fs.Bool("json", false, "Output result as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *proposalID == "" {
		fmt.Fprintln(stderr, "Error: --proposal-id is required")
		fs.Usage()
		return 2
	}

	proposal, err := newClient(*apiURL).GetProposal(context.Background(), *proposalID)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if *jsonOut {
		printJSON(stdout, proposal)
	} else {
		printProposal(stdout, proposal)
		for _, sig := range proposal.Signatures {
			fmt.Fprintf(stdout, "   - %s at %s\n", sig.Signer, sig.SignedAt.Format(time.RFC3339))
		}
	}
	return 0
}

func runListProposals(args []string, stdout, stderr io.Writer) int {
	fs := newClientFlagSet("multisig list-proposals", args, stderr)
	apiURL := apiURLFlag(fs)
	var (
		status  string
		limit   int
		jsonOut bool
	)
	fs.StringVar(&status, "status", "", "Filter by status (PENDING, APPROVED, EXECUTED, EXPIRED)")
	fs.IntVar(&limit, "limit", 20, "Maximum proposals to list")
	fs.BoolVar(&jsonOut, "json", false, "Output result as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	proposals, err := newClient(*apiURL).ListProposals(context.Background(), strings.ToUpper(status), limit)
	if err != nil {
		fmt.Fprintf(stderr, "Error listing proposals: %v\n", err)
		return 1
	}

	if jsonOut {
		printJSON(stdout, proposals)
		return 0
	}
	if len(proposals) == 0 {
		fmt.Fprintln(stdout, "No proposals found.")
		return 0
	}
	for _, p := range proposals {
		fmt.Fprintf(stdout, "%s%s%s  %s%-9s%s %s (%s) %d sig(s)\n",
			ColorBold, p.ID, ColorReset,
			statusColor(p.Status), p.Status, ColorReset,
			p.ContractName, p.Network, len(p.Signatures))
	}
	return 0
}

func runAuditCmd(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "Usage: soroban-registry audit <log|verify>")
		return 2
	}
	switch args[0] {
	case "log":
		return runAuditLog(args[1:], stdout, stderr)
	case "verify":
		return runAuditVerify(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown audit subcommand: %s\n", args[0])
		return 2
	}
}

func runAuditLog(args []string, stdout, stderr io.Writer) int {
	fs := newClientFlagSet("audit log", args, stderr)
	apiURL := apiURLFlag(fs)
	limit := fs.Int("limit", 20, "Maximum entries to show")
	jsonOut := fs.Bool("json", false, "Output result as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	page, err := newClient(*apiURL).AuditLog(context.Background(), *limit)
	if err != nil {
		fmt.Fprintf(stderr, "Error fetching audit log: %v\n", err)
		return 1
	}

	if *jsonOut {
		printJSON(stdout, page)
		return 0
	}
	fmt.Fprintf(stdout, "Head: %s (%d entries)\n", page.Head, page.Length)
	for _, e := range page.Entries {
		fmt.Fprintf(stdout, "%6d  %-22s %-16s %s\n", e.Sequence, e.Kind, e.Actor, e.Timestamp.Format(time.RFC3339))
	}
	return 0
}

func runAuditVerify(args []string, stdout, stderr io.Writer) int {
	fs := newClientFlagSet("audit verify", args, stderr)
	apiURL := apiURLFlag(fs)
	jsonOut := fs.Bool("json", false, "Output result as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	verdict, err := newClient(*apiURL).AuditVerify(context.Background())
	if err != nil {
		fmt.Fprintf(stderr, "Error verifying audit chain: %v\n", err)
		return 1
	}

	if *jsonOut {
		printJSON(stdout, verdict)
		return 0
	}
	if verdict.Valid {
		fmt.Fprintf(stdout, "✅ Audit chain verified: %s\n", verdict.Detail)
		return 0
	}
	fmt.Fprintf(stderr, "❌ Audit chain broken: %s\n", verdict.Detail)
	return 1
}

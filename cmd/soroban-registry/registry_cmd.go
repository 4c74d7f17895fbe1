package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/PetJs/Soroban-Registry/pkg/registry"
)

func printContract(w io.Writer, rec *registry.ContractRecord) {
	verified := ""
	if rec.Verified {
		verified = ColorGreen + " ✓ verified" + ColorReset
	}
	fmt.Fprintf(w, "%s%s%s %sv%s%s%s\n", ColorBold, rec.Name, ColorReset,
		ColorGray, rec.Version, ColorReset, verified)
	fmt.Fprintf(w, "   ID:        %s\n", rec.ContractID)
	fmt.Fprintf(w, "   Network:   %s\n", rec.Network)
	if rec.Category != "" {
		fmt.Fprintf(w, "   Category:  %s\n", rec.Category)
	}
	if len(rec.Tags) > 0 {
		fmt.Fprintf(w, "   Tags:      %s\n", strings.Join(rec.Tags, ", "))
	}
	if rec.WasmHash != "" {
		fmt.Fprintf(w, "   Wasm:      %s\n", rec.WasmHash)
	}
	fmt.Fprintf(w, "   Publisher: %s\n", rec.Publisher)
	if rec.Description != "" {
		fmt.Fprintf(w, "   %s\n", rec.Description)
	}
}

func runPublishCmd(args []string, stdout, stderr io.Writer) int {
	fs := newClientFlagSet("publish", args, stderr)
	apiURL := apiURLFlag(fs)
	var (
		contractID  string
		name        string
		description string
		category    string
		tags        string
		publisher   string
		network     string
		versionStr  string
		wasmHash    string
		wasmFile    string
		jsonOut     bool
	)
	fs.StringVar(&contractID, "contract-id", "", "On-chain contract ID (REQUIRED)")
	fs.StringVar(&name, "name", "", "Contract name (REQUIRED)")
	fs.StringVar(&description, "description", "", "Contract description")
	fs.StringVar(&category, "category", "", "Category (defi, nft, dao, ...)")
	fs.StringVar(&tags, "tags", "", "Comma-separated tags")
	fs.StringVar(&publisher, "publisher", "", "Publisher identity (REQUIRED)")
	fs.StringVar(&network, "network", os.Getenv("SOROBAN_NETWORK"), "Network the contract lives on")
	fs.StringVar(&versionStr, "version", "", "Semantic version (REQUIRED)")
	fs.StringVar(&wasmHash, "wasm-hash", "", "Wasm digest, sha256:<hex>")
	fs.StringVar(&wasmFile, "wasm", "", "Path to a Wasm file to upload")
	fs.BoolVar(&jsonOut, "json", false, "Output result as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if contractID == "" || name == "" || publisher == "" || versionStr == "" {
		fmt.Fprintln(stderr, "Error: --contract-id, --name, --publisher, and --version are required")
		fs.Usage()
		return 2
	}

	var tagList []string
	for _, t := range strings.Split(tags, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tagList = append(tagList, t)
		}
	}

	var wasm []byte
	if wasmFile != "" {
		data, err := os.ReadFile(wasmFile)
		if err != nil {
			fmt.Fprintf(stderr, "Error reading wasm file: %v\n", err)
			return 2
		}
		wasm = data
	}

	rec, err := newClient(*apiURL).Publish(context.Background(), registry.PublishInput{
		ContractID:  contractID,
		Name:        name,
		Description: description,
		Category:    category,
		Tags:        tagList,
		Publisher:   publisher,
		Network:     network,
		Version:     versionStr,
		WasmHash:    wasmHash,
		Wasm:        wasm,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error publishing contract: %v\n", err)
		return 1
	}

	if jsonOut {
		printJSON(stdout, rec)
	} else {
		fmt.Fprintf(stdout, "✅ Published\n")
		printContract(stdout, rec)
	}
	return 0
}

func runSearchCmd(args []string, stdout, stderr io.Writer) int {
	fs := newClientFlagSet("search", args, stderr)
	apiURL := apiURLFlag(fs)
	var (
		category string
		verified bool
		limit    int
		jsonOut  bool
	)
	fs.StringVar(&category, "category", "", "Filter by category")
	fs.BoolVar(&verified, "verified-only", false, "Only verified contracts")
	fs.IntVar(&limit, "limit", 10, "Maximum results")
	fs.BoolVar(&jsonOut, "json", false, "Output result as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	query := strings.Join(fs.Args(), " ")
	if query == "" && category == "" && !verified {
		fmt.Fprintln(stderr, "Usage: soroban-registry search <query> [--category ...] [--verified-only]")
		return 2
	}

	hits, err := newClient(*apiURL).Search(context.Background(), registry.SearchQuery{
		Query:        query,
		Category:     category,
		VerifiedOnly: verified,
		Limit:        limit,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error searching: %v\n", err)
		return 1
	}

	if jsonOut {
		printJSON(stdout, hits)
		return 0
	}
	if len(hits) == 0 {
		fmt.Fprintln(stdout, "No contracts found.")
		return 0
	}
	for _, rec := range hits {
		mark := " "
		if rec.Verified {
			mark = ColorGreen + "✓" + ColorReset
		}
		fmt.Fprintf(stdout, "%s %s%-24s%s v%-10s %-10s %s\n", mark,
			ColorBold, rec.Name, ColorReset, rec.Version, rec.Category, rec.ContractID)
	}
	return 0
}

func runInfoCmd(args []string, stdout, stderr io.Writer) int {
	fs := newClientFlagSet("info", args, stderr)
	apiURL := apiURLFlag(fs)
	jsonOut := fs.Bool("json", false, "Output result as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Usage: soroban-registry info <contract-id>")
		return 2
	}

	rec, err := newClient(*apiURL).GetContract(context.Background(), fs.Arg(0))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if *jsonOut {
		printJSON(stdout, rec)
	} else {
		printContract(stdout, rec)
	}
	return 0
}

func runListCmd(args []string, stdout, stderr io.Writer) int {
	fs := newClientFlagSet("list", args, stderr)
	apiURL := apiURLFlag(fs)
	limit := fs.Int("limit", 20, "Maximum contracts to list")
	jsonOut := fs.Bool("json", false, "Output result as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	recs, err := newClient(*apiURL).ListContracts(context.Background(), *limit)
	if err != nil {
		fmt.Fprintf(stderr, "Error listing contracts: %v\n", err)
		return 1
	}

	if *jsonOut {
		printJSON(stdout, recs)
		return 0
	}
	if len(recs) == 0 {
		fmt.Fprintln(stdout, "No contracts published yet.")
		return 0
	}
	for _, rec := range recs {
		fmt.Fprintf(stdout, "%s%-24s%s v%-10s %-10s %s\n",
			ColorBold, rec.Name, ColorReset, rec.Version, rec.Network, rec.ContractID)
	}
	return 0
}

func runVersionsCmd(args []string, stdout, stderr io.Writer) int {
	fs := newClientFlagSet("versions", args, stderr)
	apiURL := apiURLFlag(fs)
	jsonOut := fs.Bool("json", false, "Output result as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Usage: soroban-registry versions <contract-id>")
		return 2
	}

	recs, err := newClient(*apiURL).ContractVersions(context.Background(), fs.Arg(0))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if *jsonOut {
		printJSON(stdout, recs)
		return 0
	}
	for _, rec := range recs {
		fmt.Fprintf(stdout, "v%-12s %-10s published %s\n",
			rec.Version, rec.Network, rec.PublishedAt.Format(time.RFC3339))
	}
	return 0
}

func runPatchCmd(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "Usage: soroban-registry patch <create|apply|list>")
		return 2
	}
	switch args[0] {
	case "create":
		return runPatchCreate(args[1:], stdout, stderr)
	case "apply":
		return runPatchApply(args[1:], stdout, stderr)
	case "list":
		return runPatchList(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown patch subcommand: %s\n", args[0])
		return 2
	}
}

func runPatchCreate(args []string, stdout, stderr io.Writer) int {
	fs := newClientFlagSet("patch create", args, stderr)
	apiURL := apiURLFlag(fs)
	var (
		versionStr string
		wasmHash   string
		severity   string
		rollout    int
		jsonOut    bool
	)
	fs.StringVar(&versionStr, "version", "", "Patched version (REQUIRED)")
	fs.StringVar(&wasmHash, "hash", "", "Patched Wasm digest (REQUIRED)")
	fs.StringVar(&severity, "severity", "", "Severity (low, medium, high, critical)")
	fs.IntVar(&rollout, "rollout", 100, "Rollout percentage, 0-100")
	fs.BoolVar(&jsonOut, "json", false, "Output result as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if versionStr == "" || wasmHash == "" {
		fmt.Fprintln(stderr, "Error: --version and --hash are required")
		fs.Usage()
		return 2
	}

	patch, err := newClient(*apiURL).CreatePatch(context.Background(), registry.PatchInput{
		Version:        versionStr,
		WasmHash:       wasmHash,
		Severity:       severity,
		RolloutPercent: &rollout,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error creating patch: %v\n", err)
		return 1
	}

	if jsonOut {
		printJSON(stdout, patch)
	} else {
		fmt.Fprintf(stdout, "✅ Patch created: %s%s%s\n", ColorBold, patch.ID, ColorReset)
		fmt.Fprintf(stdout, "   Version:  %s\n", patch.Version)
		fmt.Fprintf(stdout, "   Severity: %s\n", patch.Severity)
		fmt.Fprintf(stdout, "   Rollout:  %d%%\n", patch.RolloutPercent)
	}
	return 0
}

func runPatchApply(args []string, stdout, stderr io.Writer) int {
	fs := newClientFlagSet("patch apply", args, stderr)
	apiURL := apiURLFlag(fs)
	var (
		patchID    string
		contractID string
		jsonOut    bool
	)
	fs.StringVar(&patchID, "patch-id", "", "Patch ID (REQUIRED)")
	fs.StringVar(&contractID, "contract-id", "", "Contract ID to patch (REQUIRED)")
	fs.BoolVar(&jsonOut, "json", false, "Output result as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if patchID == "" || contractID == "" {
		fmt.Fprintln(stderr, "Error: --patch-id and --contract-id are required")
		fs.Usage()
		return 2
	}

	app, err := newClient(*apiURL).ApplyPatch(context.Background(), patchID, contractID)
	if err != nil {
		fmt.Fprintf(stderr, "Error applying patch: %v\n", err)
		return 1
	}

	if jsonOut {
		printJSON(stdout, app)
	} else {
		fmt.Fprintf(stdout, "✅ Patch %s applied to %s at %s\n",
			app.PatchID, app.ContractID, app.AppliedAt.Format(time.RFC3339))
	}
	return 0
}

func runPatchList(args []string, stdout, stderr io.Writer) int {
	fs := newClientFlagSet("patch list", args, stderr)
	apiURL := apiURLFlag(fs)
	limit := fs.Int("limit", 20, "Maximum patches to list")
	jsonOut := fs.Bool("json", false, "Output result as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	patches, err := newClient(*apiURL).ListPatches(context.Background(), *limit)
	if err != nil {
		fmt.Fprintf(stderr, "Error listing patches: %v\n", err)
		return 1
	}

	if *jsonOut {
		printJSON(stdout, patches)
		return 0
	}
	if len(patches) == 0 {
		fmt.Fprintln(stdout, "No patches registered.")
		return 0
	}
	for _, p := range patches {
		fmt.Fprintf(stdout, "%s%s%s v%-10s %-8s rollout %d%%\n",
			ColorBold, p.ID, ColorReset, p.Version, p.Severity, p.RolloutPercent)
	}
	return 0
}

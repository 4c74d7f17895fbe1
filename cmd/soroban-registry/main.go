package main

import (
	"fmt"
	"io"
	"os"
)

const version = "1.0.0"

// Dispatcher
func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// startServer is a variable to allow mocking in tests
var startServer = runServer

// Run is the entrypoint for testing
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		return startServer(stdout, stderr)
	}

	switch args[1] {
	case "server", "serve":
		return startServer(stdout, stderr)
	case "multisig":
		return runMultisigCmd(args[2:], stdout, stderr)
	case "publish":
		return runPublishCmd(args[2:], stdout, stderr)
	case "search":
		return runSearchCmd(args[2:], stdout, stderr)
	case "info":
		return runInfoCmd(args[2:], stdout, stderr)
	case "list":
		return runListCmd(args[2:], stdout, stderr)
	case "versions":
		return runVersionsCmd(args[2:], stdout, stderr)
	case "patch":
		return runPatchCmd(args[2:], stdout, stderr)
	case "audit":
		return runAuditCmd(args[2:], stdout, stderr)
	case "keygen":
		return runKeygenCmd(args[2:], stdout, stderr)
	case "health":
		return runHealthCmd(args[2:], stdout, stderr)
	case "version", "--version":
		fmt.Fprintf(stdout, "soroban-registry %s\n", version)
		return 0
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		if args[1][0] == '-' {
			return startServer(stdout, stderr)
		}
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

// ANSI Colors
const (
	ColorReset  = "\033[0m"
	ColorBold   = "\033[1m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorCyan   = "\033[36m"
	ColorGray   = "\033[37m"
)

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "%sSoroban Registry %sv%s%s\n", ColorBold+ColorBlue, ColorReset+ColorGray, version, ColorReset)
	fmt.Fprintf(w, "%sContract registry with multisig deployment governance.%s\n", ColorGray, ColorReset)
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "%sUSAGE:%s\n", ColorBold, ColorReset)
	fmt.Fprintln(w, "  soroban-registry <command> [flags]")
	fmt.Fprintln(w, "")

	printSection(w, "SERVER")
	printCommand(w, "serve", "Run the registry server (default)")
	printCommand(w, "health", "Check server health (HTTP)")

	printSection(w, "GOVERNANCE")
	printCommand(w, "multisig", "Manage policies and proposals (create-policy/create-proposal/sign/execute/info/list-proposals)")
	printCommand(w, "keygen", "Generate an Ed25519 signer keypair")
	printCommand(w, "audit", "Inspect the governance audit chain (log/verify)")

	printSection(w, "CONTRACTS")
	printCommand(w, "publish", "Publish a contract version")
	printCommand(w, "search", "Search contracts (--category, --verified-only)")
	printCommand(w, "info", "Show the latest version of a contract")
	printCommand(w, "list", "List recently updated contracts")
	printCommand(w, "versions", "List all versions of a contract")
	printCommand(w, "patch", "Manage emergency patches (create/apply/list)")

	printSection(w, "UTILITIES")
	printCommand(w, "version", "Show version information")
	printCommand(w, "help", "Show this help")
	fmt.Fprintln(w, "")
}

func printSection(w io.Writer, title string) {
	fmt.Fprintf(w, "%s%s:%s\n", ColorBold+ColorCyan, title, ColorReset)
}

func printCommand(w io.Writer, name, desc string) {
	fmt.Fprintf(w, "  %s%-12s%s %s\n", ColorGreen, name, ColorReset, desc)
}

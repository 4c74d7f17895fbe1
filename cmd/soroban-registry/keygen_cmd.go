package main

import (
	"fmt"
	"io"

	"github.com/PetJs/Soroban-Registry/pkg/crypto"
)

// runKeygenCmd generates an Ed25519 signer keypair. The public key is the
// signer identity that goes into policy signer sets; the private key feeds
// `multisig sign --signing-key`.
func runKeygenCmd(args []string, stdout, stderr io.Writer) int {
	fs := newClientFlagSet("keygen", args, stderr)
	jsonOut := fs.Bool("json", false, "Output result as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	signer, err := crypto.NewSigner()
	if err != nil {
		fmt.Fprintf(stderr, "Error generating key: %v\n", err)
		return 1
	}

	if *jsonOut {
		printJSON(stdout, map[string]string{
			"identity":    signer.Identity(),
			"private_key": signer.PrivateKeyHex(),
		})
		return 0
	}

	fmt.Fprintf(stdout, "🔑 Signer identity: %s%s%s\n", ColorBold+ColorGreen, signer.Identity(), ColorReset)
	fmt.Fprintf(stdout, "   Private key:     %s\n", signer.PrivateKeyHex())
	fmt.Fprintf(stdout, "\n%sKeep the private key secret. Add the identity to a policy's signer set,%s\n", ColorGray, ColorReset)
	fmt.Fprintf(stdout, "%sthen sign with: soroban-registry multisig sign --proposal-id <id> --signing-key <private-key>%s\n", ColorGray, ColorReset)
	return 0
}

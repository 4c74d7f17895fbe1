// Package deploy resolves Stellar networks and performs contract deployments
// against a Soroban RPC endpoint once a proposal has been executed.
package deploy

import (
	"fmt"
	"strings"
)

// Network identifies a Stellar network a contract can be deployed to.
type Network string

const (
	NetworkMainnet   Network = "mainnet"
	NetworkTestnet   Network = "testnet"
	NetworkFuturenet Network = "futurenet"
)

// DefaultNetwork is used when a caller does not name a network.
const DefaultNetwork = NetworkMainnet

// ResolveNetwork parses a raw network name. Empty input resolves to the
// default; unknown names are rejected rather than passed through.
func ResolveNetwork(raw string) (Network, error) {
	switch Network(strings.ToLower(strings.TrimSpace(raw))) {
	case "":
		return DefaultNetwork, nil
	case NetworkMainnet:
		return NetworkMainnet, nil
	case NetworkTestnet:
		return NetworkTestnet, nil
	case NetworkFuturenet:
		return NetworkFuturenet, nil
	default:
		return "", fmt.Errorf("unknown network %q (want mainnet, testnet or futurenet)", raw)
	}
}

// Valid reports whether n is one of the known networks.
func (n Network) Valid() bool {
	switch n {
	case NetworkMainnet, NetworkTestnet, NetworkFuturenet:
		return true
	}
	return false
}

func (n Network) String() string {
	return string(n)
}

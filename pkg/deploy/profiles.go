package deploy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile holds the connection settings for one Stellar network.
type Profile struct {
	Network    Network `yaml:"network" json:"network"`
	RPCURL     string  `yaml:"rpc_url" json:"rpc_url"`
	Passphrase string  `yaml:"passphrase" json:"passphrase"`
	HorizonURL string  `yaml:"horizon_url,omitempty" json:"horizon_url,omitempty"`
}

type profileFile struct {
	Networks []Profile `yaml:"networks"`
}

// DefaultProfiles returns the built-in settings for the public Stellar
// networks. Passphrases are protocol constants.
func DefaultProfiles() map[Network]Profile {
	return map[Network]Profile{
		NetworkMainnet: {
			Network:    NetworkMainnet,
			RPCURL:     "https://mainnet.sorobanrpc.com",
			Passphrase: "Public Global Stellar Network ; September 2015",
			HorizonURL: "https://horizon.stellar.org",
		},
		NetworkTestnet: {
			Network:    NetworkTestnet,
			RPCURL:     "https://soroban-testnet.stellar.org",
			Passphrase: "Test SDF Network ; September 2015",
			HorizonURL: "https://horizon-testnet.stellar.org",
		},
		NetworkFuturenet: {
			Network:    NetworkFuturenet,
			RPCURL:     "https://rpc-futurenet.stellar.org",
			Passphrase: "Test SDF Future Network ; October 2022",
			HorizonURL: "https://horizon-futurenet.stellar.org",
		},
	}
}

// LoadProfiles reads a networks YAML file and overlays it on the built-in
// defaults. Entries only need to set the fields they change.
func LoadProfiles(path string) (map[Network]Profile, error) {
	profiles := DefaultProfiles()
	if path == "" {
		return profiles, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load network profiles: %w", err)
	}

	var file profileFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse network profiles %q: %w", path, err)
	}

	for _, p := range file.Networks {
		if !p.Network.Valid() {
			return nil, fmt.Errorf("network profiles %q: unknown network %q", path, p.Network)
		}
		base := profiles[p.Network]
		if p.RPCURL != "" {
			base.RPCURL = p.RPCURL
		}
		if p.Passphrase != "" {
			base.Passphrase = p.Passphrase
		}
		if p.HorizonURL != "" {
			base.HorizonURL = p.HorizonURL
		}
		profiles[p.Network] = base
	}
	return profiles, nil
}

// Package tokens is the read-only registry of tokens a resource can be
// priced in. It is built once at startup and passed to whoever needs it.
package tokens

import (
	"sort"

	"github.com/mondb-dev/x402-wp/internal/address"
)

type Token struct {
	Network  string `yaml:"network" json:"network"`
	Address  string `yaml:"address" json:"address"`
	Symbol   string `yaml:"symbol" json:"symbol"`
	Decimals uint   `yaml:"decimals" json:"decimals"`
	// TokenName and TokenVersion are the EIP-712 domain of EVM tokens.
	TokenName    string `yaml:"token_name" json:"token_name,omitempty"`
	TokenVersion string `yaml:"token_version" json:"token_version,omitempty"`
}

type Network struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Family address.Family `json:"family"`
	Tokens []Token        `json:"tokens"`
}

var defaults = []Network{
	{ID: "base-mainnet", Name: "Base Mainnet", Tokens: []Token{
		{Address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", Symbol: "USDC", Decimals: 6, TokenName: "USD Coin", TokenVersion: "2"},
	}},
	{ID: "base-sepolia", Name: "Base Sepolia (Testnet)", Tokens: []Token{
		{Address: "0x036CbD53842c5426634e7929541eC2318f3dCF7e", Symbol: "USDC", Decimals: 6, TokenName: "USD Coin", TokenVersion: "2"},
	}},
	{ID: "ethereum-mainnet", Name: "Ethereum Mainnet", Tokens: []Token{
		{Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Symbol: "USDC", Decimals: 6, TokenName: "USD Coin", TokenVersion: "2"},
	}},
	{ID: "ethereum-sepolia", Name: "Ethereum Sepolia (Testnet)", Tokens: []Token{
		{Address: "0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238", Symbol: "USDC", Decimals: 6, TokenName: "USD Coin", TokenVersion: "2"},
	}},
	{ID: "solana-mainnet", Name: "Solana Mainnet", Tokens: []Token{
		{Address: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", Symbol: "USDC", Decimals: 6},
	}},
	{ID: "solana-devnet", Name: "Solana Devnet (Testnet)", Tokens: []Token{
		{Address: "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU", Symbol: "USDC", Decimals: 6},
	}},
}

type Registry struct {
	networks map[string]*Network
	byKey    map[string]Token
}

// Default returns a registry holding USDC on the supported networks plus
// extra.
func Default(extra ...Token) *Registry {
	r := New(defaults...)
	for _, t := range extra {
		r.Add(t)
	}
	return r
}

func New(networks ...Network) *Registry {
	r := &Registry{
		networks: make(map[string]*Network),
		byKey:    make(map[string]Token),
	}
	for _, n := range networks {
		if _, ok := r.networks[n.ID]; !ok {
			r.networks[n.ID] = &Network{ID: n.ID, Name: n.Name, Family: address.FamilyOf(n.ID)}
		}
		for _, t := range n.Tokens {
			t.Network = n.ID
			r.Add(t)
		}
	}
	return r
}

// Add registers t, replacing any token with the same network and address.
// Tokens with an address that is invalid for their network are ignored.
func (r *Registry) Add(t Token) bool {
	k, ok := tokenKey(t.Network, t.Address)
	if !ok {
		return false
	}

	n, ok := r.networks[t.Network]
	if !ok {
		n = &Network{ID: t.Network, Name: t.Network, Family: address.FamilyOf(t.Network)}
		r.networks[t.Network] = n
	}

	if _, exists := r.byKey[k]; exists {
		for i := range n.Tokens {
			if kk, _ := tokenKey(t.Network, n.Tokens[i].Address); kk == k {
				n.Tokens[i] = t
			}
		}
	} else {
		n.Tokens = append(n.Tokens, t)
	}
	r.byKey[k] = t

	return true
}

// Lookup finds the token with asset address on network.
func (r *Registry) Lookup(network, asset string) (Token, bool) {
	k, ok := tokenKey(network, asset)
	if !ok {
		return Token{}, false
	}
	t, ok := r.byKey[k]
	return t, ok
}

// Networks lists all networks sorted by id.
func (r *Registry) Networks() []Network {
	out := make([]Network, 0, len(r.networks))
	for _, n := range r.networks {
		cp := *n
		cp.Tokens = append([]Token(nil), n.Tokens...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func tokenKey(network, asset string) (string, bool) {
	norm, ok := address.Normalize(asset, network)
	if !ok {
		return "", false
	}
	return network + "|" + norm, true
}

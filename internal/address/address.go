// Package address validates and canonicalizes payer and recipient wallet
// addresses for the two supported chain families.
package address

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/ethereum/go-ethereum/common"
)

type Family string

const (
	FamilyEVM Family = "evm"
	FamilySVM Family = "svm"
)

var (
	evmRe    = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	base58Re = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)

	svmPrefixes = []string{"solana", "svm"}
)

// FamilyOf derives the chain family from a network identifier. Solana
// networks, including CAIP-2 "solana:<genesis>" ids, are SVM. Everything
// else is treated as EVM.
func FamilyOf(network string) Family {
	n := strings.ToLower(strings.TrimSpace(network))
	for _, p := range svmPrefixes {
		if strings.HasPrefix(n, p) {
			return FamilySVM
		}
	}
	return FamilyEVM
}

// Normalize returns the canonical form of address on network. ok is false
// when the address is not valid for the network's family, in which case no
// payer identity can be established from it.
func Normalize(address, network string) (string, bool) {
	switch FamilyOf(network) {
	case FamilySVM:
		return normalizeSVM(address)
	default:
		return normalizeEVM(address)
	}
}

// Equal reports whether a and b normalize to the same address on network.
func Equal(a, b, network string) bool {
	na, ok := Normalize(a, network)
	if !ok {
		return false
	}
	nb, ok := Normalize(b, network)
	return ok && na == nb
}

func normalizeEVM(address string) (string, bool) {
	address = strings.TrimSpace(address)
	if !evmRe.MatchString(address) || !common.IsHexAddress(address) {
		return "", false
	}
	return strings.ToLower(address), true
}

func normalizeSVM(address string) (string, bool) {
	address = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, address)

	if !base58Re.MatchString(address) {
		return "", false
	}
	return address, true
}

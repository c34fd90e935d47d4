// Package ident derives the engine's stable, content-addressed identifiers.
// On-chain programs get collision-free addressing for free from PDA seeds;
// this engine gets the same property by hashing a domain tag with the
// caller-supplied external identifier. Two calls with the same tag and
// external id always derive the same key, so records never need a pointer
// back to their parent — the parent's id is recomputed whenever it's needed.
package ident

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ID is a derived, hex-encoded identifier.
type ID string

const (
	tagMarket = "market"
	tagEscrow = "escrow"
	tagTicket = "ticket"
)

func derive(tag, external string) ID {
	h := sha256.New()
	h.Write([]byte(tag))
	h.Write([]byte{0})
	h.Write([]byte(external))
	return ID(hex.EncodeToString(h.Sum(nil)))
}

// Market derives a market's id from its external identifier.
func Market(externalID string) ID {
	return derive(tagMarket, externalID)
}

// Escrow derives a market's escrow id. Every market has exactly one escrow,
// so the escrow id is a pure function of the market id.
func Escrow(marketID ID) ID {
	return derive(tagEscrow, string(marketID))
}

// Ticket derives a stake ticket's id from its market id and the staking
// principal's client-chosen ticket index. The index makes ticket ids
// reproducible and lets a retried request land on the same id instead of
// minting a duplicate under a race.
func Ticket(marketID ID, principal string, clientTicketIndex uint64) ID {
	external := fmt.Sprintf("%s|%s|%d", marketID, principal, clientTicketIndex)
	return derive(tagTicket, external)
}

// String implements fmt.Stringer.
func (i ID) String() string {
	return string(i)
}

// opaqueIDLen is the hex-encoded length of a 32-byte opaque principal id,
// the non-EVM custody form.
const opaqueIDLen = 64

// ValidPrincipal reports whether s is an acceptable Authority/Owner value:
// either a 32-byte opaque id (64 hex characters, no 0x prefix) or an EVM
// address accepted by go-ethereum's hex-address parser. Market authorities
// and ticket owners are never validated against a live chain here — the
// engine has no chain connection — only the address shape is checked.
func ValidPrincipal(s string) bool {
	if len(s) == opaqueIDLen {
		if _, err := hex.DecodeString(s); err == nil {
			return true
		}
	}
	return common.IsHexAddress(s)
}

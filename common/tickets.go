package common

import (
	"github.com/gagliardetto/solana-go"
)

// BidderMetadata is the per-bidder record kept by the auction program
type BidderMetadata struct {
	Address solana.PublicKey
	Bidder  solana.PublicKey
	Auction solana.PublicKey
	// LastBid is the amount of the bidder's most recent bid
	LastBid          uint64
	LastBidTimestamp int64
	// Cancelled means the last bid was cancelled, which implies all prior
	// bids were too
	Cancelled bool
}

// BidderPot is the escrow account holding a bidder's locked funds
type BidderPot struct {
	Address solana.PublicKey
	// Pot is the token account the funds sit in
	Pot     solana.PublicKey
	Bidder  solana.PublicKey
	Auction solana.PublicKey
	Emptied bool
}

// BidRedemptionTicket is the ledger-resident record of which prize slots a
// bidder has already redeemed. It is created lazily by the first claim, so
// a nil ticket means nothing has been redeemed yet.
type BidRedemptionTicket struct {
	Address     solana.PublicKey
	WinnerIndex *uint64
	// Bitmask has one bit per slot order, most significant bit first
	// within each byte
	Bitmask []byte
}

// Redeemed reports whether the slot with the given order has been claimed
func (t *BidRedemptionTicket) Redeemed(order uint64) bool {
	if t == nil {
		return false
	}
	idx := order / 8
	if idx >= uint64(len(t.Bitmask)) {
		return false
	}
	mask := byte(1) << (7 - order%8)
	return t.Bitmask[idx]&mask != 0
}

// PrizeTrackingTicket exists once per (auction manager, asset) pair and
// anchors sequential edition numbering. It may not exist yet when the
// first claim for an asset happens.
type PrizeTrackingTicket struct {
	Address  solana.PublicKey
	Metadata solana.PublicKey
	// SupplySnapshot is the master edition supply at validation time, the
	// base for edition numbering
	SupplySnapshot      uint64
	ExpectedRedemptions uint64
	Redemptions         uint64
}

// MasterEdition is the printable parent asset of an edition prize
type MasterEdition struct {
	Address   solana.PublicKey
	Supply    uint64
	MaxSupply *uint64
	// PrintingMint is set only on the legacy format, where editions are
	// minted against a pre-set-aside pool of printing tokens
	PrintingMint solana.PublicKey
	// OneTimePrintingAuthorizationMint is the legacy one-time
	// authorization mint
	OneTimePrintingAuthorizationMint solana.PublicKey
}

// Legacy reports whether this master edition uses the deprecated
// printing-token pool format
func (m *MasterEdition) Legacy() bool {
	return m != nil && !m.PrintingMint.IsZero()
}

// EditionMarkerSize is the number of editions tracked per edition marker
// account
const EditionMarkerSize = 248

// EditionMarker is one 248-edition page of the taken-editions bitmap
type EditionMarker struct {
	Ledger [31]byte
}

// Taken reports whether the given edition number is already minted
func (m *EditionMarker) Taken(edition uint64) bool {
	offset := edition % EditionMarkerSize
	idx := offset / 8
	mask := byte(1) << (7 - offset%8)
	return m.Ledger[idx]&mask != 0
}

// Take marks the given edition as minted. Used by tests and simulations;
// on the real ledger the program owns this bitmap.
func (m *EditionMarker) Take(edition uint64) {
	offset := edition % EditionMarkerSize
	idx := offset / 8
	m.Ledger[idx] |= byte(1) << (7 - offset%8)
}

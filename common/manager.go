package common

import (
	"github.com/gagliardetto/solana-go"
)

// SettlementMethod is the mechanism by which a prize slot is delivered.
// It is a closed set: planner dispatch must handle every value and error
// on anything else.
type SettlementMethod uint8

const (
	// TokenOnlyTransfer moves the single token out of the store, metadata
	// rights stay with the creator
	TokenOnlyTransfer SettlementMethod = iota
	// FullRightsTransfer moves the token and the metadata update authority
	FullRightsTransfer
	// PrintEditionLegacy redeems an authorization token from a pre-set-aside
	// pool, then mints one numbered edition per unit
	PrintEditionLegacy
	// PrintEdition mints numbered editions directly off the master edition
	PrintEdition
	// ParticipationPrint is the PrintEdition flow keyed off the
	// participation slot, charged at the participation price
	ParticipationPrint
)

func (m SettlementMethod) String() string {
	switch m {
	case TokenOnlyTransfer:
		return "TokenOnlyTransfer"
	case FullRightsTransfer:
		return "FullRightsTransfer"
	case PrintEditionLegacy:
		return "PrintEditionLegacy"
	case PrintEdition:
		return "PrintEdition"
	case ParticipationPrint:
		return "ParticipationPrint"
	}
	return "Unknown"
}

// ParticipationConstraint controls whether a class of bidders may claim the
// participation prize
type ParticipationConstraint uint8

const (
	// NoParticipationPrize excludes the class entirely
	NoParticipationPrize ParticipationConstraint = iota
	// ParticipationPrizeGiven allows the class to claim
	ParticipationPrizeGiven
)

// ParticipationConfig describes the always-available consolation prize.
// FixedPrice nil means the claimant pays their own last bid amount, which
// lets a losing bidder's forfeited bid double as payment.
type ParticipationConfig struct {
	WinnerConstraint    ParticipationConstraint
	NonWinnerConstraint ParticipationConstraint
	FixedPrice          *uint64
}

// PrizeSlot is one unit of prize assignment within a winning rank (or the
// participation slot). Claimed state is not duplicated here; it lives on
// the ledger in the BidRedemptionTicket keyed by Order.
type PrizeSlot struct {
	// Box is the safety deposit box account holding the slot inside the vault
	Box solana.PublicKey
	// Store is the token account the prize sits in
	Store     solana.PublicKey
	TokenMint solana.PublicKey
	Metadata  solana.PublicKey
	// MasterEdition is set for edition-printing slots, nil otherwise
	MasterEdition *MasterEdition
	Method        SettlementMethod
	// Order is the slot's index, unique within the auction; it drives the
	// redemption bitmask and the claimed query
	Order uint64
	// Amount is the number of units each winner of this slot receives
	Amount uint64
}

// AuctionManager owns the vault and the prize assignment catalog of one
// auction.
type AuctionManager struct {
	Address   solana.PublicKey
	Auction   solana.PublicKey
	Vault     solana.PublicKey
	Authority solana.PublicKey
	// AcceptPayment is the token account collecting winning bids
	AcceptPayment solana.PublicKey
	// VaultFractionMint is required by the redemption instructions
	VaultFractionMint solana.PublicKey
	// WinningConfigs holds one ordered slot list per winning rank
	WinningConfigs [][]PrizeSlot
	// Participation is nil when the auction has no participation prize
	Participation     *ParticipationConfig
	ParticipationSlot *PrizeSlot
}

// NumWinners returns the number of configured winning ranks
func (m *AuctionManager) NumWinners() uint64 {
	return uint64(len(m.WinningConfigs))
}

// SlotsForRank returns the prize slots assigned to a winning rank
func (m *AuctionManager) SlotsForRank(rank uint64) []PrizeSlot {
	if rank >= uint64(len(m.WinningConfigs)) {
		return nil
	}
	return m.WinningConfigs[rank]
}

package settlement

import (
	"github.com/gagliardetto/solana-go"
)

// NoRank marks a batch that does not belong to a winning rank
// (participation and cancellation batches)
const NoRank = ^uint64(0)

// BatchKind labels what a batch settles, for logs and error context
type BatchKind uint8

const (
	// BatchRedeemPrize settles a direct token or full-rights transfer
	BatchRedeemPrize BatchKind = iota
	// BatchPrintEdition mints one numbered edition unit
	BatchPrintEdition
	// BatchMintSetup creates the fresh mint and destination account a
	// following print batch mints into
	BatchMintSetup
	// BatchParticipation settles a participation print
	BatchParticipation
	// BatchPrimarySale flips the primary-sale flag of a minted edition
	BatchPrimarySale
	// BatchClaimBid moves a winner's locked bid into accept-payment
	BatchClaimBid
	// BatchCancelBid refunds a non-winning bid
	BatchCancelBid
	// BatchWithdrawMaster returns a parent asset to the auctioneer
	BatchWithdrawMaster
	// BatchLegacyAuthorization redeems the legacy printing authorization
	// token
	BatchLegacyAuthorization
)

func (k BatchKind) String() string {
	switch k {
	case BatchRedeemPrize:
		return "RedeemPrize"
	case BatchPrintEdition:
		return "PrintEdition"
	case BatchMintSetup:
		return "MintSetup"
	case BatchParticipation:
		return "Participation"
	case BatchPrimarySale:
		return "PrimarySale"
	case BatchClaimBid:
		return "ClaimBid"
	case BatchCancelBid:
		return "CancelBid"
	case BatchWithdrawMaster:
		return "WithdrawMaster"
	case BatchLegacyAuthorization:
		return "LegacyAuthorization"
	}
	return "Unknown"
}

// Batch is one atomic unit of on-ledger work. Batches of one planning run
// must be submitted strictly in the order produced: edition numbering
// depends on it, and some batches depend on a prior batch's effect.
type Batch struct {
	Kind BatchKind
	// Rank of the claimant this batch settles for, NoRank outside the
	// winner path
	Rank uint64
	// Order of the prize slot
	Order uint64
	// Unit index within the slot, for multi-unit edition slots
	Unit         uint64
	Instructions []solana.Instruction
	// Signers are the ephemeral keys (fresh mints, transient accounts)
	// this batch requires besides the fee payer
	Signers []solana.PrivateKey
}

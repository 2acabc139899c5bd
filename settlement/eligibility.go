package settlement

import (
	"github.com/gagliardetto/solana-go"

	"github.com/metaprize/settler-node/common"
)

// RankOf returns the winning rank of bidder within the auction's final bid
// ordering. Pure; ranks can shift until the auction ends, so callers must
// re-evaluate on every run.
func RankOf(a *common.Auction, bidder solana.PublicKey) (uint64, bool) {
	return a.BidState.WinnerRank(bidder)
}

// ParticipationEligible decides whether a party may claim the
// participation prize. rank is nil for a non-winner. alreadyRedeemed must
// come from a fresh redemption ticket read.
func ParticipationEligible(rank *uint64, cfg *common.ParticipationConfig,
	alreadyRedeemed bool) bool {
	if cfg == nil || alreadyRedeemed {
		return false
	}
	if rank == nil {
		return cfg.NonWinnerConstraint != common.NoParticipationPrize
	}
	return cfg.WinnerConstraint != common.NoParticipationPrize
}

package ledger

import (
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/hermeznetwork/tracerr"

	"github.com/metaprize/settler-node/common"
)

const (
	auctionSeed  = "auction"
	extendedSeed = "extended"
	metadataSeed = "metadata"
	metaplexSeed = "metaplex"
	editionSeed  = "edition"
)

// AuctionPDA derives the auction account for a vault resource
func AuctionPDA(p Programs, resource solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{
		[]byte(auctionSeed),
		p.Auction.Bytes(),
		resource.Bytes(),
	}, p.Auction)
	return addr, tracerr.Wrap(err)
}

// AuctionExtendedPDA derives the auction's extended-data account
func AuctionExtendedPDA(p Programs, resource solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{
		[]byte(auctionSeed),
		p.Auction.Bytes(),
		resource.Bytes(),
		[]byte(extendedSeed),
	}, p.Auction)
	return addr, tracerr.Wrap(err)
}

// BidderPotPDA derives a bidder's escrow pot account
func BidderPotPDA(p Programs, auction, bidder solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{
		[]byte(auctionSeed),
		p.Auction.Bytes(),
		auction.Bytes(),
		bidder.Bytes(),
	}, p.Auction)
	return addr, tracerr.Wrap(err)
}

// BidderMetadataPDA derives a bidder's metadata account
func BidderMetadataPDA(p Programs, auction, bidder solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{
		[]byte(auctionSeed),
		p.Auction.Bytes(),
		auction.Bytes(),
		bidder.Bytes(),
		[]byte(metadataSeed),
	}, p.Auction)
	return addr, tracerr.Wrap(err)
}

// BidRedemptionPDA derives the redemption ticket for one bidder's claims
func BidRedemptionPDA(p Programs, auction, bidderMetadata solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{
		[]byte(metaplexSeed),
		p.Settlement.Bytes(),
		auction.Bytes(),
		bidderMetadata.Bytes(),
	}, p.Settlement)
	return addr, tracerr.Wrap(err)
}

// PrizeTrackingTicketPDA derives the per-(manager, asset) edition tracker
func PrizeTrackingTicketPDA(p Programs, auctionManager, mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{
		[]byte(metaplexSeed),
		p.Settlement.Bytes(),
		auctionManager.Bytes(),
		mint.Bytes(),
	}, p.Settlement)
	return addr, tracerr.Wrap(err)
}

// MetadataPDA derives the token metadata account of a mint
func MetadataPDA(p Programs, mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{
		[]byte(metadataSeed),
		p.Metadata.Bytes(),
		mint.Bytes(),
	}, p.Metadata)
	return addr, tracerr.Wrap(err)
}

// EditionPDA derives the edition account of a mint
func EditionPDA(p Programs, mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{
		[]byte(metadataSeed),
		p.Metadata.Bytes(),
		mint.Bytes(),
		[]byte(editionSeed),
	}, p.Metadata)
	return addr, tracerr.Wrap(err)
}

// EditionMarkPDA derives the edition-marker page covering the given
// edition number. Each page tracks common.EditionMarkerSize editions.
func EditionMarkPDA(p Programs, masterMint solana.PublicKey, edition uint64) (solana.PublicKey, error) {
	page := strconv.FormatUint(edition/common.EditionMarkerSize, 10)
	addr, _, err := solana.FindProgramAddress([][]byte{
		[]byte(metadataSeed),
		p.Metadata.Bytes(),
		masterMint.Bytes(),
		[]byte(editionSeed),
		[]byte(page),
	}, p.Metadata)
	return addr, tracerr.Wrap(err)
}

// AssociatedTokenPDA derives the associated token account of a wallet for
// a mint
func AssociatedTokenPDA(p Programs, wallet, mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{
		wallet.Bytes(),
		p.Token.Bytes(),
		mint.Bytes(),
	}, p.AssociatedToken)
	return addr, tracerr.Wrap(err)
}

package ledger

import (
	"bytes"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/hermeznetwork/tracerr"
)

// Instruction tags of the settlement (auction manager) program
const (
	tagRedeemBid                    = 2
	tagRedeemFullRightsTransferBid  = 3
	tagRedeemParticipationBidLegacy = 4
	tagClaimBid                     = 6
	tagRedeemUnusedAsAuctioneer     = 12
	tagRedeemPrintEditionBid        = 14
	tagWithdrawMasterEdition        = 15
	tagRedeemParticipationBid       = 19
)

// Instruction tags of the auction program
const (
	tagAuctionCancelBid = 0
)

// Instruction tags of the token metadata program
const (
	tagMetaUpdatePrimarySaleHappened = 4
	tagMetaMintNewEditionFromMaster  = 11
)

// Programs holds the ids of the on-ledger programs this client drives.
// Defaults point at the canonical deployment; all of them are
// configurable because test validators redeploy under fresh ids.
type Programs struct {
	Auction         solana.PublicKey
	Settlement      solana.PublicKey
	Vault           solana.PublicKey
	Metadata        solana.PublicKey
	Token           solana.PublicKey
	AssociatedToken solana.PublicKey
	System          solana.PublicKey
}

// DefaultPrograms returns the canonical program ids
func DefaultPrograms() Programs {
	return Programs{
		Auction:         solana.MustPublicKeyFromBase58("auctxRXPeJoc4817jDhf4HbjnhEcr1cCXenosMhK5R8"),
		Settlement:      solana.MustPublicKeyFromBase58("p1exdMJcjVao65QdewkaZRUnU6VPSXhus9n2GzWfh98"),
		Vault:           solana.MustPublicKeyFromBase58("vau1zxA2LbssAUEF7Gpw91zMM1LvXrvpzJtmZ58rPsn"),
		Metadata:        solana.MustPublicKeyFromBase58("metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s"),
		Token:           solana.TokenProgramID,
		AssociatedToken: solana.SPLAssociatedTokenAccountProgramID,
		System:          solana.SystemProgramID,
	}
}

// payload borsh-encodes an instruction payload: one tag byte then the args
type payload struct {
	buf bytes.Buffer
	enc *bin.Encoder
	err error
}

func newPayload(tag byte) *payload {
	p := &payload{}
	p.enc = bin.NewBorshEncoder(&p.buf)
	p.err = p.enc.WriteByte(tag)
	return p
}

func (p *payload) u64(v uint64) *payload {
	if p.err == nil {
		p.err = p.enc.WriteUint64(v, bin.LE)
	}
	return p
}

func (p *payload) pubkey(k solana.PublicKey) *payload {
	if p.err == nil {
		p.err = p.enc.WriteBytes(k.Bytes(), false)
	}
	return p
}

// optU64 writes a borsh Option<u64>
func (p *payload) optU64(v *uint64) *payload {
	if p.err != nil {
		return p
	}
	if v == nil {
		p.err = p.enc.WriteByte(0)
		return p
	}
	if p.err = p.enc.WriteByte(1); p.err == nil {
		p.err = p.enc.WriteUint64(*v, bin.LE)
	}
	return p
}

func (p *payload) done() ([]byte, error) {
	if p.err != nil {
		return nil, tracerr.Wrap(p.err)
	}
	return p.buf.Bytes(), nil
}

// RedeemBidAccounts are the accounts of the token-only redemption
type RedeemBidAccounts struct {
	AuctionManager    solana.PublicKey
	Store             solana.PublicKey
	Destination       solana.PublicKey
	BidRedemption     solana.PublicKey
	SafetyDepositBox  solana.PublicKey
	Vault             solana.PublicKey
	VaultFractionMint solana.PublicKey
	Auction           solana.PublicKey
	BidderMetadata    solana.PublicKey
	Bidder            solana.PublicKey
	Payer             solana.PublicKey
}

func redeemAccountMetas(p Programs, a RedeemBidAccounts) solana.AccountMetaSlice {
	return solana.AccountMetaSlice{
		solana.Meta(a.AuctionManager).WRITE(),
		solana.Meta(a.Store).WRITE(),
		solana.Meta(a.Destination).WRITE(),
		solana.Meta(a.BidRedemption).WRITE(),
		solana.Meta(a.SafetyDepositBox).WRITE(),
		solana.Meta(a.Vault).WRITE(),
		solana.Meta(a.VaultFractionMint).WRITE(),
		solana.Meta(a.Auction),
		solana.Meta(a.BidderMetadata),
		solana.Meta(a.Bidder),
		solana.Meta(a.Payer).SIGNER(),
		solana.Meta(p.Token),
		solana.Meta(p.Vault),
		solana.Meta(p.Metadata),
		solana.Meta(p.System),
		solana.Meta(solana.SysVarRentPubkey),
	}
}

// RedeemBid builds the TokenOnlyTransfer redemption instruction
func RedeemBid(p Programs, a RedeemBidAccounts) (solana.Instruction, error) {
	data, err := newPayload(tagRedeemBid).done()
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	return solana.NewInstruction(p.Settlement, redeemAccountMetas(p, a), data), nil
}

// RedeemFullRightsTransferBid builds the FullRightsTransfer redemption
// instruction. Same account layout as RedeemBid plus the metadata account
// and the new update authority.
func RedeemFullRightsTransferBid(p Programs, a RedeemBidAccounts,
	metadata, newAuthority solana.PublicKey) (solana.Instruction, error) {
	data, err := newPayload(tagRedeemFullRightsTransferBid).done()
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	metas := redeemAccountMetas(p, a)
	metas = append(metas,
		solana.Meta(metadata).WRITE(),
		solana.Meta(newAuthority),
	)
	return solana.NewInstruction(p.Settlement, metas, data), nil
}

// ClaimBid builds the instruction that moves a winner's locked bid into
// the auction's accept-payment account
func ClaimBid(p Programs, acceptPayment, bidder, bidderPot, vault,
	tokenMint solana.PublicKey) (solana.Instruction, error) {
	data, err := newPayload(tagClaimBid).done()
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	auction, err := AuctionPDA(p, vault)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	extended, err := AuctionExtendedPDA(p, vault)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	metas := solana.AccountMetaSlice{
		solana.Meta(acceptPayment).WRITE(),
		solana.Meta(bidderPot).WRITE(),
		solana.Meta(auction).WRITE(),
		solana.Meta(extended).WRITE(),
		solana.Meta(bidder),
		solana.Meta(tokenMint),
		solana.Meta(vault),
		solana.Meta(p.Auction),
		solana.Meta(solana.SysVarClockPubkey),
		solana.Meta(p.Token),
	}
	return solana.NewInstruction(p.Settlement, metas, data), nil
}

// PrintEditionAccounts are the accounts shared by the edition-printing
// redemption instructions
type PrintEditionAccounts struct {
	Vault            solana.PublicKey
	Store            solana.PublicKey
	Destination      solana.PublicKey
	SafetyDepositBox solana.PublicKey
	Receiver         solana.PublicKey
	Payer            solana.PublicKey
	Metadata         solana.PublicKey
	MasterEdition    solana.PublicKey
	MasterMint       solana.PublicKey
	NewMint          solana.PublicKey
	AuctionManager   solana.PublicKey
	Auction          solana.PublicKey
	BidRedemption    solana.PublicKey
}

func printEditionMetas(p Programs, a PrintEditionAccounts,
	editionMarkPDA solana.PublicKey) solana.AccountMetaSlice {
	return solana.AccountMetaSlice{
		solana.Meta(a.AuctionManager).WRITE(),
		solana.Meta(a.Store).WRITE(),
		solana.Meta(a.Destination).WRITE(),
		solana.Meta(a.BidRedemption).WRITE(),
		solana.Meta(a.SafetyDepositBox).WRITE(),
		solana.Meta(a.Vault).WRITE(),
		solana.Meta(a.Auction),
		solana.Meta(a.Receiver),
		solana.Meta(a.Payer).SIGNER(),
		solana.Meta(a.Metadata).WRITE(),
		solana.Meta(a.MasterEdition).WRITE(),
		solana.Meta(a.MasterMint),
		solana.Meta(a.NewMint).WRITE(),
		solana.Meta(editionMarkPDA).WRITE(),
		solana.Meta(p.Token),
		solana.Meta(p.Vault),
		solana.Meta(p.Metadata),
		solana.Meta(p.System),
		solana.Meta(solana.SysVarRentPubkey),
	}
}

// RedeemPrintEditionBid builds the instruction minting one numbered
// edition for a winning rank. editionOffset is the offset from the supply
// snapshot; winIndex is the claimant's winning rank.
func RedeemPrintEditionBid(p Programs, a PrintEditionAccounts,
	edition, editionOffset, winIndex uint64) (solana.Instruction, error) {
	data, err := newPayload(tagRedeemPrintEditionBid).
		u64(editionOffset).
		u64(winIndex).
		done()
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	mark, err := EditionMarkPDA(p, a.MasterMint, edition)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	tracking, err := PrizeTrackingTicketPDA(p, a.AuctionManager, a.MasterMint)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	metas := printEditionMetas(p, a, mark)
	metas = append(metas, solana.Meta(tracking).WRITE())
	return solana.NewInstruction(p.Settlement, metas, data), nil
}

// RedeemParticipationBid builds the participation-print redemption.
// payingAccount is debited price via transferAuthority; winIndex is nil
// for a non-winning claimant.
func RedeemParticipationBid(p Programs, a PrintEditionAccounts,
	transferAuthority, acceptPayment, payingAccount solana.PublicKey,
	edition uint64, winIndex *uint64) (solana.Instruction, error) {
	data, err := newPayload(tagRedeemParticipationBid).
		optU64(winIndex).
		done()
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	mark, err := EditionMarkPDA(p, a.MasterMint, edition)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	metas := printEditionMetas(p, a, mark)
	metas = append(metas,
		solana.Meta(transferAuthority).SIGNER(),
		solana.Meta(acceptPayment).WRITE(),
		solana.Meta(payingAccount).WRITE(),
	)
	return solana.NewInstruction(p.Settlement, metas, data), nil
}

// RedeemParticipationBidLegacy builds the deprecated participation
// redemption that pays the bid and moves one printing token out of the
// pre-populated store; the holder mints the edition from it separately
func RedeemParticipationBidLegacy(p Programs, a RedeemBidAccounts,
	transferAuthority, acceptPayment,
	payingAccount solana.PublicKey) (solana.Instruction, error) {
	data, err := newPayload(tagRedeemParticipationBidLegacy).done()
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	metas := redeemAccountMetas(p, a)
	metas = append(metas,
		solana.Meta(transferAuthority).SIGNER(),
		solana.Meta(acceptPayment).WRITE(),
		solana.Meta(payingAccount).WRITE(),
	)
	return solana.NewInstruction(p.Settlement, metas, data), nil
}

// RedeemUnusedAsAuctioneer wraps any redemption instruction's accounts for
// the authority sweep path, which redeems a slot nobody won back to the
// auctioneer. winningConfigItemIndex selects the slot.
func RedeemUnusedAsAuctioneer(p Programs, a RedeemBidAccounts,
	winningConfigItemIndex uint64) (solana.Instruction, error) {
	data, err := newPayload(tagRedeemUnusedAsAuctioneer).
		u64(winningConfigItemIndex).
		done()
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	return solana.NewInstruction(p.Settlement, redeemAccountMetas(p, a), data), nil
}

// WithdrawMasterEdition builds the instruction returning a printable
// parent asset to the auctioneer once every redemption against it is done
func WithdrawMasterEdition(p Programs, auctionManager, store, destination,
	safetyDepositBox, vault, fractionMint, auction solana.PublicKey) (solana.Instruction, error) {
	data, err := newPayload(tagWithdrawMasterEdition).done()
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	metas := solana.AccountMetaSlice{
		solana.Meta(auctionManager).WRITE(),
		solana.Meta(store).WRITE(),
		solana.Meta(destination).WRITE(),
		solana.Meta(safetyDepositBox).WRITE(),
		solana.Meta(vault).WRITE(),
		solana.Meta(fractionMint).WRITE(),
		solana.Meta(auction),
		solana.Meta(p.Token),
		solana.Meta(p.Vault),
		solana.Meta(p.System),
		solana.Meta(solana.SysVarRentPubkey),
	}
	return solana.NewInstruction(p.Settlement, metas, data), nil
}

// CancelBid builds the auction program instruction returning a locked bid
// to its bidder. resource is the vault the auction PDA is derived from.
func CancelBid(p Programs, bidder, bidderToken, bidderPot, bidderPotToken,
	bidderMeta, auction, auctionExtended, tokenMint,
	resource solana.PublicKey) (solana.Instruction, error) {
	data, err := newPayload(tagAuctionCancelBid).
		pubkey(resource).
		done()
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	metas := solana.AccountMetaSlice{
		solana.Meta(bidder).SIGNER(),
		solana.Meta(bidderToken).WRITE(),
		solana.Meta(bidderPot).WRITE(),
		solana.Meta(bidderPotToken).WRITE(),
		solana.Meta(bidderMeta).WRITE(),
		solana.Meta(auction).WRITE(),
		solana.Meta(auctionExtended).WRITE(),
		solana.Meta(tokenMint).WRITE(),
		solana.Meta(solana.SysVarClockPubkey),
		solana.Meta(solana.SysVarRentPubkey),
		solana.Meta(p.System),
		solana.Meta(p.Token),
	}
	return solana.NewInstruction(p.Auction, metas, data), nil
}

// UpdatePrimarySaleHappened flips the metadata primary-sale flag after the
// first transfer of an asset
func UpdatePrimarySaleHappened(p Programs, metadata, owner,
	tokenAccount solana.PublicKey) (solana.Instruction, error) {
	data, err := newPayload(tagMetaUpdatePrimarySaleHappened).done()
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	metas := solana.AccountMetaSlice{
		solana.Meta(metadata).WRITE(),
		solana.Meta(owner).SIGNER(),
		solana.Meta(tokenAccount),
	}
	return solana.NewInstruction(p.Metadata, metas, data), nil
}

// MintNewEditionFromMasterViaToken builds the legacy instruction burning
// one printing token and minting a numbered edition
func MintNewEditionFromMasterViaToken(p Programs, newMint, newMetadata,
	newEdition, masterEdition, masterMetadata, masterMint, printingMint,
	tokenAccount, burnAuthority, updateAuthority,
	payer solana.PublicKey) (solana.Instruction, error) {
	data, err := newPayload(tagMetaMintNewEditionFromMaster).done()
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	metas := solana.AccountMetaSlice{
		solana.Meta(newMetadata).WRITE(),
		solana.Meta(newEdition).WRITE(),
		solana.Meta(masterEdition).WRITE(),
		solana.Meta(newMint).WRITE(),
		solana.Meta(printingMint).WRITE(),
		solana.Meta(tokenAccount).WRITE(),
		solana.Meta(burnAuthority).SIGNER(),
		solana.Meta(payer).SIGNER(),
		solana.Meta(updateAuthority),
		solana.Meta(masterMetadata),
		solana.Meta(masterMint),
		solana.Meta(p.Token),
		solana.Meta(p.System),
		solana.Meta(solana.SysVarRentPubkey),
	}
	return solana.NewInstruction(p.Metadata, metas, data), nil
}

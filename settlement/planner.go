package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/hermeznetwork/tracerr"

	"github.com/metaprize/settler-node/common"
	"github.com/metaprize/settler-node/ledger"
	"github.com/metaprize/settler-node/log"
)

// Planner turns an auction snapshot into the ordered instruction batches
// that settle the connected party's outstanding claims. Planning is pure
// apart from ledger reads (claimed flags, store balances, edition marks),
// which are re-done on every run so a restart recomputes exactly the
// remaining work.
type Planner struct {
	reader    ledger.Reader
	programs  ledger.Programs
	allocator *EditionAllocator
}

// NewPlanner creates a planner reading through reader
func NewPlanner(reader ledger.Reader, programs ledger.Programs) *Planner {
	return &Planner{
		reader:    reader,
		programs:  programs,
		allocator: NewEditionAllocator(reader, programs),
	}
}

// PlanRedemption computes the ordered batches settling every prize the
// identity has coming: one conceptual unit of work per owned prize slot,
// the winning-bid payment claim, and the participation prize when
// eligible. Already-claimed slots and drained stores are skipped, never
// errors; re-running after a partial submission plans only what remains.
func (p *Planner) PlanRedemption(ctx context.Context, snap *common.AuctionSnapshot,
	identity solana.PublicKey) ([]Batch, error) {
	var batches []Batch

	rank, won := RankOf(&snap.Auction, identity)
	won = won && snap.MyBidderMetadata != nil && snap.MyBidderPot != nil

	if won {
		for i := range snap.Manager.SlotsForRank(rank) {
			slot := &snap.Manager.WinningConfigs[rank][i]
			slotBatches, err := p.planSlot(ctx, snap, snap.MyBidderMetadata,
				identity, identity, rank, slot)
			if err != nil {
				return nil, tracerr.Wrap(err)
			}
			batches = append(batches, slotBatches...)
		}
		if !snap.MyBidderPot.Emptied {
			claim, err := p.planClaimBid(snap)
			if err != nil {
				return nil, tracerr.Wrap(err)
			}
			batches = append(batches, *claim)
		}
	}

	if snap.MyBidderMetadata != nil {
		var rankPtr *uint64
		if won {
			r := rank
			rankPtr = &r
		}
		part, err := p.planParticipationFor(ctx, snap, snap.MyBidderMetadata,
			identity, identity, rankPtr)
		if err != nil {
			return nil, tracerr.Wrap(err)
		}
		batches = append(batches, part...)
	}

	return batches, nil
}

// planSlot dispatches one prize slot by settlement method. The method set
// is closed: anything unknown is a hard error, not a silent skip.
func (p *Planner) planSlot(ctx context.Context, snap *common.AuctionSnapshot,
	bidderMeta *common.BidderMetadata, claimant, payer solana.PublicKey,
	rank uint64, slot *common.PrizeSlot) ([]Batch, error) {
	switch slot.Method {
	case common.TokenOnlyTransfer, common.FullRightsTransfer:
		b, err := p.planDirectTransfer(ctx, snap, bidderMeta, claimant, payer, rank, slot)
		if err != nil || b == nil {
			return nil, tracerr.Wrap(err)
		}
		return []Batch{*b}, nil
	case common.PrintEdition:
		return p.planPrintEditions(ctx, snap, bidderMeta, claimant, payer, rank, slot)
	case common.PrintEditionLegacy:
		return p.planLegacyEditions(ctx, snap, bidderMeta, claimant, rank, slot)
	case common.ParticipationPrint:
		return nil, tracerr.Wrap(fmt.Errorf(
			"participation slot (order %d) cannot sit inside a winning rank", slot.Order))
	default:
		return nil, tracerr.Wrap(fmt.Errorf("unknown settlement method %d", slot.Method))
	}
}

// redemptionTicket re-reads the claimant's redemption ticket. A missing
// account means nothing has been claimed yet.
func (p *Planner) redemptionTicket(ctx context.Context, auction,
	bidderMeta solana.PublicKey) (*common.BidRedemptionTicket, error) {
	addr, err := ledger.BidRedemptionPDA(p.programs, auction, bidderMeta)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	data, err := p.reader.ReadAccount(ctx, addr)
	if err != nil {
		if errors.Is(tracerr.Unwrap(err), common.ErrAccountNotFound) {
			return nil, nil
		}
		return nil, tracerr.Wrap(err)
	}
	ticket, err := ledger.DecodeBidRedemptionTicket(addr, data)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	return ticket, nil
}

// storeEmpty reports whether a slot's backing store is drained. A missing
// store account counts as drained.
func (p *Planner) storeEmpty(ctx context.Context, slot *common.PrizeSlot) (bool, error) {
	bal, err := p.reader.TokenBalance(ctx, slot.Store)
	if err != nil {
		if errors.Is(tracerr.Unwrap(err), common.ErrAccountNotFound) {
			return true, nil
		}
		return false, tracerr.Wrap(err)
	}
	return bal == 0, nil
}

// ensureTokenAccount returns wallet's associated account for mint and, if
// it does not exist yet, the instruction creating it
func (p *Planner) ensureTokenAccount(ctx context.Context, payer, wallet,
	mint solana.PublicKey) (solana.PublicKey, solana.Instruction, error) {
	ata, err := ledger.AssociatedTokenPDA(p.programs, wallet, mint)
	if err != nil {
		return solana.PublicKey{}, nil, tracerr.Wrap(err)
	}
	if _, err := p.reader.ReadAccount(ctx, ata); err != nil {
		if !errors.Is(tracerr.Unwrap(err), common.ErrAccountNotFound) {
			return solana.PublicKey{}, nil, tracerr.Wrap(err)
		}
		create, err := ledger.CreateAssociatedTokenAccount(p.programs, payer, wallet, mint)
		if err != nil {
			return solana.PublicKey{}, nil, tracerr.Wrap(err)
		}
		return ata, create, nil
	}
	return ata, nil, nil
}

// planDirectTransfer builds the single batch settling a token-only or
// full-rights slot: ensure destination account, redeem, mark primary
// sale. Returns nil when the slot is already claimed or drained.
func (p *Planner) planDirectTransfer(ctx context.Context, snap *common.AuctionSnapshot,
	bidderMeta *common.BidderMetadata, claimant, payer solana.PublicKey,
	rank uint64, slot *common.PrizeSlot) (*Batch, error) {
	ticket, err := p.redemptionTicket(ctx, snap.Auction.Address, bidderMeta.Address)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	if ticket.Redeemed(slot.Order) {
		log.Debugw("Planner slot already claimed", "rank", rank, "order", slot.Order)
		return nil, nil
	}
	empty, err := p.storeEmpty(ctx, slot)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	if empty {
		log.Warnw("Planner skipping drained store", "rank", rank,
			"err", &common.ResourceExhaustedError{Order: slot.Order, Store: slot.Store})
		return nil, nil
	}

	var instrs []solana.Instruction
	dest, create, err := p.ensureTokenAccount(ctx, payer, claimant, slot.TokenMint)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	if create != nil {
		instrs = append(instrs, create)
	}

	bidRedemption, err := ledger.BidRedemptionPDA(p.programs,
		snap.Auction.Address, bidderMeta.Address)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	accounts := ledger.RedeemBidAccounts{
		AuctionManager:    snap.Manager.Address,
		Store:             slot.Store,
		Destination:       dest,
		BidRedemption:     bidRedemption,
		SafetyDepositBox:  slot.Box,
		Vault:             snap.Manager.Vault,
		VaultFractionMint: snap.Manager.VaultFractionMint,
		Auction:           snap.Auction.Address,
		BidderMetadata:    bidderMeta.Address,
		Bidder:            bidderMeta.Bidder,
		Payer:             payer,
	}

	var redeem solana.Instruction
	if slot.Method == common.FullRightsTransfer {
		redeem, err = ledger.RedeemFullRightsTransferBid(p.programs, accounts,
			slot.Metadata, claimant)
	} else {
		redeem, err = ledger.RedeemBid(p.programs, accounts)
	}
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	instrs = append(instrs, redeem)

	primary, err := ledger.UpdatePrimarySaleHappened(p.programs, slot.Metadata,
		claimant, dest)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	instrs = append(instrs, primary)

	return &Batch{
		Kind:         BatchRedeemPrize,
		Rank:         rank,
		Order:        slot.Order,
		Instructions: instrs,
	}, nil
}

// planPrintEditions builds one independently payable batch per allotted
// unit of a print-edition slot. Each batch creates a fresh zero-decimal
// mint, the receiver's destination account, and mints the numbered
// edition computed by the allocator.
func (p *Planner) planPrintEditions(ctx context.Context, snap *common.AuctionSnapshot,
	bidderMeta *common.BidderMetadata, receiver, payer solana.PublicKey,
	rank uint64, slot *common.PrizeSlot) ([]Batch, error) {
	if slot.MasterEdition == nil {
		log.Warnw("Planner print slot without master edition", "order", slot.Order)
		return nil, nil
	}
	empty, err := p.storeEmpty(ctx, slot)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	if empty {
		log.Warnw("Planner skipping drained print store", "rank", rank,
			"err", &common.ResourceExhaustedError{Order: slot.Order, Store: slot.Store})
		return nil, nil
	}

	base, err := p.allocator.Base(ctx, snap.Manager.Address, slot)
	if err != nil {
		var stale *common.StaleStateError
		if errors.As(tracerr.Unwrap(err), &stale) {
			log.Warnw("Planner skipping stale print slot", "order", slot.Order,
				"reason", stale.Reason)
			return nil, nil
		}
		return nil, tracerr.Wrap(err)
	}
	next := base + p.allocator.RankOffset(&snap.Manager, rank, slot)

	bidRedemption, err := ledger.BidRedemptionPDA(p.programs,
		snap.Auction.Address, bidderMeta.Address)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}

	var batches []Batch
	for unit := uint64(0); unit < slot.Amount; unit++ {
		candidate, err := p.allocator.NextFree(ctx, slot.TokenMint, next)
		if err != nil {
			var stale *common.StaleStateError
			if errors.As(tracerr.Unwrap(err), &stale) {
				log.Warnw("Planner no free edition for unit",
					"order", slot.Order, "unit", unit)
				break
			}
			return nil, tracerr.Wrap(err)
		}
		next = candidate + 1

		instrs, mintKey, dest, err := p.mintSetupInstructions(ctx, payer, receiver)
		if err != nil {
			return nil, tracerr.Wrap(err)
		}
		accounts := ledger.PrintEditionAccounts{
			Vault:            snap.Manager.Vault,
			Store:            slot.Store,
			Destination:      dest,
			SafetyDepositBox: slot.Box,
			Receiver:         receiver,
			Payer:            payer,
			Metadata:         slot.Metadata,
			MasterEdition:    slot.MasterEdition.Address,
			MasterMint:       slot.TokenMint,
			NewMint:          mintKey.PublicKey(),
			AuctionManager:   snap.Manager.Address,
			Auction:          snap.Auction.Address,
			BidRedemption:    bidRedemption,
		}
		redeem, err := ledger.RedeemPrintEditionBid(p.programs, accounts,
			candidate, candidate-base, rank)
		if err != nil {
			return nil, tracerr.Wrap(err)
		}
		instrs = append(instrs, redeem)

		if receiver.Equals(payer) {
			newMeta, err := ledger.MetadataPDA(p.programs, mintKey.PublicKey())
			if err != nil {
				return nil, tracerr.Wrap(err)
			}
			primary, err := ledger.UpdatePrimarySaleHappened(p.programs, newMeta,
				receiver, dest)
			if err != nil {
				return nil, tracerr.Wrap(err)
			}
			instrs = append(instrs, primary)
		}

		batches = append(batches, Batch{
			Kind:         BatchPrintEdition,
			Rank:         rank,
			Order:        slot.Order,
			Unit:         unit,
			Instructions: instrs,
			Signers:      []solana.PrivateKey{mintKey},
		})
	}
	return batches, nil
}

// mintSetupInstructions returns the instructions creating a fresh
// zero-decimal mint owned by payer plus receiver's associated account for
// it, along with the mint key and the destination address
func (p *Planner) mintSetupInstructions(ctx context.Context, payer,
	receiver solana.PublicKey) ([]solana.Instruction, solana.PrivateKey,
	solana.PublicKey, error) {
	wallet := solana.NewWallet()
	mint := wallet.PublicKey()

	mintRent, err := p.reader.MinimumReserve(ctx, ledger.MintSize)
	if err != nil {
		return nil, nil, solana.PublicKey{}, tracerr.Wrap(err)
	}
	createMint, err := ledger.CreateAccount(p.programs, payer, mint, mintRent,
		ledger.MintSize, p.programs.Token)
	if err != nil {
		return nil, nil, solana.PublicKey{}, tracerr.Wrap(err)
	}
	initMint, err := ledger.InitializeMint(p.programs, mint, payer, payer)
	if err != nil {
		return nil, nil, solana.PublicKey{}, tracerr.Wrap(err)
	}
	dest, err := ledger.AssociatedTokenPDA(p.programs, receiver, mint)
	if err != nil {
		return nil, nil, solana.PublicKey{}, tracerr.Wrap(err)
	}
	createDest, err := ledger.CreateAssociatedTokenAccount(p.programs, payer,
		receiver, mint)
	if err != nil {
		return nil, nil, solana.PublicKey{}, tracerr.Wrap(err)
	}
	mintOne, err := ledger.MintTo(p.programs, mint, dest, payer, 1)
	if err != nil {
		return nil, nil, solana.PublicKey{}, tracerr.Wrap(err)
	}
	instrs := []solana.Instruction{createMint, initMint, createDest, mintOne}
	return instrs, wallet.PrivateKey, dest, nil
}

// planLegacyEditions settles a deprecated pre-set-aside printing pool
// slot: first redeem the authorization token out of the store, then mint
// one numbered edition per unit, each its own batch so a partial failure
// loses no completed editions.
func (p *Planner) planLegacyEditions(ctx context.Context, snap *common.AuctionSnapshot,
	bidderMeta *common.BidderMetadata, claimant solana.PublicKey,
	rank uint64, slot *common.PrizeSlot) ([]Batch, error) {
	me := slot.MasterEdition
	if !me.Legacy() {
		log.Warnw("Planner legacy slot without printing mint", "order", slot.Order)
		return nil, nil
	}
	ticket, err := p.redemptionTicket(ctx, snap.Auction.Address, bidderMeta.Address)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}

	var batches []Batch
	printingDest, createPrinting, err := p.ensureTokenAccount(ctx, claimant,
		claimant, me.PrintingMint)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}

	if !ticket.Redeemed(slot.Order) {
		empty, err := p.storeEmpty(ctx, slot)
		if err != nil {
			return nil, tracerr.Wrap(err)
		}
		if empty {
			log.Warnw("Planner skipping drained legacy store", "rank", rank,
				"err", &common.ResourceExhaustedError{Order: slot.Order, Store: slot.Store})
			return nil, nil
		}
		var instrs []solana.Instruction
		if createPrinting != nil {
			instrs = append(instrs, createPrinting)
		}
		bidRedemption, err := ledger.BidRedemptionPDA(p.programs,
			snap.Auction.Address, bidderMeta.Address)
		if err != nil {
			return nil, tracerr.Wrap(err)
		}
		redeem, err := ledger.RedeemBid(p.programs, ledger.RedeemBidAccounts{
			AuctionManager:    snap.Manager.Address,
			Store:             slot.Store,
			Destination:       printingDest,
			BidRedemption:     bidRedemption,
			SafetyDepositBox:  slot.Box,
			Vault:             snap.Manager.Vault,
			VaultFractionMint: snap.Manager.VaultFractionMint,
			Auction:           snap.Auction.Address,
			BidderMetadata:    bidderMeta.Address,
			Bidder:            bidderMeta.Bidder,
			Payer:             claimant,
		})
		if err != nil {
			return nil, tracerr.Wrap(err)
		}
		instrs = append(instrs, redeem)
		batches = append(batches, Batch{
			Kind:         BatchLegacyAuthorization,
			Rank:         rank,
			Order:        slot.Order,
			Instructions: instrs,
		})
	}

	for unit := uint64(0); unit < slot.Amount; unit++ {
		batch, err := p.legacyPrintUnit(ctx, slot, claimant, printingDest, rank, unit)
		if err != nil {
			return nil, tracerr.Wrap(err)
		}
		batches = append(batches, *batch)
	}
	return batches, nil
}

// legacyPrintUnit mints one edition against the legacy printing pool by
// burning one printing token
func (p *Planner) legacyPrintUnit(ctx context.Context, slot *common.PrizeSlot,
	claimant, printingAccount solana.PublicKey, rank, unit uint64) (*Batch, error) {
	me := slot.MasterEdition
	instrs, mintKey, dest, err := p.mintSetupInstructions(ctx, claimant, claimant)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}

	burnAuthority := solana.NewWallet()
	approve, err := ledger.Approve(p.programs, printingAccount,
		burnAuthority.PublicKey(), claimant, 1)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	instrs = append(instrs, approve)

	newMint := mintKey.PublicKey()
	newMeta, err := ledger.MetadataPDA(p.programs, newMint)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	newEdition, err := ledger.EditionPDA(p.programs, newMint)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	mintEdition, err := ledger.MintNewEditionFromMasterViaToken(p.programs,
		newMint, newMeta, newEdition, me.Address, slot.Metadata, slot.TokenMint,
		me.PrintingMint, printingAccount, burnAuthority.PublicKey(),
		claimant, claimant)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	instrs = append(instrs, mintEdition)

	primary, err := ledger.UpdatePrimarySaleHappened(p.programs, newMeta,
		claimant, dest)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	instrs = append(instrs, primary)

	return &Batch{
		Kind:         BatchPrintEdition,
		Rank:         rank,
		Order:        slot.Order,
		Unit:         unit,
		Instructions: instrs,
		Signers:      []solana.PrivateKey{mintKey, burnAuthority.PrivateKey},
	}, nil
}

// planParticipationFor builds the participation-print batches for one
// bidder when eligible. receiver gets the edition; payer funds the
// accounts and fees (they differ on the authority sweep path). The price
// is the fixed price when set, else the bidder's own last bid, which lets
// a losing bid double as payment.
func (p *Planner) planParticipationFor(ctx context.Context, snap *common.AuctionSnapshot,
	bidderMeta *common.BidderMetadata, receiver, payer solana.PublicKey,
	rank *uint64) ([]Batch, error) {
	cfg := snap.Manager.Participation
	slot := snap.Manager.ParticipationSlot
	if cfg == nil || slot == nil {
		return nil, nil
	}
	ticket, err := p.redemptionTicket(ctx, snap.Auction.Address, bidderMeta.Address)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	if !ParticipationEligible(rank, cfg, ticket.Redeemed(slot.Order)) {
		return nil, nil
	}
	me := slot.MasterEdition
	if me == nil {
		log.Warnw("Planner participation slot without master edition",
			"order", slot.Order)
		return nil, nil
	}

	price := bidderMeta.LastBid
	if cfg.FixedPrice != nil {
		price = *cfg.FixedPrice
	}

	if me.Legacy() {
		return p.planLegacyParticipation(ctx, snap, bidderMeta, receiver,
			payer, slot, price)
	}

	setup, mintKey, dest, err := p.mintSetupInstructions(ctx, payer, receiver)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	batches := []Batch{{
		Kind:         BatchMintSetup,
		Rank:         NoRank,
		Order:        slot.Order,
		Instructions: setup,
		Signers:      []solana.PrivateKey{mintKey},
	}}

	paying, createPaying, err := p.ensureTokenAccount(ctx, payer, payer,
		snap.Auction.TokenMint)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	var instrs []solana.Instruction
	if createPaying != nil {
		instrs = append(instrs, createPaying)
	}

	transferAuthority := solana.NewWallet()
	approve, err := ledger.Approve(p.programs, paying,
		transferAuthority.PublicKey(), payer, price)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	instrs = append(instrs, approve)

	bidRedemption, err := ledger.BidRedemptionPDA(p.programs,
		snap.Auction.Address, bidderMeta.Address)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	accounts := ledger.PrintEditionAccounts{
		Vault:            snap.Manager.Vault,
		Store:            slot.Store,
		Destination:      dest,
		SafetyDepositBox: slot.Box,
		Receiver:         receiver,
		Payer:            payer,
		Metadata:         slot.Metadata,
		MasterEdition:    me.Address,
		MasterMint:       slot.TokenMint,
		NewMint:          mintKey.PublicKey(),
		AuctionManager:   snap.Manager.Address,
		Auction:          snap.Auction.Address,
		BidRedemption:    bidRedemption,
	}
	redeem, err := ledger.RedeemParticipationBid(p.programs, accounts,
		transferAuthority.PublicKey(), snap.Manager.AcceptPayment, paying,
		me.Supply+1, rank)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	instrs = append(instrs, redeem)
	batches = append(batches, Batch{
		Kind:         BatchParticipation,
		Rank:         NoRank,
		Order:        slot.Order,
		Instructions: instrs,
		Signers:      []solana.PrivateKey{transferAuthority.PrivateKey},
	})

	if receiver.Equals(payer) {
		newMeta, err := ledger.MetadataPDA(p.programs, mintKey.PublicKey())
		if err != nil {
			return nil, tracerr.Wrap(err)
		}
		primary, err := ledger.UpdatePrimarySaleHappened(p.programs, newMeta,
			receiver, dest)
		if err != nil {
			return nil, tracerr.Wrap(err)
		}
		batches = append(batches, Batch{
			Kind:         BatchPrimarySale,
			Rank:         NoRank,
			Order:        slot.Order,
			Instructions: []solana.Instruction{primary},
		})
	}
	return batches, nil
}

// planLegacyParticipation settles a participation prize backed by a
// deprecated pre-set-aside printing pool: pay the bid, receive one printing
// token. No fresh mint is needed; the printing token itself is the claim,
// minted into a numbered edition whenever its holder chooses.
func (p *Planner) planLegacyParticipation(ctx context.Context, snap *common.AuctionSnapshot,
	bidderMeta *common.BidderMetadata, receiver, payer solana.PublicKey,
	slot *common.PrizeSlot, price uint64) ([]Batch, error) {
	me := slot.MasterEdition

	var instrs []solana.Instruction
	printingDest, createPrinting, err := p.ensureTokenAccount(ctx, payer,
		receiver, me.PrintingMint)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	if createPrinting != nil {
		instrs = append(instrs, createPrinting)
	}
	paying, createPaying, err := p.ensureTokenAccount(ctx, payer, payer,
		snap.Auction.TokenMint)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	if createPaying != nil {
		instrs = append(instrs, createPaying)
	}

	transferAuthority := solana.NewWallet()
	approve, err := ledger.Approve(p.programs, paying,
		transferAuthority.PublicKey(), payer, price)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	instrs = append(instrs, approve)

	bidRedemption, err := ledger.BidRedemptionPDA(p.programs,
		snap.Auction.Address, bidderMeta.Address)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	redeem, err := ledger.RedeemParticipationBidLegacy(p.programs,
		ledger.RedeemBidAccounts{
			AuctionManager:    snap.Manager.Address,
			Store:             slot.Store,
			Destination:       printingDest,
			BidRedemption:     bidRedemption,
			SafetyDepositBox:  slot.Box,
			Vault:             snap.Manager.Vault,
			VaultFractionMint: snap.Manager.VaultFractionMint,
			Auction:           snap.Auction.Address,
			BidderMetadata:    bidderMeta.Address,
			Bidder:            bidderMeta.Bidder,
			Payer:             payer,
		}, transferAuthority.PublicKey(), snap.Manager.AcceptPayment, paying)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	instrs = append(instrs, redeem)

	return []Batch{{
		Kind:         BatchParticipation,
		Rank:         NoRank,
		Order:        slot.Order,
		Instructions: instrs,
		Signers:      []solana.PrivateKey{transferAuthority.PrivateKey},
	}}, nil
}

// planClaimBid builds the batch settling the winner's payment into the
// auction's accept-payment account
func (p *Planner) planClaimBid(snap *common.AuctionSnapshot) (*Batch, error) {
	claim, err := ledger.ClaimBid(p.programs, snap.Manager.AcceptPayment,
		snap.MyBidderMetadata.Bidder, snap.MyBidderPot.Pot,
		snap.Manager.Vault, snap.Auction.TokenMint)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	return &Batch{
		Kind:         BatchClaimBid,
		Rank:         NoRank,
		Instructions: []solana.Instruction{claim},
	}, nil
}

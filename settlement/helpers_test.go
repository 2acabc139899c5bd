package settlement

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"github.com/metaprize/settler-node/common"
	"github.com/metaprize/settler-node/ledger"
)

// memLedger is an in-memory stand-in for the RPC client. Accounts and
// token balances are plain maps; submissions are recorded and answered
// from a scripted error queue.
type memLedger struct {
	accounts  map[solana.PublicKey][]byte
	balances  map[solana.PublicKey]uint64
	payer     solana.PublicKey
	submitted []submission
	// submitErrs is popped once per Submit call; nil entries succeed
	submitErrs []error
}

type submission struct {
	instructions []solana.Instruction
	signers      []solana.PrivateKey
}

func newMemLedger(payer solana.PublicKey) *memLedger {
	return &memLedger{
		accounts: make(map[solana.PublicKey][]byte),
		balances: make(map[solana.PublicKey]uint64),
		payer:    payer,
	}
}

func (m *memLedger) ReadAccount(ctx context.Context, addr solana.PublicKey) ([]byte, error) {
	data, ok := m.accounts[addr]
	if !ok {
		return nil, common.ErrAccountNotFound
	}
	return data, nil
}

func (m *memLedger) TokenBalance(ctx context.Context, addr solana.PublicKey) (uint64, error) {
	bal, ok := m.balances[addr]
	if !ok {
		return 0, common.ErrAccountNotFound
	}
	return bal, nil
}

func (m *memLedger) MinimumReserve(ctx context.Context, size uint64) (uint64, error) {
	return 890880 + size*6960, nil
}

func (m *memLedger) Submit(ctx context.Context, instructions []solana.Instruction,
	signers []solana.PrivateKey) (solana.Signature, error) {
	m.submitted = append(m.submitted, submission{
		instructions: instructions,
		signers:      signers,
	})
	if len(m.submitErrs) > 0 {
		err := m.submitErrs[0]
		m.submitErrs = m.submitErrs[1:]
		if err != nil {
			return solana.Signature{}, err
		}
	}
	var sig solana.Signature
	sig[0] = byte(len(m.submitted))
	return sig, nil
}

func (m *memLedger) Payer() solana.PublicKey {
	return m.payer
}

// fixture is a one-winner auction with a single direct-transfer prize,
// ready for planner tests to mutate
type fixture struct {
	programs ledger.Programs
	ledger   *memLedger
	snap     *common.AuctionSnapshot
	winner   solana.PublicKey
	loser    solana.PublicKey
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	programs := ledger.DefaultPrograms()
	winner := solana.NewWallet().PublicKey()
	loser := solana.NewWallet().PublicKey()
	vault := solana.NewWallet().PublicKey()
	authority := solana.NewWallet().PublicKey()

	auctionAddr, err := ledger.AuctionPDA(programs, vault)
	require.NoError(t, err)

	mem := newMemLedger(winner)

	auction := common.Auction{
		Address:   auctionAddr,
		Authority: authority,
		TokenMint: solana.NewWallet().PublicKey(),
		State:     common.AuctionStateEnded,
		BidState: common.BidState{
			Bids: []common.Bid{
				{Bidder: loser, Amount: 50},
				{Bidder: winner, Amount: 100},
			},
			Max: 1,
		},
	}

	slot := common.PrizeSlot{
		Box:       solana.NewWallet().PublicKey(),
		Store:     solana.NewWallet().PublicKey(),
		TokenMint: solana.NewWallet().PublicKey(),
		Metadata:  solana.NewWallet().PublicKey(),
		Method:    common.TokenOnlyTransfer,
		Order:     0,
		Amount:    1,
	}
	mem.balances[slot.Store] = 1

	manager := common.AuctionManager{
		Address:           solana.NewWallet().PublicKey(),
		Auction:           auctionAddr,
		Vault:             vault,
		Authority:         authority,
		AcceptPayment:     solana.NewWallet().PublicKey(),
		VaultFractionMint: solana.NewWallet().PublicKey(),
		WinningConfigs:    [][]common.PrizeSlot{{slot}},
	}

	snap := &common.AuctionSnapshot{
		Auction: auction,
		Manager: manager,
	}
	snap.MyBidderMetadata = bidderMetaFor(t, programs, auctionAddr, winner, 100, false)
	snap.MyBidderPot = &common.BidderPot{
		Address: solana.NewWallet().PublicKey(),
		Pot:     solana.NewWallet().PublicKey(),
		Bidder:  winner,
		Auction: auctionAddr,
	}
	snap.Bidders = []common.BidderMetadata{
		*snap.MyBidderMetadata,
		*bidderMetaFor(t, programs, auctionAddr, loser, 50, false),
	}

	return &fixture{
		programs: programs,
		ledger:   mem,
		snap:     snap,
		winner:   winner,
		loser:    loser,
	}
}

func bidderMetaFor(t *testing.T, programs ledger.Programs, auction,
	bidder solana.PublicKey, lastBid uint64, cancelled bool) *common.BidderMetadata {
	t.Helper()
	addr, err := ledger.BidderMetadataPDA(programs, auction, bidder)
	require.NoError(t, err)
	return &common.BidderMetadata{
		Address:   addr,
		Bidder:    bidder,
		Auction:   auction,
		LastBid:   lastBid,
		Cancelled: cancelled,
	}
}

// markClaimed stores a redemption ticket on the mock ledger with the given
// slot orders already claimed
func (f *fixture) markClaimed(t *testing.T, bidderMeta solana.PublicKey, orders ...uint64) {
	t.Helper()
	addr, err := ledger.BidRedemptionPDA(f.programs, f.snap.Auction.Address, bidderMeta)
	require.NoError(t, err)
	var max uint64
	for _, o := range orders {
		if o > max {
			max = o
		}
	}
	ticket := &common.BidRedemptionTicket{Bitmask: make([]byte, max/8+1)}
	for _, o := range orders {
		ticket.Bitmask[o/8] |= byte(1) << (7 - o%8)
	}
	f.ledger.accounts[addr] = ledger.EncodeBidRedemptionTicket(ticket, f.snap.Manager.Address)
}

// takeEdition stores an edition marker page with the given edition minted
func (f *fixture) takeEdition(t *testing.T, masterMint solana.PublicKey, edition uint64) {
	t.Helper()
	addr, err := ledger.EditionMarkPDA(f.programs, masterMint, edition)
	require.NoError(t, err)
	var marker common.EditionMarker
	if existing, ok := f.ledger.accounts[addr]; ok {
		decoded, err := ledger.DecodeEditionMarker(existing)
		require.NoError(t, err)
		marker = *decoded
	}
	marker.Take(edition)
	f.ledger.accounts[addr] = ledger.EncodeEditionMarker(&marker)
}

func kinds(batches []Batch) []BatchKind {
	out := make([]BatchKind, 0, len(batches))
	for _, b := range batches {
		out = append(out, b.Kind)
	}
	return out
}

package common

import (
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWinnerRank(t *testing.T) {
	alice := solana.NewWallet().PublicKey()
	bob := solana.NewWallet().PublicKey()
	carol := solana.NewWallet().PublicKey()
	dave := solana.NewWallet().PublicKey()

	// ascending amount order: carol holds the best bid
	state := BidState{
		Bids: []Bid{
			{Bidder: dave, Amount: 10},
			{Bidder: bob, Amount: 20},
			{Bidder: alice, Amount: 30},
			{Bidder: carol, Amount: 40},
		},
		Max: 3,
	}

	rank, ok := state.WinnerRank(carol)
	require.True(t, ok)
	assert.Equal(t, uint64(0), rank)

	rank, ok = state.WinnerRank(alice)
	require.True(t, ok)
	assert.Equal(t, uint64(1), rank)

	rank, ok = state.WinnerRank(bob)
	require.True(t, ok)
	assert.Equal(t, uint64(2), rank)

	// dave bid but sits below the winner cut
	_, ok = state.WinnerRank(dave)
	assert.False(t, ok)

	// never bid at all
	_, ok = state.WinnerRank(solana.NewWallet().PublicKey())
	assert.False(t, ok)
}

func TestWinnerAtAndAmountAt(t *testing.T) {
	alice := solana.NewWallet().PublicKey()
	bob := solana.NewWallet().PublicKey()
	state := BidState{
		Bids: []Bid{
			{Bidder: bob, Amount: 5},
			{Bidder: alice, Amount: 9},
		},
		Max: 5,
	}

	winner, ok := state.WinnerAt(0)
	require.True(t, ok)
	assert.Equal(t, alice, winner)

	amount, ok := state.AmountAt(1)
	require.True(t, ok)
	assert.Equal(t, uint64(5), amount)

	// more ranks configured than bids placed
	_, ok = state.WinnerAt(2)
	assert.False(t, ok)

	assert.Equal(t, uint64(2), state.NumWinners())
}

func TestNumWinnersCappedByMax(t *testing.T) {
	state := BidState{Max: 1}
	for i := 0; i < 4; i++ {
		state.Bids = append(state.Bids, Bid{
			Bidder: solana.NewWallet().PublicKey(),
			Amount: uint64(i),
		})
	}
	assert.Equal(t, uint64(1), state.NumWinners())

	_, ok := state.WinnerRank(state.Bids[2].Bidder)
	assert.False(t, ok)
}

func TestAuctionEnded(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour).Unix()
	future := now.Add(time.Hour).Unix()

	a := Auction{State: AuctionStateStarted}
	assert.False(t, a.Ended(now))

	a.EndedAt = &future
	assert.False(t, a.Ended(now))

	a.EndedAt = &past
	assert.True(t, a.Ended(now))

	a = Auction{State: AuctionStateEnded}
	assert.True(t, a.Ended(now))
}

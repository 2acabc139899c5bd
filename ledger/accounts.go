package ledger

import (
	"bytes"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/hermeznetwork/tracerr"

	"github.com/metaprize/settler-node/common"
)

// Account discriminator values of the metadata program
const (
	keyMasterEditionV1 = 2
	keyMasterEditionV2 = 6
	keyEditionMarker   = 7
)

func readPubkey(dec *bin.Decoder) (solana.PublicKey, error) {
	b, err := dec.ReadNBytes(32)
	if err != nil {
		return solana.PublicKey{}, tracerr.Wrap(err)
	}
	return solana.PublicKeyFromBytes(b), nil
}

// readOptI64 reads a borsh Option<i64>
func readOptI64(dec *bin.Decoder) (*int64, error) {
	flag, err := dec.ReadByte()
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	if flag == 0 {
		return nil, nil
	}
	v, err := dec.ReadInt64(bin.LE)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	return &v, nil
}

// readOptU64 reads a borsh Option<u64>
func readOptU64(dec *bin.Decoder) (*uint64, error) {
	flag, err := dec.ReadByte()
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	if flag == 0 {
		return nil, nil
	}
	v, err := dec.ReadUint64(bin.LE)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	return &v, nil
}

// DecodeAuction parses an auction account
func DecodeAuction(addr solana.PublicKey, data []byte) (*common.Auction, error) {
	dec := bin.NewBorshDecoder(data)
	a := &common.Auction{Address: addr}
	var err error
	if a.Authority, err = readPubkey(dec); err != nil {
		return nil, tracerr.Wrap(err)
	}
	if a.TokenMint, err = readPubkey(dec); err != nil {
		return nil, tracerr.Wrap(err)
	}
	if a.LastBid, err = readOptI64(dec); err != nil {
		return nil, tracerr.Wrap(err)
	}
	if a.EndedAt, err = readOptI64(dec); err != nil {
		return nil, tracerr.Wrap(err)
	}
	if a.EndAuctionAt, err = readOptI64(dec); err != nil {
		return nil, tracerr.Wrap(err)
	}
	if a.EndAuctionGap, err = readOptI64(dec); err != nil {
		return nil, tracerr.Wrap(err)
	}
	floorType, err := dec.ReadByte()
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	floorData, err := dec.ReadNBytes(32)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	a.PriceFloor.Type = common.PriceFloorType(floorType)
	copy(a.PriceFloor.Hash[:], floorData)
	if a.PriceFloor.Type == common.PriceFloorMinimum {
		a.PriceFloor.Minimum = binary.LittleEndian.Uint64(floorData[:8])
	}
	state, err := dec.ReadByte()
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	a.State = common.AuctionState(state)
	// bid state: enum tag, bid vector, max
	if _, err = dec.ReadByte(); err != nil {
		return nil, tracerr.Wrap(err)
	}
	nBids, err := dec.ReadUint32(bin.LE)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	a.BidState.Bids = make([]common.Bid, 0, nBids)
	for i := uint32(0); i < nBids; i++ {
		var b common.Bid
		if b.Bidder, err = readPubkey(dec); err != nil {
			return nil, tracerr.Wrap(err)
		}
		if b.Amount, err = dec.ReadUint64(bin.LE); err != nil {
			return nil, tracerr.Wrap(err)
		}
		a.BidState.Bids = append(a.BidState.Bids, b)
	}
	if a.BidState.Max, err = dec.ReadUint64(bin.LE); err != nil {
		return nil, tracerr.Wrap(err)
	}
	return a, nil
}

// DecodeBidderMetadata parses a bidder metadata account
func DecodeBidderMetadata(addr solana.PublicKey, data []byte) (*common.BidderMetadata, error) {
	dec := bin.NewBorshDecoder(data)
	m := &common.BidderMetadata{Address: addr}
	var err error
	if m.Bidder, err = readPubkey(dec); err != nil {
		return nil, tracerr.Wrap(err)
	}
	if m.Auction, err = readPubkey(dec); err != nil {
		return nil, tracerr.Wrap(err)
	}
	if m.LastBid, err = dec.ReadUint64(bin.LE); err != nil {
		return nil, tracerr.Wrap(err)
	}
	if m.LastBidTimestamp, err = dec.ReadInt64(bin.LE); err != nil {
		return nil, tracerr.Wrap(err)
	}
	if m.Cancelled, err = dec.ReadBool(); err != nil {
		return nil, tracerr.Wrap(err)
	}
	return m, nil
}

// DecodeBidderPot parses a bidder pot account
func DecodeBidderPot(addr solana.PublicKey, data []byte) (*common.BidderPot, error) {
	dec := bin.NewBorshDecoder(data)
	p := &common.BidderPot{Address: addr}
	var err error
	if p.Pot, err = readPubkey(dec); err != nil {
		return nil, tracerr.Wrap(err)
	}
	if p.Bidder, err = readPubkey(dec); err != nil {
		return nil, tracerr.Wrap(err)
	}
	if p.Auction, err = readPubkey(dec); err != nil {
		return nil, tracerr.Wrap(err)
	}
	if p.Emptied, err = dec.ReadBool(); err != nil {
		return nil, tracerr.Wrap(err)
	}
	return p, nil
}

// Bid redemption ticket layout: key byte, Option<u64> winner index, the
// auction manager key, then the per-order bitmask.
const (
	redemptionMaskOffsetSome = 1 + 9 + 32
	redemptionMaskOffsetNone = 1 + 1 + 32
)

// DecodeBidRedemptionTicket parses a bid redemption ticket account
func DecodeBidRedemptionTicket(addr solana.PublicKey, data []byte) (*common.BidRedemptionTicket, error) {
	if len(data) < 2 {
		return nil, tracerr.Wrap(&common.StaleStateError{
			Reason: "redemption ticket account too short",
		})
	}
	t := &common.BidRedemptionTicket{Address: addr}
	maskStart := redemptionMaskOffsetNone
	if data[1] != 0 {
		if len(data) < 10 {
			return nil, tracerr.Wrap(&common.StaleStateError{
				Reason: "redemption ticket winner index truncated",
			})
		}
		idx := binary.LittleEndian.Uint64(data[2:10])
		t.WinnerIndex = &idx
		maskStart = redemptionMaskOffsetSome
	}
	if len(data) > maskStart {
		t.Bitmask = append([]byte(nil), data[maskStart:]...)
	}
	return t, nil
}

// DecodePrizeTrackingTicket parses a prize tracking ticket account
func DecodePrizeTrackingTicket(addr solana.PublicKey, data []byte) (*common.PrizeTrackingTicket, error) {
	dec := bin.NewBorshDecoder(data)
	if _, err := dec.ReadByte(); err != nil {
		return nil, tracerr.Wrap(err)
	}
	t := &common.PrizeTrackingTicket{Address: addr}
	var err error
	if t.Metadata, err = readPubkey(dec); err != nil {
		return nil, tracerr.Wrap(err)
	}
	if t.SupplySnapshot, err = dec.ReadUint64(bin.LE); err != nil {
		return nil, tracerr.Wrap(err)
	}
	if t.ExpectedRedemptions, err = dec.ReadUint64(bin.LE); err != nil {
		return nil, tracerr.Wrap(err)
	}
	if t.Redemptions, err = dec.ReadUint64(bin.LE); err != nil {
		return nil, tracerr.Wrap(err)
	}
	return t, nil
}

// DecodeMasterEdition parses a master edition account of either format
func DecodeMasterEdition(addr solana.PublicKey, data []byte) (*common.MasterEdition, error) {
	dec := bin.NewBorshDecoder(data)
	key, err := dec.ReadByte()
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	m := &common.MasterEdition{Address: addr}
	if m.Supply, err = dec.ReadUint64(bin.LE); err != nil {
		return nil, tracerr.Wrap(err)
	}
	if m.MaxSupply, err = readOptU64(dec); err != nil {
		return nil, tracerr.Wrap(err)
	}
	if key == keyMasterEditionV1 {
		if m.PrintingMint, err = readPubkey(dec); err != nil {
			return nil, tracerr.Wrap(err)
		}
		if m.OneTimePrintingAuthorizationMint, err = readPubkey(dec); err != nil {
			return nil, tracerr.Wrap(err)
		}
	}
	return m, nil
}

// DecodeEditionMarker parses an edition marker page
func DecodeEditionMarker(data []byte) (*common.EditionMarker, error) {
	dec := bin.NewBorshDecoder(data)
	if _, err := dec.ReadByte(); err != nil {
		return nil, tracerr.Wrap(err)
	}
	ledger, err := dec.ReadNBytes(31)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	m := &common.EditionMarker{}
	copy(m.Ledger[:], ledger)
	return m, nil
}

// DecodeTokenAmount reads the amount field of a raw SPL token account
func DecodeTokenAmount(data []byte) (uint64, error) {
	if len(data) < 72 {
		return 0, tracerr.Wrap(fmt.Errorf("token account data too short: %d bytes", len(data)))
	}
	return binary.LittleEndian.Uint64(data[64:72]), nil
}

// The encoders below mirror the decoders. The production path never
// writes these accounts (the ledger program owns them); they exist for
// the in-memory ledger used in tests.

// EncodeAuction serializes an auction account
func EncodeAuction(a *common.Auction) []byte {
	var buf bytes.Buffer
	buf.Write(a.Authority.Bytes())
	buf.Write(a.TokenMint.Bytes())
	writeOptI64(&buf, a.LastBid)
	writeOptI64(&buf, a.EndedAt)
	writeOptI64(&buf, a.EndAuctionAt)
	writeOptI64(&buf, a.EndAuctionGap)
	buf.WriteByte(byte(a.PriceFloor.Type))
	floor := a.PriceFloor.Hash
	if a.PriceFloor.Type == common.PriceFloorMinimum {
		binary.LittleEndian.PutUint64(floor[:8], a.PriceFloor.Minimum)
	}
	buf.Write(floor[:])
	buf.WriteByte(byte(a.State))
	buf.WriteByte(0) // english auction bid state
	writeU32(&buf, uint32(len(a.BidState.Bids)))
	for _, b := range a.BidState.Bids {
		buf.Write(b.Bidder.Bytes())
		writeU64(&buf, b.Amount)
	}
	writeU64(&buf, a.BidState.Max)
	return buf.Bytes()
}

// EncodeBidderMetadata serializes a bidder metadata account
func EncodeBidderMetadata(m *common.BidderMetadata) []byte {
	var buf bytes.Buffer
	buf.Write(m.Bidder.Bytes())
	buf.Write(m.Auction.Bytes())
	writeU64(&buf, m.LastBid)
	writeU64(&buf, uint64(m.LastBidTimestamp))
	writeBool(&buf, m.Cancelled)
	return buf.Bytes()
}

// EncodeBidderPot serializes a bidder pot account
func EncodeBidderPot(p *common.BidderPot) []byte {
	var buf bytes.Buffer
	buf.Write(p.Pot.Bytes())
	buf.Write(p.Bidder.Bytes())
	buf.Write(p.Auction.Bytes())
	writeBool(&buf, p.Emptied)
	return buf.Bytes()
}

// EncodeBidRedemptionTicket serializes a redemption ticket account
func EncodeBidRedemptionTicket(t *common.BidRedemptionTicket,
	auctionManager solana.PublicKey) []byte {
	var buf bytes.Buffer
	buf.WriteByte(0) // key
	if t.WinnerIndex == nil {
		buf.WriteByte(0)
	} else {
		buf.WriteByte(1)
		writeU64(&buf, *t.WinnerIndex)
	}
	buf.Write(auctionManager.Bytes())
	buf.Write(t.Bitmask)
	return buf.Bytes()
}

// EncodePrizeTrackingTicket serializes a prize tracking ticket account
func EncodePrizeTrackingTicket(t *common.PrizeTrackingTicket) []byte {
	var buf bytes.Buffer
	buf.WriteByte(0) // key
	buf.Write(t.Metadata.Bytes())
	writeU64(&buf, t.SupplySnapshot)
	writeU64(&buf, t.ExpectedRedemptions)
	writeU64(&buf, t.Redemptions)
	return buf.Bytes()
}

// EncodeMasterEdition serializes a master edition account
func EncodeMasterEdition(m *common.MasterEdition) []byte {
	var buf bytes.Buffer
	if m.Legacy() {
		buf.WriteByte(keyMasterEditionV1)
	} else {
		buf.WriteByte(keyMasterEditionV2)
	}
	writeU64(&buf, m.Supply)
	if m.MaxSupply == nil {
		buf.WriteByte(0)
	} else {
		buf.WriteByte(1)
		writeU64(&buf, *m.MaxSupply)
	}
	if m.Legacy() {
		buf.Write(m.PrintingMint.Bytes())
		buf.Write(m.OneTimePrintingAuthorizationMint.Bytes())
	}
	return buf.Bytes()
}

// EncodeEditionMarker serializes an edition marker page
func EncodeEditionMarker(m *common.EditionMarker) []byte {
	out := make([]byte, 32)
	out[0] = keyEditionMarker
	copy(out[1:], m.Ledger[:])
	return out
}

// EncodeTokenAccount serializes a raw SPL token account
func EncodeTokenAccount(mint, owner solana.PublicKey, amount uint64) []byte {
	out := make([]byte, TokenAccountSize)
	copy(out[0:32], mint.Bytes())
	copy(out[32:64], owner.Bytes())
	binary.LittleEndian.PutUint64(out[64:72], amount)
	return out
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeBool(buf *bytes.Buffer, v bool) {
	if v {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
}

func writeOptI64(buf *bytes.Buffer, v *int64) {
	if v == nil {
		buf.WriteByte(0)
		return
	}
	buf.WriteByte(1)
	writeU64(buf, uint64(*v))
}

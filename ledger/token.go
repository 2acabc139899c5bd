package ledger

import (
	"bytes"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/hermeznetwork/tracerr"
)

// SPL token program instruction tags
const (
	tagTokenInitializeMint    = 0
	tagTokenInitializeAccount = 1
	tagTokenApprove           = 4
	tagTokenMintTo            = 7
	tagTokenCloseAccount      = 9
)

// System program instruction index
const sysCreateAccount = 0

// TokenAccountSize is the byte size of an SPL token account
const TokenAccountSize = 165

// MintSize is the byte size of an SPL mint account
const MintSize = 82

// CreateAccount builds the system instruction allocating a new account
// funded with lamports and owned by owner
func CreateAccount(p Programs, funder, newAccount solana.PublicKey,
	lamports, space uint64, owner solana.PublicKey) (solana.Instruction, error) {
	var buf bytes.Buffer
	enc := bin.NewBorshEncoder(&buf)
	if err := enc.WriteUint32(sysCreateAccount, bin.LE); err != nil {
		return nil, tracerr.Wrap(err)
	}
	if err := enc.WriteUint64(lamports, bin.LE); err != nil {
		return nil, tracerr.Wrap(err)
	}
	if err := enc.WriteUint64(space, bin.LE); err != nil {
		return nil, tracerr.Wrap(err)
	}
	if err := enc.WriteBytes(owner.Bytes(), false); err != nil {
		return nil, tracerr.Wrap(err)
	}
	metas := solana.AccountMetaSlice{
		solana.Meta(funder).WRITE().SIGNER(),
		solana.Meta(newAccount).WRITE().SIGNER(),
	}
	return solana.NewInstruction(p.System, metas, buf.Bytes()), nil
}

// InitializeMint builds the SPL instruction turning a fresh account into a
// mint with zero decimals, the layout used for unique tokens
func InitializeMint(p Programs, mint, mintAuthority,
	freezeAuthority solana.PublicKey) (solana.Instruction, error) {
	var buf bytes.Buffer
	enc := bin.NewBorshEncoder(&buf)
	if err := enc.WriteByte(tagTokenInitializeMint); err != nil {
		return nil, tracerr.Wrap(err)
	}
	if err := enc.WriteByte(0); err != nil { // decimals
		return nil, tracerr.Wrap(err)
	}
	if err := enc.WriteBytes(mintAuthority.Bytes(), false); err != nil {
		return nil, tracerr.Wrap(err)
	}
	if err := enc.WriteByte(1); err != nil { // freeze authority present
		return nil, tracerr.Wrap(err)
	}
	if err := enc.WriteBytes(freezeAuthority.Bytes(), false); err != nil {
		return nil, tracerr.Wrap(err)
	}
	metas := solana.AccountMetaSlice{
		solana.Meta(mint).WRITE(),
		solana.Meta(solana.SysVarRentPubkey),
	}
	return solana.NewInstruction(p.Token, metas, buf.Bytes()), nil
}

// InitializeTokenAccount builds the SPL instruction turning a fresh
// account into a token account for mint owned by owner
func InitializeTokenAccount(p Programs, account, mint,
	owner solana.PublicKey) (solana.Instruction, error) {
	metas := solana.AccountMetaSlice{
		solana.Meta(account).WRITE(),
		solana.Meta(mint),
		solana.Meta(owner),
		solana.Meta(solana.SysVarRentPubkey),
	}
	return solana.NewInstruction(p.Token, metas,
		[]byte{tagTokenInitializeAccount}), nil
}

// Approve builds the SPL delegate instruction allowing delegate to move
// amount out of source
func Approve(p Programs, source, delegate, owner solana.PublicKey,
	amount uint64) (solana.Instruction, error) {
	var buf bytes.Buffer
	enc := bin.NewBorshEncoder(&buf)
	if err := enc.WriteByte(tagTokenApprove); err != nil {
		return nil, tracerr.Wrap(err)
	}
	if err := enc.WriteUint64(amount, bin.LE); err != nil {
		return nil, tracerr.Wrap(err)
	}
	metas := solana.AccountMetaSlice{
		solana.Meta(source).WRITE(),
		solana.Meta(delegate),
		solana.Meta(owner).SIGNER(),
	}
	return solana.NewInstruction(p.Token, metas, buf.Bytes()), nil
}

// MintTo builds the SPL instruction minting amount into destination
func MintTo(p Programs, mint, destination, authority solana.PublicKey,
	amount uint64) (solana.Instruction, error) {
	var buf bytes.Buffer
	enc := bin.NewBorshEncoder(&buf)
	if err := enc.WriteByte(tagTokenMintTo); err != nil {
		return nil, tracerr.Wrap(err)
	}
	if err := enc.WriteUint64(amount, bin.LE); err != nil {
		return nil, tracerr.Wrap(err)
	}
	metas := solana.AccountMetaSlice{
		solana.Meta(mint).WRITE(),
		solana.Meta(destination).WRITE(),
		solana.Meta(authority).SIGNER(),
	}
	return solana.NewInstruction(p.Token, metas, buf.Bytes()), nil
}

// CloseAccount builds the SPL instruction closing a token account and
// moving its lamports to destination. Used to unwrap wrapped native funds.
func CloseAccount(p Programs, account, destination,
	owner solana.PublicKey) (solana.Instruction, error) {
	metas := solana.AccountMetaSlice{
		solana.Meta(account).WRITE(),
		solana.Meta(destination).WRITE(),
		solana.Meta(owner).SIGNER(),
	}
	return solana.NewInstruction(p.Token, metas,
		[]byte{tagTokenCloseAccount}), nil
}

// CreateAssociatedTokenAccount builds the ATA program instruction creating
// wallet's associated account for mint, paid by payer
func CreateAssociatedTokenAccount(p Programs, payer, wallet,
	mint solana.PublicKey) (solana.Instruction, error) {
	ata, err := AssociatedTokenPDA(p, wallet, mint)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	metas := solana.AccountMetaSlice{
		solana.Meta(payer).WRITE().SIGNER(),
		solana.Meta(ata).WRITE(),
		solana.Meta(wallet),
		solana.Meta(mint),
		solana.Meta(p.System),
		solana.Meta(p.Token),
		solana.Meta(solana.SysVarRentPubkey),
	}
	return solana.NewInstruction(p.AssociatedToken, metas, []byte{}), nil
}

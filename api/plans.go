package api

import (
	"encoding/base64"

	"github.com/gagliardetto/solana-go"

	"github.com/metaprize/settler-node/settlement"
)

// apiAccountMeta is the JSON form of one instruction account
type apiAccountMeta struct {
	Pubkey   string `json:"pubkey"`
	Signer   bool   `json:"signer"`
	Writable bool   `json:"writable"`
}

// apiInstruction is the JSON form of one ledger instruction
type apiInstruction struct {
	ProgramID string           `json:"programId"`
	Accounts  []apiAccountMeta `json:"accounts"`
	Data      string           `json:"data"`
}

// apiBatch is the JSON form of one planned batch. Ephemeral signing keys
// never leave the node; only their public keys are reported.
type apiBatch struct {
	Kind         string           `json:"kind"`
	Rank         *uint64          `json:"rank"`
	Order        uint64           `json:"order"`
	Unit         uint64           `json:"unit"`
	Instructions []apiInstruction `json:"instructions"`
	Signers      []string         `json:"signers"`
}

type planResponse struct {
	Batches []apiBatch `json:"batches"`
}

func newPlanResponse(batches []settlement.Batch) planResponse {
	resp := planResponse{Batches: make([]apiBatch, 0, len(batches))}
	for i := range batches {
		resp.Batches = append(resp.Batches, newAPIBatch(&batches[i]))
	}
	return resp
}

func newAPIBatch(b *settlement.Batch) apiBatch {
	out := apiBatch{
		Kind:  b.Kind.String(),
		Order: b.Order,
		Unit:  b.Unit,
	}
	if b.Rank != settlement.NoRank {
		r := b.Rank
		out.Rank = &r
	}
	for _, instr := range b.Instructions {
		out.Instructions = append(out.Instructions, newAPIInstruction(instr))
	}
	for _, key := range b.Signers {
		out.Signers = append(out.Signers, key.PublicKey().String())
	}
	return out
}

func newAPIInstruction(instr solana.Instruction) apiInstruction {
	out := apiInstruction{ProgramID: instr.ProgramID().String()}
	for _, meta := range instr.Accounts() {
		out.Accounts = append(out.Accounts, apiAccountMeta{
			Pubkey:   meta.PublicKey.String(),
			Signer:   meta.IsSigner,
			Writable: meta.IsWritable,
		})
	}
	if data, err := instr.Data(); err == nil {
		out.Data = base64.StdEncoding.EncodeToString(data)
	}
	return out
}

// apiBatchResult is the JSON form of one submission outcome
type apiBatchResult struct {
	Batch apiBatch `json:"batch"`
	Sig   string   `json:"sig,omitempty"`
	Error string   `json:"error,omitempty"`
}

type submitResponse struct {
	Results []apiBatchResult `json:"results"`
	// Aborted carries the run-stopping error when the submitter gave up
	// before attempting every batch
	Aborted string `json:"aborted,omitempty"`
}

func newSubmitResponse(results []settlement.BatchResult) submitResponse {
	resp := submitResponse{Results: make([]apiBatchResult, 0, len(results))}
	for i := range results {
		res := apiBatchResult{Batch: newAPIBatch(&results[i].Batch)}
		if !results[i].Sig.IsZero() {
			res.Sig = results[i].Sig.String()
		}
		if results[i].Err != nil {
			res.Error = results[i].Err.Error()
		}
		resp.Results = append(resp.Results, res)
	}
	return resp
}

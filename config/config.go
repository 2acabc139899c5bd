// Package config loads and validates the settler node configuration from
// a TOML file.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/gagliardetto/solana-go"
	"github.com/hermeznetwork/tracerr"
	"gopkg.in/go-playground/validator.v9"

	"github.com/metaprize/settler-node/common"
	"github.com/metaprize/settler-node/ledger"
	"github.com/metaprize/settler-node/settlement"
)

// Duration is a wrapper type that parses time duration from text.
type Duration struct {
	time.Duration `validate:"required"`
}

// UnmarshalText unmarshalls time duration from text.
func (d *Duration) UnmarshalText(data []byte) error {
	duration, err := time.ParseDuration(string(data))
	if err != nil {
		return tracerr.Wrap(err)
	}
	d.Duration = duration
	return nil
}

// Ledger holds the RPC endpoint parameters
type Ledger struct {
	// URL is the JSON-RPC endpoint of the ledger node
	URL string `validate:"required"`
	// Commitment is the confirmation level reads and sends run at
	Commitment string
	// ConfirmTimeout bounds how long a sent transaction is polled for
	// confirmation before it counts as failed
	ConfirmTimeout Duration `validate:"required"`
	// PollInterval is the pause between confirmation polls
	PollInterval Duration `validate:"required"`
	// KeyFile is the path of the identity keypair funding and signing
	// every submitted transaction
	KeyFile string `validate:"required"`
}

// ProgramOverrides optionally replaces the default on-ledger program ids,
// for test validators running custom deployments
type ProgramOverrides struct {
	Auction    string
	Settlement string
	Vault      string
	Metadata   string
}

// Submitter tunes batch submission retries
type Submitter struct {
	// Attempts is how many times a failing batch is sent before giving up
	Attempts int `validate:"required,gte=1"`
	// AttemptDelay is the pause between attempts of one batch
	AttemptDelay Duration `validate:"required"`
	// Policy is "abort" to stop the run at the first exhausted batch or
	// "continue" to record the failure and keep going
	Policy string `validate:"required,oneof=abort continue"`
}

// API configures the HTTP planning API
type API struct {
	// Address is the listen address, empty disables the API
	Address string
	// ReadTimeout bounds request reads
	ReadTimeout Duration
	// WriteTimeout bounds response writes
	WriteTimeout Duration
}

// PrizeSlot describes one prize of an auction catalog entry. Pubkeys are
// base58.
type PrizeSlot struct {
	Box           string `validate:"required"`
	Store         string `validate:"required"`
	TokenMint     string `validate:"required"`
	Metadata      string `validate:"required"`
	MasterEdition string
	PrintingMint  string
	Supply        uint64
	MaxSupply     *uint64
	// Method is one of "token", "full-rights", "print", "print-legacy",
	// "participation"
	Method string `validate:"required,oneof=token full-rights print print-legacy participation"`
	Order  uint64
	Amount uint64 `validate:"required,gte=1"`
}

// Participation describes the open-edition prize rules of a catalog entry
type Participation struct {
	// WinnerConstraint and NonWinnerConstraint are "given" or "none"
	WinnerConstraint    string `validate:"required,oneof=given none"`
	NonWinnerConstraint string `validate:"required,oneof=given none"`
	FixedPrice          *uint64
}

// Rank groups the prize slots a single winning rank receives
type Rank struct {
	Slots []PrizeSlot `validate:"required,dive"`
}

// Auction is one catalog entry: the static accounts of an auction this
// node settles. The live auction state is always read from the ledger.
type Auction struct {
	// Name identifies the entry in CLI flags and API paths
	Name          string `validate:"required"`
	Manager       string `validate:"required"`
	Auction       string
	Vault         string `validate:"required"`
	Authority     string `validate:"required"`
	AcceptPayment string `validate:"required"`
	FractionMint  string `validate:"required"`
	Ranks         []Rank `validate:"dive"`

	Participation     *Participation
	ParticipationSlot *PrizeSlot
}

// Config is the full settler node configuration
type Config struct {
	Ledger    Ledger `validate:"required"`
	Programs  ProgramOverrides
	Submitter Submitter `validate:"required"`
	API       API
	Auctions  []Auction `validate:"required,dive"`
}

// Load parses the configuration found in the file at path and validates
// it
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, tracerr.Wrap(fmt.Errorf("error decoding config file %q: %w", path, err))
	}
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, tracerr.Wrap(fmt.Errorf("error validating configuration file: %w", err))
	}
	if _, err := cfg.LedgerPrograms(); err != nil {
		return nil, tracerr.Wrap(err)
	}
	for i := range cfg.Auctions {
		if _, err := cfg.Auctions[i].Catalog(); err != nil {
			return nil, tracerr.Wrap(fmt.Errorf("auction %q: %w", cfg.Auctions[i].Name, err))
		}
	}
	return &cfg, nil
}

// SubmitterConfig converts the submitter section to the settlement
// package's form
func (c *Config) SubmitterConfig() settlement.SubmitterConfig {
	return settlement.SubmitterConfig{
		Attempts:     c.Submitter.Attempts,
		AttemptDelay: c.Submitter.AttemptDelay.Duration,
		Policy:       settlement.FailurePolicy(c.Submitter.Policy),
	}
}

// LedgerPrograms returns the default program set with any configured
// overrides applied
func (c *Config) LedgerPrograms() (ledger.Programs, error) {
	p := ledger.DefaultPrograms()
	apply := func(dst *solana.PublicKey, s string) error {
		if s == "" {
			return nil
		}
		pk, err := solana.PublicKeyFromBase58(s)
		if err != nil {
			return tracerr.Wrap(fmt.Errorf("invalid program id %q: %w", s, err))
		}
		*dst = pk
		return nil
	}
	if err := apply(&p.Auction, c.Programs.Auction); err != nil {
		return p, err
	}
	if err := apply(&p.Settlement, c.Programs.Settlement); err != nil {
		return p, err
	}
	if err := apply(&p.Vault, c.Programs.Vault); err != nil {
		return p, err
	}
	if err := apply(&p.Metadata, c.Programs.Metadata); err != nil {
		return p, err
	}
	return p, nil
}

// AuctionByName finds a catalog entry by its configured name
func (c *Config) AuctionByName(name string) (*Auction, error) {
	for i := range c.Auctions {
		if c.Auctions[i].Name == name {
			return &c.Auctions[i], nil
		}
	}
	return nil, tracerr.Wrap(fmt.Errorf("auction %q not in catalog", name))
}

// Catalog converts the entry to the settlement manager form, parsing
// every pubkey
func (a *Auction) Catalog() (common.AuctionManager, error) {
	var m common.AuctionManager
	var err error
	if m.Address, err = parseKey(a.Manager); err != nil {
		return m, tracerr.Wrap(err)
	}
	if a.Auction != "" {
		if m.Auction, err = parseKey(a.Auction); err != nil {
			return m, tracerr.Wrap(err)
		}
	}
	if m.Vault, err = parseKey(a.Vault); err != nil {
		return m, tracerr.Wrap(err)
	}
	if m.Authority, err = parseKey(a.Authority); err != nil {
		return m, tracerr.Wrap(err)
	}
	if m.AcceptPayment, err = parseKey(a.AcceptPayment); err != nil {
		return m, tracerr.Wrap(err)
	}
	if m.VaultFractionMint, err = parseKey(a.FractionMint); err != nil {
		return m, tracerr.Wrap(err)
	}
	for _, rank := range a.Ranks {
		var slots []common.PrizeSlot
		for i := range rank.Slots {
			slot, err := rank.Slots[i].slot()
			if err != nil {
				return m, tracerr.Wrap(err)
			}
			slots = append(slots, slot)
		}
		m.WinningConfigs = append(m.WinningConfigs, slots)
	}
	if a.Participation != nil {
		cfg := common.ParticipationConfig{
			WinnerConstraint:    parseConstraint(a.Participation.WinnerConstraint),
			NonWinnerConstraint: parseConstraint(a.Participation.NonWinnerConstraint),
			FixedPrice:          a.Participation.FixedPrice,
		}
		m.Participation = &cfg
		if a.ParticipationSlot == nil {
			return m, tracerr.Wrap(fmt.Errorf("participation rules without a participation slot"))
		}
		slot, err := a.ParticipationSlot.slot()
		if err != nil {
			return m, tracerr.Wrap(err)
		}
		if slot.Method != common.ParticipationPrint {
			return m, tracerr.Wrap(fmt.Errorf("participation slot method must be %q", "participation"))
		}
		m.ParticipationSlot = &slot
	}
	return m, nil
}

func (s *PrizeSlot) slot() (common.PrizeSlot, error) {
	var slot common.PrizeSlot
	var err error
	if slot.Box, err = parseKey(s.Box); err != nil {
		return slot, tracerr.Wrap(err)
	}
	if slot.Store, err = parseKey(s.Store); err != nil {
		return slot, tracerr.Wrap(err)
	}
	if slot.TokenMint, err = parseKey(s.TokenMint); err != nil {
		return slot, tracerr.Wrap(err)
	}
	if slot.Metadata, err = parseKey(s.Metadata); err != nil {
		return slot, tracerr.Wrap(err)
	}
	if s.MasterEdition != "" {
		me := common.MasterEdition{Supply: s.Supply, MaxSupply: s.MaxSupply}
		if me.Address, err = parseKey(s.MasterEdition); err != nil {
			return slot, tracerr.Wrap(err)
		}
		if s.PrintingMint != "" {
			if me.PrintingMint, err = parseKey(s.PrintingMint); err != nil {
				return slot, tracerr.Wrap(err)
			}
		}
		slot.MasterEdition = &me
	}
	switch s.Method {
	case "token":
		slot.Method = common.TokenOnlyTransfer
	case "full-rights":
		slot.Method = common.FullRightsTransfer
	case "print":
		slot.Method = common.PrintEdition
	case "print-legacy":
		slot.Method = common.PrintEditionLegacy
	case "participation":
		slot.Method = common.ParticipationPrint
	default:
		return slot, tracerr.Wrap(fmt.Errorf("unknown settlement method %q", s.Method))
	}
	slot.Order = s.Order
	slot.Amount = s.Amount
	return slot, nil
}

func parseConstraint(s string) common.ParticipationConstraint {
	if s == "given" {
		return common.ParticipationPrizeGiven
	}
	return common.NoParticipationPrize
}

func parseKey(s string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return solana.PublicKey{}, tracerr.Wrap(fmt.Errorf("invalid pubkey %q: %w", s, err))
	}
	return pk, nil
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hermeznetwork/tracerr"
	"github.com/urfave/cli/v2"

	"github.com/metaprize/settler-node/api"
	"github.com/metaprize/settler-node/config"
	"github.com/metaprize/settler-node/ledger"
	"github.com/metaprize/settler-node/log"
	"github.com/metaprize/settler-node/settlement"
)

const (
	flagCfg      = "cfg"
	flagAuction  = "auction"
	flagAction   = "action"
	flagIdentity = "identity"
	flagLogLevel = "loglevel"

	actionRedeem = "redeem"
	actionCancel = "cancel"
	actionSweep  = "sweep"
)

const version = "0.1.0"

type env struct {
	cfg      *config.Config
	client   *ledger.RPCClient
	programs ledger.Programs
}

func setup(c *cli.Context) (*env, error) {
	log.Init(c.String(flagLogLevel), "")
	cfgPath := c.String(flagCfg)
	if cfgPath == "" {
		return nil, tracerr.Wrap(fmt.Errorf("required flag %q not set", flagCfg))
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, tracerr.Wrap(fmt.Errorf("error loading config: %w", err))
	}
	programs, err := cfg.LedgerPrograms()
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	key, err := solana.PrivateKeyFromSolanaKeygenFile(cfg.Ledger.KeyFile)
	if err != nil {
		return nil, tracerr.Wrap(fmt.Errorf("error loading keypair %q: %w",
			cfg.Ledger.KeyFile, err))
	}
	client := ledger.NewRPCClient(ledger.RPCClientConfig{
		URL:            cfg.Ledger.URL,
		Commitment:     rpc.CommitmentType(cfg.Ledger.Commitment),
		ConfirmTimeout: cfg.Ledger.ConfirmTimeout.Duration,
		PollInterval:   cfg.Ledger.PollInterval.Duration,
	}, key)
	log.Infow("Settler node initialized", "identity", client.Payer().String(),
		"auctions", len(cfg.Auctions))
	return &env{cfg: cfg, client: client, programs: programs}, nil
}

func plan(c *cli.Context, e *env, identity solana.PublicKey) ([]settlement.Batch, error) {
	entry, err := e.cfg.AuctionByName(c.String(flagAuction))
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	manager, err := entry.Catalog()
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	loader := settlement.NewSnapshotLoader(e.client, e.programs)
	snap, err := loader.Load(c.Context, manager, identity)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	planner := settlement.NewPlanner(e.client, e.programs)
	switch c.String(flagAction) {
	case actionRedeem:
		return planner.PlanRedemption(c.Context, snap, identity)
	case actionCancel:
		batch, err := planner.PlanCancellation(c.Context, snap, identity)
		if err != nil || batch == nil {
			return nil, tracerr.Wrap(err)
		}
		return []settlement.Batch{*batch}, nil
	case actionSweep:
		return planner.SweepUnclaimed(c.Context, snap, identity)
	default:
		return nil, tracerr.Wrap(fmt.Errorf("invalid action %q", c.String(flagAction)))
	}
}

func cmdPlan(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return tracerr.Wrap(err)
	}
	identity := e.client.Payer()
	if s := c.String(flagIdentity); s != "" {
		if identity, err = solana.PublicKeyFromBase58(s); err != nil {
			return tracerr.Wrap(err)
		}
	}
	batches, err := plan(c, e, identity)
	if err != nil {
		return tracerr.Wrap(err)
	}
	log.Infow("Plan computed", "batches", len(batches))
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return tracerr.Wrap(enc.Encode(planSummary(batches)))
}

type batchSummary struct {
	Kind         string  `json:"kind"`
	Rank         *uint64 `json:"rank"`
	Order        uint64  `json:"order"`
	Unit         uint64  `json:"unit"`
	Instructions int     `json:"instructions"`
}

func planSummary(batches []settlement.Batch) []batchSummary {
	out := make([]batchSummary, 0, len(batches))
	for _, b := range batches {
		s := batchSummary{
			Kind:         b.Kind.String(),
			Order:        b.Order,
			Unit:         b.Unit,
			Instructions: len(b.Instructions),
		}
		if b.Rank != settlement.NoRank {
			r := b.Rank
			s.Rank = &r
		}
		out = append(out, s)
	}
	return out
}

func cmdSettle(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return tracerr.Wrap(err)
	}
	batches, err := plan(c, e, e.client.Payer())
	if err != nil {
		return tracerr.Wrap(err)
	}
	if len(batches) == 0 {
		log.Info("Nothing to settle")
		return nil
	}
	submitter := settlement.NewBatchSubmitter(e.client, e.cfg.SubmitterConfig())
	results, err := submitter.SubmitAll(c.Context, batches, nil)
	confirmed := 0
	for _, res := range results {
		if res.Err == nil {
			confirmed++
		}
	}
	log.Infow("Settlement run finished", "batches", len(batches),
		"attempted", len(results), "confirmed", confirmed)
	if err != nil {
		return tracerr.Wrap(err)
	}
	return nil
}

func cmdServe(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return tracerr.Wrap(err)
	}
	if e.cfg.API.Address == "" {
		return tracerr.Wrap(fmt.Errorf("API.Address not configured"))
	}
	engine := gin.Default()
	engine.Use(cors.Default())
	if _, err := api.NewAPI(engine, e.cfg, e.client, version); err != nil {
		return tracerr.Wrap(err)
	}
	server := &http.Server{
		Addr:           e.cfg.API.Address,
		Handler:        engine,
		ReadTimeout:    e.cfg.API.ReadTimeout.Duration,
		WriteTimeout:   e.cfg.API.WriteTimeout.Duration,
		MaxHeaderBytes: 1 << 20,
	}
	go func() {
		log.Infof("API is ready at %v", e.cfg.API.Address)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Listen: %s\n", err)
		}
	}()

	ossig := make(chan os.Signal, 1)
	signal.Notify(ossig, os.Interrupt)
	<-ossig
	log.Info("Stopping API server...")
	return tracerr.Wrap(server.Shutdown(context.Background()))
}

func main() {
	app := cli.NewApp()
	app.Name = "settler"
	app.Version = version
	app.Usage = "Plans and submits auction settlement batches"
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:     flagCfg,
			Usage:    "Node configuration `FILE`",
			Required: true,
		},
		&cli.StringFlag{
			Name:  flagLogLevel,
			Usage: "Log `LEVEL` (debug|info|warn|error)",
			Value: "info",
		},
	}

	auctionFlag := &cli.StringFlag{
		Name:     flagAuction,
		Usage:    "Catalog `NAME` of the auction",
		Required: true,
	}
	actionFlag := &cli.StringFlag{
		Name: flagAction,
		Usage: fmt.Sprintf("Settlement `ACTION` (can be %q, %q or %q)",
			actionRedeem, actionCancel, actionSweep),
		Value: actionRedeem,
	}

	app.Commands = []*cli.Command{
		{
			Name:   "plan",
			Usage:  "Compute and print the settlement batches without submitting",
			Action: cmdPlan,
			Flags: []cli.Flag{
				auctionFlag,
				actionFlag,
				&cli.StringFlag{
					Name:  flagIdentity,
					Usage: "Plan for `PUBKEY` instead of the node identity",
				},
			},
		},
		{
			Name:   "settle",
			Usage:  "Compute the settlement batches and submit them",
			Action: cmdSettle,
			Flags:  []cli.Flag{auctionFlag, actionFlag},
		},
		{
			Name:   "serve",
			Usage:  "Run the HTTP planning API",
			Action: cmdServe,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Printf("\nError: %v\n", tracerr.Sprint(err))
		os.Exit(1)
	}
}

package api

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/hermeznetwork/tracerr"

	"github.com/metaprize/settler-node/config"
	"github.com/metaprize/settler-node/ledger"
	"github.com/metaprize/settler-node/settlement"
)

// API serves HTTP requests that plan and submit settlement work for the
// auctions in the node's catalog
type API struct {
	cfg       *config.Config
	programs  ledger.Programs
	client    ledger.Client
	planner   *settlement.Planner
	loader    *settlement.SnapshotLoader
	submitter *settlement.BatchSubmitter
}

// NewAPI sets the endpoints and the appropriate handlers, but doesn't
// start the server
func NewAPI(server *gin.Engine, cfg *config.Config, client ledger.Client,
	version string) (*API, error) {
	if client == nil {
		return nil, tracerr.Wrap(errors.New("cannot serve API without a ledger client"))
	}
	programs, err := cfg.LedgerPrograms()
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	a := &API{
		cfg:       cfg,
		programs:  programs,
		client:    client,
		planner:   settlement.NewPlanner(client, programs),
		loader:    settlement.NewSnapshotLoader(client, programs),
		submitter: settlement.NewBatchSubmitter(client, cfg.SubmitterConfig()),
	}

	server.GET("/health", gin.WrapH(a.healthRoute(version)))

	v1 := server.Group("/v1")
	v1.GET("/auctions", a.getAuctions)
	v1.GET("/auctions/:name", a.getAuction)
	v1.POST("/auctions/:name/plans/redemption", a.postPlanRedemption)
	v1.POST("/auctions/:name/plans/cancellation", a.postPlanCancellation)
	v1.POST("/auctions/:name/plans/sweep", a.postPlanSweep)
	v1.POST("/auctions/:name/settle", a.postSettle)

	return a, nil
}

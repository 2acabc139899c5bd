package api

import (
	"context"
	"net/http"
	"time"

	"github.com/dimiro1/health"

	"github.com/metaprize/settler-node/ledger"
)

// ledgerChecker reports the RPC endpoint reachable when a trivial read
// succeeds
type ledgerChecker struct {
	reader ledger.Reader
}

func (c ledgerChecker) Check() health.Health {
	h := health.NewHealth()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := c.reader.MinimumReserve(ctx, 0); err != nil {
		h.Down().AddInfo("error", err.Error())
		return h
	}
	h.Up()
	return h
}

func (a *API) healthRoute(version string) http.Handler {
	healthHandler := health.NewHandler()
	healthHandler.AddChecker("ledger", ledgerChecker{reader: a.client})
	healthHandler.AddInfo("version", version)
	healthHandler.AddInfo("timestamp", time.Now().UTC())
	healthHandler.AddInfo("identity", a.client.Payer().String())
	healthHandler.AddInfo("auctions", len(a.cfg.Auctions))
	return healthHandler
}

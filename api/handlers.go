package api

import (
	"errors"
	"net/http"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"github.com/hermeznetwork/tracerr"

	"github.com/metaprize/settler-node/common"
	"github.com/metaprize/settler-node/log"
	"github.com/metaprize/settler-node/settlement"
)

type errorMsg struct {
	Message string `json:"message"`
}

func retBadReq(err error, c *gin.Context) {
	log.Debugw("API bad request", "err", err)
	c.JSON(http.StatusBadRequest, errorMsg{Message: err.Error()})
}

func retErr(err error, c *gin.Context) {
	log.Errorw("API internal error", "err", err)
	c.JSON(http.StatusInternalServerError, errorMsg{Message: err.Error()})
}

func (a *API) getAuctions(c *gin.Context) {
	names := make([]string, 0, len(a.cfg.Auctions))
	for i := range a.cfg.Auctions {
		names = append(names, a.cfg.Auctions[i].Name)
	}
	c.JSON(http.StatusOK, gin.H{"auctions": names})
}

func (a *API) getAuction(c *gin.Context) {
	entry, err := a.cfg.AuctionByName(c.Param("name"))
	if err != nil {
		retBadReq(err, c)
		return
	}
	manager, err := entry.Catalog()
	if err != nil {
		retErr(err, c)
		return
	}
	snap, err := a.loader.Load(c.Request.Context(), manager, a.client.Payer())
	if err != nil {
		retErr(err, c)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"name":       entry.Name,
		"auction":    snap.Auction.Address.String(),
		"state":      snap.Auction.State.String(),
		"numWinners": snap.Auction.BidState.NumWinners(),
		"bidders":    len(snap.Bidders),
	})
}

type planRequest struct {
	// Identity overrides the node's own key as the party planned for.
	// Plans for a foreign identity can be inspected but not submitted.
	Identity string `json:"identity"`
}

func (a *API) planIdentity(c *gin.Context) (solana.PublicKey, bool) {
	// an empty body plans for the node's own identity
	var req planRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			retBadReq(tracerr.Wrap(err), c)
			return solana.PublicKey{}, false
		}
	}
	if req.Identity == "" {
		return a.client.Payer(), true
	}
	pk, err := solana.PublicKeyFromBase58(req.Identity)
	if err != nil {
		retBadReq(tracerr.Wrap(err), c)
		return solana.PublicKey{}, false
	}
	return pk, true
}

func (a *API) loadSnapshot(c *gin.Context, identity solana.PublicKey) (*common.AuctionSnapshot, bool) {
	entry, err := a.cfg.AuctionByName(c.Param("name"))
	if err != nil {
		retBadReq(err, c)
		return nil, false
	}
	manager, err := entry.Catalog()
	if err != nil {
		retErr(err, c)
		return nil, false
	}
	snap, err := a.loader.Load(c.Request.Context(), manager, identity)
	if err != nil {
		retErr(err, c)
		return nil, false
	}
	return snap, true
}

func (a *API) postPlanRedemption(c *gin.Context) {
	identity, ok := a.planIdentity(c)
	if !ok {
		return
	}
	snap, ok := a.loadSnapshot(c, identity)
	if !ok {
		return
	}
	batches, err := a.planner.PlanRedemption(c.Request.Context(), snap, identity)
	if err != nil {
		retErr(err, c)
		return
	}
	c.JSON(http.StatusOK, newPlanResponse(batches))
}

func (a *API) postPlanCancellation(c *gin.Context) {
	identity, ok := a.planIdentity(c)
	if !ok {
		return
	}
	snap, ok := a.loadSnapshot(c, identity)
	if !ok {
		return
	}
	batch, err := a.planner.PlanCancellation(c.Request.Context(), snap, identity)
	if err != nil {
		retErr(err, c)
		return
	}
	var batches []settlement.Batch
	if batch != nil {
		batches = append(batches, *batch)
	}
	c.JSON(http.StatusOK, newPlanResponse(batches))
}

func (a *API) postPlanSweep(c *gin.Context) {
	identity := a.client.Payer()
	snap, ok := a.loadSnapshot(c, identity)
	if !ok {
		return
	}
	batches, err := a.planner.SweepUnclaimed(c.Request.Context(), snap, identity)
	if err != nil {
		if errors.Is(tracerr.Unwrap(err), common.ErrNotAuthority) {
			c.JSON(http.StatusForbidden, errorMsg{Message: err.Error()})
			return
		}
		retErr(err, c)
		return
	}
	c.JSON(http.StatusOK, newPlanResponse(batches))
}

type settleRequest struct {
	// Mode is "redeem", "cancel" or "sweep"
	Mode string `json:"mode" binding:"required"`
}

func (a *API) postSettle(c *gin.Context) {
	var req settleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		retBadReq(tracerr.Wrap(err), c)
		return
	}
	identity := a.client.Payer()
	snap, ok := a.loadSnapshot(c, identity)
	if !ok {
		return
	}

	var batches []settlement.Batch
	var err error
	switch req.Mode {
	case "redeem":
		batches, err = a.planner.PlanRedemption(c.Request.Context(), snap, identity)
	case "cancel":
		var batch *settlement.Batch
		batch, err = a.planner.PlanCancellation(c.Request.Context(), snap, identity)
		if batch != nil {
			batches = append(batches, *batch)
		}
	case "sweep":
		batches, err = a.planner.SweepUnclaimed(c.Request.Context(), snap, identity)
	default:
		retBadReq(tracerr.Wrap(errors.New("mode must be redeem, cancel or sweep")), c)
		return
	}
	if err != nil {
		if errors.Is(tracerr.Unwrap(err), common.ErrNotAuthority) {
			c.JSON(http.StatusForbidden, errorMsg{Message: err.Error()})
			return
		}
		retErr(err, c)
		return
	}

	results, err := a.submitter.SubmitAll(c.Request.Context(), batches, nil)
	resp := newSubmitResponse(results)
	if err != nil {
		resp.Aborted = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/opinionlabs/settlement-engine/internal/engine"
	"github.com/opinionlabs/settlement-engine/internal/engine/ident"
)

// MarketReader is the narrow read-path dependency the handler needs beyond
// the Engine itself, for lookups the Engine's own MarketStore interface has
// no reason to expose (external-id lookups, ticket listing).
type MarketReader interface {
	GetMarketByExternalID(ctx context.Context, externalID string) (*engine.Market, error)
}

// TicketReader lists a market's tickets for the read surface.
type TicketReader interface {
	ListTicketsByMarket(ctx context.Context, marketID ident.ID) ([]*engine.Ticket, error)
}

// EngineHandler exposes the engine's six instructions and a handful of read
// projections over HTTP. Mutations all go through the Engine so the
// precondition order and escrow conservation invariants hold regardless of
// transport; reads bypass it and hit the stores directly.
type EngineHandler struct {
	engine  *engine.Engine
	markets MarketReader
	tickets TicketReader
	logger  *slog.Logger
}

// NewEngineHandler creates an EngineHandler backed by the given Engine and
// read-path stores.
func NewEngineHandler(e *engine.Engine, markets MarketReader, tickets TicketReader, logger *slog.Logger) *EngineHandler {
	return &EngineHandler{engine: e, markets: markets, tickets: tickets, logger: logger}
}

// GetMarket handles GET /api/markets/{externalID}.
func (h *EngineHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	log := logHandler(h.logger, "get_market")

	m, err := h.markets.GetMarketByExternalID(r.Context(), pathParam(r, "externalID"))
	if err != nil {
		writeEngineError(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// ListTickets handles GET /api/markets/{externalID}/tickets.
func (h *EngineHandler) ListTickets(w http.ResponseWriter, r *http.Request) {
	log := logHandler(h.logger, "list_tickets")

	m, err := h.markets.GetMarketByExternalID(r.Context(), pathParam(r, "externalID"))
	if err != nil {
		writeEngineError(w, log, err)
		return
	}

	tickets, err := h.tickets.ListTicketsByMarket(r.Context(), m.ID)
	if err != nil {
		writeEngineError(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, tickets)
}

type openRequestBody struct {
	ExternalID string    `json:"external_id"`
	Title      string    `json:"title"`
	LabelA     string    `json:"label_a"`
	LabelB     string    `json:"label_b"`
	Authority  string    `json:"authority"`
	EndsAt     time.Time `json:"ends_at"`
}

// OpenMarket handles POST /api/markets.
func (h *EngineHandler) OpenMarket(w http.ResponseWriter, r *http.Request) {
	log := logHandler(h.logger, "open_market")

	var body openRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	m, err := h.engine.Open(r.Context(), engine.OpenRequest{
		ExternalID: body.ExternalID,
		Title:      body.Title,
		LabelA:     body.LabelA,
		LabelB:     body.LabelB,
		Authority:  body.Authority,
		EndsAt:     body.EndsAt,
	})
	if err != nil {
		writeEngineError(w, log, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

type stakeRequestBody struct {
	Principal         string `json:"principal"`
	ClientTicketIndex uint64 `json:"client_ticket_index"`
	Outcome           int    `json:"outcome"`
	Amount            uint64 `json:"amount"`
}

// Stake handles POST /api/markets/{externalID}/stake.
func (h *EngineHandler) Stake(w http.ResponseWriter, r *http.Request) {
	log := logHandler(h.logger, "stake")

	var body stakeRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	t, err := h.engine.Stake(r.Context(), engine.StakeRequest{
		ExternalID:        pathParam(r, "externalID"),
		Principal:         body.Principal,
		ClientTicketIndex: body.ClientTicketIndex,
		Outcome:           engine.Outcome(body.Outcome),
		Amount:            body.Amount,
	})
	if err != nil {
		writeEngineError(w, log, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

type settleRequestBody struct {
	Authority      string `json:"authority"`
	WinningOutcome int    `json:"winning_outcome"`
}

// Settle handles POST /api/markets/{externalID}/settle.
func (h *EngineHandler) Settle(w http.ResponseWriter, r *http.Request) {
	log := logHandler(h.logger, "settle")

	var body settleRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	m, err := h.engine.Settle(r.Context(), engine.SettleRequest{
		ExternalID:     pathParam(r, "externalID"),
		Authority:      body.Authority,
		WinningOutcome: engine.Outcome(body.WinningOutcome),
	})
	if err != nil {
		writeEngineError(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

type cancelRequestBody struct {
	Authority string `json:"authority"`
}

// Cancel handles POST /api/markets/{externalID}/cancel.
func (h *EngineHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	log := logHandler(h.logger, "cancel")

	var body cancelRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	m, err := h.engine.Cancel(r.Context(), engine.CancelRequest{
		ExternalID: pathParam(r, "externalID"),
		Authority:  body.Authority,
	})
	if err != nil {
		writeEngineError(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

type claimRequestBody struct {
	Principal string `json:"principal"`
	TicketID  string `json:"ticket_id"`
}

type claimPayoutRequestBody struct {
	Principal string `json:"principal"`
	TicketID  string `json:"ticket_id"`
	Treasury  string `json:"treasury"`
}

// ClaimPayout handles POST /api/markets/{externalID}/claim-payout.
func (h *EngineHandler) ClaimPayout(w http.ResponseWriter, r *http.Request) {
	log := logHandler(h.logger, "claim_payout")

	var body claimPayoutRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	payout, err := h.engine.ClaimPayout(r.Context(), engine.ClaimPayoutRequest{
		ExternalID: pathParam(r, "externalID"),
		Principal:  body.Principal,
		TicketID:   ident.ID(body.TicketID),
		Treasury:   body.Treasury,
	})
	if err != nil {
		writeEngineError(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"payout": payout})
}

// ClaimRefund handles POST /api/markets/{externalID}/claim-refund.
func (h *EngineHandler) ClaimRefund(w http.ResponseWriter, r *http.Request) {
	log := logHandler(h.logger, "claim_refund")

	var body claimRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	refund, err := h.engine.ClaimRefund(r.Context(), engine.ClaimRefundRequest{
		ExternalID: pathParam(r, "externalID"),
		Principal:  body.Principal,
		TicketID:   ident.ID(body.TicketID),
	})
	if err != nil {
		writeEngineError(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"refund": refund})
}

// writeEngineError maps a domain *engine.Error onto an HTTP status code,
// falling back to 500 for infra errors that never reach the wire as Codes.
func writeEngineError(w http.ResponseWriter, log *slog.Logger, err error) {
	ee, ok := engine.AsError(err)
	if !ok {
		log.Error("unhandled error", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	status := http.StatusBadRequest
	switch ee.Code {
	case engine.CodeNotFound:
		status = http.StatusNotFound
	case engine.CodeUnauthorized, engine.CodeTicketNotOwned:
		status = http.StatusForbidden
	case engine.CodeIndexConflict:
		status = http.StatusConflict
	}

	writeJSON(w, status, map[string]string{"code": string(ee.Code), "error": ee.Message})
}

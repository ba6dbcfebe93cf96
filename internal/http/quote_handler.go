package http

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"

	"github.com/blockworks-foundation/autobahn-sub002/internal/domain"
	"github.com/blockworks-foundation/autobahn-sub002/internal/http/httputil"
	"github.com/blockworks-foundation/autobahn-sub002/internal/router"
)

type QuoteHandler struct {
	router *router.Router
	cache  *router.QuoteCache

	defaultSlippageBps uint64
	accountCeiling     int
}

func NewQuoteHandler(r *router.Router, cache *router.QuoteCache, defaultSlippageBps uint64, accountCeiling int) *QuoteHandler {
	return &QuoteHandler{
		router:             r,
		cache:              cache,
		defaultSlippageBps: defaultSlippageBps,
		accountCeiling:     accountCeiling,
	}
}

func (h *QuoteHandler) Root() string {
	return "/quote"
}

func (h *QuoteHandler) SetRoutes(g *gin.RouterGroup) {
	g.GET("", h.getQuote)
}

// QuoteRequest carries the query parameters of a quote call. Amount is in
// smallest token units.
type QuoteRequest struct {
	InputMint   string `form:"inputMint" binding:"required"`
	OutputMint  string `form:"outputMint" binding:"required"`
	Amount      string `form:"amount" binding:"required"`
	SwapMode    string `form:"swapMode"`
	SlippageBps uint64 `form:"slippageBps"`
	MaxHops     int    `form:"maxHops"`

	// Comma-separated venue names, e.g. "Cpmm,Clmm".
	IncludeVenues string `form:"includeVenues"`
	ExcludeVenues string `form:"excludeVenues"`
}

// StepInfo describes one hop of the returned route.
type StepInfo struct {
	Pool       string `json:"pool"`
	Venue      string `json:"venue"`
	InputMint  string `json:"inputMint"`
	OutputMint string `json:"outputMint"`
	InAmount   string `json:"inAmount"`
	OutAmount  string `json:"outAmount"`
	FeeAmount  string `json:"feeAmount"`
	FeeMint    string `json:"feeMint"`
}

type QuoteResponse struct {
	InputMint  string `json:"inputMint"`
	OutputMint string `json:"outputMint"`
	SwapMode   string `json:"swapMode"`
	InAmount   string `json:"inAmount"`
	OutAmount  string `json:"outAmount"`

	// Minimum output (ExactIn) or maximum input (ExactOut) after slippage.
	OtherAmountThreshold string `json:"otherAmountThreshold"`

	Steps    []StepInfo `json:"steps"`
	HopCount int        `json:"hopCount"`
	Slot     uint64     `json:"slot"`

	CUEstimate   uint32 `json:"cuEstimate"`
	AccountCount int    `json:"accountCount"`
}

func (h *QuoteHandler) parseRequest(c *gin.Context) (router.Request, uint64, bool) {
	var q QuoteRequest
	if err := c.ShouldBindQuery(&q); err != nil {
		httputil.BadRequest(c, "invalid query parameters: "+err.Error())
		return router.Request{}, 0, false
	}

	inputMint, err := solana.PublicKeyFromBase58(q.InputMint)
	if err != nil {
		httputil.BadRequest(c, "invalid inputMint address")
		return router.Request{}, 0, false
	}
	outputMint, err := solana.PublicKeyFromBase58(q.OutputMint)
	if err != nil {
		httputil.BadRequest(c, "invalid outputMint address")
		return router.Request{}, 0, false
	}

	amount, err := strconv.ParseUint(q.Amount, 10, 64)
	if err != nil || amount == 0 {
		httputil.BadRequest(c, "invalid amount: must be a positive integer")
		return router.Request{}, 0, false
	}

	mode := domain.SwapModeExactIn
	if q.SwapMode != "" {
		mode, err = domain.ParseSwapMode(q.SwapMode)
		if err != nil {
			httputil.BadRequest(c, "invalid swapMode: must be ExactIn or ExactOut")
			return router.Request{}, 0, false
		}
	}

	slippage := q.SlippageBps
	if slippage == 0 {
		slippage = h.defaultSlippageBps
	}
	if slippage >= 10_000 {
		httputil.BadRequest(c, "slippageBps must be below 10000")
		return router.Request{}, 0, false
	}

	include, ok := parseVenueList(q.IncludeVenues)
	if !ok {
		httputil.BadRequest(c, "invalid includeVenues")
		return router.Request{}, 0, false
	}
	exclude, ok := parseVenueList(q.ExcludeVenues)
	if !ok {
		httputil.BadRequest(c, "invalid excludeVenues")
		return router.Request{}, 0, false
	}

	return router.Request{
		InputMint:     inputMint,
		OutputMint:    outputMint,
		Amount:        amount,
		Mode:          mode,
		MaxHops:       q.MaxHops,
		IncludeVenues: include,
		ExcludeVenues: exclude,
	}, slippage, true
}

func parseVenueList(s string) ([]domain.VenueKind, bool) {
	if s == "" {
		return nil, true
	}
	parts := strings.Split(s, ",")
	kinds := make([]domain.VenueKind, 0, len(parts))
	for _, p := range parts {
		k, ok := domain.ParseVenueKind(strings.TrimSpace(p))
		if !ok {
			return nil, false
		}
		kinds = append(kinds, k)
	}
	return kinds, true
}

func (h *QuoteHandler) getQuote(c *gin.Context) {
	req, slippage, ok := h.parseRequest(c)
	if !ok {
		return
	}

	routes, hit := h.cache.Get(req)
	if !hit {
		var err error
		routes, err = h.router.FindRoutes(c.Request.Context(), req)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrNoRouteFound), errors.Is(err, domain.ErrTokenNotFound):
				httputil.NotFound(c, "no route found: "+err.Error())
			default:
				httputil.InternalError(c, err.Error())
			}
			return
		}
		h.cache.Put(req, routes)
	}

	// Routes come back best first. A route whose plan cannot fit the
	// account ceiling is skipped in favor of the next one.
	for _, rt := range routes {
		plan, err := router.AssemblePlan(rt, h.router.Graph().EdgeState, slippage, h.accountCeiling)
		if err != nil {
			if errors.Is(err, domain.ErrPlanTooLarge) || errors.Is(err, domain.ErrEdgeNotFound) {
				continue
			}
			httputil.InternalError(c, err.Error())
			return
		}
		httputil.Success(c, buildQuoteResponse(rt, plan, req.Mode, slippage))
		return
	}
	httputil.UnprocessableEntity(c, "no route fits the transaction account limit")
}

func buildQuoteResponse(rt *domain.Route, plan *domain.SwapPlan, mode domain.SwapMode, slippage uint64) QuoteResponse {
	var threshold uint64
	if mode == domain.SwapModeExactIn {
		// Split form keeps the product inside uint64 for large quotes.
		haircut := (rt.OutAmount/10_000)*slippage + (rt.OutAmount%10_000)*slippage/10_000
		threshold = rt.OutAmount - haircut
	} else {
		// Max input divides by (1 - slippage); multiplying the input by
		// (1 + slippage) underestimates and gets transactions rejected.
		keep := 10_000 - slippage
		threshold = (rt.InAmount/keep)*10_000 + (rt.InAmount%keep)*10_000/keep
	}

	steps := make([]StepInfo, 0, len(rt.Steps))
	for _, s := range rt.Steps {
		steps = append(steps, StepInfo{
			Pool:       s.Edge.Pool.String(),
			Venue:      s.Edge.Venue.String(),
			InputMint:  s.Edge.InputMint.String(),
			OutputMint: s.Edge.OutputMint.String(),
			InAmount:   strconv.FormatUint(s.InAmount, 10),
			OutAmount:  strconv.FormatUint(s.OutAmount, 10),
			FeeAmount:  strconv.FormatUint(s.FeeAmount, 10),
			FeeMint:    s.FeeMint.String(),
		})
	}

	return QuoteResponse{
		InputMint:            rt.InputMint.String(),
		OutputMint:           rt.OutputMint.String(),
		SwapMode:             mode.String(),
		InAmount:             strconv.FormatUint(rt.InAmount, 10),
		OutAmount:            strconv.FormatUint(rt.OutAmount, 10),
		OtherAmountThreshold: strconv.FormatUint(threshold, 10),
		Steps:                steps,
		HopCount:             rt.HopCount(),
		Slot:                 rt.Slot,
		CUEstimate:           plan.CUEstimate,
		AccountCount:         plan.Accounts.Cardinality(),
	}
}

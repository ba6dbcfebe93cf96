package http

import (
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"

	"github.com/blockworks-foundation/autobahn-sub002/internal/domain"
	"github.com/blockworks-foundation/autobahn-sub002/internal/graph"
	"github.com/blockworks-foundation/autobahn-sub002/internal/http/httputil"
	"github.com/blockworks-foundation/autobahn-sub002/internal/venues"
)

type PoolHandler struct {
	graph    *graph.TokenGraph
	registry *venues.Registry
}

func NewPoolHandler(g *graph.TokenGraph, registry *venues.Registry) *PoolHandler {
	return &PoolHandler{graph: g, registry: registry}
}

func (h *PoolHandler) Root() string {
	return "/edges"
}

func (h *PoolHandler) SetRoutes(g *gin.RouterGroup) {
	g.GET("/stats", h.getStats)
	g.GET("/list", h.listEdges)
	g.GET("/mint/:mint", h.edgesByMint)
	g.GET("/venue/:venue", h.edgesByVenue)
}

type StatsResponse struct {
	EdgeCount     int    `json:"edge_count"`
	TokenCount    int    `json:"token_count"`
	UpdateCount   uint64 `json:"update_count"`
	TrackedVaults int    `json:"tracked_vaults"`
	Venues        int    `json:"venues"`
}

func (h *PoolHandler) getStats(c *gin.Context) {
	httputil.Success(c, StatsResponse{
		EdgeCount:     h.graph.EdgeCount(),
		TokenCount:    h.graph.Registry().Size(),
		UpdateCount:   h.graph.UpdateCount(),
		TrackedVaults: h.registry.TrackedVaults(),
		Venues:        len(h.registry.Adapters()),
	})
}

type EdgeInfo struct {
	Pool       string `json:"pool"`
	Venue      string `json:"venue"`
	InputMint  string `json:"inputMint"`
	OutputMint string `json:"outputMint"`
	Slot       uint64 `json:"slot"`
}

type EdgeListResponse struct {
	Edges []EdgeInfo `json:"edges"`
	Total int        `json:"total"`
	Page  int        `json:"page"`
	Limit int        `json:"limit"`
	Pages int        `json:"pages"`
}

func (h *PoolHandler) listEdges(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}

	ids := h.graph.EdgeIDs()
	total := len(ids)
	pages := (total + limit - 1) / limit
	offset := (page - 1) * limit
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	edges := make([]EdgeInfo, 0, end-offset)
	for _, id := range ids[offset:end] {
		info := EdgeInfo{
			Pool:       id.Pool.String(),
			Venue:      id.Venue.String(),
			InputMint:  id.InputMint.String(),
			OutputMint: id.OutputMint.String(),
		}
		if e, ok := h.graph.EdgeState(id); ok {
			info.Slot = e.Slot()
		}
		edges = append(edges, info)
	}

	httputil.Success(c, EdgeListResponse{
		Edges: edges,
		Total: total,
		Page:  page,
		Limit: limit,
		Pages: pages,
	})
}

// edgesByVenue runs the venue adapter's discovery scan, so it reflects what
// is decodable from the store right now rather than what the graph holds.
func (h *PoolHandler) edgesByVenue(c *gin.Context) {
	kind, ok := domain.ParseVenueKind(c.Param("venue"))
	if !ok {
		httputil.BadRequest(c, "unknown venue")
		return
	}
	for _, a := range h.registry.Adapters() {
		if a.Kind() != kind {
			continue
		}
		ids := a.Discover()
		edges := make([]EdgeInfo, 0, len(ids))
		for _, id := range ids {
			edges = append(edges, EdgeInfo{
				Pool:       id.Pool.String(),
				Venue:      id.Venue.String(),
				InputMint:  id.InputMint.String(),
				OutputMint: id.OutputMint.String(),
			})
		}
		httputil.Success(c, edges)
		return
	}
	httputil.NotFound(c, "venue not registered")
}

func (h *PoolHandler) edgesByMint(c *gin.Context) {
	mint, err := solana.PublicKeyFromBase58(c.Param("mint"))
	if err != nil {
		httputil.BadRequest(c, "invalid mint address")
		return
	}

	out := h.graph.OutgoingEdges(mint)
	if len(out) == 0 {
		httputil.NotFound(c, "no edges for mint")
		return
	}

	edges := make([]EdgeInfo, 0, len(out))
	for _, e := range out {
		id := e.ID()
		edges = append(edges, EdgeInfo{
			Pool:       id.Pool.String(),
			Venue:      id.Venue.String(),
			InputMint:  id.InputMint.String(),
			OutputMint: id.OutputMint.String(),
			Slot:       e.Slot(),
		})
	}
	httputil.Success(c, edges)
}

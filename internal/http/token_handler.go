package http

import (
	"sort"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"

	"github.com/blockworks-foundation/autobahn-sub002/internal/domain"
	"github.com/blockworks-foundation/autobahn-sub002/internal/http/httputil"
)

type TokenHandler struct {
	tokens *domain.TokenCache
}

func NewTokenHandler(tokens *domain.TokenCache) *TokenHandler {
	return &TokenHandler{tokens: tokens}
}

func (h *TokenHandler) Root() string {
	return "/tokens"
}

func (h *TokenHandler) SetRoutes(g *gin.RouterGroup) {
	g.GET("/list", h.listTokens)
	g.GET("/:mint", h.getToken)
}

func (h *TokenHandler) listTokens(c *gin.Context) {
	tokens := h.tokens.All()
	sort.Slice(tokens, func(i, j int) bool {
		return tokens[i].Mint.String() < tokens[j].Mint.String()
	})
	httputil.Success(c, tokens)
}

func (h *TokenHandler) getToken(c *gin.Context) {
	mint, err := solana.PublicKeyFromBase58(c.Param("mint"))
	if err != nil {
		httputil.BadRequest(c, "invalid mint address")
		return
	}

	tok, err := h.tokens.Token(mint)
	if err != nil {
		httputil.NotFound(c, "unknown token")
		return
	}
	httputil.Success(c, tok)
}

package httppresentation

import (
	"context"
	"net/http"
	"strings"

	"github.com/Zhima-Mochi/stock-ledger/internal/domain/token"
	"github.com/gin-gonic/gin"
)

// TokenGuard issues and consumes submit tokens.
type TokenGuard interface {
	Generate(ctx context.Context, key token.Key) (*token.Issued, error)
	ValidateAndConsume(ctx context.Context, key token.Key, presented string) (token.Result, error)
	Delete(ctx context.Context, key token.Key) (bool, error)
}

type TokenHandler struct {
	guard TokenGuard
}

func NewTokenHandler(guard TokenGuard) *TokenHandler {
	return &TokenHandler{guard: guard}
}

func (h *TokenHandler) register(g *gin.RouterGroup) {
	g.POST("/generate", h.Generate)
	g.POST("/validate", h.Validate)
	g.DELETE("/delete", h.Delete)
}

type tokenKeyRequest struct {
	Scene  string `json:"scene" form:"scene" binding:"required"`
	UserID string `json:"user_id" form:"user_id" binding:"required"`
	BizID  string `json:"biz_id" form:"biz_id"`
}

func (r tokenKeyRequest) key() token.Key {
	return token.Key{Scene: r.Scene, UserID: r.UserID, BizID: r.BizID}
}

func (h *TokenHandler) Generate(c *gin.Context) {
	var req tokenKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	issued, err := h.guard.Generate(c.Request.Context(), req.key())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{
		"token":          issued.Token,
		"expire_seconds": int64(issued.TTL.Seconds()),
	})
}

type validateTokenRequest struct {
	tokenKeyRequest
	Token string `json:"token" binding:"required"`
}

func (h *TokenHandler) Validate(c *gin.Context) {
	var req validateTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.guard.ValidateAndConsume(c.Request.Context(), req.key(), req.Token)
	if err != nil {
		fail(c, err)
		return
	}
	if res != token.Valid {
		rejected(c, strings.ToUpper(res.String()), res.Err().Error(), gin.H{"result": res.String()})
		return
	}
	ok(c, gin.H{"result": res.String()})
}

func (h *TokenHandler) Delete(c *gin.Context) {
	var req tokenKeyRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, err)
		return
	}
	existed, err := h.guard.Delete(c.Request.Context(), req.key())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response{Success: true, Code: "OK", Data: gin.H{"deleted": existed}})
}

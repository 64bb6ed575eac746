package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rl1809/shopassist/internal/core/domain"
	"github.com/rl1809/shopassist/internal/core/service"
)

const defaultSessionID = "default"

type HTTPHandler struct {
	agent    *service.AgentService
	dialogue *service.DialogueService
	logger   *zap.Logger
}

type ChatHTTPRequest struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Message   string `json:"message"`
}

type RecommendRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

type RecommendResponse struct {
	Results []RecommendResult `json:"results"`
}

type RecommendResult struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

type DialogueHTTPRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

type ErrorHTTPResponse struct {
	Error string `json:"error"`
}

func NewHTTPHandler(agent *service.AgentService, dialogue *service.DialogueService, logger *zap.Logger) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{agent: agent, dialogue: dialogue, logger: logger}
}

// NewRouter wires every route, including /metrics served from gatherer.
func NewRouter(h *HTTPHandler, gatherer prometheus.Gatherer) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(h.logger))

	r.GET("/health", h.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	api.POST("/agents/chat", h.Chat)
	api.POST("/agents/recommend", h.Recommend)
	api.POST("/dialogue/:session/messages", h.DialogueMessage)
	api.GET("/sessions/:id", h.GetSession)
	api.GET("/users/:id/orders", h.ListOrders)
	return r
}

func (h *HTTPHandler) Chat(c *gin.Context) {
	var req ChatHTTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorHTTPResponse{Error: "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, ErrorHTTPResponse{Error: "message is required"})
		return
	}
	if req.SessionID == "" {
		req.SessionID = defaultSessionID
	}

	resp := h.agent.HandleTurn(c.Request.Context(), req.SessionID, req.UserID, req.Message)
	c.JSON(http.StatusOK, resp)
}

func (h *HTTPHandler) Recommend(c *gin.Context) {
	var req RecommendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorHTTPResponse{Error: "invalid request body"})
		return
	}
	if req.K < 0 {
		c.JSON(http.StatusBadRequest, ErrorHTTPResponse{Error: "k must not be negative"})
		return
	}

	hits := h.agent.Recommend(c.Request.Context(), req.Query, req.K)
	results := make([]RecommendResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, RecommendResult{ID: hit.ProductID, Score: hit.Score})
	}
	c.JSON(http.StatusOK, RecommendResponse{Results: results})
}

func (h *HTTPHandler) DialogueMessage(c *gin.Context) {
	var req DialogueHTTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorHTTPResponse{Error: "invalid request body"})
		return
	}

	reply := h.dialogue.HandleMessage(c.Request.Context(), c.Param("session"), req.UserID, req.Message)
	c.JSON(http.StatusOK, reply)
}

func (h *HTTPHandler) GetSession(c *gin.Context) {
	sess, ok := h.agent.Session(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorHTTPResponse{Error: "session not found"})
		return
	}
	c.JSON(http.StatusOK, sess)
}

type OrdersHTTPResponse struct {
	Orders []domain.Order `json:"orders"`
}

func (h *HTTPHandler) ListOrders(c *gin.Context) {
	orders, err := h.agent.Orders(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("list orders failed", zap.String("user_id", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorHTTPResponse{Error: "internal error"})
		return
	}
	c.JSON(http.StatusOK, OrdersHTTPResponse{Orders: orders})
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// Package gin exposes the HTTP control surface of the trading loop.
package gin

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mgrabarczyk/perptrading/trading"
)

const defaultOrdersLimit = 50

// LoopController is the part of the trading loop the control surface
// drives.
type LoopController interface {
	Start() error

	Stop()

	Health() *trading.HealthStatus
}

type Server struct {
	logger     trading.Logger
	controller LoopController
	journal    trading.TradeJournalReader

	server *http.Server
}

func NewServer(
	logger trading.Logger,
	controller LoopController,
	journal trading.TradeJournalReader,
	address string,
) *Server {
	server := &Server{
		logger:     logger,
		controller: controller,
		journal:    journal,
	}

	server.server = &http.Server{
		Addr:    address,
		Handler: server.Handler(),
	}

	return server
}

func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", s.handleHealthz)

	api := router.Group("/api")

	loop := api.Group("/loop")
	loop.POST("/start", s.handleLoopStart)
	loop.POST("/stop", s.handleLoopStop)
	loop.GET("/health", s.handleLoopHealth)

	api.GET("/orders", s.handleOrders)

	return router
}

func (s *Server) Start() error {
	s.logger.Infof("control server listening on [%v]", s.server.Addr)

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}

	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// handleHealthz answers liveness probes. A degraded loop is still alive;
// only a stopped one reports unavailable.
func (s *Server) handleHealthz(ctx *gin.Context) {
	health := s.controller.Health()

	status := http.StatusOK
	if health.State == trading.HealthStopped {
		status = http.StatusServiceUnavailable
	}

	ctx.JSON(status, health)
}

func (s *Server) handleLoopStart(ctx *gin.Context) {
	if err := s.controller.Start(); err != nil {
		ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, s.controller.Health())
}

func (s *Server) handleLoopStop(ctx *gin.Context) {
	s.controller.Stop()

	ctx.JSON(http.StatusOK, s.controller.Health())
}

func (s *Server) handleLoopHealth(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, s.controller.Health())
}

func (s *Server) handleOrders(ctx *gin.Context) {
	limit := defaultOrdersLimit

	if limitParam := ctx.Query("limit"); limitParam != "" {
		parsedLimit, err := strconv.Atoi(limitParam)
		if err != nil || parsedLimit <= 0 {
			ctx.JSON(
				http.StatusBadRequest,
				gin.H{"error": "limit must be a positive integer"},
			)
			return
		}

		limit = parsedLimit
	}

	records, err := s.journal.RecentOrders(limit)
	if err != nil {
		s.logger.Errorf("could not fetch recent orders: [%v]", err)
		ctx.JSON(
			http.StatusInternalServerError,
			gin.H{"error": "could not fetch recent orders"},
		)
		return
	}

	response := make([]orderResponse, 0, len(records))
	for _, record := range records {
		response = append(response, orderResponse{
			ID:              record.ID,
			Symbol:          string(record.Symbol),
			Side:            record.Side.String(),
			Notional:        record.Notional.Text('f', 2),
			Status:          record.Status.String(),
			Reason:          record.Reason,
			ExchangeOrderID: record.ExchangeOrderID,
			Time:            record.Time.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}

	ctx.JSON(http.StatusOK, response)
}

type orderResponse struct {
	ID              string `json:"id"`
	Symbol          string `json:"symbol"`
	Side            string `json:"side"`
	Notional        string `json:"notional"`
	Status          string `json:"status"`
	Reason          string `json:"reason,omitempty"`
	ExchangeOrderID string `json:"exchangeOrderId,omitempty"`
	Time            string `json:"time"`
}

package http

import (
	"github.com/aq2208/gorder-store/internal/adapter/http/middleware"
	"github.com/aq2208/gorder-store/internal/adapter/observ"
	domain "github.com/aq2208/gorder-store/internal/entity"
	"github.com/aq2208/gorder-store/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterDeps struct {
	Orders  *OrderHandler
	Tokens  *TokenHandler
	Authz   *middleware.Authz
	Metrics *observ.HTTPMetrics
	// Gatherer backs GET /metrics; nil means the default registry.
	Gatherer prometheus.Gatherer
}

func NewRouter(d RouterDeps) *gin.Engine {
	useJSONFieldNames()

	r := gin.New()
	r.Use(gin.Recovery(), middleware.Metrics(d.Metrics))
	r.Use(middleware.Logging(logging.New("http")))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})
	// Prometheus endpoint (scraped by Prometheus)
	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := r.Group("/v1")
	v1.POST("/token", d.Tokens.IssueToken)

	orders := v1.Group("/orders", d.Authz.Authenticate())
	{
		admin := middleware.RequireRole(domain.RoleAdmin)

		orders.POST("", d.Orders.PlaceOrder)
		orders.GET("", d.Orders.ListOrders)
		orders.GET("/stats/summary", admin, d.Orders.Stats)
		orders.GET("/:id", d.Orders.GetOrder)
		orders.PUT("/:id/status", admin, d.Orders.UpdateStatus)
		orders.PUT("/:id/shipping", admin, d.Orders.MarkShipped)
		orders.PUT("/:id/cancel", d.Orders.CancelOrder)
		orders.POST("/:id/notes", d.Orders.AddNote)
	}

	return r
}

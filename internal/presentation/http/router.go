package httppresentation

import (
	"net/http"

	"github.com/Zhima-Mochi/stock-ledger/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const componentHTTP = "http_server"

// RouterOptions wires the handlers and the cross-cutting pieces of the HTTP surface.
type RouterOptions struct {
	ServiceName string
	Stock       *StockHandler
	Token       *TokenHandler
	// Gatherer backs /metrics. Nil falls back to the default Prometheus registry.
	Gatherer  prometheus.Gatherer
	Telemetry observability.Observability
}

// NewRouter wires the Gin engine: Recovery → otelgin server span → request logger/metrics/access log → handler.
func NewRouter(opts RouterOptions) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(opts.ServiceName))
	r.Use(ObservabilityMiddleware(opts.Telemetry))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	if opts.Stock != nil {
		opts.Stock.register(r.Group("/api/stock"))
	}
	if opts.Token != nil {
		opts.Token.register(r.Group("/submit-token"))
	}
	return r
}

package router

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/spasuite/booking-api/internal/handler/availability"
	"github.com/spasuite/booking-api/internal/handler/calendar"
	"github.com/spasuite/booking-api/internal/handler/catalog"
	"github.com/spasuite/booking-api/internal/handler/health"
	"github.com/spasuite/booking-api/internal/handler/ledger"
	"github.com/spasuite/booking-api/internal/handler/reservation"
	"github.com/spasuite/booking-api/internal/handler/webhook"
	"github.com/spasuite/booking-api/internal/middleware"
)

type Router struct {
	engine        *gin.Engine
	healthH       *health.Handler
	availabilityH *availability.Handler
	reservationH  *reservation.Handler
	calendarH     *calendar.Handler
	catalogH      *catalog.Handler
	ledgerH       *ledger.Handler
	webhookH      *webhook.Handler
	metrics       *routerMetrics
}

type routerMetrics struct {
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
}

type Config struct {
	RateLimit  rate.Limit
	RateBurst  int
	CORSConfig middleware.CORSConfig
}

func NewRouter(
	healthH *health.Handler,
	availabilityH *availability.Handler,
	reservationH *reservation.Handler,
	calendarH *calendar.Handler,
	catalogH *catalog.Handler,
	ledgerH *ledger.Handler,
	webhookH *webhook.Handler,
	config Config,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	r := &Router{
		engine:        engine,
		healthH:       healthH,
		availabilityH: availabilityH,
		reservationH:  reservationH,
		calendarH:     calendarH,
		catalogH:      catalogH,
		ledgerH:       ledgerH,
		webhookH:      webhookH,
		metrics:       initRouterMetrics(),
	}

	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.ErrorHandler(),
		r.metricsMiddleware(),
	)

	engine.Use(middleware.CORS(config.CORSConfig))

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:  config.RateLimit,
		Burst: config.RateBurst,
	})
	engine.Use(rateLimiter.RateLimit())

	return r
}

func (r *Router) Setup() {
	api := r.engine.Group("/api/v1")

	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	r.setupHealthCheck(api)

	slots := api.Group("/availability")
	{
		slots.GET("/slots", r.availabilityH.ListSlots)
	}

	reservations := api.Group("/reservations")
	{
		reservations.POST("", r.reservationH.CreateReservation)
		reservations.GET("", r.reservationH.ListReservations)
		reservations.GET("/:id", r.reservationH.GetReservation)
		reservations.GET("/:id/addons", r.reservationH.GetReservationAddOns)
		reservations.PUT("/:id", r.reservationH.UpdateReservation)
		reservations.PATCH("/:id/status", r.reservationH.UpdateStatus)
		reservations.PATCH("/:id/payment", r.reservationH.UpdatePaymentStatus)
		reservations.DELETE("/:id", r.reservationH.CancelReservation)
		reservations.DELETE("/:id/purge", r.reservationH.PurgeReservation)
	}

	calendars := api.Group("/calendar")
	{
		calendars.PUT("/entries", r.calendarH.UpsertEntry)
		calendars.GET("/entries", r.calendarH.ListEntries)
	}

	r.setupCatalogRoutes(api)
	r.setupLedgerRoutes(api)

	webhooks := api.Group("/webhooks")
	{
		webhooks.POST("/payment", r.webhookH.HandlePayment)
	}
}

func (r *Router) setupHealthCheck(rg *gin.RouterGroup) {
	healthGroup := rg.Group("/health")
	{
		healthGroup.GET("/live", r.healthH.HealthCheck)
		healthGroup.GET("/ready", r.healthH.ReadyCheck)
		healthGroup.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
}

func (r *Router) setupCatalogRoutes(rg *gin.RouterGroup) {
	therapists := rg.Group("/therapists")
	{
		therapists.GET("", r.catalogH.ListTherapists)
		therapists.POST("", r.catalogH.CreateTherapist)
	}

	rooms := rg.Group("/rooms")
	{
		rooms.GET("", r.catalogH.ListRooms)
		rooms.POST("", r.catalogH.CreateRoom)
	}

	services := rg.Group("/services")
	{
		services.GET("", r.catalogH.ListServices)
		services.GET("/:id/variants", r.catalogH.ListVariants)
	}
}

func (r *Router) setupLedgerRoutes(rg *gin.RouterGroup) {
	packages := rg.Group("/packages")
	{
		packages.POST("", r.ledgerH.SellPackage)
		packages.GET("/:id", r.ledgerH.GetPackageInstance)
		packages.GET("/:id/entries", r.ledgerH.ListLedgerEntries)
	}

	rg.GET("/clients/:id/package", r.ledgerH.GetActivePackage)

	vouchers := rg.Group("/vouchers")
	{
		vouchers.POST("", r.ledgerH.CreateVoucher)
		vouchers.GET("/:id", r.ledgerH.GetVoucher)
		vouchers.GET("/:id/redemptions", r.ledgerH.ListRedemptions)
		vouchers.POST("/:id/redeem", r.ledgerH.RedeemVoucher)
		vouchers.POST("/:id/extend", r.ledgerH.ExtendVoucher)
	}

	jobs := rg.Group("/notifications")
	{
		jobs.GET("/failed", r.ledgerH.ListFailedJobs)
		jobs.POST("/failed/:id/retry", r.ledgerH.RetryFailedJob)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func initRouterMetrics() *routerMetrics {
	return &routerMetrics{
		requestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "http_request_duration_seconds",
				Help: "Duration of HTTP requests in seconds",
			},
			[]string{"method", "path", "status"},
		),
		requestTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
	}
}

func (r *Router) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()

		c.Next()

		status := fmt.Sprintf("%d", c.Writer.Status())
		duration := time.Since(start).Seconds()

		r.metrics.requestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
		r.metrics.requestTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}

package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aq2208/gorder-store/configs"
	"github.com/aq2208/gorder-store/internal/adapter/cache"
	httpadapter "github.com/aq2208/gorder-store/internal/adapter/http"
	"github.com/aq2208/gorder-store/internal/adapter/http/middleware"
	"github.com/aq2208/gorder-store/internal/adapter/observ"
	domain "github.com/aq2208/gorder-store/internal/entity"
	"github.com/aq2208/gorder-store/internal/logging"
	"github.com/aq2208/gorder-store/internal/usecase"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"
)

type App struct {
	Server *http.Server
	Orders *usecase.Orders
}

// InitWithConfig wires stores, messaging and the HTTP server. Background
// consumers stop when ctx is cancelled; cleanup waits for them and closes
// connections.
func InitWithConfig(ctx context.Context, cfg configs.Config) (*App, func(), error) {
	log := logging.New("bootstrap")
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*App, func(), error) {
		cleanup()
		return nil, nil, err
	}

	// storage
	st, err := openStores(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, st.close)
	log.Info("storage ready", "driver", cfg.Storage.Driver)

	// metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ordersCfg, err := ordersConfig(cfg)
	if err != nil {
		return fail(err)
	}
	opts := []usecase.Option{usecase.WithRecorder(observ.NewRecorder(reg))}

	// redis: order cache + idempotency
	if cfg.Redis.Enabled {
		rdb, err := cache.NewClient(ctx, cache.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			return fail(fmt.Errorf("redis: %w", err))
		}
		closers = append(closers, func() { _ = rdb.Close() })
		opts = append(opts,
			usecase.WithCache(cache.NewRedisOrderCache(rdb, cfg.Cache.OrderTTL)),
			usecase.WithIdempotency(cache.NewRedisIdempotencyStore(rdb, cfg.Idempotency.TTL)),
		)
	}

	// rabbitmq: event publisher
	var mq *rabbit
	if cfg.Rabbit.Enabled {
		mq, err = dialRabbit(cfg)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, mq.close)
		opts = append(opts, usecase.WithPublisher(mq.producer))
	}

	orders := usecase.NewOrders(st.orders, st.catalog, st.accounts, ordersCfg, opts...)

	// consumers
	if mq != nil {
		if err := mq.consumePayments(ctx, cfg, orders); err != nil {
			return fail(err)
		}
	}
	if cfg.Kafka.Enabled {
		wait, err := consumeShipments(ctx, cfg, orders)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, wait)
	}

	// http
	router := httpadapter.NewRouter(httpadapter.RouterDeps{
		Orders: httpadapter.NewOrderHandler(orders, cfg.Orders.RequestTimeout),
		Tokens: httpadapter.NewTokenHandler(st.accounts, httpadapter.TokenConfig{
			Secret:   []byte(cfg.Security.JWTSecret),
			Issuer:   cfg.Security.Issuer,
			Audience: cfg.Security.Audience,
			TTL:      cfg.Security.TTL,
		}),
		Authz: middleware.NewAuthz(middleware.AuthConfig{
			Secret:   []byte(cfg.Security.JWTSecret),
			Issuer:   cfg.Security.Issuer,
			Audience: cfg.Security.Audience,
		}),
		Metrics:  observ.NewHTTPMetrics(reg),
		Gatherer: reg,
	})

	srv := &http.Server{
		Addr:              cfg.App.HTTPAddr,
		Handler:           router,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}
	return &App{Server: srv, Orders: orders}, cleanup, nil
}

// ordersConfig converts the string-typed order settings into decimals.
func ordersConfig(cfg configs.Config) (usecase.OrdersConfig, error) {
	oc := cfg.Orders
	loc, err := time.LoadLocation(oc.Timezone)
	if err != nil {
		return usecase.OrdersConfig{}, fmt.Errorf("orders.timezone: %w", err)
	}

	rates := make(map[domain.ShippingMethod]decimal.Decimal, len(oc.ShippingRates))
	for m, v := range oc.ShippingRates {
		rates[domain.ShippingMethod(m)] = decimalOr(v, decimal.Zero)
	}
	policy, err := domain.NewPricingPolicy(
		decimalOr(oc.TaxRate, domain.DefaultTaxRate),
		decimalOr(oc.FreeShippingThreshold, domain.DefaultFreeShippingThreshold),
		rates,
	)
	if err != nil {
		return usecase.OrdersConfig{}, fmt.Errorf("orders pricing: %w", err)
	}

	coupons := make(map[string]decimal.Decimal, len(oc.Coupons))
	for code, v := range oc.Coupons {
		coupons[strings.ToUpper(code)] = decimalOr(v, decimal.Zero)
	}

	return usecase.OrdersConfig{
		NumberPrefix:  oc.NumberPrefix,
		Location:      loc,
		Pricing:       policy,
		Coupons:       coupons,
		NumberRetries: oc.NumberRetries,
	}, nil
}

// decimalOr parses s; values were already checked by configs.Validate.
func decimalOr(s string, def decimal.Decimal) decimal.Decimal {
	if s == "" {
		return def
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return def
	}
	return d
}

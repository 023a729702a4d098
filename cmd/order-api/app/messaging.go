package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/aq2208/gorder-store/configs"
	"github.com/aq2208/gorder-store/internal/adapter/kafka"
	"github.com/aq2208/gorder-store/internal/adapter/queue"
	"github.com/aq2208/gorder-store/internal/logging"
	"github.com/aq2208/gorder-store/internal/usecase"
	amqp "github.com/rabbitmq/amqp091-go"
)

type rabbit struct {
	conn     *amqp.Connection
	pubCh    *amqp.Channel
	subCh    *amqp.Channel
	producer *queue.RabbitProducer
	router   *queue.Router
}

// dialRabbit opens one channel for publishing and one for consuming.
func dialRabbit(cfg configs.Config) (*rabbit, error) {
	conn, err := amqp.Dial(cfg.Rabbit.URL)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	r := &rabbit{conn: conn}
	if r.pubCh, err = conn.Channel(); err != nil {
		r.close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	if r.subCh, err = conn.Channel(); err != nil {
		r.close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	if r.producer, err = queue.NewRabbitProducer(r.pubCh, cfg.Rabbit.Exchange); err != nil {
		r.close()
		return nil, err
	}
	return r, nil
}

// consumePayments binds the payment result queue and starts the router.
func (r *rabbit) consumePayments(ctx context.Context, cfg configs.Config, orders *usecase.Orders) error {
	rc := cfg.Rabbit
	if err := queue.DeclareQueue(r.subCh, rc.PaymentQueue, rc.PaymentExchange, rc.PaymentKeys...); err != nil {
		return err
	}

	h := queue.NewPaymentResultHandler(orders)
	var opts []queue.RouterOption
	if rc.Prefetch > 0 {
		opts = append(opts, queue.WithPrefetch(rc.Prefetch))
	}
	if rc.HandlerTimeout > 0 {
		opts = append(opts, queue.WithTimeout(rc.HandlerTimeout))
	}
	r.router = queue.NewRouter(r.subCh, opts...)
	r.router.Register(rc.PaymentQueue, queue.JSONHandler[usecase.PaymentResultMsg]{HandleFunc: h.HandlePaymentResult})

	ctx = logging.WithCtx(ctx, logging.New("payments"))
	return r.router.Start(ctx)
}

func (r *rabbit) close() {
	// closing the channels ends the consumers
	if r.subCh != nil {
		_ = r.subCh.Close()
	}
	if r.router != nil {
		r.router.Wait()
	}
	if r.pubCh != nil {
		_ = r.pubCh.Close()
	}
	_ = r.conn.Close()
}

// consumeShipments runs the carrier event consumer until ctx is cancelled.
// The returned func closes the group and waits for the consumer to exit.
func consumeShipments(ctx context.Context, cfg configs.Config, orders *usecase.Orders) (func(), error) {
	kc := cfg.Kafka
	grp, err := kafka.NewGroup(kafka.GroupConfig{
		Brokers:  kc.Brokers,
		GroupID:  kc.GroupID,
		Version:  kc.Version,
		ClientID: cfg.App.Name,
		Oldest:   kc.Oldest,
	})
	if err != nil {
		return nil, fmt.Errorf("kafka group: %w", err)
	}

	h := kafka.NewShipmentEventHandler(orders)
	consumer := kafka.NewConsumer(grp, kc.ShipmentTopics, h.Handle)

	log := logging.New("shipments")
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := consumer.Start(logging.WithCtx(ctx, log)); err != nil && ctx.Err() == nil {
			log.Error("shipment consumer stopped", "err", err)
		}
	}()

	return func() {
		_ = grp.Close()
		wg.Wait()
	}, nil
}

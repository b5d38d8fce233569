package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jobhunter-labs/jobhunter/internal/config"
	intevents "github.com/jobhunter-labs/jobhunter/internal/events"
	"github.com/jobhunter-labs/jobhunter/internal/metrics"
	"github.com/jobhunter-labs/jobhunter/internal/session"
	jherrors "github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/errors"
	"github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/events"
	jhlog "github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/log"
)

// openRepository returns the session repository selected by the settings
// and a function releasing its resources.
func openRepository(ctx context.Context, s *config.Settings, log jhlog.Logger) (session.Repository, func(), error) {
	switch s.SessionBackend {
	case config.SessionBackendFile:
		repo, err := session.NewFileRepository(s.SessionDir, s.SessionCompress)
		if err != nil {
			return nil, nil, err
		}
		log.Debugf("Using file session repository in '%s' (compress=%t)", s.SessionDir, s.SessionCompress)
		return repo, func() {}, nil

	case config.SessionBackendPostgres:
		repo, db, err := session.OpenPostgresRepository(ctx, s.DBURL)
		if err != nil {
			return nil, nil, err
		}
		log.Debugf("Using postgres session repository")
		return repo, func() {
			if err := db.Close(); err != nil {
				log.Warnf("Error closing database: %v", err)
			}
		}, nil

	case config.SessionBackendS3:
		client, err := session.NewS3Client(ctx, session.S3Options{
			Endpoint:  s.S3.Endpoint,
			Region:    s.S3.Region,
			AccessKey: s.S3.AccessKey,
			SecretKey: s.S3.SecretKey,
		})
		if err != nil {
			return nil, nil, err
		}
		log.Debugf("Using s3 session repository in bucket '%s'", s.S3.Bucket)
		return session.NewS3Repository(client, s.S3.Bucket, s.SessionCompress), func() {}, nil
	}
	return nil, nil, jherrors.NewConfigError(fmt.Sprintf("unknown session backend '%s'", s.SessionBackend), nil)
}

// observability bundles the event plumbing of a run.
type observability struct {
	bus        events.Bus
	channelBus *intevents.ChannelEventBus
	provider   *metrics.PrometheusRegistryProvider
	closers    []func()
}

// newObservability wires the channel bus to the Prometheus collectors and,
// when RabbitMQ is configured, fans events out to the AMQP exchange as well.
// The metrics listener stops when ctx is done or Close is called.
func newObservability(ctx context.Context, s *config.Settings, log jhlog.Logger) (*observability, error) {
	o := &observability{
		channelBus: intevents.NewChannelEventBus(DefaultEventBusSize, log),
		provider:   metrics.NewPrometheusRegistryProvider(),
	}
	collectors, err := metrics.NewCollectors(o.provider.Registry())
	if err != nil {
		return nil, err
	}
	listener := intevents.NewMetricsEventListener(o.channelBus, collectors, log)
	done := make(chan struct{})
	go func() {
		defer close(done)
		listener.Start(ctx)
	}()
	o.closers = append(o.closers, func() {
		o.channelBus.Close()
		<-done
	})

	buses := intevents.MultiBus{o.channelBus}
	if s.RabbitMQURL != "" {
		amqpBus, closeAMQP, err := intevents.DialAMQPEventBus(s.RabbitMQURL, s.RabbitMQExchange, log)
		if err != nil {
			o.Close()
			return nil, err
		}
		log.Infof("Publishing events to RabbitMQ exchange '%s'", s.RabbitMQExchange)
		buses = append(buses, amqpBus)
		o.closers = append(o.closers, func() {
			if err := closeAMQP(); err != nil {
				log.Warnf("Error closing RabbitMQ connection: %v", err)
			}
		})
	}
	o.bus = buses
	return o, nil
}

// Close releases resources in reverse order of acquisition.
func (o *observability) Close() {
	for i := len(o.closers) - 1; i >= 0; i-- {
		o.closers[i]()
	}
	o.closers = nil
}

// serveMetrics exposes the registry on addr until the returned stop
// function is called.
func serveMetrics(addr string, o *observability, log jhlog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on metrics address '%s': %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(o.provider.Registry(), promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Metrics server failed: %v", err)
		}
	}()
	log.Infof("Serving metrics on http://%s/metrics", ln.Addr())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Warnf("Error shutting down metrics server: %v", err)
		}
	}, nil
}

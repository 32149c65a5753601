// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command archiverd runs the ticket archiver's webhook intake, queue
// worker, and HTTP surface as a single long-lived process.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	archapi "ticketarchiver/internal/archiver/api"
	"ticketarchiver/internal/archiver/clock"
	"ticketarchiver/internal/archiver/config"
	"ticketarchiver/internal/archiver/core"
	"ticketarchiver/internal/archiver/history"
	"ticketarchiver/internal/archiver/idempotency"
	"ticketarchiver/internal/archiver/lifecycle"
	"ticketarchiver/internal/archiver/queue"
	"ticketarchiver/internal/archiver/storage"
	"ticketarchiver/internal/archiver/telemetry"
)

// Version is overridden at build time via -ldflags.
var Version = "dev"

type cmdServe struct {
	ConfigPath string `long:"config" env:"ARCHIVER_CONFIG" description:"path to the YAML configuration file"`
	Addr       string `long:"addr" env:"ARCHIVER_ADDR" default:":8080" description:"HTTP listen address, overrides server.host/server.port when set"`
}

func (c *cmdServe) Execute(_ []string) error {
	settings, err := config.Load(c.ConfigPath)
	if err != nil {
		return err
	}
	applyLogLevel(settings)

	addr := c.Addr
	if addr == ":8080" && settings.Server.Host != "" {
		addr = fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port)
	}

	pipelineMetrics := telemetry.PipelineMetrics{}
	queueMetrics := telemetry.QueueMetrics{}

	pipeline, err := buildPipeline(settings, pipelineMetrics)
	if err != nil {
		return fmt.Errorf("archiverd: building pipeline: %w", err)
	}
	if pipeline.Client == nil || pipeline.Renderer == nil {
		return fmt.Errorf("archiverd: no ticketing.Client/render.Renderer wired into the pipeline; " +
			"these are external collaborators per the service's scope and must be supplied by an integrator build")
	}

	lc := lifecycle.NewManager()

	var q *queue.Queue
	var historyLog *history.Log
	var worker *queue.Worker
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if settings.Workflow.RedisURL != "" {
		opts, err := redis.ParseURL(settings.Workflow.RedisURL)
		if err != nil {
			return fmt.Errorf("archiverd: parsing workflow.redis_url: %w", err)
		}
		client := redis.NewClient(opts)

		if settings.History.MaxLen > 0 {
			historyLog = history.New(client, settings.History.Stream, settings.History.MaxLen, func() float64 {
				return float64(time.Now().UnixNano()) / 1e9
			})
			pipeline.History = historyLog
		}

		if settings.Queue.Backend == "redis_queue" {
			q = queue.New(client, config.ToQueueStreams(settings))
			if err := q.EnsureGroup(ctx); err != nil {
				return fmt.Errorf("archiverd: ensuring consumer group: %w", err)
			}
			worker = &queue.Worker{
				Queue:     q,
				Processor: pipeline,
				Metrics:   queueMetrics,
				Config:    config.ToWorkerConfig(settings),
			}
			if historyLog != nil {
				worker.History = historyLog
			}
			worker.Start(ctx)
			defer worker.Stop()
		}
	}

	apiCfg := config.ToAPIConfig(settings, Version)
	server := archapi.NewServer(apiCfg, pipeline, q, historyLog, pipeline.TicketCoordinator, lc)

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("archiverd: starting")
		errCh <- server.ListenAndServe(addr)
	}()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-signalCh:
		log.WithField("signal", sig).Info("archiverd: caught signal, draining")
		lc.BeginShutdown()
		lc.Wait(30 * time.Second)
		cancel()
		return nil
	case err := <-errCh:
		return err
	}
}

func buildPipeline(settings config.Settings, metrics core.Metrics) (*core.Pipeline, error) {
	var ticketCoordinator *idempotency.TicketCoordinator
	var deliveryCoordinator *idempotency.DeliveryCoordinator

	ttl := time.Duration(settings.Workflow.DeliveryIDTTLSeconds) * time.Second

	if settings.Workflow.IdempotencyBackend == "redis" {
		opts, err := redis.ParseURL(settings.Workflow.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parsing workflow.redis_url: %w", err)
		}
		client := redis.NewClient(opts)
		lockStore, err := idempotency.NewRedisTicketLockStore(client, ttl)
		if err != nil {
			return nil, err
		}
		claimStore, err := idempotency.NewRedisDeliveryStore(client, ttl)
		if err != nil {
			return nil, err
		}
		ticketCoordinator = idempotency.NewTicketCoordinator(lockStore)
		deliveryCoordinator = idempotency.NewDeliveryCoordinator(claimStore)
	} else {
		claimStore, err := idempotency.NewInMemoryTTLSet(ttl, clock.Real())
		if err != nil {
			return nil, err
		}
		ticketCoordinator = idempotency.NewTicketCoordinator(nil)
		deliveryCoordinator = idempotency.NewDeliveryCoordinator(claimStore)
	}

	return &core.Pipeline{
		Writer:              storage.New(settings.Storage.Root, settings.Storage.Fsync),
		TicketCoordinator:   ticketCoordinator,
		DeliveryCoordinator: deliveryCoordinator,
		Metrics:             metrics,
		Config:              config.ToPipelineConfig(settings),
	}, nil
}

func applyLogLevel(settings config.Settings) {
	level, err := log.ParseLevel(settings.Observability.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	if settings.Observability.LogFormat == "json" || settings.Observability.JSONLogs {
		log.SetFormatter(&log.JSONFormatter{})
	}
}

func main() {
	parser := flags.NewParser(nil, flags.Default)
	_, err := parser.AddCommand("serve", "Serve the ticket archiver", `
Serve webhook intake, the queue worker (when a durable queue backend is
configured), and the HTTP surface until signaled to exit (via SIGTERM
or SIGINT).
`, &cmdServe{})
	if err != nil {
		log.WithError(err).Fatal("archiverd: registering serve command")
	}

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		log.WithError(err).Fatal("archiverd: exiting")
	}
}

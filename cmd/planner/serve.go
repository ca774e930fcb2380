// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AleutianAI/AleutianPlanner/services/planner/execution"
	"github.com/AleutianAI/AleutianPlanner/services/planner/handlers"
	"github.com/AleutianAI/AleutianPlanner/services/planner/routes"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the planner HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port != "" {
				a.cfg.Server.Port = port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "Listen port (default from config)")
	return cmd
}

// initTracer exports spans over OTLP/gRPC to endpoint. The returned func
// flushes and shuts the exporter down.
func initTracer(ctx context.Context, endpoint, serviceName string) (func(context.Context), error) {
	conn, err := grpc.NewClient(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceProvider.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

// newRouter builds the gin engine with every planner route bound to the
// app's collaborators.
func (a *app) newRouter() (*gin.Engine, error) {
	gen, err := a.generator()
	if err != nil {
		return nil, err
	}
	extractor := a.extractor()

	router := gin.Default()
	router.Use(otelgin.Middleware(a.cfg.Server.ServiceName))
	routes.SetupRoutes(router, routes.Deps{
		Generator: gen,
		Extractor: extractor,
		Store: handlers.NewExecutionStore(execution.Options{
			Extractor: extractor,
			Logger:    a.log,
			Metrics:   a.metrics,
		}, handlers.StoreLimits{
			MaxSessions: a.cfg.Server.MaxExecutions,
			IdleTTL:     a.cfg.Server.ExecutionTTL(),
		}),
		Metrics:  a.metrics,
		Gatherer: a.registry,
		Debounce: a.cfg.Regen.Debounce(),
	})
	return router, nil
}

func (a *app) serve(ctx context.Context) error {
	srv := a.cfg.Server
	if srv.OTLPEndpoint != "" {
		cleanup, err := initTracer(ctx, srv.OTLPEndpoint, srv.ServiceName)
		if err != nil {
			return fmt.Errorf("failed to setup the OTLP tracer: %w", err)
		}
		defer cleanup(context.Background())
	} else {
		a.log.Info("OTLP endpoint not set, tracing export disabled")
	}

	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	router, err := a.newRouter()
	if err != nil {
		return err
	}
	server := &http.Server{
		Addr:              ":" + srv.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("starting the planner server", "port", srv.Port, "semantic", a.cfg.SemanticEnabled())
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("planner server: %w", err)
	case <-ctx.Done():
	}

	a.log.Info("shutting down the planner server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown planner server: %w", err)
	}
	return nil
}

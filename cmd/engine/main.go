// Command engine launches the trading engine room: event bus, risk
// registry, exchange adapters, the strategy runtime, and the
// signal-to-order pipeline, wired from a YAML settings file.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/xor-engine/corebot/internal/bus"
	"github.com/xor-engine/corebot/internal/config"
	"github.com/xor-engine/corebot/internal/domain"
	"github.com/xor-engine/corebot/internal/exchange"
	"github.com/xor-engine/corebot/internal/exchange/binance"
	"github.com/xor-engine/corebot/internal/exchange/bybit"
	"github.com/xor-engine/corebot/internal/pipeline"
	"github.com/xor-engine/corebot/internal/risk"
	"github.com/xor-engine/corebot/internal/store"
	"github.com/xor-engine/corebot/internal/strategy"
	"github.com/xor-engine/corebot/internal/telemetry"

	_ "github.com/xor-engine/corebot/internal/strategy/dca"
	_ "github.com/xor-engine/corebot/internal/strategy/grid"
	_ "github.com/xor-engine/corebot/internal/strategy/scalping"
)

const (
	defaultConfigPath        = "config/engine.yaml"
	engineLoggerPrefix       = "engine "
	shutdownTimeout          = 30 * time.Second
	busShutdownTimeout       = 2 * time.Second
	lifecycleShutdownTimeout = 10 * time.Second
	telemetryShutdownTimeout = 5 * time.Second
)

func main() {
	cfgPathFlag := parseFlags()
	ctx, cancel := newSignalContext()
	defer cancel()

	logger := newEngineLogger()

	settings, loadedFromFile, err := config.LoadOrDefault(resolveConfigPath(cfgPathFlag))
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if !loadedFromFile {
		logger.Printf("configuration file not found, using defaults")
	}
	logger.Printf("configuration initialised: env=%s providers=%d", settings.Environment, len(settings.Providers))

	telemetryProvider, err := telemetry.NewProvider(ctx, telemetry.Config{
		OTLPEndpoint: settings.Telemetry.OTLPEndpoint,
		ServiceName:  settings.Telemetry.ServiceName,
		Insecure:     settings.Telemetry.Insecure,
	})
	if err != nil {
		logger.Fatalf("initialise telemetry: %v", err)
	}

	var lifecycle conc.WaitGroup

	eventBus := bus.NewMemoryBus(bus.MemoryConfig{
		BufferSize:    settings.Eventbus.BufferSize,
		FanoutWorkers: settings.Eventbus.FanoutWorkers,
	})

	riskRegistry := risk.NewRegistry(settings.RiskDefault.ToLimits())
	orderStore := store.New()

	adapters, err := buildAdapters(ctx, settings, logger)
	if err != nil {
		logger.Fatalf("initialise exchange adapters: %v", err)
	}
	resolve := func(ex domain.Exchange) (exchange.Adapter, bool) {
		a, ok := adapters[ex]
		return a, ok
	}

	workerPool := strategy.NewWorkerPool(settings.WorkerPool.QueueDepth)
	runtime := strategy.NewRuntime(eventBus, workerPool)

	signalPipeline := pipeline.New(eventBus, orderStore, riskRegistry, resolve)
	reconciler := pipeline.NewReconciler(signalPipeline, time.Duration(settings.Reconcile.IntervalSeconds)*time.Second)

	lifecycle.Go(func() {
		if err := runtime.Run(ctx); err != nil {
			logger.Printf("strategy runtime stopped: %v", err)
		}
	})
	lifecycle.Go(func() {
		if err := signalPipeline.Run(ctx); err != nil {
			logger.Printf("signal pipeline stopped: %v", err)
		}
	})
	lifecycle.Go(func() {
		reconciler.Run(ctx)
	})

	logger.Print("engine started; awaiting shutdown signal")
	<-ctx.Done()
	logger.Print("shutdown signal received, initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	shutdownStart := time.Now()
	performGracefulShutdown(shutdownCtx, logger, cancel, &lifecycle, eventBus, telemetryProvider)
	logger.Printf("shutdown completed in %v", time.Since(shutdownStart))
}

func parseFlags() string {
	cfgPath := flag.String("config", "", fmt.Sprintf("path to engine configuration file (default: %s)", defaultConfigPath))
	flag.Parse()
	return *cfgPath
}

func newSignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newEngineLogger() *log.Logger {
	return log.New(os.Stdout, engineLoggerPrefix, log.LstdFlags|log.Lmicroseconds)
}

func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return defaultConfigPath
}

func buildAdapters(ctx context.Context, settings config.Settings, logger *log.Logger) (map[domain.Exchange]exchange.Adapter, error) {
	adapters := make(map[domain.Exchange]exchange.Adapter, len(settings.Providers))
	for _, p := range settings.Providers {
		switch p.Exchange {
		case domain.ExchangeBinance:
			a := binance.New(binance.Options{
				APIKey:    p.Credential.APIKey,
				APISecret: p.Credential.APISecret,
			})
			if err := a.Connect(ctx); err != nil {
				return nil, fmt.Errorf("connect binance provider %s: %w", p.Name, err)
			}
			adapters[domain.ExchangeBinance] = a
		case domain.ExchangeBybit:
			a := bybit.New(bybit.Options{
				APIKey:    p.Credential.APIKey,
				APISecret: p.Credential.APISecret,
				Testnet:   p.Testnet,
				Category:  string(p.MarketType),
			})
			if err := a.Connect(ctx); err != nil {
				return nil, fmt.Errorf("connect bybit provider %s: %w", p.Name, err)
			}
			adapters[domain.ExchangeBybit] = a
		default:
			return nil, fmt.Errorf("provider %s: unsupported exchange %q", p.Name, p.Exchange)
		}
		logger.Printf("provider connected: name=%s exchange=%s market=%s", p.Name, p.Exchange, p.MarketType)
	}
	return adapters, nil
}

func performGracefulShutdown(ctx context.Context, logger *log.Logger, mainCancel context.CancelFunc, lifecycle *conc.WaitGroup, dataBus bus.Bus, telemetryProvider *telemetry.Provider) {
	shutdownStep := func(name string, timeout time.Duration, fn func(context.Context) error) {
		stepCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		logger.Printf("shutdown: %s...", name)
		if err := fn(stepCtx); err != nil {
			logger.Printf("shutdown: %s failed: %v", name, err)
		} else {
			logger.Printf("shutdown: %s completed", name)
		}
	}

	logger.Print("shutdown: cancelling main context")
	if mainCancel != nil {
		mainCancel()
	}

	if lifecycle != nil {
		shutdownStep("waiting for lifecycle goroutines", lifecycleShutdownTimeout, func(stepCtx context.Context) error {
			done := make(chan struct{})
			go func() {
				lifecycle.Wait()
				close(done)
			}()
			select {
			case <-done:
				return nil
			case <-stepCtx.Done():
				return fmt.Errorf("timeout waiting for goroutines: %w", stepCtx.Err())
			}
		})
	}

	if dataBus != nil {
		shutdownStep("closing event bus", busShutdownTimeout, func(stepCtx context.Context) error {
			done := make(chan struct{})
			go func() {
				_ = dataBus.Close()
				close(done)
			}()
			select {
			case <-done:
				return nil
			case <-stepCtx.Done():
				return stepCtx.Err()
			}
		})
	}

	if telemetryProvider != nil {
		shutdownStep("shutting down telemetry", telemetryShutdownTimeout, telemetryProvider.Shutdown)
	}
}

// Package main is the entry point of the ProxyLane service.
// It runs the proxy API over HTTP and the health service over gRPC.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"ProxyLane/internal/biz"
	"ProxyLane/internal/conf"
	"ProxyLane/internal/service"
	zapLogger "ProxyLane/pkg/log"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/tracing"
	"github.com/go-kratos/kratos/v2/transport/grpc"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/robfig/cron/v3"

	_ "go.uber.org/automaxprocs"
)

// go build -ldflags "-X main.Version=x.y.z"
var (
	// Name is the name of the compiled software.
	Name = "proxylane"
	// Version is the version of the compiled software.
	Version string
	// flagconf is the config flag.
	flagconf string

	id, _ = os.Hostname()
)

func init() {
	flag.StringVar(&flagconf, "conf", "../../configs/config.yaml", "config path, eg: -conf config.yaml")
}

func newApp(logger log.Logger, gs *grpc.Server, hs *http.Server, uc *biz.ProxyUsecase,
	task *biz.PoolTask, health *service.HealthService) *kratos.App {
	helper := log.NewHelper(logger)
	var jobs *cron.Cron

	return kratos.New(
		kratos.ID(id),
		kratos.Name(Name),
		kratos.Version(Version),
		kratos.Metadata(map[string]string{}),
		kratos.Logger(logger),
		kratos.Server(
			gs,
			hs,
		),
		kratos.BeforeStart(func(ctx context.Context) error {
			if err := uc.Restore(ctx); err != nil {
				return err
			}
			health.Refresh()
			return nil
		}),
		kratos.AfterStart(func(context.Context) error {
			jobs = StartPoolCron(task, health, logger)
			return nil
		}),
		kratos.BeforeStop(func(ctx context.Context) error {
			if jobs != nil {
				<-jobs.Stop().Done()
			}
			health.Shutdown()

			flushCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			if err := task.FlushSnapshot(flushCtx); err != nil {
				helper.Errorw("final snapshot flush failed", "error", err)
			}
			return nil
		}),
	)
}

func main() {
	flag.Parse()

	// Load configuration using Viper with environment variable and CLI flag support
	bc, err := conf.NewBootstrap(flagconf)
	if err != nil {
		// Use fallback logger before Zap is initialized
		log.Fatalf("failed to load configuration: %v", err)
	}

	zapLog, err := zapLogger.NewZapLogger(bc.Log)
	if err != nil {
		log.Fatalf("failed to initialize zap logger: %v", err)
	}
	defer zapLog.Sync()

	logger := zapLogger.NewKratosAdapter(zapLog)
	logger = log.With(logger,
		"service.id", id,
		"service.name", Name,
		"service.version", Version,
		"trace.id", tracing.TraceID(),
		"span.id", tracing.SpanID(),
	)

	log.NewHelper(logger).Infow(
		"msg", "ProxyLane service starting",
		"log.level", bc.Log.Level,
		"log.format", bc.Log.Format,
		"http.addr", bc.Server.Http.Addr,
		"grpc.addr", bc.Server.Grpc.Addr,
		"health_check.url", bc.HealthCheck.Url,
		"proxy.default_strategy", bc.Proxy.DefaultStrategy,
	)

	app, cleanup, err := wireApp(bc.Server, bc.Data, bc.Proxy, bc.HealthCheck, logger)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	// start and wait for stop signal
	if err := app.Run(); err != nil {
		panic(err)
	}
}

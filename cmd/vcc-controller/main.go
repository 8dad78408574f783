package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/VCRTS/VCRTS/internal/account"
	"github.com/VCRTS/VCRTS/internal/common/config"
	"github.com/VCRTS/VCRTS/internal/common/logger"
	"github.com/VCRTS/VCRTS/internal/common/server"
	"github.com/VCRTS/VCRTS/internal/common/tracing"
	"github.com/VCRTS/VCRTS/internal/dispatch"
	"github.com/VCRTS/VCRTS/internal/gateway"
	"github.com/VCRTS/VCRTS/internal/store"
	"golang.org/x/sync/errgroup"
)

var (
	configPath  = flag.String("config", "configs/vcc-controller.json", "配置文件路径")
	consulKVKey = flag.String("consul-kv-key", "", "从 Consul KV 加载配置（优先于本地文件）")
	consulAddr  = flag.String("consul-addr", "localhost:8500", "Consul 地址（配合 -consul-kv-key）")
)

func main() {
	flag.Parse()

	// 加载配置：优先 Consul KV，其次本地文件
	var cfg *config.Config
	var err error
	if *consulKVKey != "" {
		host, port, splitErr := splitHostPort(*consulAddr)
		if splitErr != nil {
			panic(fmt.Sprintf("invalid -consul-addr: %v", splitErr))
		}
		cfg, err = config.LoadConfigFromConsulKV(host, port, *consulKVKey)
	} else {
		cfg, err = config.LoadConfig(*configPath)
	}
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 初始化日志
	log, err := logger.NewLogger(cfg.Log)
	if err != nil {
		panic(fmt.Sprintf("failed to init logger: %v", err))
	}

	// 初始化链路追踪
	tracer, closer, err := tracing.InitTracer(
		cfg.Server.Name,
		cfg.Jaeger.Endpoint,
		cfg.Jaeger.Sampler,
	)
	if err != nil {
		log.Warnf("failed to init tracer: %v", err)
	} else {
		defer closer.Close()
	}
	_ = tracer

	// 初始化持久化（未配置数据库则仅内存运行）
	var accountRec account.Recorder
	var dispatchRec dispatch.Recorder
	if cfg.Database.Host != "" {
		gormDB, err := store.NewMySQL(
			cfg.Database.Host,
			cfg.Database.Port,
			cfg.Database.User,
			cfg.Database.Password,
			cfg.Database.Database,
			cfg.Database.MaxIdle,
			cfg.Database.MaxOpen,
		)
		if err != nil {
			log.Fatalf("failed to init mysql: %v", err)
		}
		st, err := store.NewGormStore(gormDB)
		if err != nil {
			log.Fatalf("failed to init store: %v", err)
		}
		accountRec, dispatchRec = st, st
		log.Infof("persistence enabled: mysql %s:%d/%s", cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)
	} else {
		log.Warn("no database configured, running in-memory only")
	}

	// 组装核心：账户目录 → 调度引擎 → 查询面 → 命令网关
	dir := account.NewDirectory(accountRec)
	engine := dispatch.NewEngine(dir, dispatchRec, log)
	query := dispatch.NewQueryService(engine)
	handler := gateway.NewHandler(dir, engine, query, cfg.Auth, log)
	gw := gateway.NewServer(cfg, handler, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// 文本命令网关（业务入口）
	g.Go(func() error {
		return gw.Run(ctx)
	})

	// 运维 gRPC 端口（health / reflection，Consul 探活）
	g.Go(func() error {
		return server.RunOpsServer(ctx, cfg, log, server.WithShutdownTimeout(10*time.Second))
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("vcc-controller exited with error: %v", err)
	}
	log.Info("vcc-controller stopped")
}

func splitHostPort(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, err
	}
	return host, port, nil
}

package bootstrap

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"supplyboost/internal/pkg/config"
	"supplyboost/internal/pkg/logger"
	"supplyboost/internal/pkg/nacos"
	"supplyboost/internal/pkg/tracing"
)

// AppCtx 提供给各服务注册自己的路由。
type AppCtx struct {
	Mux   *http.ServeMux
	Nacos *nacos.Client
}

// Runner 是随服务生命周期运行的后台任务（Kafka 消费循环、兜底扫描等），
// context 取消即要求退出。
type Runner func(ctx context.Context) error

// AppInfo 描述一个微服务的启动参数。
type AppInfo struct {
	ServiceName string
	Port        int

	// RegisterHandlers 注册路由并返回后台任务。放在一个回调里是因为
	// 两者经常依赖同一批组件（如 nacos 寻址的 HTTP 客户端）。
	RegisterHandlers func(appCtx AppCtx) []Runner
}

// Init 加载配置并初始化全局 logger，必须在 StartService 之前调用。
func Init(serviceName string) {
	logger.Init(serviceName)
	if _, err := config.Load(os.Getenv("CONFIG_PATH")); err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
}

// StartService 封装所有微服务共同的启动与优雅关停流程：
// tracer、nacos 注册、HTTP server（/healthz /metrics）、后台任务、信号处理。
func StartService(info AppInfo) {
	cfg := config.Current()

	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.Infra.Jaeger.Endpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("init tracer provider")
	}

	namingClient, err := nacos.NewClient(cfg.Infra.Nacos.ServerAddrs, cfg.Infra.Nacos.Namespace, cfg.Infra.Nacos.Group)
	if err != nil {
		log.Fatal().Err(err).Msg("init nacos client")
	}

	ip, err := outboundIP()
	if err != nil {
		log.Fatal().Err(err).Msg("determine outbound ip")
	}
	if err := namingClient.Register(info.ServiceName, ip, info.Port); err != nil {
		log.Fatal().Err(err).Msg("register with nacos")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.Handler())
	var runners []Runner
	if info.RegisterHandlers != nil {
		runners = info.RegisterHandlers(AppCtx{Mux: mux, Nacos: namingClient})
	}

	server := &http.Server{Addr: ":" + strconv.Itoa(info.Port), Handler: mux}
	go func() {
		log.Info().Msgf("%s listening on %s", info.ServiceName, server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msgf("listen on %s", server.Addr)
		}
	}()

	runCtx, cancelRunners := context.WithCancel(context.Background())
	group, groupCtx := errgroup.WithContext(runCtx)
	for _, runner := range runners {
		runner := runner
		group.Go(func() error { return runner(groupCtx) })
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-groupCtx.Done():
		// 后台任务异常退出也触发整体关停
	}
	log.Info().Msgf("shutting down %s", info.ServiceName)

	cancelRunners()
	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Error().Err(err).Msg("background runner exited with error")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 关停顺序：先摘流量，再刷 trace，最后停 HTTP
	if err := namingClient.Deregister(info.ServiceName, ip, info.Port); err != nil {
		log.Error().Err(err).Msg("deregister from nacos")
	}
	if err := tp.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown tracer provider")
	}
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown http server")
	}

	log.Info().Msgf("%s stopped", info.ServiceName)
}

// outboundIP 取本机对外网卡地址，用于注册到 Nacos。
func outboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}

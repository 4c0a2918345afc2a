// Command memcached-sflow-agent runs a minimal memcached-like key-value
// server instrumented with an embedded sFlow v5 agent: a sample of every
// get/set/delete is exported as a flow sample, and server-wide counters are
// exported periodically as a counters sample.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/netweaver/sflowagent/pkg/aggregator"
	"github.com/netweaver/sflowagent/pkg/config"
	"github.com/netweaver/sflowagent/pkg/database"
	"github.com/netweaver/sflowagent/pkg/sflow"
)

// udpCapabilities implements sflow.Capabilities, sending completed
// datagrams to every configured collector and routing encode errors into
// the process logger.
type udpCapabilities struct {
	logger *zap.Logger
	conns  []*net.UDPConn
}

func newUDPCapabilities(logger *zap.Logger, targets []config.CollectorTarget) (*udpCapabilities, error) {
	caps := &udpCapabilities{logger: logger}
	for _, t := range targets {
		addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", t.Address, t.Port))
		if err != nil {
			return nil, fmt.Errorf("resolve collector %s:%d: %w", t.Address, t.Port, err)
		}
		conn, err := net.DialUDP("udp", nil, addr)
		if err != nil {
			return nil, fmt.Errorf("dial collector %s:%d: %w", t.Address, t.Port, err)
		}
		caps.conns = append(caps.conns, conn)
	}
	return caps, nil
}

func (c *udpCapabilities) Send(datagram []byte) {
	for _, conn := range c.conns {
		if _, err := conn.Write(datagram); err != nil {
			c.logger.Warn("sflow: failed to send datagram", zap.Error(err), zap.String("collector", conn.RemoteAddr().String()))
		}
	}
}

func (c *udpCapabilities) Error(module, message string) {
	c.logger.Error("sflow: agent error", zap.String("module", module), zap.String("message", message))
}

func (c *udpCapabilities) Close() {
	for _, conn := range c.conns {
		_ = conn.Close()
	}
}

func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

func parseAgentIP(s string) sflow.Address {
	ip := net.ParseIP(s)
	if ip == nil {
		return sflow.NewIPv4Address(0, 0, 0, 0)
	}
	if v4 := ip.To4(); v4 != nil {
		return sflow.NewIPv4Address(v4[0], v4[1], v4[2], v4[3])
	}
	var b16 [16]byte
	copy(b16[:], ip.To16())
	return sflow.NewIPv6Address(b16)
}

// runAggregatorFlusher periodically drains the fleet-wide sample_pool and
// drops totals a Redis-backed aggregator has accumulated across other
// worker processes sharing dsi, folding them into this process's sampler
// bookkeeping so SamplePool/Drops on outgoing flow samples reflect the
// whole fleet rather than just this worker.
func runAggregatorFlusher(ctx context.Context, agg *aggregator.RedisAggregator, sampler *sflow.Sampler, dsi sflow.DataSourceInstance, logger *zap.Logger) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pool, drops, err := agg.FlushAndReset(ctx, dsi)
			if err != nil {
				logger.Warn("aggregator flush failed", zap.Error(err))
				continue
			}
			sampler.AddToSamplePool(pool)
			sampler.AddDrops(drops)
		}
	}
}

func main() {
	configFile := flag.String("config", "configs/memcached-sflow-agent.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	caps, err := newUDPCapabilities(logger, cfg.SFlow.Collectors)
	if err != nil {
		logger.Fatal("failed to set up sflow collectors", zap.Error(err))
	}
	defer caps.Close()

	agentIP := parseAgentIP(cfg.SFlow.AgentIP)
	bootTime := time.Now()

	var agent sflow.Agent
	agent.Init(agentIP, cfg.SFlow.SubAgentID, bootTime, bootTime, caps)

	receiver := agent.AddReceiver()
	receiver.SetMaxDatagramSize(cfg.SFlow.MaxDatagram)

	dsi := sflow.DataSourceInstance{
		Class: sflow.DSClass(cfg.SFlow.DSClass),
		Index: cfg.SFlow.DSIndex,
	}

	kv := newStore(cfg.Server.MaxEntries)

	sampler := agent.AddSampler(dsi)
	sampler.BindReceiver(receiver)
	sampler.SetRate(*cfg.SFlow.SamplingN)

	poller := agent.AddPoller(dsi, kv, func(magic interface{}, p *sflow.Poller) *sflow.CountersSample {
		return magic.(*store).countersSample(magic, p)
	})
	poller.BindReceiver(receiver)
	poller.SetInterval(*cfg.SFlow.PollingSecs)

	globalSeed := sflow.DeriveSamplingSeed(uint32(bootTime.Unix()), uint32(bootTime.Nanosecond()/1000), agentIP.Bytes)
	decider := sflow.NewSamplingDecider(globalSeed, 0, *cfg.SFlow.SamplingN)

	sflow.EnableMetrics("")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Aggregator.Enabled {
		redisAgg := aggregator.NewRedisAggregator(cfg.Aggregator.RedisURL, "memcached-sflow-agent")
		logger.Info("cross-worker counter aggregation enabled", zap.String("redis_url", cfg.Aggregator.RedisURL))
		go runAggregatorFlusher(ctx, redisAgg, sampler, dsi, logger)
	}

	var dbClient *database.Client
	if cfg.Database.Enabled {
		dbClient, err = database.NewClient(ctx, database.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			Database: cfg.Database.Database,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			PoolSize: cfg.Database.PoolSize,
		})
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer dbClient.Close()
	}

	kvServ := newKVServer(cfg.Server.Listen, kv, sampler, decider, logger)
	ln, err := net.Listen("tcp", cfg.Server.Listen)
	if err != nil {
		logger.Fatal("failed to listen", zap.String("listen", cfg.Server.Listen), zap.Error(err))
	}
	go func() {
		logger.Info("memcache listener started", zap.String("listen", cfg.Server.Listen))
		if err := kvServ.Serve(ln); err != nil {
			logger.Error("memcache listener stopped", zap.Error(err))
		}
	}()

	cp := &controlPlane{store: kv, sampler: sampler, decider: decider, poller: poller, logger: logger}
	router := mux.NewRouter()
	cp.MountRoutes(router)
	httpServer := &http.Server{
		Addr:              cfg.Monitoring.HTTPListen,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("control plane listening", zap.String("listen", cfg.Monitoring.HTTPListen))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("control plane stopped", zap.Error(err))
		}
	}()

	tickerDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				agent.Tick(time.Now())
			case <-tickerDone:
				return
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	close(tickerDone)
	_ = httpServer.Close()
	_ = ln.Close()
	agent.Release()
	logger.Info("shutdown complete")
}

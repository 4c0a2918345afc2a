// Command sflow-collector-demo is a standalone UDP collector: it receives
// the datagrams a memcached-sflow-agent process sends, decodes them, and
// persists the resulting operations and counters snapshots to TimescaleDB.
// It exists to exercise pkg/sflow/sflowdecode against real wire traffic
// rather than only test fixtures.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/netweaver/sflowagent/pkg/database"
	"github.com/netweaver/sflowagent/pkg/sflow"
	"github.com/netweaver/sflowagent/pkg/sflow/sflowdecode"
)

func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

func main() {
	listen := flag.String("listen", fmt.Sprintf("0.0.0.0:%d", sflow.DefaultCollectorPort), "UDP address to receive sFlow datagrams on")
	dbHost := flag.String("db-host", "", "TimescaleDB host (persistence disabled if empty)")
	dbPort := flag.Int("db-port", 5432, "TimescaleDB port")
	dbName := flag.String("db-name", "sflowagent", "TimescaleDB database name")
	dbUser := flag.String("db-user", "sflowagent", "TimescaleDB user")
	dbPassword := flag.String("db-password", "", "TimescaleDB password")
	flag.Parse()

	logger, err := newLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var dbClient *database.Client
	if *dbHost != "" {
		dbClient, err = database.NewClient(ctx, database.Config{
			Host:     *dbHost,
			Port:     *dbPort,
			Database: *dbName,
			User:     *dbUser,
			Password: *dbPassword,
			PoolSize: 10,
		})
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer dbClient.Close()
		logger.Info("persisting decoded samples to TimescaleDB", zap.String("host", *dbHost))
	} else {
		logger.Info("running without persistence; decoded samples are logged only")
	}

	addr, err := net.ResolveUDPAddr("udp", *listen)
	if err != nil {
		logger.Fatal("failed to resolve listen address", zap.Error(err))
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		logger.Fatal("failed to listen", zap.Error(err))
	}
	defer conn.Close()

	decoder := sflowdecode.NewDecoder()
	buf := make([]byte, sflow.MaxDatagramSize)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			conn.SetReadDeadline(time.Now().Add(time.Second))
			n, remote, err := conn.ReadFromUDP(buf)
			if err != nil {
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					select {
					case <-ctx.Done():
						return
					default:
						continue
					}
				}
				logger.Error("read failed", zap.Error(err))
				continue
			}

			dg, err := decoder.Decode(buf[:n])
			if err != nil {
				logger.Warn("failed to decode datagram", zap.Error(err), zap.String("from", remote.String()))
				continue
			}

			handleDatagram(ctx, dg, remote, dbClient, logger)

			select {
			case <-ctx.Done():
				return
			default:
			}
		}
	}()

	logger.Info("sflow collector demo listening", zap.String("listen", *listen))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	cancel()
	<-done
	logger.Info("shutdown complete")
}

func handleDatagram(ctx context.Context, dg *sflowdecode.Datagram, remote *net.UDPAddr, dbClient *database.Client, logger *zap.Logger) {
	agentIP := dg.AgentAddress.String()
	now := time.Now()

	if len(dg.FlowSamples) > 0 {
		var ops []database.MemcacheOperationRecord
		for _, fs := range dg.FlowSamples {
			var socket *sflow.ExtendedSocket4
			var mc *sflow.MemcacheOperation
			for _, el := range fs.Elements {
				if el.Socket4 != nil {
					socket = el.Socket4
				}
				if el.Memcache != nil {
					mc = el.Memcache
				}
			}
			if mc == nil {
				continue
			}
			rec := database.MemcacheOperationRecord{
				Time:         now,
				AgentIP:      agentIP,
				SourceID:     int64(fs.SourceID),
				Protocol:     int32(mc.Protocol),
				Command:      int32(mc.Command),
				Key:          mc.Key,
				NKeys:        int32(mc.NKeys),
				ValueBytes:   int64(mc.ValueBytes),
				DurationUs:   int64(mc.DurationUs),
				Status:       int32(mc.Status),
				SamplingRate: int32(fs.SamplingRate),
			}
			if socket != nil {
				rec.LocalPort = int32(socket.LocalPort)
				rec.RemotePort = int32(socket.RemotePort)
				rec.RemoteIP = net.IP(socket.RemoteIP[:]).String()
			}
			ops = append(ops, rec)
		}
		if dbClient != nil && len(ops) > 0 {
			if err := dbClient.InsertOperations(ops); err != nil {
				logger.Error("failed to insert operations", zap.Error(err))
			}
		} else {
			logger.Debug("decoded flow samples", zap.Int("count", len(ops)), zap.String("from", remote.String()))
		}
	}

	if len(dg.CountersSamples) > 0 {
		var counters []database.MemcacheCountersRecord
		for _, cs := range dg.CountersSamples {
			for _, el := range cs.Elements {
				if el.Memcache == nil {
					continue
				}
				mc := el.Memcache
				counters = append(counters, database.MemcacheCountersRecord{
					Time:             now,
					AgentIP:          agentIP,
					SourceID:         int64(cs.SourceID),
					Uptime:           int64(mc.Uptime),
					CurrConnections:  int64(mc.CurrConnections),
					TotalConnections: int64(mc.TotalConnections),
					CmdGet:           int64(mc.CmdGet),
					CmdSet:           int64(mc.CmdSet),
					GetHits:          int64(mc.GetHits),
					GetMisses:        int64(mc.GetMisses),
					BytesRead:        int64(mc.BytesRead),
					BytesWritten:     int64(mc.BytesWritten),
					CurrItems:        int64(mc.CurrItems),
					TotalItems:       int64(mc.TotalItems),
					Evictions:        int64(mc.Evictions),
				})
			}
		}
		if dbClient != nil && len(counters) > 0 {
			if err := dbClient.InsertCounters(counters); err != nil {
				logger.Error("failed to insert counters", zap.Error(err))
			}
		} else {
			logger.Debug("decoded counters samples", zap.Int("count", len(counters)), zap.String("from", remote.String()))
		}
	}
}

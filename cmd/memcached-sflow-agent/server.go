package main

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/netweaver/sflowagent/pkg/sflow"
)

// kvServer is the host: it owns the listening socket, the store, and the
// binding between per-request outcomes and the sFlow sampler. The sFlow
// core never touches net.Conn — every byte it sees arrives through
// WriteFlowSample.
type kvServer struct {
	listen   string
	store    *store
	sampler  *sflow.Sampler
	decider  *sflow.SamplingDecider
	logger   *zap.Logger
	localIP   [4]byte
	localPort uint32
}

func newKVServer(listen string, st *store, sampler *sflow.Sampler, decider *sflow.SamplingDecider, logger *zap.Logger) *kvServer {
	s := &kvServer{listen: listen, store: st, sampler: sampler, decider: decider, logger: logger}
	host, port, err := net.SplitHostPort(listen)
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			if v4 := ip.To4(); v4 != nil {
				copy(s.localIP[:], v4)
			}
		}
		if p, err := strconv.Atoi(port); err == nil {
			s.localPort = uint32(p)
		}
	}
	return s
}

// Serve accepts connections until the listener is closed.
func (s *kvServer) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go s.handleConn(conn)
	}
}

func (s *kvServer) handleConn(conn net.Conn) {
	defer conn.Close()
	s.store.connOpened()
	defer s.store.connClosed()

	remoteIP := [4]byte{}
	remotePort := uint32(0)
	if host, port, err := net.SplitHostPort(conn.RemoteAddr().String()); err == nil {
		if ip := net.ParseIP(host); ip != nil {
			if v4 := ip.To4(); v4 != nil {
				copy(remoteIP[:], v4)
			}
		}
		if p, err := strconv.Atoi(port); err == nil {
			remotePort = uint32(p)
		}
	}

	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		s.handleCommand(line, reader, writer, remoteIP, remotePort)
		writer.Flush()
	}
}

func (s *kvServer) handleCommand(line string, reader *bufio.Reader, writer *bufio.Writer, remoteIP [4]byte, remotePort uint32) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		fmt.Fprintf(writer, "ERROR\r\n")
		return
	}

	start := time.Now()

	var (
		command sflow.MemcacheCommand
		key     string
		status  sflow.MemcacheStatus
		nkeys   uint32 = 1
		value   int
	)

	switch strings.ToLower(fields[0]) {
	case "get":
		command = sflow.MemcacheCmdGet
		if len(fields) < 2 {
			fmt.Fprintf(writer, "ERROR\r\n")
			return
		}
		key = fields[1]
		v, ok := s.store.Get(key)
		if ok {
			status = sflow.MemcacheStatusOK
			value = len(v)
			fmt.Fprintf(writer, "VALUE %s 0 %d\r\n%s\r\nEND\r\n", key, len(v), v)
		} else {
			status = sflow.MemcacheStatusNotFound
			fmt.Fprintf(writer, "END\r\n")
		}
	case "set":
		command = sflow.MemcacheCmdSet
		if len(fields) < 3 {
			fmt.Fprintf(writer, "ERROR\r\n")
			return
		}
		key = fields[1]
		n, err := strconv.Atoi(fields[2])
		if err != nil {
			fmt.Fprintf(writer, "CLIENT_ERROR bad value length\r\n")
			return
		}
		data, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		data = strings.TrimRight(data, "\r\n")
		s.store.Set(key, []byte(data))
		status = sflow.MemcacheStatusStored
		value = n
		fmt.Fprintf(writer, "STORED\r\n")
	case "delete":
		command = sflow.MemcacheCmdDelete
		if len(fields) < 2 {
			fmt.Fprintf(writer, "ERROR\r\n")
			return
		}
		key = fields[1]
		if s.store.Delete(key) {
			status = sflow.MemcacheStatusDeleted
			fmt.Fprintf(writer, "DELETED\r\n")
		} else {
			status = sflow.MemcacheStatusNotFound
			fmt.Fprintf(writer, "NOT_FOUND\r\n")
		}
	default:
		fmt.Fprintf(writer, "ERROR\r\n")
		return
	}

	duration := time.Since(start)
	s.sampler.AddToSamplePool(1)
	if !s.decider.Sample() {
		return
	}

	fs := &sflow.FlowSample{
		Elements: []sflow.FlowElement{
			sflow.ExtendedSocket4{
				Protocol:   6,
				LocalIP:    s.localIP,
				RemoteIP:   remoteIP,
				LocalPort:  s.localPort,
				RemotePort: remotePort,
			},
			sflow.MemcacheOperation{
				Protocol:   sflow.MemcacheProtoASCII,
				Command:    command,
				Key:        key,
				NKeys:      nkeys,
				ValueBytes: uint32(value),
				DurationUs: uint32(duration.Microseconds()),
				Status:     status,
			},
		},
	}
	if err := s.sampler.WriteFlowSample(fs); err != nil {
		s.logger.Warn("sflow: flow sample rejected", zap.Error(err), zap.String("key", key))
	}
}

package main

import (
	"bufio"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/netweaver/sflowagent/pkg/sflow"
)

type testCaps struct {
	sent [][]byte
}

func (c *testCaps) Send(datagram []byte) {
	cp := make([]byte, len(datagram))
	copy(cp, datagram)
	c.sent = append(c.sent, cp)
}

func (c *testCaps) Error(module, message string) {}

func newTestServer(t *testing.T, rate uint32) (*kvServer, *testCaps, *sflow.Agent) {
	t.Helper()
	caps := &testCaps{}
	agent := &sflow.Agent{}
	now := time.Now()
	agent.Init(sflow.NewIPv4Address(10, 0, 0, 1), 0, now, now, caps)

	receiver := agent.AddReceiver()
	dsi := sflow.DataSourceInstance{Class: sflow.DSClassLogicalEntity, Index: 1}
	sampler := agent.AddSampler(dsi)
	sampler.BindReceiver(receiver)
	sampler.SetRate(rate)

	decider := sflow.NewSamplingDecider(1, 0, rate)
	st := newStore(0)
	logger := zap.NewNop()

	srv := newKVServer("127.0.0.1:11211", st, sampler, decider, logger)
	return srv, caps, agent
}

func TestHandleCommandSetGet(t *testing.T) {
	srv, _, _ := newTestServer(t, 1)

	client, conn := net.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.handleConn(conn)
	}()

	writer := bufio.NewWriter(client)
	reader := bufio.NewReader(client)

	writer.WriteString("set foo 5\r\n")
	writer.WriteString("hello\r\n")
	writer.Flush()
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read STORED: %v", err)
	}
	if line != "STORED\r\n" {
		t.Fatalf("got %q, want STORED", line)
	}

	writer.WriteString("get foo\r\n")
	writer.Flush()
	valueLine, _ := reader.ReadString('\n')
	dataLine, _ := reader.ReadString('\n')
	endLine, _ := reader.ReadString('\n')
	if valueLine != "VALUE foo 0 5\r\n" || dataLine != "hello\r\n" || endLine != "END\r\n" {
		t.Fatalf("unexpected get response: %q %q %q", valueLine, dataLine, endLine)
	}

	client.Close()
	<-done

	if srv.store.cmdSet.Load() != 1 || srv.store.cmdGet.Load() != 1 {
		t.Errorf("cmdSet=%d cmdGet=%d, want 1,1", srv.store.cmdSet.Load(), srv.store.cmdGet.Load())
	}
}

func TestHandleCommandGetMissProducesNotFoundResponse(t *testing.T) {
	srv, _, _ := newTestServer(t, 1)

	client, conn := net.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.handleConn(conn)
	}()

	writer := bufio.NewWriter(client)
	reader := bufio.NewReader(client)
	writer.WriteString("get nope\r\n")
	writer.Flush()
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	if line != "END\r\n" {
		t.Fatalf("got %q, want END", line)
	}

	client.Close()
	<-done
}

func TestHandleCommandSampledFlowReachesAgent(t *testing.T) {
	srv, caps, agent := newTestServer(t, 1)

	client, conn := net.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.handleConn(conn)
	}()

	writer := bufio.NewWriter(client)
	reader := bufio.NewReader(client)
	writer.WriteString("set k 1\r\n")
	writer.WriteString("v\r\n")
	writer.Flush()
	if _, err := reader.ReadString('\n'); err != nil {
		t.Fatalf("read STORED: %v", err)
	}

	client.Close()
	<-done

	agent.Release()
	if len(caps.sent) == 0 {
		t.Fatalf("expected at least one datagram sent, got none")
	}
}

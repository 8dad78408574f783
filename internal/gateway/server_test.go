package gateway

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"

	"github.com/VCRTS/VCRTS/internal/common/config"
	"github.com/VCRTS/VCRTS/internal/common/logger"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.GetConfig()
	log, err := logger.NewLogger(config.LogConfig{Level: "error", Format: "text", Output: "stdout"})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	h := newTestHandler(t, config.AuthConfig{})
	return NewServer(cfg, h, log)
}

func TestServeConnCommandLoop(t *testing.T) {
	s := newTestServer(t)

	client, serverSide := net.Pipe()
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.track(serverSide, true)
	go s.serveConn(ctx, serverSide)

	reader := bufio.NewReader(client)
	send := func(line string) string {
		t.Helper()
		if _, err := client.Write([]byte(line + "\n")); err != nil {
			t.Fatalf("write: %v", err)
		}
		resp, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		return strings.TrimRight(resp, "\n")
	}

	if resp := send("REGISTER A,B,owner,o@e.com,1980-01-01,secret,CarOwner"); resp != "Registration successful" {
		t.Fatalf("register: %q", resp)
	}
	if resp := send("LOGIN owner,secret"); resp != "Login successful,CarOwner" {
		t.Fatalf("login: %q", resp)
	}
	if resp := send("NOTIFY_CAR_READY owner,M,B,P,S,V,2025-03-01"); resp != "Car registered,1" {
		t.Fatalf("notify: %q", resp)
	}
	if resp := send("NOT_A_COMMAND"); !strings.HasPrefix(resp, "ERROR") {
		t.Fatalf("unknown verb: %q", resp)
	}
}

func TestServeConnClosesOnContextCancel(t *testing.T) {
	s := newTestServer(t)

	client, serverSide := net.Pipe()
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.track(serverSide, true)
	go func() {
		s.serveConn(ctx, serverSide)
		close(done)
	}()

	cancel()
	s.closeAll()
	<-done
}

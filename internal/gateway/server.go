package gateway

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"runtime/debug"
	"sync"
	"time"

	"github.com/VCRTS/VCRTS/internal/common/config"
	"github.com/VCRTS/VCRTS/internal/common/discovery"
	"github.com/VCRTS/VCRTS/internal/common/logger"
	"github.com/VCRTS/VCRTS/internal/common/middleware"
	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"
	"golang.org/x/sync/errgroup"
)

// Server 命令网关：每个连接一个协程，逐行读命令、逐行回响应。
// 网关自身无业务状态；所有一致性都由引擎的临界区保证。
type Server struct {
	cfg     *config.Config
	handler *Handler
	log     logger.Logger

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// NewServer 创建网关
func NewServer(cfg *config.Config, handler *Handler, log logger.Logger) *Server {
	return &Server{
		cfg:     cfg,
		handler: handler,
		log:     log,
		conns:   make(map[net.Conn]struct{}),
	}
}

// Run 监听并服务，直到 ctx 取消。注册到 Consul（TCP check），
// 退出时注销并关闭存量连接。
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Gateway.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	// 注册到 Consul（失败不阻塞服务启动）
	if consulClient, err := discovery.NewConsulClient(s.cfg.Consul.Host, s.cfg.Consul.Port); err != nil {
		s.log.Warnf("failed to connect to Consul: %v", err)
	} else {
		serviceID := fmt.Sprintf("%s-%s", s.cfg.Server.Name, uuid.New().String())
		registry := discovery.NewServiceRegistry(
			consulClient,
			serviceID,
			s.cfg.Server.Name,
			s.cfg.Server.Host,
			s.cfg.Gateway.Port,
			[]string{"gateway", "vcrts"},
			discovery.CheckTCP,
		)
		if err := registry.Register(); err != nil {
			s.log.Warnf("failed to register gateway to Consul: %v", err)
		} else {
			s.log.Infof("Gateway registered to Consul: %s", serviceID)
			defer func() {
				if err := registry.Deregister(); err != nil {
					s.log.Warnf("failed to deregister gateway from Consul: %v", err)
				}
			}()
		}
	}

	s.log.Infof("%s gateway listening on %s", s.cfg.Server.Name, addr)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-ctx.Done()
		lis.Close()
		s.closeAll()
		return nil
	})

	g.Go(func() error {
		for {
			conn, err := lis.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return nil // 正常退出
				}
				return fmt.Errorf("accept failed: %w", err)
			}
			s.track(conn, true)
			go s.serveConn(ctx, conn)
		}
	})

	return g.Wait()
}

// serveConn 服务单个连接。命令串行处理（一个客户端一次一条），
// 不同连接之间并发，由引擎串行化分配决策。
func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorf("panic serving %s: %v stack=%s", conn.RemoteAddr(), r, string(debug.Stack()))
		}
		s.track(conn, false)
		conn.Close()
	}()

	s.log.Debugf("client connected: %s", conn.RemoteAddr())

	limiter := middleware.NewTokenBucket(s.cfg.Gateway.RateCapacity, s.cfg.Gateway.RatePerSecond)
	sess := &Session{}

	scanner := bufio.NewScanner(conn)
	maxLine := s.cfg.Gateway.MaxLineBytes
	if maxLine <= 0 {
		maxLine = 4096
	}
	scanner.Buffer(make([]byte, 0, 1024), maxLine)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		var response string
		if !limiter.Allow(ctx) {
			response = "ERROR rate limit exceeded"
		} else {
			response = s.dispatchLine(sess, line)
		}

		if _, err := fmt.Fprintf(conn, "%s\n", response); err != nil {
			s.log.Warnf("write to %s failed: %v", conn.RemoteAddr(), err)
			return
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		s.log.Debugf("client %s read error: %v", conn.RemoteAddr(), err)
	}
}

// dispatchLine 一条命令一个 span + 请求日志
func (s *Server) dispatchLine(sess *Session, line string) string {
	cmd, _ := ParseCommand(line)
	requestID := uuid.NewString()

	span := opentracing.GlobalTracer().StartSpan("gateway/" + cmd.Verb)
	span.SetTag("request_id", requestID)
	if sess.Username != "" {
		span.SetTag("session.user", sess.Username)
	}
	defer span.Finish()

	start := time.Now()
	response := s.handler.Handle(sess, line)
	cost := time.Since(start)

	fields := map[string]interface{}{
		"request_id": requestID,
		"verb":       cmd.Verb,
		"cost":       cost.String(),
	}
	if sess.Username != "" {
		fields["user"] = sess.Username
	}
	if isErrorResponse(response) {
		fields["response"] = response
		s.log.WithFields(fields).Warn("command failed")
	} else {
		s.log.WithFields(fields).Info("command ok")
	}
	return response
}

func (s *Server) track(conn net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		conn.Close()
	}
}

func isErrorResponse(resp string) bool {
	return len(resp) >= 5 && resp[:5] == "ERROR"
}

package discovery

import (
	"fmt"

	"github.com/hashicorp/consul/api"
)

// CheckKind 健康检查方式
type CheckKind string

const (
	CheckGRPC CheckKind = "grpc" // 运维 gRPC 端口（health service）
	CheckTCP  CheckKind = "tcp"  // 命令网关端口（文本行协议，无 gRPC health）
)

// ServiceRegistry Consul服务注册
type ServiceRegistry struct {
	client    *api.Client
	serviceID string
	service   string
	address   string
	port      int
	tags      []string
	check     *api.AgentServiceCheck
}

// NewServiceRegistry 创建服务注册器
func NewServiceRegistry(client *api.Client, serviceID, service, address string, port int, tags []string, kind CheckKind) *ServiceRegistry {
	check := &api.AgentServiceCheck{
		Interval:                       "10s",
		Timeout:                        "5s",
		DeregisterCriticalServiceAfter: "30s",
	}
	switch kind {
	case CheckTCP:
		check.TCP = fmt.Sprintf("%s:%d", address, port)
	default:
		check.GRPC = fmt.Sprintf("%s:%d", address, port)
	}

	return &ServiceRegistry{
		client:    client,
		serviceID: serviceID,
		service:   service,
		address:   address,
		port:      port,
		tags:      tags,
		check:     check,
	}
}

// Register 注册服务
func (r *ServiceRegistry) Register() error {
	registration := &api.AgentServiceRegistration{
		ID:      r.serviceID,
		Name:    r.service,
		Tags:    r.tags,
		Address: r.address,
		Port:    r.port,
		Check:   r.check,
	}

	return r.client.Agent().ServiceRegister(registration)
}

// Deregister 注销服务
func (r *ServiceRegistry) Deregister() error {
	return r.client.Agent().ServiceDeregister(r.serviceID)
}

// NewConsulClient 创建Consul客户端
func NewConsulClient(host string, port int) (*api.Client, error) {
	config := api.DefaultConfig()
	config.Address = fmt.Sprintf("%s:%d", host, port)
	return api.NewClient(config)
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Config 应用配置
type Config struct {
	Server   ServerConfig   `json:"server"`
	Gateway  GatewayConfig  `json:"gateway"`
	Database DatabaseConfig `json:"database"`
	Consul   ConsulConfig   `json:"consul"`
	Jaeger   JaegerConfig   `json:"jaeger"`
	Auth     AuthConfig     `json:"auth"`
	Log      LogConfig      `json:"log"`
}

// ServerConfig 服务配置（gRPC 端口仅承载 health / reflection 等运维接口）
type ServerConfig struct {
	Name     string `json:"name"`      // 服务名称
	Host     string `json:"host"`      // 服务地址
	GRPCPort int    `json:"grpc_port"` // gRPC 运维端口
}

// GatewayConfig 命令网关配置（文本行协议入口）
type GatewayConfig struct {
	Port          int   `json:"port"`            // 网关监听端口
	MaxLineBytes  int   `json:"max_line_bytes"`  // 单条命令最大长度
	RateCapacity  int64 `json:"rate_capacity"`   // 每连接令牌桶容量
	RatePerSecond int64 `json:"rate_per_second"` // 每连接每秒补充令牌数
}

// DatabaseConfig 数据库配置（Host 留空表示仅内存运行，不落库）
type DatabaseConfig struct {
	Host     string `json:"host"`     // 数据库地址
	Port     int    `json:"port"`     // 数据库端口
	User     string `json:"user"`     // 用户名
	Password string `json:"password"` // 密码
	Database string `json:"database"` // 数据库名
	MaxIdle  int    `json:"max_idle"` // 最大空闲连接
	MaxOpen  int    `json:"max_open"` // 最大打开连接
}

// ConsulConfig Consul配置
type ConsulConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// JaegerConfig Jaeger配置
type JaegerConfig struct {
	Endpoint string  `json:"endpoint"`
	Sampler  float64 `json:"sampler"` // 采样率 0.0-1.0
}

// AuthConfig 会话令牌配置（LOGIN 成功后签发，RESUME 时校验）
type AuthConfig struct {
	JWTSecret string `json:"jwt_secret"` // HS256 签名密钥
	Issuer    string `json:"issuer"`     // iss
	Audience  string `json:"audience"`   // aud
	TTLHours  int    `json:"ttl_hours"`  // 令牌有效期（小时）
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
	Output string `json:"output"` // stdout, file
	Path   string `json:"path"`   // 日志文件路径
}

var (
	globalConfig *Config
	configOnce   sync.Once
)

// LoadConfig 加载配置
func LoadConfig(configPath string) (*Config, error) {
	var err error
	configOnce.Do(func() {
		globalConfig = &Config{}
		// 如果配置文件不存在，使用默认配置
		if _, err = os.Stat(configPath); os.IsNotExist(err) {
			logrus.Warnf("Config file not found: %s, using default config", configPath)
			globalConfig = defaultConfig()
			err = nil
			return
		}

		data, readErr := os.ReadFile(configPath)
		if readErr != nil {
			err = fmt.Errorf("failed to read config file: %w", readErr)
			return
		}

		if unmarshalErr := json.Unmarshal(data, globalConfig); unmarshalErr != nil {
			err = fmt.Errorf("failed to parse config file: %w", unmarshalErr)
			return
		}
	})

	if err != nil {
		return nil, err
	}

	return globalConfig, nil
}

// GetConfig 获取全局配置
func GetConfig() *Config {
	if globalConfig == nil {
		return defaultConfig()
	}
	return globalConfig
}

// defaultConfig 默认配置（开发环境）
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Name:     "vcc-controller",
			Host:     "0.0.0.0",
			GRPCPort: 50051,
		},
		Gateway: GatewayConfig{
			Port:          9000,
			MaxLineBytes:  4096,
			RateCapacity:  20,
			RatePerSecond: 10,
		},
		Database: DatabaseConfig{
			Host:     "", // 默认不落库
			Port:     3306,
			User:     "root",
			Password: "root",
			Database: "vcrts",
			MaxIdle:  10,
			MaxOpen:  100,
		},
		Consul: ConsulConfig{
			Host: "localhost",
			Port: 8500,
		},
		Jaeger: JaegerConfig{
			Endpoint: "localhost:6831",
			Sampler:  1.0,
		},
		Auth: AuthConfig{
			JWTSecret: "",
			Issuer:    "vcrts",
			Audience:  "vcrts",
			TTLHours:  24,
		},
		Log: LogConfig{
			Level:  "debug",
			Format: "text",
			Output: "stdout",
			Path:   "logs/vcc-controller.log",
		},
	}
}

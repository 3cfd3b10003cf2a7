package config

import (
	"os"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration 包装 time.Duration，支持 yaml 里的 "30s"、"5m" 写法。
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Std 转回标准库类型。
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config 是所有服务共享的配置树。
// 各服务只读取自己关心的子树，缺省值保证没有配置文件也能在本地跑起来。
type Config struct {
	Infra Infra `yaml:"infra"`
	Saga  Saga  `yaml:"saga"`
}

type Infra struct {
	Mysql struct {
		DSN string `yaml:"dsn"`
	} `yaml:"mysql"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
	} `yaml:"redis"`
	Kafka struct {
		Brokers []string `yaml:"brokers"`
	} `yaml:"kafka"`
	Jaeger struct {
		Endpoint string `yaml:"endpoint"`
	} `yaml:"jaeger"`
	Zookeeper struct {
		Servers        []string `yaml:"servers"`
		SessionTimeout Duration `yaml:"sessionTimeout"`
	} `yaml:"zookeeper"`
	Nacos struct {
		ServerAddrs string `yaml:"serverAddrs"`
		Namespace   string `yaml:"namespace"`
		Group       string `yaml:"group"`
	} `yaml:"nacos"`
}

// Saga 聚合了订单履约流程的策略参数。
// 重试节奏、超时时间都是策略而不是代码，必须可以在不发版的情况下调整。
type Saga struct {
	// DownstreamTimeout 是编排器调用下游服务（shipping/inventory）的单次超时。
	DownstreamTimeout Duration `yaml:"downstreamTimeout"`

	// Sweep 控制 READY_TO_SHIP 兜底重试的节奏。
	Sweep struct {
		Interval    Duration `yaml:"interval"`
		MaxAttempts int      `yaml:"maxAttempts"`
		BatchSize   int      `yaml:"batchSize"`
	} `yaml:"sweep"`

	// Dedup 控制已消费事件 ID 在 Redis 中的保留时间。
	Dedup struct {
		TTL Duration `yaml:"ttl"`
	} `yaml:"dedup"`

	Notification struct {
		MaxAttempts int                `yaml:"maxAttempts"`
		Rules       []NotificationRule `yaml:"rules"`
	} `yaml:"notification"`

	Accounting struct {
		// TaxRate 以十进制字符串配置，避免 YAML float 的精度问题。
		TaxRate string `yaml:"taxRate"`
	} `yaml:"accounting"`
}

// NotificationRule 是一条 CEL 路由规则：表达式对事件求值为 true 时走对应渠道。
type NotificationRule struct {
	Name       string `yaml:"name"`
	Expression string `yaml:"expression"`
	Channel    string `yaml:"channel"`
}

var current atomic.Pointer[Config]

// Load 读取 yaml 配置并应用环境变量覆盖，然后发布为全局当前配置。
// path 为空时只使用缺省值加环境变量。
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)
	current.Store(cfg)
	return cfg, nil
}

// Current 返回最近一次 Load 的配置；从未 Load 过则返回缺省值。
func Current() *Config {
	if c := current.Load(); c != nil {
		return c
	}
	cfg := defaults()
	applyEnvOverrides(cfg)
	current.Store(cfg)
	return cfg
}

func defaults() *Config {
	cfg := &Config{}
	cfg.Infra.Mysql.DSN = "root:root@tcp(localhost:3306)/supplyboost?charset=utf8mb4&parseTime=True&loc=UTC"
	cfg.Infra.Redis.Addr = "localhost:6379"
	cfg.Infra.Kafka.Brokers = []string{"localhost:9092"}
	cfg.Infra.Jaeger.Endpoint = "http://localhost:14268/api/traces"
	cfg.Infra.Zookeeper.Servers = []string{"localhost:2181"}
	cfg.Infra.Zookeeper.SessionTimeout = Duration(5 * time.Second)
	cfg.Infra.Nacos.ServerAddrs = "localhost:8848"
	cfg.Infra.Nacos.Group = "DEFAULT_GROUP"

	cfg.Saga.DownstreamTimeout = Duration(3 * time.Second)
	cfg.Saga.Sweep.Interval = Duration(30 * time.Second)
	cfg.Saga.Sweep.MaxAttempts = 5
	cfg.Saga.Sweep.BatchSize = 50
	cfg.Saga.Dedup.TTL = Duration(24 * time.Hour)
	cfg.Saga.Notification.MaxAttempts = 3
	cfg.Saga.Accounting.TaxRate = "0.20"
	return cfg
}

// applyEnvOverrides 允许容器环境用环境变量覆盖关键连接串。
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MYSQL_DSN"); v != "" {
		cfg.Infra.Mysql.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Infra.Redis.Addr = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Infra.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("JAEGER_ENDPOINT"); v != "" {
		cfg.Infra.Jaeger.Endpoint = v
	}
	if v := os.Getenv("ZOOKEEPER_SERVERS"); v != "" {
		cfg.Infra.Zookeeper.Servers = strings.Split(v, ",")
	}
	if v := os.Getenv("NACOS_SERVER_ADDRS"); v != "" {
		cfg.Infra.Nacos.ServerAddrs = v
	}
	if v := os.Getenv("NACOS_NAMESPACE"); v != "" {
		cfg.Infra.Nacos.Namespace = v
	}
	if v := os.Getenv("NACOS_GROUP"); v != "" {
		cfg.Infra.Nacos.Group = v
	}
}

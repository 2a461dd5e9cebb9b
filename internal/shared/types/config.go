package types

// CommonConf 包含 echo 服务的通用参数
// 读缓冲大小和检测失败时的 worker 数是固定常量, 不在配置中暴露
type CommonConf struct {
	QueueSize int `ini:"queue_size"` // pending connections held by the pool
}

// ServerConf holds the echo listener endpoint.
type ServerConf struct {
	Address string `ini:"address"`
	Port    int    `ini:"port"`
}

// LogConf contains logging specific configuration
type LogConf struct {
	Level string `ini:"level"`
}

// CoresConf selects how the worker count is detected.
type CoresConf struct {
	Detector    string `ini:"detector"` // auto, cpuinfo, system_profiler, affinity
	CPUInfoPath string `ini:"cpuinfo_path"`
}

// WebConf 状态页/监控接口, port 0 表示关闭
type WebConf struct {
	Port     int    `ini:"port"`
	User     string `ini:"user"`
	Password string `ini:"password"`
}

// HealthConf configures the optional gRPC health endpoint.
type HealthConf struct {
	Port int `ini:"port"`
}

// Config 是 echo 服务的统一配置结构体
type Config struct {
	CommonConf `ini:"common"`
	ServerConf `ini:"server"`
	LogConf    `ini:"log"`
	CoresConf  `ini:"cores"`
	WebConf    `ini:"web"`
	HealthConf `ini:"health"`
}

const (
	DefaultAddress    = "127.0.0.1"
	DefaultPort       = 8081
	DefaultBufferSize = 1024
	DefaultWorkerNum  = 1
	DefaultQueueSize  = 1024
	DefaultCPUInfo    = "/proc/cpuinfo"
)

// DefaultConfig returns the built-in configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		CommonConf: CommonConf{QueueSize: DefaultQueueSize},
		ServerConf: ServerConf{Address: DefaultAddress, Port: DefaultPort},
		LogConf:    LogConf{Level: "info"},
		CoresConf:  CoresConf{Detector: "auto", CPUInfoPath: DefaultCPUInfo},
	}
}

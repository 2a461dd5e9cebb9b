package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/ini.v1"

	"echo_nexus/internal/shared/types"
)

const (
	EnvConfigPath = "ECHO_CONFIG"
	DefaultPath   = "configs/echo.ini"
)

// Path 返回配置文件路径, 可以通过 ECHO_CONFIG 覆盖。
func Path() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	return DefaultPath
}

// Load reads the ini file on top of the built-in defaults.
// A missing file is not an error: the defaults are returned as-is.
func Load(fileName string) (*types.Config, error) {
	cfg := types.DefaultConfig()
	if err := LoadIni(cfg, fileName); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadIni maps fileName onto cfg and applies the environment overrides.
func LoadIni(cfg *types.Config, fileName string) error {
	if _, err := os.Stat(fileName); err == nil {
		iniFile, err := ini.Load(fileName)
		if err != nil {
			return fmt.Errorf("failed to parse config file '%s': %w", fileName, err)
		}
		if err := iniFile.MapTo(cfg); err != nil {
			return fmt.Errorf("failed to map config file '%s': %w", fileName, err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat config file '%s': %w", fileName, err)
	}

	overrideFromEnvString(&cfg.LogConf.Level, "ECHO_LOG_LEVEL")
	overrideFromEnvInt(&cfg.WebConf.Port, "ECHO_WEB_PORT")
	normalize(cfg)
	return nil
}

// normalize 修正非法值, 保证下游组件拿到的都是可用参数
func normalize(cfg *types.Config) {
	if cfg.QueueSize < 0 {
		cfg.QueueSize = types.DefaultQueueSize
	}
	if cfg.Address == "" {
		cfg.Address = types.DefaultAddress
	}
	if cfg.Detector == "" {
		cfg.Detector = "auto"
	}
	if cfg.CPUInfoPath == "" {
		cfg.CPUInfoPath = types.DefaultCPUInfo
	}
}

func overrideFromEnvInt(target *int, envName string) {
	envValue := os.Getenv(envName)
	if envValue != "" {
		if intValue, err := strconv.Atoi(envValue); err == nil {
			*target = intValue
		}
	}
}

func overrideFromEnvString(target *string, envName string) {
	if envValue := os.Getenv(envName); envValue != "" {
		*target = envValue
	}
}

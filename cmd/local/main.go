package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"echo_nexus/internal/app"
	"echo_nexus/internal/shared/config"
	"echo_nexus/internal/shared/logger"
)

func main() {
	iniPath := config.Path()

	// 1. 加载 .ini 配置 (文件可选, 缺省值即为固定常量)
	cfg, err := config.Load(iniPath)
	if err != nil {
		// Use standard fmt before logger is initialized.
		fmt.Fprintf(os.Stderr, "Fatal: Failed to load config file '%s': %v\n", iniPath, err)
		os.Exit(1)
	}

	// 2. 初始化日志系统
	if err := logger.Init(cfg.LogConf); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	// 3. 创建并运行服务器
	appServer := app.New(cfg, os.Stdout)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("Received signal, shutting down")
		appServer.Stop()
	}()

	if err := appServer.Run(); err != nil {
		logger.Fatal().Err(err).Msg("Echo server terminated")
	}
}

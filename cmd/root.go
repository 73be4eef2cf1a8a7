// 包 cmd 为命令行入口（cobra）：
// - collect：按年月范围收集并输出训练 CSV
// - stats：查看缓存库统计
// - version：版本信息
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"go-keiba-collector/internal/config"
	"go-keiba-collector/internal/logx"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	flagConfig  string
	flagRules   string
	flagCacheDB string
)

var rootCmd = &cobra.Command{
	Use:           "keiba",
	Short:         "Horse racing record collector with a durable read-through cache",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "settings.yaml", "path to settings.yaml")
	rootCmd.PersistentFlags().StringVar(&flagRules, "rules", "rules.yaml", "path to rules.yaml")
	rootCmd.PersistentFlags().StringVarP(&flagCacheDB, "cachedb", "d", "", "cache database path (overrides CACHE_DB)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(statsCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "keiba %s (commit: %s, built: %s)\n", version, commit, date)
	},
}

// loadConfig 读取配置并初始化日志。未显式指定 --config 且默认文件不存在时使用默认配置。
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if errors.Is(err, os.ErrNotExist) && !cmd.Flags().Changed("config") {
		cfg, err = config.Default()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if flagCacheDB != "" {
		cfg.CacheDB = flagCacheDB
	}
	logx.Init(cfg.LogLevel, cfg.LogFormat, cfg.LogLocale, cfg.LogColor)
	return cfg, nil
}

// Execute 运行根命令；收到 SIGINT/SIGTERM 时取消上下文。
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}

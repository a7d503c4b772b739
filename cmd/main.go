package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

// rootOptions 全局命令行参数，优先级高于配置文件
type rootOptions struct {
	configPath string // 配置文件路径
	logLevel   string // 日志级别
	port       int    // 服务端口
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "quizgen",
		Short: "Quiz generation service",
		Long: `quizgen asks a large language model for a quiz on a topic and turns
the free-form answer into structured questions.

Without a subcommand it runs the HTTP server (same as 'quizgen serve').`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// .env不存在时忽略
			_ = godotenv.Load()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "config.yaml", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug/info/warn/error), overrides config")
	rootCmd.PersistentFlags().IntVar(&opts.port, "port", 0, "Server port, overrides config")

	rootCmd.AddCommand(serveCmd(opts))
	rootCmd.AddCommand(workerCmd(opts))
	rootCmd.AddCommand(parseCmd())

	return rootCmd
}

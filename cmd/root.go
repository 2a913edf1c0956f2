package cmd

import (
	"github.com/spf13/cobra"
)

// Version 构建时通过 -ldflags 注入。
var Version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "itops-zabbix",
	Short: "Zabbix 对象层服务与运维工具",
	Long: `itops-zabbix 以延迟加载的领域对象封装 Zabbix JSON-RPC API。

serve 启动 HTTP 服务与自动工单推送；export / import 用于配置迁移。`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config/config.yaml", "配置文件路径")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(versionCmd)
}

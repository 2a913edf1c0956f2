package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var remoteVersion bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "打印版本信息",
	RunE: func(cmd *cobra.Command, _ []string) error {
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "itops-zabbix %s (%s %s/%s)\n", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		if !remoteVersion {
			return nil
		}
		session, err := newSession(cfgFile)
		if err != nil {
			return err
		}
		v, err := session.Version(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "zabbix api %s\n", v)
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolVar(&remoteVersion, "remote", false, "同时查询 Zabbix API 版本")
}

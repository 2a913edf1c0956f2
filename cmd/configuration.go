package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/config"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/core"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/infra/jsonrpc"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/infra/log"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/module/zabbix"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/utils/slice"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	format      string
	hostIDs     string
	templateIDs string
	groupIDs    string
	output      string
	dryRun      bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "导出主机、模板或主机组配置",
	Long: `导出主机、模板或主机组配置。

Examples:
  itops-zabbix export --host-ids 10101,10102 --format json -o hosts.json
  itops-zabbix export --template-ids 10001`,
	RunE: runExport,
}

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "导入配置，新建缺失对象并更新已有对象",
	Long: `导入配置，新建缺失对象并更新已有对象，不删除任何对象。

Examples:
  itops-zabbix import hosts.yaml
  itops-zabbix import hosts.json --format json --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	exportCmd.Flags().StringVar(&format, "format", "yaml", "导出格式: yaml, xml, json")
	exportCmd.Flags().StringVar(&hostIDs, "host-ids", "", "逗号分隔的主机 ID")
	exportCmd.Flags().StringVar(&templateIDs, "template-ids", "", "逗号分隔的模板 ID")
	exportCmd.Flags().StringVar(&groupIDs, "group-ids", "", "逗号分隔的主机组 ID")
	exportCmd.Flags().StringVarP(&output, "output", "o", "", "输出文件，默认标准输出")

	importCmd.Flags().StringVar(&format, "format", "yaml", "导入格式: yaml, xml, json")
	importCmd.Flags().BoolVar(&dryRun, "dry-run", false, "只做本地自检，不提交")
}

// newSession 命令行工具只需要一个会话，不装配 HTTP 服务与 Kafka。
func newSession(path string) (*jsonrpc.Client, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	log.SetDefaultLog(&cfg.Log)
	return jsonrpc.NewClient(cfg.Zabbix, nil), nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	f, err := zabbix.ParseFormat(format)
	if err != nil {
		return err
	}
	opts := zabbix.ExportOptions{
		HostIDs:     slice.SplitToIDs(hostIDs),
		TemplateIDs: slice.SplitToIDs(templateIDs),
		GroupIDs:    slice.SplitToIDs(groupIDs),
	}

	session, err := newSession(cfgFile)
	if err != nil {
		return err
	}
	defer logout(session)

	w := cmd.OutOrStdout()
	if output != "" {
		file, err := os.Create(output)
		if err != nil {
			return errors.Wrap(err, "创建输出文件失败")
		}
		defer file.Close()
		w = file
	}
	return export(cmd.Context(), session, f, opts, w)
}

func export(ctx context.Context, s core.Session, f zabbix.Format, opts zabbix.ExportOptions, w io.Writer) error {
	out, err := zabbix.NewConfiguration(s).Export(ctx, f, opts)
	if err != nil {
		return errors.Wrap(err, "导出配置失败")
	}
	_, err = io.WriteString(w, out)
	return err
}

func runImport(cmd *cobra.Command, args []string) error {
	f, err := zabbix.ParseFormat(format)
	if err != nil {
		return err
	}
	source, err := os.ReadFile(args[0])
	if err != nil {
		return errors.Wrap(err, "读取导入文件失败")
	}
	if dryRun {
		if err := zabbix.CheckSource(f, string(source)); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s 自检通过\n", args[0])
		return nil
	}

	session, err := newSession(cfgFile)
	if err != nil {
		return err
	}
	defer logout(session)

	if err := zabbix.NewConfiguration(session).Import(cmd.Context(), f, string(source), nil); err != nil {
		return errors.Wrap(err, "导入配置失败")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s 导入成功\n", args[0])
	return nil
}

func logout(s *jsonrpc.Client) {
	if err := s.Logout(context.Background()); err != nil {
		log.Warnf("注销 zabbix 会话失败: %v", err)
	}
}

package main

import (
	"fmt"
	"os"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

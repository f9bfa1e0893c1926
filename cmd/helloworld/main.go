// helloworld 演示 Consul 集成：启动时注册到 agent，配置中的 ${key} 从 KV 替换，
// 出站调用经负载均衡客户端分发到 hello-world 的健康实例
//
//	helloworld serve --config ./configs
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/KOMKZ/go-yogan-consul/flagx"
	"github.com/spf13/cobra"
)

const serviceName = "hello-world"

// version 构建时通过 -ldflags 注入
var version = "dev"

type serveOptions struct {
	ConfigDir string `flag:"config,c" default:"./configs" usage:"配置目录，包含 config.yaml"`
	EnvPrefix string `flag:"env-prefix" default:"HELLO" usage:"环境变量前缀"`
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "helloworld",
		Short:        "Consul 集成示例服务",
		Version:      version,
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var opts serveOptions
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动服务",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := flagx.Parse(cmd, &opts); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return newApp(opts).Run(ctx)
		},
	}
	if err := flagx.Bind(cmd, &opts); err != nil {
		panic(err)
	}
	return cmd
}

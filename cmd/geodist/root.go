package main

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/wyfcoding/geodist/bootstrap"
	"github.com/wyfcoding/geodist/config"
	"github.com/wyfcoding/geodist/engine"
	"github.com/wyfcoding/geodist/geo"
)

// cliContext 保存全局参数与输入输出流。
type cliContext struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	configPath string
	method     string
	workers    int
	otherPath  string
	precision  int
}

func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	cc := &cliContext{in: in, out: out, errOut: errOut}

	root := &cobra.Command{
		Use:           "geodist",
		Short:         "geodesic distance calculations over point sets",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&cc.configPath, "config", "", "path to a TOML config file (defaults plus GEODIST_* environment overrides when empty)")
	flags.StringVar(&cc.method, "method", "", "distance method: haversine or vincenty (overrides config)")
	flags.IntVar(&cc.workers, "workers", -1, "number of workers, 0 for all CPUs (overrides config)")
	flags.IntVar(&cc.precision, "precision", 6, "decimal places in printed values")

	root.AddCommand(
		newMatrixCmd(cc),
		newWithinCmd(cc),
		newDisplaceCmd(cc),
		newExplainCmd(cc),
	)
	return root
}

// session 初始化基础设施并返回组装好的 Calculator。
func (cc *cliContext) session() (engine.Calculator, func(), error) {
	b := bootstrap.New("geodist", version,
		bootstrap.WithLogOutput(cc.errOut),
		bootstrap.WithOverrides(cc.override),
	)
	if err := b.Initialize(cc.configPath); err != nil {
		return nil, nil, err
	}

	stopTracing := b.SetupTracing()
	stopMetrics := b.SetupMetrics()
	cleanup := func() {
		b.Close()
		stopMetrics()
		stopTracing()
	}

	calc, err := b.Calculator()
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return calc, cleanup, nil
}

// override 将命令行参数覆盖到配置上。
func (cc *cliContext) override(conf *config.Config) {
	if cc.method != "" {
		conf.Calculation.Method = cc.method
	}
	if cc.workers >= 0 {
		conf.Calculation.Workers = cc.workers
	}
}

// inputs 读取主点集（stdin）以及可选的第二个点集（--other）。
func (cc *cliContext) inputs() (*geo.CoordinateSet, *geo.CoordinateSet, error) {
	x, err := readPoints(cc.in)
	if err != nil {
		return nil, nil, err
	}
	if cc.otherPath == "" {
		return x, nil, nil
	}

	f, err := os.Open(cc.otherPath)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	y, err := readPoints(f)
	if err != nil {
		return nil, nil, err
	}
	return x, y, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

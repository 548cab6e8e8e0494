// Package main provides the onnxgen CLI: it writes ONNX fixtures and the
// JSON records of their inputs and outputs.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/born-ml/onnxgen/internal/fixture"
	"github.com/born-ml/onnxgen/onnx"
	"github.com/dustin/go-humanize"
	"k8s.io/klog/v2"
)

const usage = `onnxgen %s - ONNX fixture generator

Usage:
  onnxgen [klog flags] <command> [flags]

Commands:
  gen       Generate network.onnx and input.json for one example
  verify    Check that a generated model reproduces its record
  list      List the built-in examples
  info      Summarize an ONNX model file
  version   Show version
`

func main() {
	klog.InitFlags(nil)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), usage, fixture.Version)
		flag.PrintDefaults()
	}
	flag.Parse()
	defer klog.Flush()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd, args := flag.Arg(0), flag.Args()[1:]
	switch cmd {
	case "gen":
		runGen(ctx, args)
	case "verify":
		runVerify(ctx, args)
	case "list":
		runList()
	case "info":
		runInfo(args)
	case "version":
		fmt.Printf("onnxgen %s\n", fixture.Version)
	default:
		klog.Exitf("unknown command %q, see onnxgen -help", cmd)
	}
}

func runGen(ctx context.Context, args []string) {
	defaults := fixture.DefaultConfig()
	fs := flag.NewFlagSet("gen", flag.ExitOnError)
	flagExample := fs.String("example", "", fmt.Sprintf("Example to generate, one of %s.", strings.Join(fixture.Names(), ", ")))
	flagOut := fs.String("out", defaults.OutDir, "Directory receiving network.onnx and input.json.")
	flagSeed := fs.Int64("seed", defaults.Seed, "Seed of the input generator. Defaults to the current time.")
	flagVerify := fs.Bool("verify", false, "Reload the written pair and check the round trip.")
	flagOpset := fs.Int64("opset", 0, "Override the example's ONNX opset version.")
	_ = fs.Parse(args)

	if *flagExample == "" {
		klog.Exitf("gen: -example is required (one of %s)", strings.Join(fixture.Names(), ", "))
	}
	ex, err := fixture.Lookup(*flagExample)
	if err != nil {
		klog.Fatalf("gen: %+v", err)
	}
	if *flagOpset > 0 {
		ex.Export.OpsetVersion = *flagOpset
	}

	cfg := defaults
	cfg.OutDir = *flagOut
	cfg.Seed = *flagSeed
	cfg.Verify = *flagVerify
	klog.Infof("generating %s with seed %d", ex.Name, cfg.Seed)

	start := time.Now()
	res, err := fixture.Generate(ctx, ex, cfg)
	if err != nil {
		klog.Fatalf("gen %s: %+v", ex.Name, err)
	}
	klog.V(1).Infof("generated %s in %s", ex.Name, time.Since(start))
	fmt.Printf("%s\n%s\n", res.ModelPath, res.DataPath)
}

func runVerify(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	flagDir := fs.String("dir", ".", "Directory holding network.onnx and input.json.")
	_ = fs.Parse(args)

	if err := fixture.VerifyDir(ctx, *flagDir); err != nil {
		klog.Fatalf("verify %s: %+v", *flagDir, err)
	}
	fmt.Println("ok")
}

func runList() {
	table := newPlainTable(true).Headers("example", "input shape", "opset", "description")
	for _, ex := range fixture.Examples() {
		shapes := make([]string, len(ex.InputShapes))
		for i, s := range ex.InputShapes {
			shapes[i] = s.String()
		}
		table.Row(ex.Name, strings.Join(shapes, " "), fmt.Sprint(ex.Export.OpsetVersion), ex.Description)
	}
	fmt.Println(table.Render())
}

func runInfo(args []string) {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	flagModel := fs.String("model", fixture.DefaultModelFile, "ONNX model file to summarize.")
	_ = fs.Parse(args)

	stat, err := os.Stat(*flagModel)
	if err != nil {
		klog.Fatalf("info: %+v", err)
	}
	info, err := onnx.GetModelInfo(*flagModel)
	if err != nil {
		klog.Fatalf("info %s: %+v", *flagModel, err)
	}

	table := newPlainTable(false)
	table.Row("file", *flagModel)
	table.Row("size", humanize.Bytes(uint64(stat.Size()))) //nolint:gosec // file sizes are non-negative
	table.Row("graph", info.GraphName)
	table.Row("producer", strings.TrimSpace(info.ProducerName+" "+info.ProducerVersion))
	table.Row("ir_version", fmt.Sprint(info.IRVersion))
	table.Row("opset", fmt.Sprint(info.OpsetVersion))
	table.Row("inputs", strings.Join(info.InputNames, ", "))
	table.Row("outputs", strings.Join(info.OutputNames, ", "))
	table.Row("operators", strings.Join(info.Operators, ", "))
	table.Row("# nodes", humanize.Comma(int64(info.NodeCount)))
	table.Row("# initializers", humanize.Comma(int64(info.WeightCount)))
	fmt.Println(table.Render())
}

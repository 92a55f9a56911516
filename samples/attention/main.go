package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"

	"github.com/sarchlab/meshfuse/algo"
	"github.com/sarchlab/meshfuse/config"
	"github.com/sarchlab/meshfuse/dnn"
	"github.com/sarchlab/meshfuse/report"
	"github.com/tebeka/atexit"
)

//go:embed attention.hcl
var configSrc []byte

// attention builds Q x K -> A followed by A x V -> O.
func attention() *dnn.Graph {
	b := dnn.NewDimension("b", 1)
	h := dnn.NewDimension("h", 16)
	m := dnn.NewDimension("m", 64)
	n := dnn.NewDimension("n", 64)
	k := dnn.NewDimension("k", 64)
	l := dnn.NewDimension("l", 64)

	tQ := dnn.NewTensor("tQ", b, h, m, k)
	tK := dnn.NewTensor("tK", b, h, k, n)
	tA := dnn.NewTensor("tA", b, h, m, n)
	tV := dnn.NewTensor("tV", b, h, n, l)
	tO := dnn.NewTensor("tO", b, h, m, l)

	g, err := dnn.NewGraph(
		dnn.NewOperator("MatMul0", []*dnn.Tensor{tQ, tK}, []*dnn.Tensor{tA}),
		dnn.NewOperator("MatMul1", []*dnn.Tensor{tA, tV}, []*dnn.Tensor{tO}),
	)
	if err != nil {
		panic(err)
	}

	return g
}

func run() error {
	cfg, err := config.Parse(configSrc, "attention.hcl")
	if err != nil {
		return err
	}

	mesh, err := cfg.Mesh()
	if err != nil {
		return err
	}

	mapperBuilder, err := cfg.MapperBuilder()
	if err != nil {
		return err
	}

	groupMapper, err := mapperBuilder.Build()
	if err != nil {
		return err
	}

	fusionBuilder, err := cfg.FusionBuilder()
	if err != nil {
		return err
	}

	space, err := fusionBuilder.
		WithMapper(groupMapper).
		WithHook(algo.LogHook{}).
		Build(attention())
	if err != nil {
		return err
	}

	result, err := space.SearchFusionSpace(context.Background(), mesh)
	if err != nil {
		return err
	}

	r := report.New("attention", mesh, result)
	r.WriteReport(os.Stdout)

	return r.SaveJSONToFile("attention.json")
}

func main() {
	f, err := os.Create("attention_run.log")
	if err != nil {
		panic(err)
	}

	atexit.Register(func() { f.Close() })

	handler := slog.NewJSONHandler(f, &slog.HandlerOptions{
		Level: algo.LevelTrace,
	})
	slog.SetDefault(slog.New(handler))

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/irmips/compiler"
	"github.com/slowlang/irmips/compiler/format"
	"github.com/slowlang/irmips/compiler/front"
	"github.com/slowlang/irmips/compiler/regalloc"
)

func main() {
	compileCmd := &cli.Command{
		Name:   "compile",
		Action: compileAct,
		Args:   cli.Args{},
		Flags: []*cli.Flag{
			cli.NewFlag("alloc,a", "", "register allocator: "+strings.Join(regalloc.Names, ", ")),
			cli.NewFlag("cfg", false, "write control flow graph in graphviz format"),
			cli.NewFlag("liveness", false, "write liveness report"),
			cli.NewFlag("config,c", "", "yaml config file"),
			cli.NewFlag("output,o", "", "output file, single input only"),
		},
	}

	livenessCmd := &cli.Command{
		Name:   "liveness",
		Action: livenessAct,
		Args:   cli.Args{},
	}

	app := &cli.Command{
		Name:        "irmips",
		Description: "irmips compiles three-address IR to MIPS assembly",
		Flags: []*cli.Flag{
			cli.NewFlag("v", "", "log verbosity topics: alloc, spill, intrinsic"),
			cli.HelpFlag,
		},
		Commands: []*cli.Command{
			compileCmd,
			livenessCmd,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

func before(c *cli.Command) context.Context {
	if v := c.String("v"); v != "" {
		tlog.SetVerbosity(v)
	}

	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	return ctx
}

func compileAct(c *cli.Command) (err error) {
	ctx := before(c)

	cfg := compiler.DefaultConfig()

	if q := c.String("config"); q != "" {
		cfg, err = compiler.LoadConfig(q)
		if err != nil {
			return err
		}
	}

	if q := c.String("alloc"); q != "" {
		cfg.Allocator = q
	}

	if q := c.String("output"); q != "" {
		if len(c.Args) != 1 {
			return errors.New("--output needs exactly one input file, got %d", len(c.Args))
		}

		cfg.Output = q
	}

	cfg.DumpCFG = cfg.DumpCFG || c.Bool("cfg")
	cfg.DumpLiveness = cfg.DumpLiveness || c.Bool("liveness")

	for _, a := range c.Args {
		err = compiler.CompileFile(ctx, a, cfg)
		if err != nil {
			return errors.Wrap(err, "compile %v", a)
		}
	}

	return nil
}

func livenessAct(c *cli.Command) (err error) {
	ctx := before(c)

	for _, a := range c.Args {
		cls, err := front.ParseFile(ctx, a)
		if err != nil {
			return errors.Wrap(err, "parse %v", a)
		}

		fmt.Printf("%s", format.Liveness(ctx, nil, cls))
	}

	return nil
}

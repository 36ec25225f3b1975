package compiler

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/irmips/compiler/back"
	"github.com/slowlang/irmips/compiler/format"
	"github.com/slowlang/irmips/compiler/front"
	"github.com/slowlang/irmips/compiler/regalloc"
)

type (
	Config struct {
		Allocator    string `yaml:"allocator"`
		DumpCFG      bool   `yaml:"dump_cfg"`
		DumpLiveness bool   `yaml:"dump_liveness"`

		// Output is the assembly file name. Dumps are written next to it.
		Output string `yaml:"output"`
	}

	Result struct {
		Asm      []byte
		CFG      []byte
		Liveness []byte
	}
)

func DefaultConfig() Config {
	return Config{Allocator: "naive"}
}

// LoadConfig reads a yaml config over the defaults.
func LoadConfig(name string) (c Config, err error) {
	c = DefaultConfig()

	data, err := os.ReadFile(name)
	if err != nil {
		return c, errors.Wrap(err, "read config")
	}

	err = yaml.Unmarshal(data, &c)
	if err != nil {
		return c, errors.Wrap(err, "parse config %v", name)
	}

	_, err = regalloc.New(c.Allocator)
	if err != nil {
		return c, errors.Wrap(err, "config %v", name)
	}

	return c, nil
}

func CompileFile(ctx context.Context, name string, cfg Config) (err error) {
	text, err := os.ReadFile(name)
	if err != nil {
		return errors.Wrap(err, "read file")
	}

	tlog.SpanFromContext(ctx).Printw("read file", "size", len(text), "name", name)

	res, err := Compile(ctx, name, text, cfg)
	if err != nil {
		return err
	}

	out := cfg.Output
	if out == "" {
		out = strings.TrimSuffix(name, filepath.Ext(name)) + ".s"
	}

	base := strings.TrimSuffix(out, ".s")

	for _, f := range []struct {
		name string
		data []byte
		on   bool
	}{
		{out, res.Asm, true},
		{base + ".cfg.gv", res.CFG, cfg.DumpCFG},
		{base + ".liveness", res.Liveness, cfg.DumpLiveness},
	} {
		if !f.on {
			continue
		}

		err = os.WriteFile(f.name, f.data, 0o644)
		if err != nil {
			return errors.Wrap(err, "write %v", f.name)
		}

		tlog.SpanFromContext(ctx).Printw("write file", "size", len(f.data), "name", f.name)
	}

	return nil
}

func Compile(ctx context.Context, name string, text []byte, cfg Config) (res Result, err error) {
	if cfg.Allocator == "" {
		cfg.Allocator = DefaultConfig().Allocator
	}

	a, err := regalloc.New(cfg.Allocator)
	if err != nil {
		return res, err
	}

	cls, err := front.Parse(ctx, name, text)
	if err != nil {
		return res, errors.Wrap(err, "parse")
	}

	if cfg.DumpCFG {
		res.CFG = format.CFG(nil, cls)
	}

	if cfg.DumpLiveness {
		res.Liveness = format.Liveness(ctx, nil, cls)
	}

	res.Asm, err = back.New(a).CompileClass(ctx, nil, cls)
	if err != nil {
		return res, errors.Wrap(err, "codegen")
	}

	return res, nil
}

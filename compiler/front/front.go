package front

import (
	"bytes"
	"context"
	"os"
	"strconv"
	"strings"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/irmips/compiler/ir"
	"github.com/slowlang/irmips/compiler/prog"
)

type (
	state struct {
		cls *prog.Class
		f   *prog.Func

		// signature line is expected next
		sig bool
	}
)

var ErrSyntax = errors.New("syntax error")

func ParseFile(ctx context.Context, name string) (*prog.Class, error) {
	text, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}

	return Parse(ctx, name, text)
}

// Parse reads a program in IR text form.
func Parse(ctx context.Context, name string, text []byte) (_ *prog.Class, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "front: parse", "name", name, "size", len(text))
	defer tr.Finish("err", &err)

	s := &state{cls: prog.NewClass("main")}

	for n := 1; len(text) != 0; n++ {
		var line []byte
		line, text, _ = bytes.Cut(text, []byte("\n"))

		if i := bytes.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}

		l := strings.TrimSpace(string(line))
		if l == "" {
			continue
		}

		err = s.line(ctx, l)
		if err != nil {
			return nil, errors.Wrap(err, "%v:%d", name, n)
		}
	}

	if s.f != nil {
		return nil, errors.Wrap(ErrSyntax, "%v: function %v is not finished", name, s.f.Name)
	}

	tr.Printw("parsed", "class", s.cls.Name, "funcs", len(s.cls.Order), "statics", len(s.cls.Static.Vars()))

	return s.cls, nil
}

func (s *state) line(ctx context.Context, l string) (err error) {
	word, rest, _ := strings.Cut(l, " ")
	rest = strings.TrimSpace(rest)

	switch word {
	case "start_program":
		s.cls.Name = rest
		return nil
	case "end_program":
		return nil
	case "static-int-list:", "static-float-list:":
		return s.decls(rest, word == "static-float-list:", s.cls.AddStatic)
	case "start_function":
		if s.f != nil {
			return errors.Wrap(ErrSyntax, "function %v is not finished", s.f.Name)
		}

		s.f = prog.NewFunc(rest)
		s.sig = true

		return s.cls.AddFunc(s.f)
	case "end_function":
		if s.f == nil {
			return errors.Wrap(ErrSyntax, "end_function outside of a function")
		}

		err = s.f.Finish()
		if err != nil {
			return err
		}

		tlog.SpanFromContext(ctx).Printw("function", "name", s.f.Name, "commands", len(s.f.Code), "blocks", len(s.f.CFG.Blocks))

		s.f = nil

		return nil
	}

	if s.f == nil {
		return errors.Wrap(ErrSyntax, "%q outside of a function", l)
	}

	if s.sig {
		s.sig = false
		return s.signature(l)
	}

	switch word {
	case "int-list:", "float-list:":
		return s.decls(rest, word == "float-list:", s.f.AddLocal)
	}

	if name, ok := strings.CutSuffix(l, ":"); ok && isIdent(name) {
		err = s.f.StartBlock(name)
		if err != nil {
			return err
		}

		s.f.Add(ir.Label{Name: name})

		return nil
	}

	return s.command(splitList(l))
}

// signature parses "<type> name(<type> p, ...):".
func (s *state) signature(l string) (err error) {
	head, params, ok := strings.Cut(strings.TrimSuffix(l, ":"), "(")
	if !ok || !strings.HasSuffix(params, ")") {
		return errors.Wrap(ErrSyntax, "bad signature %q", l)
	}

	ret, name, ok := strings.Cut(strings.TrimSpace(head), " ")
	if !ok {
		return errors.Wrap(ErrSyntax, "bad signature %q", l)
	}

	if name = strings.TrimSpace(name); name != s.f.Name {
		return errors.Wrap(ErrSyntax, "signature of %v in function %v", name, s.f.Name)
	}

	if ret != "void" {
		s.f.Ret, ok = ir.ParseType(ret)
		if !ok {
			return errors.Wrap(ErrSyntax, "return type %q", ret)
		}

		s.f.Void = false
	}

	for _, p := range splitList(strings.TrimSuffix(params, ")")) {
		tp, pname, ok := strings.Cut(p, " ")
		if !ok {
			return errors.Wrap(ErrSyntax, "parameter %q", p)
		}

		t, ok := ir.ParseType(tp)
		if !ok {
			return errors.Wrap(ErrSyntax, "parameter type %q", tp)
		}

		err = s.f.AddParam(ir.NewVar(strings.TrimSpace(pname), t))
		if err != nil {
			return err
		}
	}

	return nil
}

// decls parses "a, b, arr[10]".
func (s *state) decls(l string, float bool, add func(ir.Var) error) error {
	tp := ir.Int
	if float {
		tp = ir.Float
	}

	for _, d := range splitList(l) {
		v := ir.NewVar(d, tp)

		if name, size, ok := strings.Cut(d, "["); ok {
			n, err := strconv.Atoi(strings.TrimSuffix(size, "]"))
			if err != nil || n <= 0 || !strings.HasSuffix(size, "]") {
				return errors.Wrap(ErrSyntax, "array size %q", d)
			}

			v = ir.NewArray(name, tp, n)
		}

		if !isIdent(v.Name) {
			return errors.Wrap(ErrSyntax, "variable name %q", v.Name)
		}

		err := add(v)
		if err != nil {
			return err
		}
	}

	return nil
}

func (s *state) command(w []string) (err error) {
	f := s.f
	op := w[0]
	args := w[1:]

	want := func(n int) error {
		if len(args) != n {
			return errors.Wrap(ErrSyntax, "%v takes %d operands, got %d", op, n, len(args))
		}

		return nil
	}

	if o, ok := ir.ParseOp(op); ok {
		if err = want(3); err != nil {
			return err
		}

		dst, err := s.variable(args[2])
		if err != nil {
			return err
		}

		f.Add(ir.BinOp{Op: o, A: s.arg(args[0]), B: s.arg(args[1]), Dst: dst})

		return nil
	}

	if c, ok := ir.ParseCond(op); ok {
		if err = want(3); err != nil {
			return err
		}

		f.Add(ir.Branch{Cond: c, A: s.arg(args[0]), B: s.arg(args[1]), Label: args[2]})
		f.EndBlock(args[2], true)

		return nil
	}

	switch op {
	case "goto":
		if err = want(1); err != nil {
			return err
		}

		f.Add(ir.Goto{Label: args[0]})
		f.EndBlock(args[0], false)
	case "return":
		x := ir.Return{}

		switch len(args) {
		case 0:
		case 1:
			x.Value = s.arg(args[0])
		default:
			return want(1)
		}

		f.Add(x)
		f.EndReturn()
	case "assign":
		return s.assign(args)
	case "call":
		if len(args) < 1 {
			return errors.Wrap(ErrSyntax, "call without a function")
		}

		f.Add(ir.Call{Func: args[0], Args: s.args(args[1:])})
	case "callr":
		if len(args) < 2 {
			return errors.Wrap(ErrSyntax, "callr without a function")
		}

		dst, err := s.variable(args[0])
		if err != nil {
			return err
		}

		f.Add(ir.CallR{Dst: dst, Func: args[1], Args: s.args(args[2:])})
	case "array_load":
		if err = want(3); err != nil {
			return err
		}

		dst, err := s.variable(args[0])
		if err != nil {
			return err
		}

		arr, err := s.array(args[1])
		if err != nil {
			return err
		}

		f.Add(ir.ArrayLoad{Dst: dst, Array: arr, Index: s.arg(args[2])})
	case "array_store":
		if err = want(3); err != nil {
			return err
		}

		arr, err := s.array(args[0])
		if err != nil {
			return err
		}

		f.Add(ir.ArrayStore{Array: arr, Index: s.arg(args[1]), Value: s.arg(args[2])})
	default:
		return errors.Wrap(ErrSyntax, "unknown command %q", op)
	}

	return nil
}

func (s *state) assign(args []string) error {
	x := ir.Assign{}

	switch len(args) {
	case 2:
		x.Value = s.arg(args[1])
	case 3:
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 0 {
			return errors.Wrap(ErrSyntax, "assign count %q", args[1])
		}

		x.Count = n
		x.Value = s.arg(args[2])
	default:
		return errors.Wrap(ErrSyntax, "assign takes 2 or 3 operands, got %d", len(args))
	}

	dst, ok := s.arg(args[0]).(ir.Var)
	if !ok {
		return errors.Wrap(ErrSyntax, "assign to undefined %q", args[0])
	}

	if x.Count != 0 && dst.Kind != ir.Array {
		return errors.Wrap(ErrSyntax, "assign count to scalar %v", dst.Name)
	}

	x.Dst = dst

	s.f.Add(x)

	return nil
}

// arg resolves an operand. Names starting with $ are physical registers.
func (s *state) arg(name string) ir.Arg {
	if r, ok := strings.CutPrefix(name, "$"); ok {
		tp := ir.Int
		if strings.HasPrefix(r, "f") && r != "fp" {
			tp = ir.Float
		}

		return ir.NewRegister(name, r, tp)
	}

	return s.f.Resolve(name)
}

func (s *state) args(names []string) []ir.Arg {
	r := make([]ir.Arg, len(names))

	for i, n := range names {
		r[i] = s.arg(n)
	}

	return r
}

func (s *state) variable(name string) (ir.Var, error) {
	v, ok := s.arg(name).(ir.Var)
	if !ok || v.Kind == ir.Array {
		return ir.Var{}, errors.Wrap(ErrSyntax, "%q is not a scalar variable", name)
	}

	return v, nil
}

func (s *state) array(name string) (ir.Var, error) {
	v, ok := s.arg(name).(ir.Var)
	if !ok || v.Kind != ir.Array {
		return ir.Var{}, errors.Wrap(ErrSyntax, "%q is not an array", name)
	}

	return v, nil
}

func splitList(l string) []string {
	if strings.TrimSpace(l) == "" {
		return nil
	}

	r := strings.Split(l, ",")

	for i := range r {
		r[i] = strings.TrimSpace(r[i])
	}

	return r
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}

	for i, c := range s {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && c >= '0' && c <= '9':
		default:
			return false
		}
	}

	return true
}

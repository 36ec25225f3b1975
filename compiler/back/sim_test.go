package back

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type (
	// machine executes the subset of MIPS the compiler emits.
	machine struct {
		regs  map[string]int32
		fregs map[string]uint32
		mem   map[int32]uint32
		flag  bool

		data   map[string]int32
		labels map[string]int
		text   []instr

		input []int32
		out   []string
	}

	instr struct {
		op   string
		args []string
	}
)

const (
	returnSentinel = -1

	stackTop = 0x7fff0000
)

func newMachine(asm string) (*machine, error) {
	m := &machine{
		regs:   map[string]int32{},
		fregs:  map[string]uint32{},
		mem:    map[int32]uint32{},
		data:   map[string]int32{},
		labels: map[string]int{},
	}

	dataPtr := int32(0x10010000)
	text := false

	for _, l := range strings.Split(asm, "\n") {
		l = strings.TrimSpace(l)

		switch {
		case l == "", strings.HasPrefix(l, "#"), strings.HasPrefix(l, ".globl"):
		case l == ".data":
			text = false
		case l == ".text":
			text = true
		case !text:
			f := strings.Fields(l)
			if len(f) != 3 {
				return nil, fmt.Errorf("bad data line %q", l)
			}

			m.data[strings.TrimSuffix(f[0], ":")] = dataPtr

			switch f[1] {
			case ".word", ".float":
				dataPtr += 4
			case ".space":
				n, err := strconv.Atoi(f[2])
				if err != nil {
					return nil, err
				}

				dataPtr += int32(n)
			default:
				return nil, fmt.Errorf("bad data directive %q", l)
			}

			dataPtr = (dataPtr + 7) &^ 7
		case strings.HasSuffix(l, ":"):
			m.labels[strings.TrimSuffix(l, ":")] = len(m.text)
		default:
			op, rest, _ := strings.Cut(l, "\t")

			x := instr{op: op}
			if rest != "" {
				x.args = strings.Split(rest, ", ")
			}

			m.text = append(m.text, x)
		}
	}

	return m, nil
}

func (m *machine) run(entry string, limit int) error {
	pc, ok := m.labels[entry]
	if !ok {
		return fmt.Errorf("no entry %v", entry)
	}

	m.regs["sp"] = stackTop
	m.regs["ra"] = returnSentinel

	for steps := 0; pc != returnSentinel; steps++ {
		if steps == limit {
			return fmt.Errorf("step limit exceeded")
		}

		if pc < 0 || pc >= len(m.text) {
			return fmt.Errorf("pc out of text: %d", pc)
		}

		x := m.text[pc]
		pc++

		next, stop, err := m.exec(x, pc)
		if err != nil {
			return fmt.Errorf("%d: %v %v: %w", pc-1, x.op, x.args, err)
		}

		if stop {
			return nil
		}

		pc = next
	}

	return nil
}

func (m *machine) exec(x instr, pc int) (next int, stop bool, err error) {
	a := x.args
	next = pc

	jump := func(l string) {
		t, ok := m.labels[l]
		if !ok {
			err = fmt.Errorf("undefined label %v", l)
		}

		next = t
	}

	switch x.op {
	case "addiu", "addi":
		m.set(a[0], m.get(a[1])+m.imm(a[2]))
	case "andi":
		m.set(a[0], m.get(a[1])&m.imm(a[2]))
	case "ori":
		m.set(a[0], m.get(a[1])|m.imm(a[2]))
	case "add":
		m.set(a[0], m.get(a[1])+m.get(a[2]))
	case "sub":
		m.set(a[0], m.get(a[1])-m.get(a[2]))
	case "mul":
		m.set(a[0], m.get(a[1])*m.value(a[2]))
	case "div":
		d := m.get(a[2])
		if d == 0 {
			return 0, false, fmt.Errorf("division by zero")
		}

		m.set(a[0], m.get(a[1])/d)
	case "and":
		m.set(a[0], m.get(a[1])&m.get(a[2]))
	case "or":
		m.set(a[0], m.get(a[1])|m.get(a[2]))
	case "add.s":
		m.setf(a[0], m.getf(a[1])+m.getf(a[2]))
	case "sub.s":
		m.setf(a[0], m.getf(a[1])-m.getf(a[2]))
	case "mul.s":
		m.setf(a[0], m.getf(a[1])*m.getf(a[2]))
	case "div.s":
		m.setf(a[0], m.getf(a[1])/m.getf(a[2]))
	case "li":
		m.set(a[0], m.imm(a[1]))
	case "li.s":
		f, err := strconv.ParseFloat(a[1], 32)
		if err != nil {
			return 0, false, err
		}

		m.setf(a[0], float32(f))
	case "la":
		addr, ok := m.data[a[1]]
		if !ok {
			return 0, false, fmt.Errorf("undefined symbol %v", a[1])
		}

		m.set(a[0], addr)
	case "move":
		m.set(a[0], m.get(a[1]))
	case "mov.s":
		m.fregs[reg(a[0])] = m.fregs[reg(a[1])]
	case "lw":
		m.set(a[0], int32(m.mem[m.addr(a[1])]))
	case "sw":
		m.mem[m.addr(a[1])] = uint32(m.get(a[0]))
	case "l.s":
		m.fregs[reg(a[0])] = m.mem[m.addr(a[1])]
	case "s.s":
		m.mem[m.addr(a[1])] = m.fregs[reg(a[0])]
	case "mtc1":
		m.fregs[reg(a[1])] = uint32(m.get(a[0]))
	case "mfc1":
		m.set(a[0], int32(m.fregs[reg(a[1])]))
	case "cvt.s.w":
		m.setf(a[0], float32(int32(m.fregs[reg(a[1])])))
	case "cvt.w.s":
		// default FCSR rounding mode
		m.fregs[reg(a[0])] = uint32(int32(math.RoundToEven(float64(m.getf(a[1])))))
	case "c.eq.s":
		m.flag = m.getf(a[0]) == m.getf(a[1])
	case "c.lt.s":
		m.flag = m.getf(a[0]) < m.getf(a[1])
	case "c.le.s":
		m.flag = m.getf(a[0]) <= m.getf(a[1])
	case "bc1t", "bc1f":
		if m.flag == (x.op == "bc1t") {
			jump(a[0])
		}
	case "beq", "bne", "bgt", "bge", "blt", "ble":
		if cmpInt(x.op, m.get(a[0]), m.get(a[1])) {
			jump(a[2])
		}
	case "j":
		jump(a[0])
	case "jal":
		m.regs["ra"] = int32(pc)
		jump(a[0])
	case "jr":
		next = int(m.get(a[0]))
	case "syscall":
		return next, m.syscall(), nil
	default:
		return 0, false, fmt.Errorf("unsupported instruction")
	}

	return next, false, err
}

func (m *machine) syscall() (stop bool) {
	switch m.get("$v0") {
	case 1:
		m.out = append(m.out, strconv.Itoa(int(m.get("$a0"))))
	case 2:
		m.out = append(m.out, strconv.FormatFloat(float64(m.getf("$f12")), 'g', -1, 32))
	case 11:
		m.out = append(m.out, string(rune(m.get("$a0"))))
	case 5, 12:
		var v int32
		if len(m.input) != 0 {
			v, m.input = m.input[0], m.input[1:]
		}

		m.set("$v0", v)
	case 10:
		return true
	}

	return false
}

func cmpInt(op string, a, b int32) bool {
	switch op {
	case "beq":
		return a == b
	case "bne":
		return a != b
	case "bgt":
		return a > b
	case "bge":
		return a >= b
	case "blt":
		return a < b
	default:
		return a <= b
	}
}

func reg(s string) string { return strings.TrimPrefix(s, "$") }

func (m *machine) get(r string) int32 {
	if reg(r) == "zero" {
		return 0
	}

	return m.regs[reg(r)]
}

func (m *machine) set(r string, v int32) { m.regs[reg(r)] = v }

func (m *machine) getf(r string) float32 { return math.Float32frombits(m.fregs[reg(r)]) }

func (m *machine) setf(r string, v float32) { m.fregs[reg(r)] = math.Float32bits(v) }

func (m *machine) imm(s string) int32 {
	v, err := strconv.ParseInt(s, 0, 32)
	if err != nil {
		panic(err)
	}

	return int32(v)
}

// value is a register or an immediate.
func (m *machine) value(s string) int32 {
	if strings.HasPrefix(s, "$") {
		return m.get(s)
	}

	return m.imm(s)
}

// addr decodes "off($base)".
func (m *machine) addr(s string) int32 {
	off, base, _ := strings.Cut(strings.TrimSuffix(s, ")"), "(")

	return m.imm(off) + m.get(base)
}

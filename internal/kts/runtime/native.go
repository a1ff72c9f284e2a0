package runtime

import (
	"bufio"
	"errors"
	"io"
	"io/fs"
	"math/big"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dop251/goja"
)

// ModuleName is the require name of the native module backing the prelude.
const ModuleName = "kts:runtime"

// Require returns the loader of the kts:runtime module. Program output goes
// to stdout; readLine reads stdin, which may be nil.
//
// Functions that can fail return {error, kind, message, value} records
// instead of throwing, so the prelude can raise the matching exception.
func Require(stdout io.Writer, stdin io.Reader) func(runtime *goja.Runtime, module *goja.Object) {
	var in *bufio.Reader
	if stdin != nil {
		in = bufio.NewReader(stdin)
	}
	return func(runtime *goja.Runtime, module *goja.Object) {
		exports := module.Get("exports").(*goja.Object)
		ok := func(v any) goja.Value {
			return runtime.ToValue(map[string]any{"error": false, "value": v})
		}
		failed := func(kind string, err error) goja.Value {
			return runtime.ToValue(map[string]any{"error": true, "kind": kind, "message": err.Error()})
		}
		arg := func(call goja.FunctionCall, i int) string {
			if len(call.Arguments) <= i {
				return ""
			}
			return call.Argument(i).String()
		}

		// write(text)
		_ = exports.Set("write", func(call goja.FunctionCall) goja.Value {
			if _, err := io.WriteString(stdout, arg(call, 0)); err != nil {
				panic(runtime.NewGoError(err))
			}
			return goja.Undefined()
		})

		// readLine(): string | null
		_ = exports.Set("readLine", func(goja.FunctionCall) goja.Value {
			if in == nil {
				return goja.Null()
			}
			line, err := in.ReadString('\n')
			if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
				return goja.Null()
			}
			line = strings.TrimSuffix(line, "\n")
			return runtime.ToValue(strings.TrimSuffix(line, "\r"))
		})

		_ = exports.Set("baseName", func(call goja.FunctionCall) goja.Value {
			p := arg(call, 0)
			if p == "" {
				return runtime.ToValue("")
			}
			return runtime.ToValue(filepath.Base(p))
		})
		_ = exports.Set("absPath", func(call goja.FunctionCall) goja.Value {
			abs, err := filepath.Abs(arg(call, 0))
			if err != nil {
				return runtime.ToValue(arg(call, 0))
			}
			return runtime.ToValue(abs)
		})
		// parentDir(path): string | null, null when the path has no parent.
		_ = exports.Set("parentDir", func(call goja.FunctionCall) goja.Value {
			p := filepath.Clean(arg(call, 0))
			dir := filepath.Dir(p)
			if dir == p || (dir == "." && !strings.HasPrefix(p, ".")) {
				return goja.Null()
			}
			return runtime.ToValue(dir)
		})

		// stat(path): {exists, dir}
		_ = exports.Set("stat", func(call goja.FunctionCall) goja.Value {
			fi, err := os.Stat(arg(call, 0))
			return runtime.ToValue(map[string]any{"exists": err == nil, "dir": err == nil && fi.IsDir()})
		})
		_ = exports.Set("listDir", func(call goja.FunctionCall) goja.Value {
			entries, err := os.ReadDir(arg(call, 0))
			if err != nil {
				return ok(nil)
			}
			names := make([]any, len(entries))
			for i, e := range entries {
				names[i] = e.Name()
			}
			return ok(runtime.NewArray(names...))
		})
		_ = exports.Set("remove", func(call goja.FunctionCall) goja.Value {
			return runtime.ToValue(os.Remove(arg(call, 0)) == nil)
		})
		_ = exports.Set("mkdirs", func(call goja.FunctionCall) goja.Value {
			p := arg(call, 0)
			if _, err := os.Stat(p); err == nil {
				return runtime.ToValue(false)
			}
			return runtime.ToValue(os.MkdirAll(p, 0o755) == nil)
		})
		_ = exports.Set("readFile", func(call goja.FunctionCall) goja.Value {
			data, err := os.ReadFile(arg(call, 0))
			if err != nil {
				return failed(ioKind(err), err)
			}
			return ok(string(data))
		})
		_ = exports.Set("writeFile", func(call goja.FunctionCall) goja.Value {
			if err := os.WriteFile(arg(call, 0), []byte(arg(call, 1)), 0o644); err != nil {
				return failed(ioKind(err), err)
			}
			return ok(nil)
		})

		// big(op, a, b): arbitrary precision integers as decimal strings.
		_ = exports.Set("big", func(call goja.FunctionCall) goja.Value {
			v, kind, err := bigOp(arg(call, 0), arg(call, 1), arg(call, 2))
			if err != nil {
				return failed(kind, err)
			}
			return ok(v)
		})

		// random(seed?): generator object.
		_ = exports.Set("random", func(call goja.FunctionCall) goja.Value {
			var r *rand.Rand
			if s := call.Argument(0); goja.IsUndefined(s) || goja.IsNull(s) {
				now := uint64(time.Now().UnixNano())
				r = rand.New(rand.NewPCG(now, now>>1))
			} else {
				seed := uint64(s.ToInteger())
				r = rand.New(rand.NewPCG(seed, seed))
			}
			return newRandom(runtime, r)
		})
	}
}

func newRandom(runtime *goja.Runtime, r *rand.Rand) *goja.Object {
	o := runtime.NewObject()
	_ = o.Set("nextInt", func(goja.FunctionCall) goja.Value {
		return runtime.ToValue(int32(r.Uint32()))
	})
	_ = o.Set("nextIntn", func(call goja.FunctionCall) goja.Value {
		return runtime.ToValue(r.Int32N(int32(call.Argument(0).ToInteger())))
	})
	_ = o.Set("nextDouble", func(goja.FunctionCall) goja.Value {
		return runtime.ToValue(r.Float64())
	})
	_ = o.Set("nextBoolean", func(goja.FunctionCall) goja.Value {
		return runtime.ToValue(r.IntN(2) == 1)
	})
	return o
}

func ioKind(err error) string {
	if errors.Is(err, fs.ErrNotExist) {
		return "java.io.FileNotFoundException"
	}
	return "java.io.IOException"
}

const (
	kindArithmetic   = "java.lang.ArithmeticException"
	kindNumberFormat = "java.lang.NumberFormatException"
)

// bigOp applies op to decimal operands. Division truncates and mod is
// never negative.
func bigOp(op, a, b string) (any, string, error) {
	x, ok := new(big.Int).SetString(a, 10)
	if !ok {
		if op == "parse" {
			return nil, kindNumberFormat, errors.New("For input string: \"" + a + "\"")
		}
		return nil, kindNumberFormat, errors.New("invalid operand " + a)
	}
	switch op {
	case "parse":
		return x.String(), "", nil
	case "neg":
		return x.Neg(x).String(), "", nil
	case "int":
		// low 32 bits, two's complement
		lo := new(big.Int).And(x, big.NewInt(0xffffffff)).Uint64()
		return int32(uint32(lo)), "", nil
	case "pow":
		n, ok := new(big.Int).SetString(b, 10)
		if !ok || !n.IsInt64() {
			return nil, kindArithmetic, errors.New("invalid exponent " + b)
		}
		if n.Sign() < 0 {
			return nil, kindArithmetic, errors.New("Negative exponent")
		}
		return x.Exp(x, n, nil).String(), "", nil
	}
	y, ok := new(big.Int).SetString(b, 10)
	if !ok {
		return nil, kindNumberFormat, errors.New("invalid operand " + b)
	}
	z := new(big.Int)
	switch op {
	case "cmp":
		return x.Cmp(y), "", nil
	case "add":
		z.Add(x, y)
	case "sub":
		z.Sub(x, y)
	case "mul":
		z.Mul(x, y)
	case "div":
		if y.Sign() == 0 {
			return nil, kindArithmetic, errors.New("BigInteger divide by zero")
		}
		z.Quo(x, y)
	case "mod":
		if y.Sign() <= 0 {
			return nil, kindArithmetic, errors.New("BigInteger: modulus not positive")
		}
		z.Mod(x, y)
	default:
		return nil, kindArithmetic, errors.New("unknown operation " + op)
	}
	return z.String(), "", nil
}

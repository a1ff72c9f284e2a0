package runtime

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/require"
)

//go:embed prelude.js
var preludeSource string

var preludeProgram = sync.OnceValues(func() (*goja.Program, error) {
	return goja.Compile("prelude.js", preludeSource, true)
})

// installPrelude builds the builtin slot table on vm.
func installPrelude(vm *goja.Runtime) (*goja.Object, error) {
	prg, err := preludeProgram()
	if err != nil {
		return nil, fmt.Errorf("compile prelude: %w", err)
	}
	v, err := vm.RunProgram(prg)
	if err != nil {
		return nil, fmt.Errorf("run prelude: %w", err)
	}
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return nil, fmt.Errorf("prelude is %s, not a function", v)
	}
	native, err := requireNative(vm)
	if err != nil {
		return nil, err
	}
	b, err := fn(goja.Undefined(), native)
	if err != nil {
		return nil, fmt.Errorf("run prelude: %w", err)
	}
	return b.ToObject(vm), nil
}

func requireNative(vm *goja.Runtime) (v goja.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("require %s: %v", ModuleName, r)
		}
	}()
	return require.Require(vm, ModuleName), nil
}

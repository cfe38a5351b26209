package env

import (
	"github.com/dop251/goja"
)

// environmentObject is the script-visible environment. Read-only, fixed
// shape: the single ASSETS property yields the owned assets binding.
type environmentObject struct {
	vm        *goja.Runtime
	assets    *assetsBinding
	nativeObj *goja.Object
}

var _ goja.DynamicObject = (*environmentObject)(nil)

var environmentProperties = []string{"ASSETS"}

func newEnvironmentObject(vm *goja.Runtime, assets *assetsBinding, proto *goja.Object) *environmentObject {
	e := &environmentObject{
		vm:     vm,
		assets: assets,
	}
	e.nativeObj = vm.NewDynamicObject(e)
	e.nativeObj.SetPrototype(proto)
	return e
}

func (e *environmentObject) Get(key string) goja.Value {
	switch key {
	case "ASSETS":
		return e.assets.nativeObj
	default:
		return nil
	}
}

func (e *environmentObject) Set(key string, val goja.Value) bool {
	return false
}

func (e *environmentObject) Has(key string) bool {
	return key == "ASSETS"
}

func (e *environmentObject) Delete(key string) bool {
	return false
}

func (e *environmentObject) Keys() []string {
	return environmentProperties
}

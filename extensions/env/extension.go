package env

import (
	"fmt"

	"go.miragespace.co/umbra/assets"
	"go.miragespace.co/umbra/extensions/promise"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	"go.uber.org/zap"
)

const (
	envClassSymbol    = "Env"
	assetsClassSymbol = "EnvAssets"
)

// Script never constructs capability objects; the only legitimate
// instances are host-created and reached via the environment property.
const envClassScript = `
var Env = function Env() {
    throw new TypeError("Cannot construct this type")
}
var EnvAssets = function EnvAssets() {
    throw new TypeError("Cannot construct this type")
}
`

var envClassProg = goja.MustCompile("env", envClassScript, false)

type Config struct {
	Eventloop   *eventloop.EventLoop
	Logger      *zap.Logger
	Resolver    *promise.Resolver
	Dispatcher  assets.Dispatcher
	MaxInflight int64
}

func (c *Config) Validate() error {
	if c.Eventloop == nil {
		return fmt.Errorf("nil Eventloop is invalid")
	}
	if c.Logger == nil {
		return fmt.Errorf("nil Logger is invalid")
	}
	if c.Resolver == nil {
		return fmt.Errorf("nil Resolver is invalid")
	}
	if c.Dispatcher == nil {
		return fmt.Errorf("nil Dispatcher is invalid")
	}
	return nil
}

// Binding owns the environment object exposed to worker scripts. One
// Binding exists per runtime instance and lives for the instance's
// lifetime.
type Binding struct {
	Config
	environment *environmentObject
	assets      *assetsBinding
}

func NewBinding(cfg Config) (*Binding, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.MaxInflight < 1 {
		cfg.MaxInflight = 10
	}

	b := &Binding{
		Config: cfg,
	}

	setup := make(chan error, 1)
	b.Eventloop.RunOnLoop(func(vm *goja.Runtime) {
		_, err := vm.RunProgram(envClassProg)
		if err != nil {
			setup <- err
			return
		}

		envProto, err := classPrototype(vm, envClassSymbol)
		if err != nil {
			setup <- err
			return
		}
		assetsProto, err := classPrototype(vm, assetsClassSymbol)
		if err != nil {
			setup <- err
			return
		}

		b.assets = newAssetsBinding(vm, b, assetsProto)
		b.environment = newEnvironmentObject(vm, b.assets, envProto)

		setup <- nil
	})

	err := <-setup
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Environment returns the script-visible environment object. The value is
// only meaningful on this binding's event loop.
func (b *Binding) Environment() goja.Value {
	return b.environment.nativeObj
}

func classPrototype(vm *goja.Runtime, symbol string) (*goja.Object, error) {
	class := vm.Get(symbol)
	if class == nil || goja.IsUndefined(class) {
		return nil, fmt.Errorf("internal error: %s class is not registered", symbol)
	}
	proto := class.ToObject(vm).Get("prototype")
	if proto == nil || goja.IsUndefined(proto) {
		return nil, fmt.Errorf("internal error: %s class has no prototype", symbol)
	}
	return proto.ToObject(vm), nil
}

package umbra

import (
	"go.miragespace.co/umbra/extensions/common"

	"github.com/dop251/goja"
)

type requestContextPool struct {
	ctxPool *common.Pool[*requestContext]
}

func newRequestContextPool(inst *runtimeInstance) *requestContextPool {
	pool := &requestContextPool{}
	pool.ctxPool = common.NewPool[*requestContext](common.DefaultPoolCapacity).
		WithLoopFactory(inst.eventLoop, func(vm *goja.Runtime) *requestContext {
			return newRequestContext(vm, inst.logger)
		})
	return pool
}

func (p *requestContextPool) Get() *requestContext {
	return p.ctxPool.Get()
}

func (p *requestContextPool) Put(ctx *requestContext) {
	ctx.reset()
	p.ctxPool.Put(ctx)
}

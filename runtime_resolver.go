package umbra

import "github.com/dop251/goja"

const runtimeResolverSymbol = "__runtimeResolver"

const runtimeResolverScript = `
var __runtimeResolver = (handler, request, environment, resolve, reject) => {
    Promise.resolve(handler(request, environment)).then(resolve).catch(reject)
}
`

var runtimeResolverProg = goja.MustCompile("runtime", runtimeResolverScript, false)

package umbra

import (
	"github.com/dop251/goja_nodejs/console"
	"go.uber.org/zap"
)

type runtimeZapPrinter struct {
	logger *zap.Logger
}

var _ console.Printer = (*runtimeZapPrinter)(nil)

func newRuntimePrinter(name string, logger *zap.Logger) console.Printer {
	return &runtimeZapPrinter{
		logger: logger.With(zap.String("script", name)),
	}
}

func (z *runtimeZapPrinter) Log(s string) {
	z.logger.Info(s)
}

func (z *runtimeZapPrinter) Warn(s string) {
	z.logger.Warn(s)
}

func (z *runtimeZapPrinter) Error(s string) {
	z.logger.Error(s)
}

package safe

import (
	"runtime/debug"

	"github.com/affanraza84/Chatting-App/logger"
	"go.uber.org/zap"
)

// Go starts f in a goroutine that recovers from panic,
// so one bad connection task cannot crash the process.
func Go(name string, f func()) {
	go Run(name, f)
}

// Run calls f and reports whether it returned without panicking.
func Run(name string, f func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("[Safe] panic recovered",
				zap.String("task", name),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			ok = false
		}
	}()
	f()
	return true
}

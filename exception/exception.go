package exception

import (
	"runtime/debug"

	"github.com/mezonai/mmn-wallet/logx"
	"github.com/mezonai/mmn-wallet/monitoring"
)

func SafeGo(name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				monitoring.IncreasePanicCount()
				logx.Error("Panic in: ", name, r, string(debug.Stack()))
			}
		}()
		fn()
	}()
}

package main

import (
	"os"
	"runtime/debug"

	"github.com/mezonai/mmn-wallet/cmd"
	"github.com/mezonai/mmn-wallet/logx"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			_ = logx.Errorf("WALLET CRASHED: %v\n%s", r, debug.Stack())
			os.Exit(1)
		}
	}()

	cmd.Execute()
}

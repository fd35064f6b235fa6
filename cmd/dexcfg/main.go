// Command dexcfg renders control flow graphs of Dalvik methods.
package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
)

func main() {
	root := newRootCmd(os.Stdout, os.Stderr)
	err := fang.Execute(
		context.Background(),
		root,
		fang.WithNotifySignal(os.Interrupt),
	)
	os.Exit(exitCode(err))
}

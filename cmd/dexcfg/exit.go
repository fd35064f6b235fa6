package main

import (
	"fmt"

	"dexcfg/internal/dexfmt"
)

// Exit codes by failing stage.
const (
	exitOK     = 0
	exitOther  = 1
	exitDex    = 2
	exitLookup = 3
	exitDecode = 4
	exitCFG    = 5
	exitEmit   = 6
)

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	switch dexfmt.KindOf(err).Stage() {
	case "dex":
		return exitDex
	case "lookup":
		return exitLookup
	case "decode":
		return exitDecode
	case "cfg":
		return exitCFG
	case "emit":
		return exitEmit
	}
	return exitOther
}

// withStage prefixes classified errors with the stage that raised them.
func withStage(err error) error {
	if err == nil {
		return nil
	}
	k := dexfmt.KindOf(err)
	if k == "" {
		return err
	}
	return fmt.Errorf("%s: %w", k.Stage(), err)
}

//go:build !wasm

package internal

import (
	"github.com/petermattis/goid"
)

func getGID() int64 {
	return goid.Get()
}

// Running returns the cothread executing on the calling goroutine, or the
// main cothread when the caller is not one of the context's cothreads.
func (ctx *CothreadContext) Running() *Cothread {
	gid := getGID()

	if co, ok := ctx.threads.Load(gid); ok {
		return co.(*Cothread)
	}

	return ctx.main
}

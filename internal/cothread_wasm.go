//go:build wasm

package internal

func getGID() int64 {
	return 0
}

// Running returns the current cothread. There is a single thread on wasm so
// the caller is always the one the context last switched to.
func (ctx *CothreadContext) Running() *Cothread {
	return ctx.current
}

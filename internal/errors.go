package internal

import (
	"errors"
)

var (
	ErrInvalidCfg = errors.New("scheduler: invalid options")

	ErrActivation            = errors.New("scheduler: element activation failed")
	ErrTopologyConfiguration = errors.New("scheduler: chain has more than one cothread-driven element")
	ErrEntryMissing          = errors.New("scheduler: chain has no entry element")
	ErrElementRuntime        = errors.New("scheduler: element error")
	ErrElementPanic          = errors.New("scheduler: element panicked")
	ErrElementOwned          = errors.New("scheduler: element is owned by another scheduler")
	ErrNotOwned              = errors.New("scheduler: element is not owned by this scheduler")
	ErrBusy                  = errors.New("scheduler: operation not allowed from inside a cothread")

	ErrTopologyInvariant = errors.New("chain: topology invariant violated")
	ErrDeadlock          = errors.New("chain: deadlock detected")

	ErrCothreadExhausted = errors.New("cothread: pool exhausted")
	ErrCothreadBusy      = errors.New("cothread: cannot destroy the running cothread")

	ErrPortDirection = errors.New("port: wrong direction")
	ErrPortLinked    = errors.New("port: already linked")
	ErrNotLinked     = errors.New("port: not linked")
	ErrPortInactive  = errors.New("port: peer is not active")
	ErrInterrupted   = errors.New("port: interrupted")
	ErrEOS           = errors.New("port: end of stream")
)

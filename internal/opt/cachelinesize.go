//go:build !srcu_cachelinesize_32 && !srcu_cachelinesize_64 && !srcu_cachelinesize_128 && !srcu_cachelinesize_256

package opt

import (
	"unsafe"

	"golang.org/x/sys/cpu"
)

// CacheLineSize_ is the stride used to keep per-P reader slots apart.
// It's taken from the `golang.org/x/sys` package unless one of the
// srcu_cachelinesize_* build tags pins it.
const CacheLineSize_ = unsafe.Sizeof(cpu.CacheLinePad{})

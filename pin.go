package srcu

import (
	_ "unsafe" // for linkname
)

// pin is the non-preemptible section around a reader slot update.
//
// While pinned, the goroutine cannot be rescheduled off its P, so the P id
// stays valid and the slot it selects is not touched by any other Enter on
// the same P. The section must not block, allocate or call into user code;
// unpin must run on every path out of it.
type pin struct {
	p int
}

//go:nosplit
func pinP() pin {
	return pin{p: runtime_procPin()}
}

//go:nosplit
func (pin) unpin() {
	runtime_procUnpin()
}

//go:linkname runtime_procPin runtime.procPin
func runtime_procPin() int

//go:linkname runtime_procUnpin runtime.procUnpin
func runtime_procUnpin()

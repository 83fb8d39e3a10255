//go:build !(386 || arm || mips || mipsle || wasm) && !srcu_disable_padding && !srcu_enable_padding

package opt

// PaddingMult_ is 1 on 64-bit architectures.
//
// Every P hammers its own reader slot on each Enter/Exit, so two slots
// sharing a cache line turn the uncontended fast path into a contended one.
const PaddingMult_ = 1

//go:build (386 || arm || mips || mipsle || wasm) && !srcu_disable_padding && !srcu_enable_padding

package opt

// PaddingMult_ is 0 on 32-bit architectures, where memory is tighter and
// the number of Ps is usually small.
const PaddingMult_ = 0

//go:build srcu_disable_padding

package opt

// PaddingMult_ disables reader slot padding.
// Use: go build -tags=srcu_disable_padding
const PaddingMult_ = 0

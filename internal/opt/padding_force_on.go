//go:build srcu_enable_padding

package opt

// PaddingMult_ forces reader slot padding.
// Use: go build -tags=srcu_enable_padding
const PaddingMult_ = 1

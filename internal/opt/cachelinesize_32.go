//go:build srcu_cachelinesize_32

package opt

// CacheLineSize_ is forced by the srcu_cachelinesize_32 build tag.
const CacheLineSize_ = 32

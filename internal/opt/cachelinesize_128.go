//go:build srcu_cachelinesize_128

package opt

// CacheLineSize_ is forced by the srcu_cachelinesize_128 build tag.
const CacheLineSize_ = 128

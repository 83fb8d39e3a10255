//go:build srcu_cachelinesize_64

package opt

// CacheLineSize_ is forced by the srcu_cachelinesize_64 build tag.
const CacheLineSize_ = 64

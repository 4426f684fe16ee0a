// Package shard provides shard arithmetic for distributed DynamoDB id counters.
package shard

import (
	"fmt"
	"hash/fnv"
	"sync/atomic"
)

// MaxShards is the largest supported shard count.
const MaxShards = 256

// Clamp bounds numShards to [1, MaxShards].
func Clamp(numShards int) int {
	if numShards < 1 {
		return 1
	}
	if numShards > MaxShards {
		return MaxShards
	}
	return numShards
}

// CounterPK computes the partition key of one counter shard for a kind.
// With numShards=1, every id comes from shard "00".
func CounterPK(kind string, shard int) string {
	return fmt.Sprintf("%s#%02x", kind, shard)
}

// Of returns the shard a key hashes to.
func Of(key string, numShards int) int {
	numShards = Clamp(numShards)
	if numShards == 1 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(numShards))
}

// ID maps the n-th value (starting at 1) of a counter shard to a record id.
// Shards hand out disjoint ids: shard s yields s+1, s+1+numShards, and so on.
func ID(n int64, shard, numShards int) int64 {
	return (n-1)*int64(Clamp(numShards)) + int64(shard) + 1
}

// Split is the inverse of ID.
func Split(id int64, numShards int) (n int64, shard int) {
	numShards = Clamp(numShards)
	return (id-1)/int64(numShards) + 1, int((id - 1) % int64(numShards))
}

// Picker spreads counter increments over shards round-robin, starting at the
// shard seed hashes to so that concurrent processes start apart.
type Picker struct {
	numShards int
	next      atomic.Uint32
}

// NewPicker creates a Picker over numShards shards.
func NewPicker(numShards int, seed string) *Picker {
	p := &Picker{numShards: Clamp(numShards)}
	p.next.Store(uint32(Of(seed, p.numShards)))
	return p
}

// Pick returns the next shard.
func (p *Picker) Pick() int {
	if p.numShards == 1 {
		return 0
	}
	return int((p.next.Add(1) - 1) % uint32(p.numShards))
}

// NumShards returns the number of shards picked from.
func (p *Picker) NumShards() int { return p.numShards }

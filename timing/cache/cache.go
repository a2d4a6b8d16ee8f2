// Package cache provides an L1 data cache built on Akita cache components.
//
// The cache is write-back and write-allocate. It implements emu.DataPort so
// it can stand between the memory phase of an execution and main memory.
package cache

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// Config holds cache configuration parameters.
type Config struct {
	// Size in bytes
	Size int
	// Associativity (number of ways)
	Associativity int
	// BlockSize in bytes (cache line size)
	BlockSize int
}

// DefaultL1DConfig returns a 16KB 4-way data cache with 32B lines.
func DefaultL1DConfig() Config {
	return Config{
		Size:          16 * 1024,
		Associativity: 4,
		BlockSize:     32,
	}
}

// AccessResult contains the result of a cache access.
type AccessResult struct {
	// Hit indicates whether the access was a cache hit.
	Hit bool
	// Data is the data read (for load operations).
	Data uint32
	// Evicted is true if a valid block was replaced.
	Evicted bool
	// EvictedAddr is the address of the evicted block (if Evicted is true).
	EvictedAddr uint32
}

// Cache represents an L1 cache using Akita cache components.
type Cache struct {
	config Config

	// Akita cache directory for tag/state management
	directory *akitacache.DirectoryImpl

	// Data storage - indexed by (setID * associativity + wayID)
	dataStore [][]byte

	stats Statistics

	// Backing store interface (for fetching on miss and writeback)
	backing BackingStore

	// Accesses since the last Settle.
	accessed bool
	missed   bool
}

// Statistics holds cache performance statistics.
type Statistics struct {
	Reads      uint64
	Writes     uint64
	Hits       uint64
	Misses     uint64
	Evictions  uint64
	Writebacks uint64
}

// HitRate returns the fraction of accesses that hit.
func (s Statistics) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// BackingStore interface for the next level in the memory hierarchy.
type BackingStore interface {
	// Read fetches data from the backing store.
	Read(addr uint32, size int) []byte
	// Write stores data to the backing store.
	Write(addr uint32, data []byte)
}

// New creates a new cache with the given configuration.
func New(config Config, backing BackingStore) *Cache {
	numSets := config.Size / (config.Associativity * config.BlockSize)
	totalBlocks := numSets * config.Associativity

	dataStore := make([][]byte, totalBlocks)
	for i := range dataStore {
		dataStore[i] = make([]byte, config.BlockSize)
	}

	return &Cache{
		config: config,
		directory: akitacache.NewDirectory(
			numSets,
			config.Associativity,
			config.BlockSize,
			akitacache.NewLRUVictimFinder(),
		),
		dataStore: dataStore,
		backing:   backing,
	}
}

// Config returns the cache configuration.
func (c *Cache) Config() Config {
	return c.config
}

// Stats returns cache statistics.
func (c *Cache) Stats() Statistics {
	return c.stats
}

// ResetStats clears cache statistics.
func (c *Cache) ResetStats() {
	c.stats = Statistics{}
}

// Settle reports whether the cache was accessed since the previous call and,
// if so, whether every access hit. It then clears the record.
func (c *Cache) Settle() (accessed, hit bool) {
	accessed, hit = c.accessed, !c.missed
	c.accessed, c.missed = false, false
	return accessed, hit
}

func (c *Cache) blockIndex(block *akitacache.Block) int {
	return block.SetID*c.config.Associativity + block.WayID
}

func (c *Cache) blockAddr(addr uint32) uint32 {
	bs := uint32(c.config.BlockSize)
	return addr / bs * bs
}

func (c *Cache) record(hit bool) {
	c.accessed = true
	if hit {
		c.stats.Hits++
		return
	}
	c.stats.Misses++
	c.missed = true
}

// Read performs a cache read of size bytes. The access must not cross a
// block boundary.
func (c *Cache) Read(addr uint32, size int) AccessResult {
	c.stats.Reads++

	block := c.directory.Lookup(0, uint64(c.blockAddr(addr)))
	if block != nil && block.IsValid {
		c.record(true)
		c.directory.Visit(block)

		offset := addr % uint32(c.config.BlockSize)
		return AccessResult{
			Hit:  true,
			Data: extractData(c.dataStore[c.blockIndex(block)], offset, size),
		}
	}

	c.record(false)
	return c.handleMiss(addr, size, false, 0)
}

// Write performs a cache write of size bytes. On a miss the block is
// fetched first.
func (c *Cache) Write(addr uint32, size int, data uint32) AccessResult {
	c.stats.Writes++

	block := c.directory.Lookup(0, uint64(c.blockAddr(addr)))
	if block != nil && block.IsValid {
		c.record(true)
		c.directory.Visit(block)

		offset := addr % uint32(c.config.BlockSize)
		storeData(c.dataStore[c.blockIndex(block)], offset, size, data)
		block.IsDirty = true

		return AccessResult{Hit: true}
	}

	c.record(false)
	return c.handleMiss(addr, size, true, data)
}

func (c *Cache) handleMiss(addr uint32, size int, isWrite bool, writeData uint32) AccessResult {
	var result AccessResult
	blockAddr := c.blockAddr(addr)

	victim := c.directory.FindVictim(uint64(blockAddr))
	if victim == nil {
		return result
	}

	victimData := c.dataStore[c.blockIndex(victim)]

	if victim.IsValid {
		c.stats.Evictions++
		result.Evicted = true
		result.EvictedAddr = uint32(victim.Tag)

		if victim.IsDirty && c.backing != nil {
			c.stats.Writebacks++
			c.backing.Write(uint32(victim.Tag), victimData)
		}
	}

	if c.backing != nil {
		copy(victimData, c.backing.Read(blockAddr, c.config.BlockSize))
	} else {
		clear(victimData)
	}

	// The tag is the block-aligned address.
	victim.Tag = uint64(blockAddr)
	victim.IsValid = true
	victim.IsDirty = false

	offset := addr % uint32(c.config.BlockSize)
	if isWrite {
		storeData(victimData, offset, size, writeData)
		victim.IsDirty = true
	} else {
		result.Data = extractData(victimData, offset, size)
	}

	c.directory.Visit(victim)

	return result
}

// Read8 implements emu.DataPort.
func (c *Cache) Read8(addr uint32) uint8 { return uint8(c.Read(addr, 1).Data) }

// Read16 implements emu.DataPort.
func (c *Cache) Read16(addr uint32) uint16 { return uint16(c.Read(addr, 2).Data) }

// Read32 implements emu.DataPort.
func (c *Cache) Read32(addr uint32) uint32 { return c.Read(addr, 4).Data }

// Write8 implements emu.DataPort.
func (c *Cache) Write8(addr uint32, v uint8) { c.Write(addr, 1, uint32(v)) }

// Write16 implements emu.DataPort.
func (c *Cache) Write16(addr uint32, v uint16) { c.Write(addr, 2, uint32(v)) }

// Write32 implements emu.DataPort.
func (c *Cache) Write32(addr uint32, v uint32) { c.Write(addr, 4, v) }

// Invalidate marks a cache line as invalid.
func (c *Cache) Invalidate(addr uint32) {
	block := c.directory.Lookup(0, uint64(c.blockAddr(addr)))
	if block != nil && block.IsValid {
		block.IsValid = false
		block.IsDirty = false
	}
}

// Flush writes back all dirty blocks and invalidates them.
func (c *Cache) Flush() {
	for _, set := range c.directory.GetSets() {
		for _, block := range set.Blocks {
			if block.IsValid && block.IsDirty && c.backing != nil {
				c.backing.Write(uint32(block.Tag), c.dataStore[c.blockIndex(block)])
				c.stats.Writebacks++
			}
			block.IsValid = false
			block.IsDirty = false
		}
	}
}

// Reset invalidates all cache lines without writeback.
func (c *Cache) Reset() {
	c.directory.Reset()
	c.stats = Statistics{}
	c.accessed, c.missed = false, false
}

func extractData(data []byte, offset uint32, size int) uint32 {
	if data == nil || int(offset)+size > len(data) {
		return 0
	}

	var result uint32
	for i := 0; i < size; i++ {
		result |= uint32(data[int(offset)+i]) << (i * 8)
	}
	return result
}

func storeData(data []byte, offset uint32, size int, value uint32) {
	if data == nil || int(offset)+size > len(data) {
		return
	}

	for i := 0; i < size; i++ {
		data[int(offset)+i] = byte(value >> (i * 8))
	}
}

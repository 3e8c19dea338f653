// Package mem models the guest address space as a list of virtual
// memory areas, one per loaded segment plus the stack, with bound and
// protection checks on every access.
package mem

import (
	"errors"
	"fmt"
)

var (
	// ErrUnmapped is returned for accesses outside every VMA.
	ErrUnmapped = errors.New("address not mapped")
	// ErrProtected is returned when the VMA forbids the access kind.
	ErrProtected = errors.New("memory protection violation")
)

// VMA is a single virtual memory area. Each loaded program segment is
// mapped as one VMA so bounds and protections can be enforced per
// segment. It is a logical view of the layout; an MMU or cache model
// could later hang off it.
type VMA struct {
	Low        uint64
	Size       uint64
	Readable   bool
	Writable   bool
	Executable bool
	Data       []byte
}

func (v *VMA) contains(addr uint64) bool {
	return v.Low <= addr && addr < v.Low+v.Size
}

// AddressSpace is the ordered set of VMAs of one guest program.
type AddressSpace struct {
	vmas []*VMA
}

// Map adds a VMA to the address space.
func (as *AddressSpace) Map(v *VMA) {
	as.vmas = append(as.vmas, v)
}

// VMAs returns the mapped areas in mapping order.
func (as *AddressSpace) VMAs() []*VMA {
	return as.vmas
}

func (as *AddressSpace) find(addr uint64) *VMA {
	for _, v := range as.vmas {
		if v.contains(addr) {
			return v
		}
	}
	return nil
}

// Load reads size bytes starting at addr from the containing VMA. When
// the read runs past the VMA end the returned remaining count is the
// number of bytes not covered; callers decide whether a cross-VMA read
// is a fault. Fetches (exec=true) require execute permission, data
// reads require read permission.
func (as *AddressSpace) Load(addr uint64, size int, exec bool) ([]byte, int, error) {
	v := as.find(addr)
	if v == nil {
		return nil, 0, fmt.Errorf("load %#x: %w", addr, ErrUnmapped)
	}
	if exec && !v.Executable {
		return nil, 0, fmt.Errorf("fetch %#x: %w", addr, ErrProtected)
	}
	if !exec && !v.Readable {
		return nil, 0, fmt.Errorf("load %#x: %w", addr, ErrProtected)
	}

	start := addr - v.Low
	end := min(v.Size, start+uint64(size))
	return v.Data[start:end], size - int(end-start), nil
}

// Store writes data starting at addr, spanning VMAs if needed. The
// write fails without partial-write rollback when it leaves mapped,
// writable memory.
func (as *AddressSpace) Store(addr uint64, data []byte) error {
	cur := 0
	for cur < len(data) {
		v := as.find(addr + uint64(cur))
		if v == nil {
			return fmt.Errorf("store %#x: %w", addr+uint64(cur), ErrUnmapped)
		}
		if !v.Writable {
			return fmt.Errorf("store %#x: %w", addr+uint64(cur), ErrProtected)
		}
		start := addr + uint64(cur) - v.Low
		n := copy(v.Data[start:], data[cur:])
		cur += n
	}
	return nil
}

// LoadString reads a NUL-terminated string starting at addr.
func (as *AddressSpace) LoadString(addr uint64) (string, error) {
	var out []byte
	for {
		data, rem, err := as.Load(addr, 1, false)
		if err != nil {
			return "", err
		}
		if rem != 0 {
			return "", fmt.Errorf("load %#x: %w", addr, ErrUnmapped)
		}
		if data[0] == 0 {
			return string(out), nil
		}
		out = append(out, data[0])
		addr++
	}
}

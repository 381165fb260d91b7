// Package system probes host resources so large analyses can be refused
// before they exhaust memory.
package system

import (
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/Molcarrus/image-forensics/internal/forensics"
	"github.com/Molcarrus/image-forensics/internal/forensics/copymove"
)

// Per-block bookkeeping outside the descriptor itself: the block record,
// its sort index, bucket id and amortised match storage.
const perBlockOverhead = 24 + 8 + 8 + 16

// EstimateMemory returns an upper bound in bytes on the working memory a
// copy-move analysis of a width x height image needs with parameters p.
func EstimateMemory(width, height int, p copymove.Params) uint64 {
	if width < p.BlockSize || height < p.BlockSize || p.BlockSize < 1 || p.Stride < 1 {
		return 0
	}
	nx := uint64((width-p.BlockSize)/p.Stride + 2)
	ny := uint64((height-p.BlockSize)/p.Stride + 2)
	blocks := nx * ny

	dim := uint64(min(p.Coefficients, p.BlockSize*p.BlockSize-1))
	// float64 descriptor plus int32 sort key per coefficient.
	perBlock := dim*(8+4) + perBlockOverhead

	pixels := uint64(width) * uint64(height)
	// Luminance plane, grayscale copy and overlay.
	images := pixels*8 + pixels*4 + pixels*4

	return blocks*perBlock + images
}

// CheckBudget returns an error wrapping forensics.ErrAnalysis when estimate
// exceeds the given fraction of currently available memory. When memory
// cannot be probed the check passes.
func CheckBudget(estimate uint64, headroom float64) error {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return nil
	}
	budget := uint64(float64(vm.Available) * headroom)
	if estimate > budget {
		return fmt.Errorf("%w: analysis needs about %s but only %s is allowed (%.0f%% of %s available)",
			forensics.ErrAnalysis, FormatBytes(estimate), FormatBytes(budget), headroom*100, FormatBytes(vm.Available))
	}
	return nil
}

// Stats is a snapshot of host and process resources.
type Stats struct {
	LogicalCPUs    int     `json:"logical_cpus" yaml:"logical_cpus"`
	PhysicalCPUs   int     `json:"physical_cpus" yaml:"physical_cpus"`
	MemoryTotal    uint64  `json:"memory_total" yaml:"memory_total"`
	MemoryAvail    uint64  `json:"memory_available" yaml:"memory_available"`
	MemoryUsedPct  float64 `json:"memory_used_percent" yaml:"memory_used_percent"`
	HeapAlloc      uint64  `json:"heap_alloc" yaml:"heap_alloc"`
	NumGoroutine   int     `json:"goroutines" yaml:"goroutines"`
	GoMaxProcesses int     `json:"gomaxprocs" yaml:"gomaxprocs"`
}

// Snapshot collects current resource usage.
func Snapshot() (*Stats, error) {
	logical, err := cpu.Counts(true)
	if err != nil {
		return nil, fmt.Errorf("failed to count CPUs: %w", err)
	}
	physical, err := cpu.Counts(false)
	if err != nil {
		physical = logical
	}
	vm, err := mem.VirtualMemory()
	if err != nil {
		return nil, fmt.Errorf("failed to read memory stats: %w", err)
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	return &Stats{
		LogicalCPUs:    logical,
		PhysicalCPUs:   physical,
		MemoryTotal:    vm.Total,
		MemoryAvail:    vm.Available,
		MemoryUsedPct:  vm.UsedPercent,
		HeapAlloc:      ms.HeapAlloc,
		NumGoroutine:   runtime.NumGoroutine(),
		GoMaxProcesses: runtime.GOMAXPROCS(0),
	}, nil
}

// String formats the snapshot on one line.
func (s *Stats) String() string {
	return fmt.Sprintf("cpus=%d/%d mem=%s/%s (%.1f%% used) heap=%s goroutines=%d",
		s.PhysicalCPUs, s.LogicalCPUs, FormatBytes(s.MemoryAvail), FormatBytes(s.MemoryTotal),
		s.MemoryUsedPct, FormatBytes(s.HeapAlloc), s.NumGoroutine)
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

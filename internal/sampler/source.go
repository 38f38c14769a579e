package sampler

import (
	"context"
	"os"
	"sort"

	"github.com/pbnjay/memory"
	"github.com/prometheus/procfs"

	"github.com/rileyhilliard/ramwatch/internal/errors"
	"github.com/rileyhilliard/ramwatch/internal/events"
)

// Source kinds accepted by NewSource.
const (
	SourceAuto    = "auto"
	SourceProcfs  = "procfs"
	SourceRuntime = "runtime"
)

// Source reads the current memory usage of the host.
type Source interface {
	Read(ctx context.Context) (events.Usage, error)
}

// NewSource picks a Source by kind. "auto" prefers procfs and falls back to
// the portable reader when /proc is not mounted.
func NewSource(kind string, top int) (Source, error) {
	switch kind {
	case SourceProcfs:
		return NewProcSource(procfs.DefaultMountPoint, top)
	case SourceRuntime:
		return NewRuntimeSource(), nil
	case SourceAuto, "":
		if src, err := NewProcSource(procfs.DefaultMountPoint, top); err == nil {
			return src, nil
		}
		return NewRuntimeSource(), nil
	default:
		return nil, errors.New(errors.ErrConfig,
			"Unknown sampler source: "+kind,
			"Use one of: auto, procfs, runtime")
	}
}

// ProcSource reads /proc/meminfo and every /proc/<pid>/stat.
type ProcSource struct {
	fs  procfs.FS
	top int
}

// NewProcSource opens a proc filesystem at mountPoint. top is how many
// processes to report, capped at events.MaxTopProcesses.
func NewProcSource(mountPoint string, top int) (*ProcSource, error) {
	fs, err := procfs.NewFS(mountPoint)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrSampler,
			"Can't open proc filesystem at "+mountPoint,
			"Set sampler.source to runtime on systems without /proc")
	}
	return &ProcSource{fs: fs, top: clampTop(top)}, nil
}

// Read returns the used RAM percentage and the top resident processes.
func (s *ProcSource) Read(ctx context.Context) (events.Usage, error) {
	mi, err := s.fs.Meminfo()
	if err != nil {
		return events.Usage{}, errors.WrapWithCode(err, errors.ErrSampler, "Failed to read meminfo", "")
	}
	if mi.MemTotal == nil || *mi.MemTotal == 0 {
		return events.Usage{}, errors.New(errors.ErrSampler, "meminfo has no MemTotal", "")
	}

	total := *mi.MemTotal
	avail := total
	switch {
	case mi.MemAvailable != nil:
		avail = *mi.MemAvailable
	case mi.MemFree != nil:
		// Kernels before 3.14 have no MemAvailable.
		avail = *mi.MemFree
		if mi.Buffers != nil {
			avail += *mi.Buffers
		}
		if mi.Cached != nil {
			avail += *mi.Cached
		}
	}
	if avail > total {
		avail = total
	}

	usage := events.Usage{RAMPercent: percent(total-avail, total)}
	if s.top == 0 {
		return usage, nil
	}

	procs, err := s.topProcesses(ctx, total*1024)
	if err != nil {
		return events.Usage{}, err
	}
	usage.TopProcesses = procs
	return usage, nil
}

func (s *ProcSource) topProcesses(ctx context.Context, totalBytes uint64) ([]events.Process, error) {
	all, err := s.fs.AllProcs()
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrSampler, "Failed to list processes", "")
	}

	procs := make([]events.Process, 0, len(all))
	for _, p := range all {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		stat, err := p.Stat()
		if err != nil {
			// Exited between listing and reading.
			continue
		}
		rss := stat.ResidentMemory()
		if rss <= 0 {
			continue
		}
		procs = append(procs, events.Process{
			Name:    stat.Comm,
			Percent: percent(uint64(rss), totalBytes),
		})
	}
	return topN(procs, s.top), nil
}

// RuntimeSource reads total and free memory through pbnjay/memory. It works
// wherever that package does but reports no per-process breakdown.
type RuntimeSource struct {
	total func() uint64
	free  func() uint64
}

// NewRuntimeSource returns the portable Source.
func NewRuntimeSource() *RuntimeSource {
	return &RuntimeSource{total: memory.TotalMemory, free: memory.FreeMemory}
}

func (s *RuntimeSource) Read(context.Context) (events.Usage, error) {
	total := s.total()
	if total == 0 {
		return events.Usage{}, errors.New(errors.ErrSampler,
			"Can't determine total memory on "+hostname(),
			"Set sampler.source to procfs if /proc is available")
	}
	free := s.free()
	if free > total {
		free = total
	}
	return events.Usage{RAMPercent: percent(total-free, total)}, nil
}

func percent(part, whole uint64) float64 {
	if whole == 0 {
		return 0
	}
	p := float64(part) / float64(whole) * 100
	if p > 100 {
		return 100
	}
	return p
}

func clampTop(n int) int {
	if n < 0 {
		return 0
	}
	if n > events.MaxTopProcesses {
		return events.MaxTopProcesses
	}
	return n
}

func topN(procs []events.Process, n int) []events.Process {
	sort.SliceStable(procs, func(i, j int) bool {
		return procs[i].Percent > procs[j].Percent
	})
	if len(procs) > n {
		procs = procs[:n]
	}
	return procs
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "this host"
	}
	return h
}

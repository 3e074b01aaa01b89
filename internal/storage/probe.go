package storage

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"microstatus/internal/config"
	"microstatus/internal/services"
)

// Stat is the raw block accounting of one filesystem, in bytes.
type Stat struct {
	Total uint64
	Free  uint64
	Avail uint64
}

// StatFunc reads filesystem accounting for path.
type StatFunc func(path string) (Stat, error)

// Usage is one utilization sample.
type Usage struct {
	Resource    string
	Path        string
	Total       uint64
	Used        uint64
	Avail       uint64
	UsedPercent float64
}

// Prober samples utilization with a per-call deadline.
type Prober struct {
	timeout time.Duration
	stat    StatFunc
}

// Option customises a Prober.
type Option func(*Prober)

// WithStat replaces the statfs call.
func WithStat(fn StatFunc) Option {
	return func(p *Prober) {
		if fn != nil {
			p.stat = fn
		}
	}
}

// NewProber builds a Prober. A non-positive timeout falls back to ten seconds.
func NewProber(timeout time.Duration, opts ...Option) *Prober {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	p := &Prober{timeout: timeout, stat: statfs}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe samples res. Used percent follows df: used blocks over the blocks
// available to unprivileged users plus used blocks.
func (p *Prober) Probe(ctx context.Context, res config.Resource) (Usage, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	type result struct {
		stat Stat
		err  error
	}
	done := make(chan result, 1)
	go func() {
		st, err := p.stat(res.Path)
		done <- result{stat: st, err: err}
	}()

	select {
	case <-ctx.Done():
		return Usage{}, services.Wrap(services.ErrTimeout, "storage", "probe", res.Name, ctx.Err())
	case r := <-done:
		if r.err != nil {
			return Usage{}, services.Wrap(services.ErrTransient, "storage", "probe", res.Path, r.err)
		}
		return usageFrom(res, r.stat)
	}
}

func usageFrom(res config.Resource, st Stat) (Usage, error) {
	if st.Total == 0 || st.Free > st.Total {
		return Usage{}, services.Wrap(services.ErrTransient, "storage", "probe",
			fmt.Sprintf("%s reports %d bytes total, %d free", res.Path, st.Total, st.Free), nil)
	}
	used := st.Total - st.Free
	u := Usage{Resource: res.Name, Path: res.Path, Total: st.Total, Used: used, Avail: st.Avail}
	if denom := used + st.Avail; denom > 0 {
		u.UsedPercent = float64(used) / float64(denom) * 100
	}
	return u, nil
}

func statfs(path string) (Stat, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return Stat{}, err
	}
	bsize := uint64(st.Bsize)
	return Stat{
		Total: st.Blocks * bsize,
		Free:  st.Bfree * bsize,
		Avail: st.Bavail * bsize,
	}, nil
}

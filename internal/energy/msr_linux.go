//go:build linux

package energy

import (
	"fmt"
	"os"
)

// msrDevicePath is the standard Linux msr-driver device node (requires
// `modprobe msr`; see msr(4)). Reading 8 bytes at offset msrID is the same
// technique rdmsr(1), turbostat, and likwid use to read an MSR from
// userspace -- a real mechanism, standing in for the Windows-only
// ScaphandreDriver ioctl the original talks to.
const msrDevicePath = "/dev/cpu/0/msr"

type linuxMSRReader struct {
	f *os.File
}

// OpenDriver opens the Linux msr device for cpu 0. RAPL registers report
// package-wide (or platform-wide) energy regardless of which core's msr
// device file you read them through, matching EnergyGatherer.cpp's own
// single-package assumption.
func OpenDriver() (Reader, error) {
	f, err := os.OpenFile(msrDevicePath, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("energy: open %s: %w (is the msr kernel module loaded?)", msrDevicePath, err)
	}
	return &linuxMSRReader{f: f}, nil
}

func (r *linuxMSRReader) ReadMSR(msr uint64) (uint64, error) {
	buf := make([]byte, 8)
	n, err := r.f.ReadAt(buf, int64(msr))
	if err != nil {
		return 0, fmt.Errorf("energy: read msr %#x: %w", msr, err)
	}
	if n != 8 {
		return 0, fmt.Errorf("energy: short read of msr %#x: got %d bytes", msr, n)
	}
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(buf[i]) << (8 * i)
	}
	return v, nil
}

func (r *linuxMSRReader) Close() error {
	return r.f.Close()
}

package pipeline

import (
	"fmt"
	"strconv"
	"strings"
	"syscall"

	"github.com/couchcryptid/emissions-regrid/internal/domain"
)

var sizeSuffixes = []struct {
	suffix string
	factor uint64
}{
	{"Pb", 1 << 50},
	{"Tb", 1 << 40},
	{"Gb", 1 << 30},
	{"Mb", 1 << 20},
	{"Kb", 1 << 10},
	{"b", 1},
}

// checkSpace verifies the filesystem holding path has at least min free,
// where min is a human-readable size such as "1Tb" or "500Gb". It returns
// the free byte count for logging.
func checkSpace(path, min string) (uint64, error) {
	required, err := humanToBytes(min)
	if err != nil {
		return 0, fmt.Errorf("parse minimum free space: %w", err)
	}
	var st syscall.Statfs_t
	if err := syscall.Statfs(path, &st); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", path, err)
	}
	free := st.Bavail * uint64(st.Bsize)
	if free < required {
		return free, &domain.ResourceError{Path: path, Free: free, Required: required}
	}
	return free, nil
}

func humanToBytes(s string) (uint64, error) {
	for _, u := range sizeSuffixes {
		if strings.HasSuffix(s, u.suffix) {
			v, err := strconv.ParseFloat(strings.TrimSuffix(s, u.suffix), 64)
			if err != nil || v < 0 {
				return 0, fmt.Errorf("invalid size %q", s)
			}
			return uint64(v * float64(u.factor)), nil
		}
	}
	return 0, fmt.Errorf("invalid size %q: want a number with a b/Kb/Mb/Gb/Tb/Pb suffix", s)
}

func bytesToHuman(n uint64) string {
	for _, u := range sizeSuffixes {
		if n >= u.factor && u.factor > 1 {
			return fmt.Sprintf("%.1f%s", float64(n)/float64(u.factor), u.suffix)
		}
	}
	return fmt.Sprintf("%d%s", n, "b")
}

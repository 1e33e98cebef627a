package diferenco

import (
	"context"
	"fmt"
)

// Algorithm identifies a line-diffing strategy usable by Merge/Diff3Merge.
//
// Only the histogram algorithm is wired up: it is the one mediagit's tree
// merge actually exercises. It diffs line tokens only; binary blobs are
// detected and kept out of line merging by the caller.
type Algorithm int

const (
	Unspecified Algorithm = iota
	Histogram
)

func (a Algorithm) String() string {
	switch a {
	case Histogram:
		return "histogram"
	default:
		return "unspecified"
	}
}

// diffInternal dispatches to the configured line-diffing algorithm.
func diffInternal[E comparable](ctx context.Context, o, a []E, algo Algorithm) ([]Change, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	switch algo {
	case Histogram, Unspecified:
		return HistogramDiff(o, a), nil
	default:
		return nil, fmt.Errorf("diferenco: unsupported diff algorithm %v", algo)
	}
}

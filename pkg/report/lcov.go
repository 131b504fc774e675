package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// WriteLCOV writes the report in LCOV trace format. Each page becomes a
// source file record (SF) and each element a line (DA) whose hit count is
// the number of tests covering it. Line numbers follow the element order of
// the JSON report.
func WriteLCOV(w io.Writer, r *Report) error {
	bw := bufio.NewWriter(w)

	var (
		page  string
		open  bool
		line  int
		found int
		hit   int
	)
	end := func() {
		if !open {
			return
		}
		fmt.Fprintf(bw, "LF:%d\nLH:%d\nend_of_record\n", found, hit)
		open = false
	}

	// Elements are sorted by page, so each page is one contiguous run.
	for _, e := range r.Elements {
		if !open || e.Page != page {
			end()
			page = e.Page
			fmt.Fprintf(bw, "TN:ui-coverage\nSF:%s\n", lcovName(page))
			open, line, found, hit = true, 0, 0, 0
		}
		line++
		found++
		hits := e.Hits
		if e.Covered {
			hit++
			if hits == 0 {
				hits = 1
			}
		} else {
			hits = 0
		}
		fmt.Fprintf(bw, "DA:%d,%d\n", line, hits)
	}
	end()

	return bw.Flush()
}

// lcovName keeps a value on one line with no field separators.
func lcovName(s string) string {
	if s == "" {
		return "unknown"
	}
	return strings.NewReplacer("\n", " ", "\r", " ", ",", ";").Replace(s)
}

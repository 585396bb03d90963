package evaluator

import (
	"encoding/xml"
	"os"

	"mutaforge/pkg/errkind"
)

// jacocoReport is the minimal shape of a JaCoCo XML report needed to compute
// aggregate line and branch coverage ratios. No JaCoCo reader exists among
// the example repos or their dependency sets, so this is read with
// encoding/xml directly rather than a third-party library.
type jacocoReport struct {
	Counters []jacocoCounter `xml:"counter"`
}

type jacocoCounter struct {
	Type    string `xml:"type,attr"`
	Missed  int    `xml:"missed,attr"`
	Covered int    `xml:"covered,attr"`
}

// ParseCoverage reads the aggregate LINE and BRANCH counters from a JaCoCo
// XML report, the coverage_report_path produced by
// builddriver.RunTestsWithCoverage.
func ParseCoverage(path string) (lineCoverage, branchCoverage float64, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, errkind.Wrap(errkind.SandboxIO, "read coverage report", err)
	}

	var report jacocoReport
	if err := xml.Unmarshal(data, &report); err != nil {
		return 0, 0, errkind.Wrap(errkind.InternalInvariant, "parse coverage report", err)
	}

	for _, c := range report.Counters {
		switch c.Type {
		case "LINE":
			lineCoverage = ratio(c.Covered, c.Missed)
		case "BRANCH":
			branchCoverage = ratio(c.Covered, c.Missed)
		}
	}
	return lineCoverage, branchCoverage, nil
}

func ratio(covered, missed int) float64 {
	total := covered + missed
	if total == 0 {
		return 0
	}
	return float64(covered) / float64(total)
}

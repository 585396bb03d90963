package evaluator

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"

	"mutaforge/pkg/model"
)

// surefireSuite is the minimal shape of a Surefire/Failsafe XML report
// needed to recover per-test outcomes. No Surefire reader exists among the
// example repos or their dependency sets, so this is read with
// encoding/xml directly, the same justification ParseCoverage already uses
// for JaCoCo reports.
type surefireSuite struct {
	Cases []surefireCase `xml:"testcase"`
}

type surefireCase struct {
	Name      string   `xml:"name,attr"`
	ClassName string   `xml:"classname,attr"`
	Failure   *struct{} `xml:"failure"`
	Error     *struct{} `xml:"error"`
}

// ParseTestOutcomes reads every target/surefire-reports/TEST-*.xml (or
// *.xml, for older Surefire versions) under reportsDir and returns each
// test method's outcome, keyed by "classname#name" to disambiguate same-
// named methods across classes, the per-test granularity spec.md §3
// requires for model.EvaluationRun.Outcomes. A missing reports directory
// (e.g. the run failed before any test executed) yields an empty map, not
// an error.
func ParseTestOutcomes(reportsDir string) (map[string]model.TestOutcome, error) {
	entries, err := os.ReadDir(reportsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]model.TestOutcome{}, nil
		}
		return nil, err
	}

	outcomes := make(map[string]model.TestOutcome)
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".xml" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(reportsDir, e.Name()))
		if err != nil {
			return nil, err
		}
		var suite surefireSuite
		if err := xml.Unmarshal(data, &suite); err != nil {
			continue // non-report XML (e.g. a *.txt sibling renamed) is skipped, not fatal
		}
		for _, c := range suite.Cases {
			key := fmt.Sprintf("%s#%s", c.ClassName, c.Name)
			switch {
			case c.Error != nil:
				outcomes[key] = model.OutcomeError
			case c.Failure != nil:
				outcomes[key] = model.OutcomeFail
			default:
				outcomes[key] = model.OutcomePass
			}
		}
	}
	return outcomes, nil
}

// surefireReportsDir is the Maven convention for a project checkout at
// path, read after RunTests during mutant evaluation.
func surefireReportsDir(path string) string {
	return filepath.Join(path, "target", "surefire-reports")
}

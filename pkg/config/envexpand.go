package config

import "os"

// ExpandEnv expands ${VAR}/$VAR references in raw YAML bytes before
// parsing, grounded on the teacher's pkg/config/envexpand.go. Missing
// variables expand to the empty string; the validator is responsible for
// catching required fields left empty by that expansion.
func ExpandEnv(data []byte) []byte {
	return []byte(os.ExpandEnv(string(data)))
}

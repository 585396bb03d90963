package main

import (
	"os"
	"os/exec"

	"mutaforge/pkg/errkind"
)

// locateTool resolves an external tool's executable path by explicit path,
// then environment variable, then PATH lookup — the same precedence
// builddriver.Locate uses for the build tool (spec.md §4.3), generalized
// here for the analyzer and formatter bridges, which have no version-query
// convention to probe.
func locateTool(explicitPath, pathEnvVar, defaultName string) (string, error) {
	if explicitPath != "" {
		return explicitPath, nil
	}
	if v := os.Getenv(pathEnvVar); v != "" {
		return v, nil
	}
	if p, err := exec.LookPath(defaultName); err == nil {
		return p, nil
	}
	return "", errkind.New(errkind.ExternalToolMissing,
		"tool not found via explicit path, "+pathEnvVar+", or PATH: "+defaultName)
}

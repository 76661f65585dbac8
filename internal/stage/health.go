package stage

import (
	"fmt"
	"os"
)

// Health summarizes the readiness of a workflow stage.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy constructs a ready Health record.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy constructs an unhealthy Health record with context detail.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}

// checkFiles reports the first required file that is missing or unreadable.
func checkFiles(name string, paths ...string) Health {
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return Unhealthy(name, fmt.Sprintf("missing %s", path))
		}
		if info.IsDir() {
			return Unhealthy(name, fmt.Sprintf("%s is a directory", path))
		}
	}
	return Healthy(name)
}

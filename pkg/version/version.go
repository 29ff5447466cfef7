package version

import "fmt"

// KernelVersion indicates what version of satkernel the binary belongs to
var KernelVersion string

// GitCommit indicates which git commit the binary was built from
var GitCommit string

// String returns a pretty string concatenation of KernelVersion and GitCommit
func String() string {
	return fmt.Sprintf("satkernel version: %s\n        git commit: %s\n", orUnknown(KernelVersion), orUnknown(GitCommit))
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

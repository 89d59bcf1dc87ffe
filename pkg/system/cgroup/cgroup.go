package cgroup

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Version is the kernel cgroup hierarchy layout detected for the host.
type Version int

const (
	Unknown Version = iota // no recognizable cgroup mount
	V1                     // legacy multi-hierarchy cgroup v1
	V2                     // unified cgroup v2
)

func (v Version) String() string {
	switch v {
	case V1:
		return "v1"
	case V2:
		return "v2"
	default:
		return "unknown"
	}
}

// Runtime is the container runtime inferred from a cgroup path.
type Runtime string

const (
	Docker     Runtime = "docker"
	Containerd Runtime = "containerd"
	Kubernetes Runtime = "kubernetes"
	Podman     Runtime = "podman"
	LXC        Runtime = "lxc"
	Systemd    Runtime = "systemd"
	Host       Runtime = "host"
)

// Info is the per-process classification result. It is derived purely
// from the membership file contents and the pre-detected version; no
// runtime API is consulted, so classification never blocks.
type Info struct {
	Version     Version `json:"version"`
	Path        string  `json:"path"`
	Runtime     Runtime `json:"runtime"`
	ContainerID string  `json:"container_id"`
}

const (
	// maxMembershipLines bounds how many lines of a v1 membership file
	// are scanned, so a pathological mount table cannot stall a scrape.
	maxMembershipLines = 15

	// maxPathLen caps the stored cgroup path to bound label cardinality.
	maxPathLen = 300
)

// DetectVersion inspects a cgroup mount point once per scrape.
// A unified-hierarchy control file means v2; legacy per-subsystem
// directories mean v1; anything else is Unknown.
func DetectVersion(mount string) Version {
	if mount == "" {
		mount = "/sys/fs/cgroup"
	}
	if _, err := os.Stat(filepath.Join(mount, "cgroup.controllers")); err == nil {
		return V2
	}
	for _, sub := range []string{"cpu", "cpuacct", "memory"} {
		if fi, err := os.Stat(filepath.Join(mount, sub)); err == nil && fi.IsDir() {
			return V1
		}
	}
	return Unknown
}

// runtimePatterns is the fixed priority order for runtime inference.
// First match wins; a nested setup (e.g. a containerd-managed Kubernetes
// pod) resolves to whichever pattern appears first here. That ambiguity
// is accepted, and new runtimes are added by appending pairs.
var runtimePatterns = []struct {
	substr  string
	runtime Runtime
}{
	{"docker", Docker},
	{"cri-containerd", Containerd},
	{"containerd", Containerd},
	{"kubepods", Kubernetes},
	{"libpod", Podman},
	{"lxc", LXC},
	{"user.slice", Systemd},
	{"system.slice", Systemd},
}

func classifyRuntime(path string) Runtime {
	for _, p := range runtimePatterns {
		if strings.Contains(path, p.substr) {
			return p.runtime
		}
	}
	return Host
}

// isContainer reports whether rt names an actual container runtime. A
// systemd slice scopes ordinary host processes, so it does not count
// when a membership line is tested for a container match.
func isContainer(rt Runtime) bool {
	return rt != Host && rt != Systemd
}

// containerIDPatterns maps a runtime to the ID shapes its cgroup paths
// carry. IDs are hex and at least 12 chars except for LXC, which uses
// the container name.
var containerIDPatterns = map[Runtime][]*regexp.Regexp{
	Docker: {
		regexp.MustCompile(`docker/([a-f0-9]{12,64})`),
		regexp.MustCompile(`docker-([a-f0-9]{12,})`),
	},
	Containerd: {
		regexp.MustCompile(`cri-containerd-([a-f0-9]{12,})`),
	},
	Kubernetes: {
		regexp.MustCompile(`cri-containerd-([a-f0-9]{12,})`),
		regexp.MustCompile(`docker-([a-f0-9]{12,})`),
		regexp.MustCompile(`kubepods/\S+/pod\S+/([a-f0-9]{12,})`),
	},
	Podman: {
		regexp.MustCompile(`libpod-([a-f0-9]{12,})`),
	},
	LXC: {
		regexp.MustCompile(`lxc/([^/]+)`),
	},
}

// ContainerID extracts the short (12-char) container ID from a cgroup
// path for the given runtime, or "" when the path carries none.
func ContainerID(path string, rt Runtime) string {
	for _, re := range containerIDPatterns[rt] {
		if m := re.FindStringSubmatch(path); m != nil {
			id := m[1]
			if len(id) > 12 {
				id = id[:12]
			}
			return id
		}
	}
	return ""
}

// ExtractPath pulls the cgroup path out of a membership file.
//
// v2 files contain exactly one line, "0::<path>". Legacy files contain
// multiple "hierarchy-id:subsystems:path" lines; at most
// maxMembershipLines are scanned, and a line whose path matches a known
// container pattern is preferred over the first line encountered.
func ExtractPath(content string, ver Version) string {
	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")

	if ver == V2 {
		if len(lines) == 0 {
			return ""
		}
		parts := strings.SplitN(lines[0], "::", 2)
		if len(parts) != 2 || !strings.HasPrefix(lines[0], "0::") {
			return ""
		}
		return parts[1]
	}

	first := ""
	for i, line := range lines {
		if i >= maxMembershipLines {
			break
		}
		parts := strings.SplitN(line, ":", 3)
		if len(parts) != 3 || parts[2] == "" {
			continue
		}
		path := parts[2]
		if first == "" {
			first = path
		}
		if isContainer(classifyRuntime(path)) {
			return path
		}
	}
	return first
}

// Classify derives Info from a membership file's contents and the
// system-wide version detected once per scrape.
func Classify(content string, ver Version) Info {
	path := ExtractPath(content, ver)
	if len(path) > maxPathLen {
		path = path[:maxPathLen]
	}
	rt := classifyRuntime(path)
	return Info{
		Version:     ver,
		Path:        path,
		Runtime:     rt,
		ContainerID: ContainerID(path, rt),
	}
}

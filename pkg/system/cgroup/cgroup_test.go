package cgroup

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectVersion(t *testing.T) {
	t.Run("v2_unified", func(t *testing.T) {
		mount := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(mount, "cgroup.controllers"), []byte("cpu memory io\n"), 0o644))
		assert.Equal(t, V2, DetectVersion(mount))
	})
	t.Run("v1_legacy_subsystems", func(t *testing.T) {
		mount := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(mount, "memory"), 0o755))
		assert.Equal(t, V1, DetectVersion(mount))
	})
	t.Run("unknown", func(t *testing.T) {
		assert.Equal(t, Unknown, DetectVersion(t.TempDir()))
	})
}

func TestVersion_String(t *testing.T) {
	assert.Equal(t, "v1", V1.String())
	assert.Equal(t, "v2", V2.String())
	assert.Equal(t, "unknown", Unknown.String())
}

func TestClassifyRuntime(t *testing.T) {
	cases := []struct {
		path string
		want Runtime
	}{
		{"/docker/16efc8c9aa1c9564ba6b51fe04b64", Docker},
		{"/kubepods/burstable/pod123/container456", Kubernetes},
		{"/kubepods.slice/cri-containerd-abc123def456.scope", Containerd}, // fixed order: containerd before kubepods
		{"/machine.slice/libpod-3cd45f.scope", Podman},
		{"/lxc/mycontainer", LXC},
		{"/user.slice/user-1000.slice", Systemd},
		{"/system.slice/sshd.service", Systemd},
		{"/", Host},
		{"", Host},
	}
	for _, tc := range cases {
		t.Run(strings.ReplaceAll(tc.path, "/", "_"), func(t *testing.T) {
			assert.Equal(t, tc.want, classifyRuntime(tc.path))
		})
	}
}

func TestExtractPath_V2(t *testing.T) {
	assert.Equal(t, "/system.slice/sshd.service",
		ExtractPath("0::/system.slice/sshd.service\n", V2))
	assert.Equal(t, "", ExtractPath("garbage\n", V2))
	assert.Equal(t, "", ExtractPath("", V2))
}

func TestExtractPath_V1_PrefersContainerLine(t *testing.T) {
	content := "12:pids:/user.slice\n" +
		"11:cpu,cpuacct:/docker/16efc8c9aa1c9564ba6b51fe04b64aa2f\n" +
		"10:memory:/user.slice\n"
	assert.Equal(t, "/docker/16efc8c9aa1c9564ba6b51fe04b64aa2f", ExtractPath(content, V1))
}

func TestClassify_V1_SystemdSliceBeforeDockerLine(t *testing.T) {
	// A slice line is not a container match; the docker line must win
	// even when the slice comes first.
	content := "12:pids:/user.slice\n" +
		"11:cpu,cpuacct:/docker/16efc8c9aa1c9564ba6b51fe04b64aa2f\n"
	info := Classify(content, V1)
	assert.Equal(t, Docker, info.Runtime)
	assert.Equal(t, "16efc8c9aa1c", info.ContainerID)
	assert.Equal(t, "/docker/16efc8c9aa1c9564ba6b51fe04b64aa2f", info.Path)
}

func TestExtractPath_V1_FallsBackToFirstLine(t *testing.T) {
	content := "12:pids:/init.scope\n11:cpu:/other\n"
	assert.Equal(t, "/init.scope", ExtractPath(content, V1))
}

func TestExtractPath_V1_BoundedLines(t *testing.T) {
	// The matching line is beyond the scan bound; only the first
	// maxMembershipLines lines may be considered.
	var b strings.Builder
	for i := 0; i < maxMembershipLines; i++ {
		b.WriteString("1:pids:/plain\n")
	}
	b.WriteString("2:cpu:/docker/16efc8c9aa1c9564ba6b51fe04b64aa2f\n")
	assert.Equal(t, "/plain", ExtractPath(b.String(), V1))
}

func TestContainerID(t *testing.T) {
	cases := []struct {
		name string
		path string
		rt   Runtime
		want string
	}{
		{"docker_plain", "/docker/16efc8c9aa1c9564ba6b51fe04b64aa2f16efc8c9", Docker, "16efc8c9aa1c"},
		{"docker_scope", "/system.slice/docker-16efc8c9aa1c9564.scope", Docker, "16efc8c9aa1c"},
		{"containerd", "/kubepods.slice/cri-containerd-abc123def45600.scope", Containerd, "abc123def456"},
		{"podman", "/machine.slice/libpod-3cd45fabc12345.scope", Podman, "3cd45fabc123"},
		{"lxc_name", "/lxc/web01", LXC, "web01"},
		{"host_none", "/system.slice/sshd.service", Host, ""},
		{"docker_no_id", "/docker", Docker, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ContainerID(tc.path, tc.rt))
		})
	}
}

func TestClassify(t *testing.T) {
	t.Run("kubernetes_pod_v1", func(t *testing.T) {
		content := "11:cpu,cpuacct:/kubepods/burstable/pod123/container456\n"
		info := Classify(content, V1)
		assert.Equal(t, Kubernetes, info.Runtime)
		assert.Equal(t, V1, info.Version)
		assert.Equal(t, "/kubepods/burstable/pod123/container456", info.Path)
	})
	t.Run("v2_docker", func(t *testing.T) {
		info := Classify("0::/system.slice/docker-16efc8c9aa1c9564.scope\n", V2)
		assert.Equal(t, Docker, info.Runtime)
		assert.Equal(t, "16efc8c9aa1c", info.ContainerID)
	})
	t.Run("path_truncated", func(t *testing.T) {
		long := "0::/" + strings.Repeat("a", 400) + "\n"
		info := Classify(long, V2)
		assert.Len(t, info.Path, maxPathLen)
	})
	t.Run("empty_content_is_host", func(t *testing.T) {
		info := Classify("", V1)
		assert.Equal(t, Host, info.Runtime)
		assert.Empty(t, info.ContainerID)
	})
}

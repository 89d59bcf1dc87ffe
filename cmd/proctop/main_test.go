//go:build linux

package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ja7ad/proctop/pkg/config"
)

func TestMergeFlags_DiskIOPrecedence(t *testing.T) {
	fileOff := func() config.Config {
		cfg := config.Default()
		off := false
		cfg.DiskIO = &off
		return cfg
	}

	t.Run("explicit_true_overrides_file_false", func(t *testing.T) {
		cmd := &cobra.Command{}
		diskIO := cmd.Flags().Bool("disk-io", true, "")
		require.NoError(t, cmd.Flags().Set("disk-io", "true"))

		loaded := fileOff()
		mergeFlags(cmd, &loaded, config.Default(), diskIO)
		assert.True(t, loaded.DiskIOEnabled())
	})

	t.Run("explicit_false_overrides_file_default", func(t *testing.T) {
		cmd := &cobra.Command{}
		diskIO := cmd.Flags().Bool("disk-io", true, "")
		require.NoError(t, cmd.Flags().Set("disk-io", "false"))

		loaded := config.Default()
		mergeFlags(cmd, &loaded, config.Default(), diskIO)
		assert.False(t, loaded.DiskIOEnabled())
	})

	t.Run("unset_flag_keeps_file_value", func(t *testing.T) {
		cmd := &cobra.Command{}
		diskIO := cmd.Flags().Bool("disk-io", true, "")

		loaded := fileOff()
		mergeFlags(cmd, &loaded, config.Default(), diskIO)
		assert.False(t, loaded.DiskIOEnabled())
	})
}

func TestMergeFlags_ScalarPrecedence(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().Int("top", 50, "")
	cmd.Flags().String("proc-root", "/proc", "")
	require.NoError(t, cmd.Flags().Set("top", "5"))

	flagCfg := config.Default()
	flagCfg.TopN = 5
	flagCfg.ProcRoot = "/unused"

	loaded := config.Default()
	loaded.TopN = 20
	loaded.ProcRoot = "/host/proc"

	diskIO := true
	mergeFlags(cmd, &loaded, flagCfg, &diskIO)

	// set flags win over the file; untouched flags keep the file value
	assert.Equal(t, 5, loaded.TopN)
	assert.Equal(t, "/host/proc", loaded.ProcRoot)
}

package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CloudNativeWorks/elchi-decompiler/internal/classfile/classfiletest"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Engines.ToolsDir = t.TempDir()
	cfg.Engines.ScratchDir = t.TempDir()
	cfg.Engines.JavaPath = filepath.Join(t.TempDir(), "no-java")
	return cfg
}

func TestConfigCommand_HidesSecret(t *testing.T) {
	Cfg = testConfig(t)
	Cfg.Artifacts.S3.SecretKey = "s3cr3t"
	t.Cleanup(func() { Cfg = nil })

	var out bytes.Buffer
	configCmd.SetOut(&out)
	require.NoError(t, configCmd.RunE(configCmd, nil))

	assert.Contains(t, out.String(), "default_mode: outline")
	assert.Contains(t, out.String(), "tool_timeout: 2m0s")
	assert.NotContains(t, out.String(), "s3cr3t")
}

func TestPrintModes(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Engines.ToolsDir, "jad"), []byte("#!/bin/sh\n"), 0o755))

	svc, err := newService(cfg, false)
	require.NoError(t, err)

	var out bytes.Buffer
	printModes(context.Background(), &out, svc.Detector())

	text := out.String()
	assert.Regexp(t, `outline\s+embedded\s+true`, text)
	assert.Regexp(t, `cfr\s+embedded\s+false`, text)
	assert.Regexp(t, `jad\s+external\s+true`, text)
	assert.Regexp(t, `fernflower\s+external\s+false`, text)
	assert.Contains(t, text, "java runtime: false")
}

func TestDecompileCommand(t *testing.T) {
	Cfg = testConfig(t)
	t.Cleanup(func() {
		Cfg = nil
		decompileMode, decompileClassName, decompileOutput = "", "", ""
	})
	dir := t.TempDir()
	decompileCmd.SetContext(context.Background())

	t.Run("class to stdout", func(t *testing.T) {
		p := filepath.Join(dir, "Widget.class")
		require.NoError(t, os.WriteFile(p, classfiletest.Simple("com/example/Widget"), 0o644))

		var out bytes.Buffer
		decompileCmd.SetOut(&out)
		require.NoError(t, decompileCmd.RunE(decompileCmd, []string{p}))
		assert.Contains(t, out.String(), "package com.example;")
		assert.Contains(t, out.String(), "class Widget")
	})

	t.Run("archive to file", func(t *testing.T) {
		p := filepath.Join(dir, "app.jar")
		require.NoError(t, classfiletest.WriteJar(p, map[string][]byte{
			"a/B.class": classfiletest.Simple("a/B"),
			"a/C.class": classfiletest.Simple("a/C"),
		}))
		decompileOutput = filepath.Join(dir, "out.zip")

		var errOut bytes.Buffer
		decompileCmd.SetErr(&errOut)
		require.NoError(t, decompileCmd.RunE(decompileCmd, []string{p}))
		assert.Contains(t, errOut.String(), "2 entries written")

		zr, err := zip.OpenReader(decompileOutput)
		require.NoError(t, err)
		defer zr.Close()
		require.Len(t, zr.File, 2)

		entries, err := os.ReadDir(Cfg.Engines.ScratchDir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("unavailable mode", func(t *testing.T) {
		p := filepath.Join(dir, "Widget.class")
		decompileMode = "procyon"
		err := decompileCmd.RunE(decompileCmd, []string{p})
		assert.ErrorContains(t, err, `mode "procyon" not available`)
	})
}

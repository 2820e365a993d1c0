package deps

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeStub(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestCheckBinaries(t *testing.T) {
	present := writeStub(t, "present", "exit 0\n")
	reqs := []Requirement{
		{Name: "Present", Command: " " + present + " ", Description: " decoding "},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Unset", Command: ""},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}

	if !results[0].Available || results[0].Path != present || results[0].Detail != "" {
		t.Fatalf("unexpected present status %#v", results[0])
	}
	if results[0].Command != present || results[0].Description != "decoding" {
		t.Fatalf("expected trimmed requirement, got %#v", results[0].Requirement)
	}
	if results[1].Available || results[1].Detail != `binary "clearly-not-present-binary" not found` {
		t.Fatalf("unexpected missing status %#v", results[1])
	}
	if results[2].Available || results[2].Detail != "command not configured" {
		t.Fatalf("unexpected unset status %#v", results[2])
	}
}

func TestCheckBinariesUsesLookPath(t *testing.T) {
	orig := lookPath
	t.Cleanup(func() { lookPath = orig })
	lookPath = func(file string) (string, error) {
		if file == "ffmpeg" {
			return "/opt/ffmpeg/bin/ffmpeg", nil
		}
		return "", errors.New("not found")
	}

	results := CheckBinaries([]Requirement{{Name: "FFmpeg", Command: "ffmpeg"}, {Name: "FFprobe", Command: "ffprobe"}})
	if results[0].Path != "/opt/ffmpeg/bin/ffmpeg" || !results[0].Available {
		t.Fatalf("unexpected ffmpeg status %#v", results[0])
	}
	if results[1].Available {
		t.Fatalf("expected ffprobe to be missing, got %#v", results[1])
	}
}

func TestVersionReturnsFirstLine(t *testing.T) {
	stub := writeStub(t, "ffmpeg", "echo 'ffmpeg version 7.1 Copyright (c) the FFmpeg developers'\necho 'built with gcc'\n")

	version, err := Version(context.Background(), stub)
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if version != "ffmpeg version 7.1 Copyright (c) the FFmpeg developers" {
		t.Fatalf("unexpected version line %q", version)
	}
}

func TestVersionFailures(t *testing.T) {
	cases := []struct {
		name    string
		command string
	}{
		{name: "empty command", command: " "},
		{name: "non-zero exit", command: writeStub(t, "broken", "exit 3\n")},
		{name: "silent", command: writeStub(t, "silent", "exit 0\n")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Version(context.Background(), tc.command); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestAnnotateVersions(t *testing.T) {
	good := writeStub(t, "ffprobe", "echo 'ffprobe version 7.1'\n")
	bad := writeStub(t, "ffmpeg", "exit 1\n")

	statuses := AnnotateVersions(context.Background(), CheckBinaries([]Requirement{
		{Name: "FFprobe", Command: good},
		{Name: "FFmpeg", Command: bad},
		{Name: "Missing", Command: "clearly-not-present-binary"},
	}))

	if !statuses[0].Available || statuses[0].Version != "ffprobe version 7.1" {
		t.Fatalf("unexpected ffprobe status %#v", statuses[0])
	}
	if statuses[1].Available || statuses[1].Detail == "" || statuses[1].Version != "" {
		t.Fatalf("expected failing binary to be unavailable, got %#v", statuses[1])
	}
	if statuses[2].Available || statuses[2].Version != "" {
		t.Fatalf("unexpected missing status %#v", statuses[2])
	}
}

package main

import (
	"context"
	"testing"
)

func TestRun_help(t *testing.T) {
	ctx := context.Background()
	code := Run(ctx, []string{"--help"})
	if code != 0 {
		t.Errorf("Run --help: got exit code %d", code)
	}
}

func TestRun_version(t *testing.T) {
	ctx := context.Background()
	code := Run(ctx, []string{"--version"})
	if code != 0 {
		t.Errorf("Run --version: got exit code %d", code)
	}
}

func TestRun_unknownFlag(t *testing.T) {
	ctx := context.Background()
	code := Run(ctx, []string{"--unknown-flag"})
	if code != 1 {
		t.Errorf("Run --unknown-flag: got exit code %d, want 1", code)
	}
}


func TestRun_validateRUT(t *testing.T) {
	ctx := context.Background()
	home := t.TempDir()
	if code := Run(ctx, []string{"--home", home, "validate", "rut", "11.111.111-1"}); code != 1 {
		t.Errorf("all-same body: got exit code %d, want 1", code)
	}
	if code := Run(ctx, []string{"--home", home, "validate", "rut", "12.345.678-5"}); code != 0 {
		t.Errorf("valid rut: got exit code %d", code)
	}
}

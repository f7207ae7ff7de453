package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewRootCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()

	if cmd.Use != "netmeter" {
		t.Errorf("expected use 'netmeter', got %q", cmd.Use)
	}

	subcommands := map[string]bool{}
	for _, sub := range cmd.Commands() {
		subcommands[strings.Fields(sub.Use)[0]] = true
	}
	for _, want := range []string{"probe", "serve", "version"} {
		if !subcommands[want] {
			t.Errorf("expected subcommand %q", want)
		}
	}
}

func TestVersionCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "netmeter version") {
		t.Errorf("unexpected version output %q", out.String())
	}
}

func TestProbeFlagValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "json and markdown conflict",
			args: []string{"probe", "--json", "--markdown", "http://example.com"},
			want: "mutually exclusive",
		},
		{
			name: "prefix without host",
			args: []string{"probe", "--prefix", "mirror", "http://example.com"},
			want: "--prefix requires --host",
		},
		{
			name: "zero workers",
			args: []string{"probe", "-w", "0", "http://example.com"},
			want: "--workers must be at least 1",
		},
		{
			name: "missing page URL",
			args: []string{"probe"},
			want: "arg",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cmd := NewRootCmd()
			cmd.SetOut(new(bytes.Buffer))
			cmd.SetErr(new(bytes.Buffer))
			cmd.SetArgs(tt.args)

			err := cmd.Execute()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

package main

import (
	"flag"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagSet_ExplicitZero(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want bool
	}{
		{"zero seed", []string{"-seed", "0"}, true},
		{"other seed", []string{"-seed=7"}, true},
		{"unset", []string{"-samples", "3"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := flag.NewFlagSet("generate", flag.ContinueOnError)
			fs.SetOutput(io.Discard)
			fs.Int64("seed", 0, "")
			fs.Int("samples", 0, "")
			require.NoError(t, fs.Parse(tt.args))
			assert.Equal(t, tt.want, flagSet(fs, "seed"))
		})
	}
}

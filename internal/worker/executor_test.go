package worker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecExecutor(t *testing.T) {
	t.Run("runs the command to completion", func(t *testing.T) {
		e := NewExecExecutor([]string{"true"}, "")
		assert.NoError(t, e.Start(context.Background(), ""))
	})

	t.Run("reports command failure", func(t *testing.T) {
		e := NewExecExecutor([]string{"false"}, "")
		assert.Error(t, e.Start(context.Background(), ""))
	})

	t.Run("reports missing binary", func(t *testing.T) {
		e := NewExecExecutor([]string{"definitely-not-a-real-binary"}, "")
		assert.Error(t, e.Start(context.Background(), ""))
	})

	t.Run("rejects empty command", func(t *testing.T) {
		e := NewExecExecutor(nil, "")
		assert.Error(t, e.Start(context.Background(), ""))
	})

	t.Run("appends the prompt as final argument", func(t *testing.T) {
		dir := t.TempDir()
		out := filepath.Join(dir, "args.txt")
		script := filepath.Join(dir, "echo-args.sh")
		require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho \"$@\" > "+out+"\n"), 0755))

		e := NewExecExecutor([]string{script, "--flag"}, dir)
		require.NoError(t, e.Start(context.Background(), "keep going"))

		data, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.Equal(t, "--flag keep going\n", string(data))
	})

	t.Run("context cancellation kills the worker", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		e := NewExecExecutor([]string{"sleep", "30"}, "")
		start := time.Now()
		err := e.Start(ctx, "")
		assert.Error(t, err)
		assert.Less(t, time.Since(start), 10*time.Second)
	})
}

package middleware

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vango-dev/cells/pkg/cell"
)

func TestFormatGraph(t *testing.T) {
	motor := cell.NewObject("motor")
	tire := cell.NewObject("tire")
	speed := cell.Of[int](motor, "speed")
	speed.Set(1)
	cell.Of[int](motor, "rpm").Calculate(func() int { return speed.Get() * 60 })
	cell.Of[int](tire, "pressure").Calculate(func() int { return 30 - speed.Get() })

	out := FormatGraph(motor, tire, motor, nil)

	require.Equal(t, 1, strings.Count(out, motor.String()+"\n"), "duplicate owners should be skipped")
	require.Contains(t, out, "  speed\n")
	require.Contains(t, out, "    ├─> "+motor.String()+".rpm\n")
	require.Contains(t, out, "    └─> "+tire.String()+".pressure\n")
	require.Contains(t, out, tire.String()+"\n  (no dependents)\n")
}

func TestGraphDebugLogsOnPanic(t *testing.T) {
	var buf bytes.Buffer
	ext := NewGraphDebug(slog.NewTextHandler(&buf, nil))
	rt := cell.NewRuntime(cell.WithExtensions(ext))

	motor := rt.NewObject("motor")
	speed := cell.Of[int](motor, "speed")
	speed.Set(1)
	cell.Of[int](motor, "rpm").Calculate(func() int {
		if speed.Get() > 100 {
			panic("overspeed")
		}
		return speed.Get() * 60
	})
	require.Empty(t, buf.String())

	require.Error(t, cell.Catch(func() { speed.Set(500) }))

	out := buf.String()
	require.Contains(t, out, "Formula Panic")
	require.Contains(t, out, "overspeed")
	require.Contains(t, out, motor.String()+".rpm")

	ext.mu.Lock()
	require.Empty(t, ext.stack, "run stack should be unwound")
	ext.mu.Unlock()
}

package queue_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tubeworker/pkg/queue"
)

func TestResolveVerdict(t *testing.T) {
	t.Parallel()

	pri := uint32(7)
	tests := []struct {
		name string
		raw  any
		want queue.Verdict
	}{
		{"nil", nil, queue.Bury()},
		{"empty list", []any{}, queue.Bury()},
		{"empty string list", []string{}, queue.Bury()},
		{"delete string", "delete", queue.Delete()},
		{"release string", "release", queue.Release(0)},
		{"bury string", "bury", queue.Bury()},
		{"case insensitive", " DELETE ", queue.Delete()},
		{"unknown string", "archive", queue.Bury()},
		{"single element list", []any{"delete"}, queue.Delete()},
		{"string list", []string{"release"}, queue.Release(0)},
		{"release with delay seconds", []any{"release", map[string]any{"delay": float64(5)}}, queue.Release(5 * time.Second)},
		{"release with duration string", []any{"release", map[string]any{"delay": "1m"}}, queue.Release(time.Minute)},
		{"release with priority", []any{"release", map[string]any{"priority": 7, "delay": 2}}, queue.ReleaseWithPriority(7, 2*time.Second)},
		{"release ignores bad options", []any{"release", "soon"}, queue.Release(0)},
		{"non string action", []any{42}, queue.Bury()},
		{"delete ignores options", []any{"delete", map[string]any{"delay": 3}}, queue.Delete()},
		{"verdict value", queue.Verdict{Action: queue.ActionRelease, Release: queue.ReleaseOptions{Priority: &pri}}, queue.ReleaseWithPriority(7, 0)},
		{"unknown action value", queue.Verdict{Action: queue.Action(99)}, queue.Bury()},
		{"zero verdict", queue.Verdict{}, queue.Bury()},
		{"nil verdict pointer", (*queue.Verdict)(nil), queue.Bury()},
		{"action", queue.ActionDelete, queue.Delete()},
		{"unsupported type", 3.14, queue.Bury()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := queue.ResolveVerdict(tt.raw)
			assert.Equal(t, tt.want.Action, got.Action)
			assert.Equal(t, tt.want.Release.Delay, got.Release.Delay)
			if tt.want.Release.Priority == nil {
				assert.Nil(t, got.Release.Priority)
			} else {
				require.NotNil(t, got.Release.Priority)
				assert.Equal(t, *tt.want.Release.Priority, *got.Release.Priority)
			}
		})
	}
}

func TestAction(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "delete", queue.ActionDelete.String())
	assert.Equal(t, "release", queue.ActionRelease.String())
	assert.Equal(t, "bury", queue.ActionBury.String())
	assert.Equal(t, "action(9)", queue.Action(9).String())

	a, ok := queue.ParseAction("release")
	assert.True(t, ok)
	assert.Equal(t, queue.ActionRelease, a)

	a, ok = queue.ParseAction("nope")
	assert.False(t, ok)
	assert.Equal(t, queue.ActionBury, a)

	assert.Equal(t, queue.ActionBury, queue.Verdict{}.Action)
}

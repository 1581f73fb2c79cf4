package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testState struct {
	Graph  string   `json:"graph"`
	Values []string `json:"values"`
}

var (
	_ Store[testState] = (*MemStore[testState])(nil)
	_ Store[testState] = (*SQLiteStore[testState])(nil)
	_ Store[testState] = (*MySQLStore[testState])(nil)
)

// runStoreSuite checks the behavior every Store implementation shares.
// runID keeps suites against a shared database apart.
func runStoreSuite(t *testing.T, st Store[testState], runID string) {
	t.Helper()
	ctx := context.Background()

	t.Run("empty run", func(t *testing.T) {
		_, _, err := st.LoadLatest(ctx, runID+"-missing")
		assert.ErrorIs(t, err, ErrNotFound)

		steps, err := st.LoadSteps(ctx, runID+"-missing")
		require.NoError(t, err)
		assert.Empty(t, steps)
	})

	t.Run("journal", func(t *testing.T) {
		require.NoError(t, st.SaveStep(ctx, runID, 2, "steady", testState{Graph: "steady", Values: []string{"b"}}))
		require.NoError(t, st.SaveStep(ctx, runID, 1, "setup", testState{Graph: "setup", Values: []string{"a"}}))
		require.NoError(t, st.SaveStep(ctx, runID, 3, "cleanup", testState{Graph: "cleanup"}))

		state, step, err := st.LoadLatest(ctx, runID)
		require.NoError(t, err)
		assert.Equal(t, 3, step)
		assert.Equal(t, "cleanup", state.Graph)

		steps, err := st.LoadSteps(ctx, runID)
		require.NoError(t, err)
		require.Len(t, steps, 3)
		assert.Equal(t, []int{1, 2, 3}, []int{steps[0].Step, steps[1].Step, steps[2].Step})
		assert.Equal(t, "setup", steps[0].Graph)
		assert.Equal(t, []string{"b"}, steps[1].State.Values)
	})

	t.Run("step overwrite", func(t *testing.T) {
		id := runID + "-overwrite"
		require.NoError(t, st.SaveStep(ctx, id, 1, "setup", testState{Graph: "first"}))
		require.NoError(t, st.SaveStep(ctx, id, 1, "setup", testState{Graph: "second"}))

		steps, err := st.LoadSteps(ctx, id)
		require.NoError(t, err)
		require.Len(t, steps, 1)
		assert.Equal(t, "second", steps[0].State.Graph)
	})

	t.Run("checkpoint", func(t *testing.T) {
		cp := runID + "-cp"
		_, _, err := st.LoadCheckpoint(ctx, cp)
		assert.True(t, errors.Is(err, ErrNotFound))

		require.NoError(t, st.SaveCheckpoint(ctx, cp, testState{Graph: "steady"}, 4))
		require.NoError(t, st.SaveCheckpoint(ctx, cp, testState{Graph: "cleanup"}, 5))

		state, step, err := st.LoadCheckpoint(ctx, cp)
		require.NoError(t, err)
		assert.Equal(t, 5, step)
		assert.Equal(t, "cleanup", state.Graph)
	})

	t.Run("concurrent writers", func(t *testing.T) {
		id := runID + "-concurrent"
		var wg sync.WaitGroup
		for i := 1; i <= 8; i++ {
			wg.Add(1)
			go func(step int) {
				defer wg.Done()
				assert.NoError(t, st.SaveStep(ctx, id, step, "steady", testState{}))
			}(i)
		}
		wg.Wait()

		steps, err := st.LoadSteps(ctx, id)
		require.NoError(t, err)
		assert.Len(t, steps, 8)
	})
}

package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elektrokombinacija/skymind-sim/internal/mapio"
)

func TestGenerateMapRoundTrip(t *testing.T) {
	for _, layers := range []int{1, 3} {
		params := MapParams{
			Seed: 7, NumAgents: 8, Width: 16, Height: 12, Layers: layers,
			ObstacleDensity: 0.2, Towers: 2, ReleaseSpread: 5, Speed: 1.5,
		}
		doc, err := generateMap(params)
		require.NoError(t, err)
		require.Len(t, doc.Agents, 8)

		data, err := json.Marshal(doc)
		require.NoError(t, err)
		desc, err := mapio.ParseJSON(data)
		require.NoError(t, err)
		grid, agents, err := desc.Build()
		require.NoError(t, err)

		starts := make(map[string]bool)
		for _, a := range agents {
			require.NotNil(t, a.Goal)
			assert.True(t, grid.IsFree(a.Start), "start of %s", a.ID)
			assert.True(t, grid.IsFree(*a.Goal), "goal of %s", a.ID)
			assert.NotEqual(t, a.Start, *a.Goal)
			assert.False(t, starts[a.Start.String()], "shared start %v", a.Start)
			starts[a.Start.String()] = true
			assert.GreaterOrEqual(t, a.ReleaseAt, 0.0)
			assert.Less(t, a.ReleaseAt, 5.01)
		}
	}
}

func TestGenerateMapDeterministic(t *testing.T) {
	params := MapParams{Seed: 42, NumAgents: 5, Width: 10, Height: 10, Layers: 1, ObstacleDensity: 0.1, Towers: 1}
	a, err := generateMap(params)
	require.NoError(t, err)
	b, err := generateMap(params)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestGenerateMapTooCrowded(t *testing.T) {
	_, err := generateMap(MapParams{Seed: 1, NumAgents: 10, Width: 4, Height: 4, Layers: 1})
	assert.Error(t, err)
}

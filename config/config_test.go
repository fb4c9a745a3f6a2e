package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/brensch/hypersonic/planner"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	require.Len(t, cfg.Profiles, 3)
	require.Equal(t, 2, cfg.Contest.GamePool)
	require.Equal(t, 3, cfg.Contest.MatchPool)
	require.Equal(t, 200, cfg.Contest.MaxRounds)
	require.Len(t, cfg.Entrants(), 3)
}

func TestLoad_File(t *testing.T) {
	doc := `
profiles:
  - name: deep
    genetic:
      gene_length: 8
      population: 80
  - name: tuned
    evaluator: explorer
    weights:
      alive: 100
      mobility: 3
  - name: quick
    kind: greedy
    horizon: 4
contest:
  profiles: [deep, quick]
  grids: [GRID_2]
  replicates: 2
  round_budget: 40ms
`
	path := filepath.Join(t.TempDir(), "hypersonic.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	deep, ok := cfg.Profile("deep")
	require.True(t, ok)
	require.Equal(t, KindGenetic, deep.Kind)
	require.Equal(t, 8, deep.Genetic.GeneLength)
	require.Equal(t, 80, deep.Genetic.Population)
	require.Equal(t, 5, deep.Genetic.Generations, "unset fields keep defaults")
	require.Equal(t, 0.7, deep.Genetic.CrossoverRate)

	tuned, _ := cfg.Profile("tuned")
	require.Equal(t, &planner.Weights{Alive: 100, Mobility: 3}, tuned.Weights)

	quick, _ := cfg.Profile("quick")
	require.Equal(t, KindGreedy, quick.Kind)
	require.Equal(t, 4, quick.Horizon)

	require.Equal(t, []string{"GRID_2"}, cfg.Contest.Grids)
	require.Equal(t, 2, cfg.Contest.Replicates)
	require.Equal(t, 40*time.Millisecond, cfg.Contest.RoundBudget)
	require.Equal(t, 3, cfg.Contest.MatchPool, "unset contest fields keep defaults")

	entrants := cfg.Entrants()
	require.Len(t, entrants, 2)
	require.Equal(t, "deep", entrants[0].Name)
	require.Equal(t, "quick", entrants[1].Name)
}

func TestParse_Invalid(t *testing.T) {
	tests := map[string]string{
		"unknown kind":      "profiles: [{name: a, kind: neural}]",
		"unknown evaluator": "profiles: [{name: a, evaluator: oracle}]",
		"duplicate":         "profiles: [{name: a}, {name: a}]",
		"no name":           "profiles: [{kind: greedy}]",
		"bad population":    "profiles: [{name: a, genetic: {population: 1}}]",
		"bad rate":          "profiles: [{name: a, genetic: {mutation_rate: 2}}]",
		"unknown entrant":   "contest: {profiles: [nobody]}",
		"no replicates":     "contest: {replicates: 0}",
		"no pool":           "contest: {game_pool: 0}",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.ErrorIs(t, err, ErrInvalid)
		})
	}

	_, err := Parse([]byte("profiles: ["))
	require.Error(t, err)
}

func TestProfile_NewDecider(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	for _, p := range cfg.Profiles {
		d, err := p.NewDecider(7, nil)
		require.NoError(t, err, p.Name)
		switch p.Kind {
		case KindGreedy:
			require.IsType(t, planner.Greedy{}, d)
		case KindGenetic:
			gp, ok := d.(*planner.Planner)
			require.True(t, ok)
			require.Equal(t, int64(7), gp.Config().Seed)
		}
	}
}

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseConfig() *TournamentConfig {
	return &TournamentConfig{
		Engines:     []EngineSpec{{Path: "a"}, {Path: "b"}},
		Rounds:      1,
		Games:       1,
		Concurrency: 1,
		BoardSize:   15,
		Rule:        "freestyle",
	}
}

func TestValidateRequiresTwoEngines(t *testing.T) {
	c := baseConfig()
	c.Engines = c.Engines[:1]
	assert.Error(t, c.Validate())
}

func TestValidateRejectsUnknownRule(t *testing.T) {
	c := baseConfig()
	c.Rule = "gungi"
	assert.Error(t, c.Validate())
}

func TestValidateRejectsSmallBoard(t *testing.T) {
	c := baseConfig()
	c.BoardSize = 3
	assert.Error(t, c.Validate())
}

func TestValidateRejectsSPRTAlphaBetaOutOfRange(t *testing.T) {
	c := baseConfig()
	c.SPRT = &SPRTParams{Elo0: 0, Elo1: 10, Alpha: 1.5, Beta: 0.05}
	assert.Error(t, c.Validate())
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	c := baseConfig()
	assert.NoError(t, c.Validate())
}

func TestJSONRoundTrip(t *testing.T) {
	c := baseConfig()
	c.SPRT = &SPRTParams{Elo0: 0, Elo1: 10, Alpha: 0.05, Beta: 0.05}
	c.Sample = SampleConfig{File: "out.smp", Format: "csv", Compress: true}

	data, err := c.ToJSON()
	require.NoError(t, err)

	round, err := FromJSON(data)
	require.NoError(t, err)

	assert.Equal(t, c.Engines, round.Engines)
	assert.Equal(t, c.Rounds, round.Rounds)
	assert.Equal(t, c.Rule, round.Rule)
	require.NotNil(t, round.SPRT)
	assert.Equal(t, *c.SPRT, *round.SPRT)
	assert.Equal(t, c.Sample, round.Sample)
}

func TestParseEngineSpec(t *testing.T) {
	spec, err := parseEngineSpec("path=./engine,name=Foo,tc=5000,tm=180000,inc=10,depth=12,nodes=100000,threads=4,mem=268435456,tol=100,custom=xyz")
	require.NoError(t, err)
	assert.Equal(t, "./engine", spec.Path)
	assert.Equal(t, "Foo", spec.DisplayName)
	assert.Equal(t, int64(5000), spec.TimeoutTurnMS)
	assert.Equal(t, int64(180000), spec.TimeoutMatchMS)
	assert.Equal(t, int64(10), spec.IncrementMS)
	assert.Equal(t, 12, spec.DepthLimit)
	assert.Equal(t, int64(100000), spec.NodeLimit)
	assert.Equal(t, 4, spec.Threads)
	assert.Equal(t, int64(268435456), spec.MemoryCapByte)
	assert.Equal(t, int64(100), spec.ToleranceMS)
	assert.Equal(t, "xyz", spec.ExtraOptions["custom"])
}

func TestParseEngineSpecEmptyStringIsZeroValue(t *testing.T) {
	spec, err := parseEngineSpec("")
	require.NoError(t, err)
	assert.Equal(t, EngineSpec{ExtraOptions: map[string]string{}}, spec)
}

func TestParseEngineSpecRejectsMalformedToken(t *testing.T) {
	_, err := parseEngineSpec("path")
	assert.Error(t, err)
}

func TestMergeEngineSpecOverrideWins(t *testing.T) {
	base := EngineSpec{Path: "base", TimeoutTurnMS: 1000, ExtraOptions: map[string]string{"k": "base"}}
	override := EngineSpec{Path: "override", ExtraOptions: map[string]string{"k": "override"}}

	merged := mergeEngineSpec(base, override)
	assert.Equal(t, "override", merged.Path)
	assert.Equal(t, int64(1000), merged.TimeoutTurnMS, "override left this field zero, base should survive")
	assert.Equal(t, "override", merged.ExtraOptions["k"])
}

func TestLoadParsesEngineFlagsAndValidates(t *testing.T) {
	cfg, err := Load([]string{
		"-each", "tc=5000,tm=180000",
		"-engine", "path=/bin/engineA,name=Alpha",
		"-engine", "path=/bin/engineB,name=Beta",
		"-boardsize", "15",
		"-rule", "standard",
	})
	require.NoError(t, err)
	require.Len(t, cfg.Engines, 2)
	assert.Equal(t, "Alpha", cfg.Engines[0].DisplayName)
	assert.Equal(t, int64(5000), cfg.Engines[0].TimeoutTurnMS, "each's tc should apply to every engine")
	assert.Equal(t, "Beta", cfg.Engines[1].DisplayName)
	assert.Equal(t, "standard", cfg.Rule)
}

func TestLoadFailsValidationWithOneEngine(t *testing.T) {
	_, err := Load([]string{"-engine", "path=/bin/engineA"})
	assert.Error(t, err)
}

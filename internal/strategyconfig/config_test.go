package strategyconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis/v13/screener/internal/contracts"
)

func TestLoadDefault(t *testing.T) {
	cfg, raw, err := LoadDefault()
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	assert.Equal(t, "daily_screener", cfg.Meta.StrategyID)
	assert.Equal(t, 90, cfg.Taxonomy.StructuralCap)
	assert.Equal(t, 10, cfg.Taxonomy.AuxiliaryCap)
	assert.Len(t, cfg.Taxonomy.Tags, 11)
	assert.Equal(t, 70, cfg.Momentum.MinScore)
	assert.Equal(t, 60, cfg.Structural.MinScore)
	assert.Equal(t, 100, CapSum(cfg.Momentum.Buckets))

	// veto 태그는 namespace 기본값 explanatory
	veto, ok := cfg.Taxonomy.Rule("LOW_LIQUIDITY")
	require.True(t, ok)
	assert.Equal(t, ClassVeto, veto.Class)
	assert.Equal(t, NamespaceExplanatory, veto.Namespace)

	breakout, ok := cfg.Taxonomy.Rule("BREAKOUT")
	require.True(t, ok)
	assert.Equal(t, NamespaceEvent, breakout.Namespace)

	assert.Empty(t, Warn(cfg))
}

func TestHashDeterministic(t *testing.T) {
	cfg, _, err := LoadDefault()
	require.NoError(t, err)

	hash, err := Hash(cfg)
	require.NoError(t, err)
	assert.Len(t, hash, 64)

	// 동일 설정 → 동일 해시
	hash2, _ := Hash(cfg)
	assert.Equal(t, hash, hash2)

	tag := VersionTag(cfg)
	assert.True(t, strings.HasPrefix(tag, "daily_screener@1.0.0#"))
	assert.Equal(t, hash[:12], tag[strings.Index(tag, "#")+1:])

	cfg.Taxonomy.Tags[0].Points = 25
	hash3, _ := Hash(cfg)
	assert.NotEqual(t, hash, hash3)
}

func TestLoadFromFile(t *testing.T) {
	cfg, raw, err := LoadDefault()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "strategy.yaml")
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	loaded, _, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, VersionTag(cfg), VersionTag(loaded))

	_, _, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	kind, ok := contracts.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, contracts.KindConfiguration, kind)
}

func TestParseRejects(t *testing.T) {
	base := `
meta:
  strategy_id: test
  version: "0.1"
taxonomy:
  structural_cap: %CAP%
  auxiliary_cap: 10
  tags:
    - name: VOLUME_SPIKE
      class: structural
      points: 30
      when:
        - { feature: %FEATURE%, op: "%OP%", value: 1.5 }
momentum:
  buckets:
    - name: trend
      cap: 40
      steps:
        - { feature: momentum_20d, op: ">", value: 20, points: 40 }
`
	build := func(cap, feature, op string) []byte {
		r := strings.NewReplacer("%CAP%", cap, "%FEATURE%", feature, "%OP%", op)
		return []byte(r.Replace(base))
	}

	tests := []struct {
		name    string
		data    []byte
		wantErr string
	}{
		{"valid", build("90", "volume_ratio", ">"), ""},
		{"caps over 100", build("95", "volume_ratio", ">"), "auxiliary_cap must be <= 100"},
		{"unknown feature", build("90", "volume_ratioo", ">"), "unknown feature"},
		{"unsupported op", build("90", "volume_ratio", "!="), "unsupported op"},
		{"unknown field", append(build("90", "volume_ratio", ">"), []byte("extra: 1\n")...), "decode"},
		{"missing meta", []byte("taxonomy:\n  tags: []\n"), "StrategyID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse("test.yaml", tt.data)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, 70, cfg.Momentum.MinScore) // default
				assert.Equal(t, 5.0, cfg.Momentum.StopPct)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.True(t, IsConfigurationError(err))
		})
	}
}

func TestValidateRules(t *testing.T) {
	valid := func() *Config {
		cfg, _, err := LoadDefault()
		require.NoError(t, err)
		return cfg
	}

	t.Run("veto with points", func(t *testing.T) {
		cfg := valid()
		for i := range cfg.Taxonomy.Tags {
			if cfg.Taxonomy.Tags[i].Class == ClassVeto {
				cfg.Taxonomy.Tags[i].Points = 5
				break
			}
		}
		assert.ErrorContains(t, Validate(cfg), "veto tags carry no points")
	})

	t.Run("duplicate name", func(t *testing.T) {
		cfg := valid()
		cfg.Taxonomy.Tags = append(cfg.Taxonomy.Tags, cfg.Taxonomy.Tags[0])
		assert.ErrorContains(t, Validate(cfg), "duplicate tag name")
	})

	t.Run("momentum caps over 100", func(t *testing.T) {
		cfg := valid()
		cfg.Momentum.Buckets[0].Cap = 50
		assert.ErrorContains(t, Validate(cfg), "caps must sum to <= 100")
	})

	t.Run("momentum tag outside taxonomy", func(t *testing.T) {
		cfg := valid()
		cfg.Momentum.Tags[0].Name = "ROCKET"
		assert.ErrorContains(t, Validate(cfg), "not in the taxonomy")
	})

	t.Run("aux points above cap", func(t *testing.T) {
		cfg := valid()
		for i := range cfg.Taxonomy.Tags {
			if cfg.Taxonomy.Tags[i].Class == ClassAuxiliary {
				cfg.Taxonomy.Tags[i].Points = 15
				break
			}
		}
		assert.ErrorContains(t, Validate(cfg), "exceeds auxiliary_cap")
	})
}

func TestWarn(t *testing.T) {
	cfg, _, err := LoadDefault()
	require.NoError(t, err)

	cfg.Taxonomy.AuxiliaryCap = 5
	cfg.Taxonomy.StructuralCap = 95
	codes := []string{}
	for _, w := range Warn(cfg) {
		codes = append(codes, w.Code)
	}
	assert.Contains(t, codes, "AUX_CAP_RANGE")
	assert.Contains(t, codes, "STRUCTURAL_CAP_UNREACHABLE")
}

func TestConditionEvaluate(t *testing.T) {
	fv := &contracts.FeatureVector{Close: 10, VolumeRatio: 1.5, SqueezeRelease: true}

	tests := []struct {
		cond Condition
		want bool
	}{
		{Condition{"volume_ratio", ">", 1.5}, false},
		{Condition{"volume_ratio", ">=", 1.5}, true},
		{Condition{"close", "<", 5}, false},
		{Condition{"close", "<=", 10}, true},
		{Condition{"squeeze_release", "==", 1}, true},
		{Condition{"nope", ">", 0}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.cond.Evaluate(fv), "%s %s %v", tt.cond.Feature, tt.cond.Op, tt.cond.Value)
	}

	assert.True(t, AllMatch(nil, fv))
	assert.False(t, AllMatch([]Condition{{"close", ">", 5}, {"close", ">", 20}}, fv))
}

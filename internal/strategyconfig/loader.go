package strategyconfig

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/wonny/aegis/v13/screener/internal/contracts"
)

//go:embed default_strategy.yaml
var defaultStrategyYAML []byte

// DefaultSource is the source name reported for the embedded strategy
const DefaultSource = "embedded:default_strategy.yaml"

var validate = validator.New()

// Load reads YAML file and returns Config with raw bytes.
// Every failure is a fatal CONFIGURATION error.
func Load(path string) (*Config, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, contracts.ConfigurationError(path, err)
	}

	cfg, err := Parse(path, data)
	if err != nil {
		return nil, data, err
	}
	return cfg, data, nil
}

// LoadDefault returns the embedded strategy
func LoadDefault() (*Config, []byte, error) {
	cfg, err := Parse(DefaultSource, defaultStrategyYAML)
	if err != nil {
		return nil, defaultStrategyYAML, err
	}
	return cfg, defaultStrategyYAML, nil
}

// LoadOrDefault loads path, or the embedded strategy when path is empty
func LoadOrDefault(path string) (*Config, []byte, error) {
	if path == "" {
		return LoadDefault()
	}
	return Load(path)
}

// Parse decodes and validates strategy YAML.
// SSOT 핵심: KnownFields(true)로 오타/미사용 필드 즉시 실패
func Parse(source string, data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // 알 수 없는 필드 발견 시 에러 반환
	if err := dec.Decode(&cfg); err != nil {
		return nil, contracts.ConfigurationError(source, fmt.Errorf("decode: %w", err))
	}

	// default 태그 → 누락 필드 채움
	if err := defaults.Set(&cfg); err != nil {
		return nil, contracts.ConfigurationError(source, fmt.Errorf("defaults: %w", err))
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, contracts.ConfigurationError(source, err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, contracts.ConfigurationError(source, err)
	}

	return &cfg, nil
}

// Hash generates SHA256 hash from Config (canonical JSON)
// 주의: map 대신 struct 사용으로 해시 재현성 보장
func Hash(cfg *Config) (string, error) {
	jsonBytes, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}

// VersionTag identifies the strategy in reports: "<id>@<version>#<hash12>"
func VersionTag(cfg *Config) string {
	hash, err := Hash(cfg)
	if err != nil || len(hash) < 12 {
		return fmt.Sprintf("%s@%s", cfg.Meta.StrategyID, cfg.Meta.Version)
	}
	return fmt.Sprintf("%s@%s#%s", cfg.Meta.StrategyID, cfg.Meta.Version, hash[:12])
}

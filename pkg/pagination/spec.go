package pagination

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Spec is the flat configuration form used in YAML/JSON files, CLI flags and
// HTTP payloads. Config converts it to the typed variant for its strategy.
type Spec struct {
	Strategy  Strategy `yaml:"strategy" json:"strategy" mapstructure:"strategy"`
	ItemsPath string   `yaml:"itemsPath" json:"itemsPath" mapstructure:"itemsPath"`
	PageSize  int      `yaml:"pageSize,omitempty" json:"pageSize,omitempty" mapstructure:"pageSize"`
	MaxPages  int      `yaml:"maxPages,omitempty" json:"maxPages,omitempty" mapstructure:"maxPages"`

	OffsetResponsePath string `yaml:"offsetResponsePath,omitempty" json:"offsetResponsePath,omitempty" mapstructure:"offsetResponsePath"`
	OffsetQueryParam   string `yaml:"offsetQueryParam,omitempty" json:"offsetQueryParam,omitempty" mapstructure:"offsetQueryParam"`
	PageSizeParam      string `yaml:"pageSizeParam,omitempty" json:"pageSizeParam,omitempty" mapstructure:"pageSizeParam"`

	CursorPath       string `yaml:"cursorPath,omitempty" json:"cursorPath,omitempty" mapstructure:"cursorPath"`
	CursorQueryParam string `yaml:"cursorQueryParam,omitempty" json:"cursorQueryParam,omitempty" mapstructure:"cursorQueryParam"`
	LimitParam       string `yaml:"limitParam,omitempty" json:"limitParam,omitempty" mapstructure:"limitParam"`

	PerPageParam string `yaml:"perPageParam,omitempty" json:"perPageParam,omitempty" mapstructure:"perPageParam"`

	TokenPath   string `yaml:"tokenPath,omitempty" json:"tokenPath,omitempty" mapstructure:"tokenPath"`
	HasMorePath string `yaml:"hasMorePath,omitempty" json:"hasMorePath,omitempty" mapstructure:"hasMorePath"`
}

// ErrUnknownStrategy is returned for a Spec whose strategy is not one of the four supported values.
var ErrUnknownStrategy = errors.New("unknown pagination strategy")

// Config returns the typed configuration described by s.
// Fields that do not belong to the selected strategy are ignored.
func (s Spec) Config() (Config, error) {
	opts := Options{ItemsPath: s.ItemsPath, PageSize: s.PageSize, MaxPages: s.MaxPages}

	switch s.Strategy {
	case StrategyOffset:
		return OffsetConfig{
			Options:            opts,
			OffsetResponsePath: s.OffsetResponsePath,
			OffsetQueryParam:   s.OffsetQueryParam,
			PageSizeParam:      s.PageSizeParam,
		}, nil
	case StrategyCursor:
		return CursorConfig{
			Options:          opts,
			CursorPath:       s.CursorPath,
			CursorQueryParam: s.CursorQueryParam,
			LimitParam:       s.LimitParam,
		}, nil
	case StrategyLinkHeader:
		return LinkHeaderConfig{Options: opts, PerPageParam: s.PerPageParam}, nil
	case StrategyToken:
		if s.TokenPath == "" || s.HasMorePath == "" {
			return nil, ErrTokenPathsRequired
		}
		return TokenConfig{Options: opts, TokenPath: s.TokenPath, HasMorePath: s.HasMorePath}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, s.Strategy)
	}
}

// DecodeSpec decodes a YAML (or JSON) document without validating it, so
// that callers can merge further settings before calling Config.
func DecodeSpec(data []byte) (Spec, error) {
	var s Spec
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Spec{}, fmt.Errorf("parsing pagination spec: %w", err)
	}
	return s, nil
}

// ParseSpec decodes a YAML (or JSON) document into a typed Config.
func ParseSpec(data []byte) (Config, error) {
	s, err := DecodeSpec(data)
	if err != nil {
		return nil, err
	}
	return s.Config()
}

// SpecOf returns the flat form of cfg.
func SpecOf(cfg Config) Spec {
	switch c := cfg.(type) {
	case OffsetConfig:
		return Spec{
			Strategy: StrategyOffset, ItemsPath: c.ItemsPath, PageSize: c.PageSize, MaxPages: c.MaxPages,
			OffsetResponsePath: c.OffsetResponsePath, OffsetQueryParam: c.OffsetQueryParam, PageSizeParam: c.PageSizeParam,
		}
	case CursorConfig:
		return Spec{
			Strategy: StrategyCursor, ItemsPath: c.ItemsPath, PageSize: c.PageSize, MaxPages: c.MaxPages,
			CursorPath: c.CursorPath, CursorQueryParam: c.CursorQueryParam, LimitParam: c.LimitParam,
		}
	case LinkHeaderConfig:
		return Spec{
			Strategy: StrategyLinkHeader, ItemsPath: c.ItemsPath, PageSize: c.PageSize, MaxPages: c.MaxPages,
			PerPageParam: c.PerPageParam,
		}
	case TokenConfig:
		return Spec{
			Strategy: StrategyToken, ItemsPath: c.ItemsPath, PageSize: c.PageSize, MaxPages: c.MaxPages,
			TokenPath: c.TokenPath, HasMorePath: c.HasMorePath,
		}
	}
	return Spec{}
}

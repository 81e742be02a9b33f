package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ExtractionConfig tunes the acceptance check and external call budget of the extraction engine.
type ExtractionConfig struct {
	RequiredKeys    []string      `mapstructure:"requiredKeys" validate:"min=1,dive,required"`
	NumericKeys     []string      `mapstructure:"numericKeys" validate:"dive,required"`
	PreviewLength   int           `mapstructure:"previewLength" validate:"gt=0"`
	Timeout         time.Duration `mapstructure:"timeout" validate:"gt=0"`
	MaxOutputTokens int32         `mapstructure:"maxOutputTokens" validate:"gt=0"`
}

func DefaultExtractionConfig() ExtractionConfig {
	return ExtractionConfig{
		RequiredKeys:    []string{"vendor_name", "invoice_number"},
		NumericKeys:     []string{"total_amount", "tax_amount", "subtotal"},
		PreviewLength:   1000,
		Timeout:         60 * time.Second,
		MaxOutputTokens: 2000,
	}
}

type ExtractionConfigHolder struct {
	current atomic.Value // holds ExtractionConfig
}

// NewStaticExtractionConfigHolder pins a config without file watching.
func NewStaticExtractionConfigHolder(cfg ExtractionConfig) *ExtractionConfigHolder {
	holder := &ExtractionConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewExtractionConfigHolder() (*ExtractionConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("extraction")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/docflow")
	v.AddConfigPath(".")

	v.SetEnvPrefix("DOCFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultExtractionConfig()
	v.SetDefault("extraction.requiredKeys", defaults.RequiredKeys)
	v.SetDefault("extraction.numericKeys", defaults.NumericKeys)
	v.SetDefault("extraction.previewLength", defaults.PreviewLength)
	v.SetDefault("extraction.timeout", defaults.Timeout)
	v.SetDefault("extraction.maxOutputTokens", defaults.MaxOutputTokens)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileLoaded = false
	}

	cfg, err := decodeExtractionConfig(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticExtractionConfigHolder(cfg)
	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeExtractionConfig(v)
		if err != nil {
			log.Printf("[extraction-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[extraction-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *ExtractionConfigHolder) Get() ExtractionConfig {
	if h == nil {
		return DefaultExtractionConfig()
	}
	cfg, ok := h.current.Load().(ExtractionConfig)
	if !ok {
		return DefaultExtractionConfig()
	}
	return cfg
}

func decodeExtractionConfig(v *viper.Viper) (ExtractionConfig, error) {
	// Unmarshal goes through AllSettings so file values merge with per-key defaults.
	var wrapper struct {
		Extraction ExtractionConfig `mapstructure:"extraction"`
	}
	if err := v.Unmarshal(&wrapper); err != nil {
		return ExtractionConfig{}, err
	}
	cfg := wrapper.Extraction
	cfg.RequiredKeys = normalizeKeys(cfg.RequiredKeys)
	cfg.NumericKeys = normalizeKeys(cfg.NumericKeys)
	if err := validator.New().Struct(cfg); err != nil {
		return ExtractionConfig{}, err
	}
	return cfg, nil
}

func normalizeKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/DaveSmith227/vizspec/pkg/models"
)

// BatchFile is the batch validation configuration supplied to
// `vizspec batch`. The file is JSON.
type BatchFile struct {
	// BaseURL is prepended to every page path.
	BaseURL string `mapstructure:"baseUrl"`
	// Pages lists the pages to validate.
	Pages []BatchPage `mapstructure:"pages"`
	// Viewports lists capture sizes as "WxH" strings. Every page is
	// validated at every viewport.
	Viewports []string `mapstructure:"viewports"`
	// Threshold is the allowed-difference ceiling for every page
	// unless Settings.DefaultThreshold overrides it.
	Threshold float64 `mapstructure:"threshold"`
	// OutputDir receives report and diff artifacts.
	OutputDir string        `mapstructure:"outputDir"`
	Settings  BatchSettings `mapstructure:"settings"`
}

// BatchPage describes one page to validate against its reference image.
type BatchPage struct {
	Path string `mapstructure:"path"`
	Name string `mapstructure:"name"`
	// Selectors optionally narrows the capture to CSS selectors.
	Selectors []string `mapstructure:"selectors"`
	// Variants lists additional states (e.g. "dark", "hover") that
	// have their own reference images named <name>-<variant>.
	Variants []string `mapstructure:"variants"`
}

// BatchSettings holds run-level policy overrides.
type BatchSettings struct {
	DefaultThreshold float64       `mapstructure:"defaultThreshold"`
	Timeout          time.Duration `mapstructure:"timeout"`
	Retries          int           `mapstructure:"retries"`
	Concurrent       int           `mapstructure:"concurrent"`
	EnableCache      *bool         `mapstructure:"enableCache"`
	Headless         *bool         `mapstructure:"headless"`
}

// LoadBatchFile reads and validates a batch configuration file.
// Malformed files are a ConfigurationError: the run aborts before any
// work starts.
func LoadBatchFile(path string) (*BatchFile, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: reading batch config %s: %v", models.ErrConfiguration, path, err)
	}

	bf := &BatchFile{}
	if err := v.Unmarshal(bf); err != nil {
		return nil, fmt.Errorf("%w: unmarshaling batch config: %v", models.ErrConfiguration, err)
	}

	if err := bf.validate(); err != nil {
		return nil, err
	}
	bf.applyDefaults()
	return bf, nil
}

func (bf *BatchFile) validate() error {
	if bf.BaseURL == "" {
		return fmt.Errorf("%w: batch config missing baseUrl", models.ErrConfiguration)
	}
	if len(bf.Pages) == 0 {
		return fmt.Errorf("%w: batch config lists no pages", models.ErrConfiguration)
	}
	for i, p := range bf.Pages {
		if p.Name == "" {
			return fmt.Errorf("%w: page %d missing name", models.ErrConfiguration, i)
		}
	}
	if bf.Threshold < 0 || bf.Threshold > 1 {
		return fmt.Errorf("%w: threshold %v outside 0..1", models.ErrConfiguration, bf.Threshold)
	}
	return nil
}

func (bf *BatchFile) applyDefaults() {
	if len(bf.Viewports) == 0 {
		bf.Viewports = []string{"1280x720"}
	}
	if bf.Threshold == 0 && bf.Settings.DefaultThreshold > 0 {
		bf.Threshold = bf.Settings.DefaultThreshold
	}
	if bf.OutputDir == "" {
		bf.OutputDir = "validation-output"
	}
}

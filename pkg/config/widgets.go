package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/alim08/coin_ticker/pkg/validation"
)

// WidgetSpec mirrors the widget attributes: coin and show.
type WidgetSpec struct {
	Coin string `yaml:"coin" validate:"required,ticker"`
	Show string `yaml:"show" validate:"omitempty,mode"`
}

type widgetFile struct {
	Widgets []WidgetSpec `yaml:"widgets"`
}

// LoadWidgets reads a YAML widget list:
//
//	widgets:
//	  - coin: btc
//	    show: eur
func LoadWidgets(path string) ([]WidgetSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read widgets file: %w", err)
	}
	return ParseWidgets(data)
}

// ParseWidgets decodes and validates a widget list.
func ParseWidgets(data []byte) ([]WidgetSpec, error) {
	var wf widgetFile
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("failed to decode widgets file: %w", err)
	}
	if len(wf.Widgets) == 0 {
		return nil, fmt.Errorf("no widgets configured")
	}
	for i := range wf.Widgets {
		w := &wf.Widgets[i]
		w.Coin = validation.NormalizeSymbol(w.Coin)
		w.Show = validation.SanitizeString(w.Show)
		if errs := validation.ValidateStruct(*w); len(errs) > 0 {
			return nil, fmt.Errorf("widget %d: %w", i, errs)
		}
	}
	return wf.Widgets, nil
}

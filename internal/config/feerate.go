package config

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

var hundred = decimal.NewFromInt(100)

// FeeRate is a fee fraction read from YAML. Both "0.001" and "0.1%" are
// accepted; an empty value means the exchange default.
type FeeRate struct {
	decimal.Decimal
}

func (f *FeeRate) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: fee must be a scalar", node.Line)
	}
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		f.Decimal = decimal.Zero
		return nil
	}
	percent := strings.HasSuffix(raw, "%")
	v, err := decimal.NewFromString(strings.TrimSpace(strings.TrimSuffix(raw, "%")))
	if err != nil {
		return fmt.Errorf("line %d: invalid decimal %q: %w", node.Line, node.Value, err)
	}
	if percent {
		v = v.Div(hundred)
	}
	f.Decimal = v
	return nil
}

func (f FeeRate) MarshalYAML() (interface{}, error) {
	return f.String(), nil
}

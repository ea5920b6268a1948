package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Cutover is the join cutover instant. Accepts RFC3339 text or epoch milliseconds.
type Cutover struct {
	time.Time
}

// UnixMilli returns the cutover as epoch milliseconds.
func (c *Cutover) UnixMilli() int64 {
	return c.Time.UnixMilli()
}

// ParseCutover parses RFC3339 text or an epoch-milliseconds integer.
func ParseCutover(s string) (Cutover, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Cutover{}, fmt.Errorf("cutover: empty value")
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Cutover{time.UnixMilli(ms).UTC()}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Cutover{}, fmt.Errorf("cutover %q: want RFC3339 or epoch ms", s)
	}
	return Cutover{t.UTC()}, nil
}

func (c *Cutover) UnmarshalYAML(n *yaml.Node) error {
	parsed, err := ParseCutover(n.Value)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// cutoverHook converts viper values into Cutover. YAML timestamps arrive as
// time.Time, environment values as strings, bare integers as epoch ms.
func cutoverHook() mapstructure.DecodeHookFuncType {
	target := reflect.TypeOf(Cutover{})
	return func(_ reflect.Type, t reflect.Type, data any) (any, error) {
		if t != target {
			return data, nil
		}
		switch v := data.(type) {
		case time.Time:
			return Cutover{v.UTC()}, nil
		case string:
			return ParseCutover(v)
		case int:
			return Cutover{time.UnixMilli(int64(v)).UTC()}, nil
		case int64:
			return Cutover{time.UnixMilli(v).UTC()}, nil
		case uint64:
			return Cutover{time.UnixMilli(int64(v)).UTC()}, nil
		case float64:
			return Cutover{time.UnixMilli(int64(v)).UTC()}, nil
		}
		return data, nil
	}
}

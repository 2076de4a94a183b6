// Package config loads the load generator's configuration from a file,
// the environment and command-line flags.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// lookupSetting returns the first of keys present in settings. Viper lowercases
// keys, so each key is also tried in lower case.
func lookupSetting(settings map[string]interface{}, keys ...string) (interface{}, bool) {
	for _, key := range keys {
		if val, ok := settings[key]; ok {
			return val, true
		}
		if val, ok := settings[strings.ToLower(key)]; ok {
			return val, true
		}
	}
	return nil, false
}

func asString(value interface{}) (string, error) {
	return cast.ToStringE(value)
}

// Environment values arrive as strings, often padded; blank means unset.
func trimmed(value interface{}) interface{} {
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s)
	}
	return value
}

func asInt(value interface{}) (int, error) {
	return cast.ToIntE(trimmed(value))
}

func asFloat64(value interface{}) (float64, error) {
	return cast.ToFloat64E(trimmed(value))
}

func asBool(value interface{}) (bool, error) {
	value = trimmed(value)
	if value == "" {
		return false, nil
	}
	return cast.ToBoolE(value)
}

// asDuration accepts Go duration strings. Bare numbers, typed or textual,
// are seconds, so "duration: 60" in a file means a minute.
func asDuration(value interface{}) (time.Duration, error) {
	switch v := trimmed(value).(type) {
	case nil:
		return 0, nil
	case time.Duration:
		return v, nil
	case string:
		if v == "" {
			return 0, nil
		}
		if secs, err := strconv.ParseFloat(v, 64); err == nil {
			return seconds(secs), nil
		}
		return time.ParseDuration(v)
	default:
		secs, err := cast.ToFloat64E(v)
		if err != nil {
			return 0, fmt.Errorf("unsupported duration type %T", value)
		}
		return seconds(secs), nil
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func asStringMap(value interface{}) (map[string]string, error) {
	if value == nil {
		return nil, nil
	}
	m, err := cast.ToStringMapStringE(value)
	if err != nil {
		return nil, err
	}
	for key := range m {
		if strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("header key cannot be empty")
		}
	}
	return m, nil
}

// asIntMap reads a recipe weight table. Unlike cast's own map helpers it
// reports a weight that is not a number instead of reading it as zero.
func asIntMap(value interface{}) (map[string]int, error) {
	if value == nil {
		return nil, nil
	}
	raw, err := toStringKeyMap(value)
	if err != nil {
		return nil, err
	}
	result := make(map[string]int, len(raw))
	for key, val := range raw {
		n, err := asInt(val)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		result[key] = n
	}
	return result, nil
}

// asStringSlice keeps a single string whole; threshold expressions contain
// spaces and must not be split into fields.
func asStringSlice(value interface{}) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{v}, nil
	default:
		return cast.ToStringSliceE(v)
	}
}

// toStringKeyMap normalizes a nested table's keys to trimmed lower case.
func toStringKeyMap(value interface{}) (map[string]interface{}, error) {
	m, err := cast.ToStringMapE(value)
	if err != nil {
		return nil, err
	}
	result := make(map[string]interface{}, len(m))
	for key, val := range m {
		result[strings.ToLower(strings.TrimSpace(key))] = val
	}
	return result, nil
}

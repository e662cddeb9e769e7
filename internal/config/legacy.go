package config

import (
	"bufio"
	"bytes"
	"fmt"
	"log/slog"
	"reflect"
	"strconv"
	"strings"
)

// parseLegacy reads KEY=value lines into cfg. Each value is parsed by the
// type of the field its key names, so a float written without a decimal
// point is still a float and only the literal values true/false set a bool.
// Lines without '=' and '#' comments are skipped; unknown keys are logged.
func parseLegacy(raw []byte, cfg *Config) error {
	fields := legacyFields(cfg)

	sc := bufio.NewScanner(bytes.NewReader(raw))
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		field, known := fields[key]
		if !known {
			slog.Warn("unknown setting ignored", "key", key, "line", lineNo)
			continue
		}
		if err := setField(field, value); err != nil {
			return fmt.Errorf("line %d: %s: %w", lineNo, key, err)
		}
	}
	return sc.Err()
}

func legacyFields(cfg *Config) map[string]reflect.Value {
	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()
	out := make(map[string]reflect.Value, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		if key := t.Field(i).Tag.Get("key"); key != "" {
			out[key] = v.Field(i)
		}
	}
	return out
}

func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			// Accept integral floats such as "8.0".
			f, ferr := strconv.ParseFloat(value, 64)
			if ferr != nil || f != float64(int64(f)) {
				return err
			}
			n = int64(f)
		}
		field.SetInt(n)
	case reflect.Bool:
		switch strings.ToLower(value) {
		case "true":
			field.SetBool(true)
		case "false":
			field.SetBool(false)
		default:
			return fmt.Errorf("want true or false, got %q", value)
		}
	default:
		return fmt.Errorf("unsupported field kind %s", field.Kind())
	}
	return nil
}

// Keys lists every legacy setting key, in schema order.
func Keys() []string {
	t := reflect.TypeOf(Config{})
	keys := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		if key := t.Field(i).Tag.Get("key"); key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

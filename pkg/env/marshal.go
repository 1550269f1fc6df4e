package env

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Collect walks the struct (and nested structs) behind c and returns the env keys
// its `env` tags name, skipping zero values.
func Collect(c any) (map[string]string, error) {
	v := reflect.ValueOf(c)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, fmt.Errorf("env: expected struct, got %s", v.Kind())
	}

	out := make(map[string]string)
	collect(v, out)
	return out, nil
}

func collect(v reflect.Value, out map[string]string) {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		val := v.Field(i)

		tag := field.Tag.Get("env")
		if tag == "" {
			if val.Kind() == reflect.Struct {
				collect(val, out)
			}
			continue
		}

		// "KEY,required,notEmpty" -> KEY
		key := strings.Split(tag, ",")[0]
		if key == "" || isZeroValue(val) {
			continue
		}
		out[key] = formatValue(val)
	}
}

// MarshalEnv renders the struct as .env file content.
func MarshalEnv(c any) (string, error) {
	values, err := Collect(c)
	if err != nil {
		return "", err
	}
	if len(values) == 0 {
		return "", nil
	}
	content, err := godotenv.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("failed to marshal env: %w", err)
	}
	return content + "\n", nil
}

// WriteFile merges values into the .env at path, keeping keys it does not touch.
func WriteFile(path string, values map[string]string) error {
	merged := map[string]string{}
	existing, err := godotenv.Read(path)
	switch {
	case err == nil:
		merged = existing
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	for k, v := range values {
		merged[k] = v
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create env dir: %w", err)
	}
	if err := godotenv.Write(merged, path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return os.Chmod(path, 0o600)
}

func isZeroValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.String:
		return v.String() == ""
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func:
		return v.IsNil() || (v.Kind() == reflect.Slice && v.Len() == 0)
	default:
		return v.IsZero()
	}
}

func formatValue(v reflect.Value) string {
	if d, ok := v.Interface().(time.Duration); ok {
		return d.String()
	}
	switch v.Kind() {
	case reflect.String:
		return v.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10)
	case reflect.Float32:
		return strconv.FormatFloat(v.Float(), 'f', -1, 32)
	case reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'f', -1, 64)
	case reflect.Bool:
		return strconv.FormatBool(v.Bool())
	case reflect.Slice:
		parts := make([]string, v.Len())
		for i := range parts {
			parts[i] = formatValue(v.Index(i))
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprintf("%v", v.Interface())
	}
}

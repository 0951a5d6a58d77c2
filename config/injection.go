package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// InjectInto populates a struct with configuration values based on struct
// tags. Feature packages declare their own config structs with these tags
// instead of importing the typed tree:
//   - `config:"key.path"` names the configuration key
//   - `required:"true"` fails the injection when the key is missing
//   - `default:"value"` supplies a fallback when the key is missing
//
// Supported field types: string, int, int64, float64, bool, time.Duration.
func (c *Config) InjectInto(target any) error {
	if c == nil || c.k == nil {
		return fmt.Errorf(errMsgConfigNotInitialized)
	}

	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("target must be a pointer to a struct, got %T", target)
	}

	rv = rv.Elem()
	rt := rv.Type()

	for i := 0; i < rv.NumField(); i++ {
		field := rv.Field(i)
		fieldType := rt.Field(i)

		if !field.CanSet() {
			continue
		}

		configKey := fieldType.Tag.Get("config")
		if configKey == "" {
			continue
		}

		required := fieldType.Tag.Get("required") == "true"
		defaultValue, hasDefault := fieldType.Tag.Lookup("default")

		if err := c.setFieldValue(field, configKey, required, defaultValue, hasDefault); err != nil {
			return fmt.Errorf("failed to set field %s: %w", fieldType.Name, err)
		}
	}

	return nil
}

func (c *Config) setFieldValue(field reflect.Value, configKey string, required bool, defaultValue string, hasDefault bool) error {
	value, shouldSet, err := c.resolveFieldValue(configKey, required, defaultValue, hasDefault)
	if err != nil {
		return err
	}
	if !shouldSet {
		return nil
	}

	// time.Duration needs handling before the int64 kind catches it.
	if field.Type() == reflect.TypeOf(time.Duration(0)) {
		durationVal, err := convertToDuration(value, configKey)
		if err != nil {
			return err
		}
		field.Set(reflect.ValueOf(durationVal))
		return nil
	}

	return c.assignFieldValue(field, configKey, required, value)
}

func (c *Config) resolveFieldValue(configKey string, required bool, defaultValue string, hasDefault bool) (value any, shouldSet bool, err error) {
	if c.k.Exists(configKey) {
		return c.k.Get(configKey), true, nil
	}

	if required {
		return nil, false, fmt.Errorf(errMsgRequiredKeyMissing, configKey)
	}

	if hasDefault {
		return defaultValue, true, nil
	}

	return nil, false, nil
}

func (c *Config) assignFieldValue(field reflect.Value, configKey string, required bool, value any) error {
	switch field.Kind() {
	case reflect.String:
		strVal, err := convertToString(value, configKey, required)
		if err != nil {
			return err
		}
		field.SetString(strVal)
		return nil
	case reflect.Int, reflect.Int64:
		return assignIntegerField(field, configKey, value)
	case reflect.Float64:
		floatVal, err := toFloat64(value)
		if err != nil {
			return fmt.Errorf("invalid float value for key '%s': %w", configKey, err)
		}
		field.SetFloat(floatVal)
		return nil
	case reflect.Bool:
		boolVal, err := toBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean value for key '%s': %w", configKey, err)
		}
		field.SetBool(boolVal)
		return nil
	default:
		return fmt.Errorf("unsupported field type %s for key '%s'", field.Type(), configKey)
	}
}

func assignIntegerField(field reflect.Value, configKey string, value any) error {
	intVal, err := toInt64(value)
	if err != nil {
		return fmt.Errorf("invalid integer value for key '%s': %w", configKey, err)
	}
	if field.Kind() == reflect.Int {
		if intVal > int64(maxInt) || intVal < int64(minInt) {
			return fmt.Errorf("value %d for key '%s' overflows int", intVal, configKey)
		}
	}
	field.SetInt(intVal)
	return nil
}

func convertToString(value any, key string, required bool) (string, error) {
	switch v := value.(type) {
	case string:
		trimmed := strings.TrimSpace(v)
		if required && trimmed == "" {
			return "", fmt.Errorf("required configuration key '%s' is empty", key)
		}
		return trimmed, nil
	default:
		return fmt.Sprintf("%v", value), nil
	}
}

func convertToDuration(value any, key string) (time.Duration, error) {
	switch v := value.(type) {
	case string:
		duration, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("invalid duration value for key '%s': %w", key, err)
		}
		return duration, nil
	case time.Duration:
		return v, nil
	case int, int64:
		n, err := toInt64(v)
		if err != nil {
			return 0, fmt.Errorf("invalid duration value for key '%s': %w", key, err)
		}
		return time.Duration(n), nil
	default:
		return 0, fmt.Errorf("unsupported duration type for key '%s': %T", key, value)
	}
}

package expression

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/SolaceDev/solace-ai-connector/errors"
)

// Coerce converts a value to the named type. Supported type names are
// int, float, bool and string. Nil passes through unchanged.
func Coerce(value any, typeName string) (any, error) {
	if value == nil {
		return nil, nil
	}

	switch typeName {
	case "int":
		return toInt(value)
	case "float":
		return toFloat(value)
	case "bool":
		return toBool(value)
	case "string":
		return Textualize(value), nil
	default:
		return nil, errors.WrapInvalid(
			fmt.Errorf("unknown coercion type %q", typeName),
			"expression", "Coerce", "type name check")
	}
}

func toInt(value any) (any, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float32:
		return int(v), nil
	case float64:
		return int(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, errors.WrapInvalid(err, "expression", "Coerce", "int conversion")
		}
		return n, nil
	default:
		return nil, errors.WrapInvalid(
			fmt.Errorf("cannot coerce %T to int", value),
			"expression", "Coerce", "int conversion")
	}
}

func toFloat(value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, errors.WrapInvalid(err, "expression", "Coerce", "float conversion")
		}
		return f, nil
	default:
		return nil, errors.WrapInvalid(
			fmt.Errorf("cannot coerce %T to float", value),
			"expression", "Coerce", "float conversion")
	}
}

func toBool(value any) (any, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case int:
		return v != 0, nil
	case int64:
		return v != 0, nil
	case float64:
		return v != 0, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return nil, errors.WrapInvalid(err, "expression", "Coerce", "bool conversion")
		}
		return b, nil
	default:
		return nil, errors.WrapInvalid(
			fmt.Errorf("cannot coerce %T to bool", value),
			"expression", "Coerce", "bool conversion")
	}
}

// Truthy reports whether a value is considered true by selection and
// streaming-completion expressions: non-nil, non-zero, non-empty.
func Truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != "" && !strings.EqualFold(v, "false")
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return true
	}
}

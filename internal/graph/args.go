package graph

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Argument values arrive either as literals parsed by gqlparser or as
// coerced variables, so numbers may be any of several Go types.

func argString(args map[string]any, name string) string {
	switch v := args[name].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func argStringPtr(args map[string]any, name string) *string {
	if args[name] == nil {
		return nil
	}
	s := argString(args, name)
	return &s
}

func argBool(args map[string]any, name string) bool {
	v, _ := args[name].(bool)
	return v
}

func argIntPtr(args map[string]any, name string) *int {
	var n int
	switch v := args[name].(type) {
	case int:
		n = v
	case int32:
		n = int(v)
	case int64:
		n = int(v)
	case float64:
		n = int(v)
	case json.Number:
		i, err := strconv.Atoi(v.String())
		if err != nil {
			return nil
		}
		n = i
	case string:
		i, err := strconv.Atoi(v)
		if err != nil {
			return nil
		}
		n = i
	default:
		return nil
	}
	return &n
}

package util

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/oliveagle/jsonpath"
)

var tokenRe = regexp.MustCompile(`\{(.*?)\}`)

// ResolveParams substitutes {$.path} tokens in action configuration
// with values from the run context, recursing into nested maps and
// lists. A token that resolves to the whole string keeps the looked-up
// value's type; tokens embedded in a larger string are stringified.
func ResolveParams(contextData map[string]any, params map[string]any) map[string]any {
	output := make(map[string]any)
	resolveParams(contextData, params, output)
	return output
}

func resolveParams(contextData map[string]any, params map[string]any, output map[string]any) {
	for k, v := range params {
		switch tv := v.(type) {
		case map[string]any:
			out := make(map[string]any)
			output[k] = out
			resolveParams(contextData, tv, out)
		case string:
			output[k] = resolveString(contextData, tv)
		case []any:
			output[k] = resolveList(contextData, tv)
		default:
			output[k] = v
		}
	}
}

func resolveList(contextData map[string]any, list []any) []any {
	var output []any
	for _, v := range list {
		switch tv := v.(type) {
		case map[string]any:
			out := make(map[string]any)
			resolveParams(contextData, tv, out)
			output = append(output, out)
		case string:
			output = append(output, resolveString(contextData, tv))
		case []any:
			output = append(output, resolveList(contextData, tv)...)
		default:
			output = append(output, v)
		}
	}
	return output
}

func resolveString(contextData map[string]any, str string) any {
	tokens := tokenRe.FindAllString(str, -1)
	if len(tokens) == 0 {
		return str
	}
	// whole-string token keeps the native type
	if len(tokens) == 1 && tokens[0] == str {
		path := strings.Trim(str, "{}")
		if strings.HasPrefix(path, "$") {
			value, err := jsonpath.JsonPathLookup(contextData, path)
			if err != nil {
				return str
			}
			return value
		}
		return str
	}
	newStr := str
	for _, token := range tokens {
		path := strings.Trim(token, "{}")
		if !strings.HasPrefix(path, "$") {
			continue
		}
		value, err := jsonpath.JsonPathLookup(contextData, path)
		if err != nil {
			continue
		}
		newStr = strings.ReplaceAll(newStr, token, fmt.Sprintf("%v", value))
	}
	return newStr
}

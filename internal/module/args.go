// Package module implements the Ansible binary module protocol: arguments
// arrive as a JSON file and the result is a single JSON object on stdout.
package module

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

// ArgType is the declared type of a module argument.
type ArgType string

const (
	TypeStr   ArgType = "str"
	TypeBool  ArgType = "bool"
	TypeFloat ArgType = "float"
	TypeInt   ArgType = "int"
)

// NoLogValue replaces no_log arguments in echoed invocations.
const NoLogValue = "VALUE_SPECIFIED_IN_NO_LOG_PARAMETER"

// Arg declares one module argument.
type Arg struct {
	Type        ArgType
	Required    bool
	Default     any
	NoLog       bool
	Aliases     []string
	EnvFallback []string // Environment variables consulted when the argument is unset.
}

// ArgSpec maps argument names to their declarations.
type ArgSpec map[string]Arg

// Args holds parsed arguments coerced to their declared Go types
// (string, bool, float64, int). Unset optional arguments are absent.
type Args map[string]any

// ReadArgsFile reads the JSON arguments file Ansible hands to binary
// modules. A top-level ANSIBLE_MODULE_ARGS wrapper is unwrapped.
func ReadArgsFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading module arguments: %w", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing module arguments: %w", err)
	}
	if inner, ok := raw["ANSIBLE_MODULE_ARGS"].(map[string]any); ok {
		return inner, nil
	}
	return raw, nil
}

// Parse validates raw against spec. Unknown arguments, missing required
// arguments and values that can't be coerced are all reported before
// anything else happens.
func Parse(raw map[string]any, spec ArgSpec) (Args, error) {
	aliases := make(map[string]string)
	for name, arg := range spec {
		aliases[name] = name
		for _, alias := range arg.Aliases {
			aliases[alias] = name
		}
	}

	given := make(map[string]any)
	var unsupported []string
	for key, value := range raw {
		if strings.HasPrefix(key, "_ansible_") {
			continue
		}
		name, ok := aliases[key]
		if !ok {
			unsupported = append(unsupported, key)
			continue
		}
		given[name] = value
	}
	if len(unsupported) > 0 {
		sort.Strings(unsupported)
		return nil, fmt.Errorf("unsupported parameters: %s; supported parameters include: %s",
			strings.Join(unsupported, ", "), strings.Join(spec.names(), ", "))
	}

	args := make(Args)
	var missing []string
	for _, name := range spec.names() {
		arg := spec[name]

		value, ok := given[name]
		if !ok || value == nil {
			value, ok = lookupEnv(arg.EnvFallback)
		}
		if !ok && arg.Default != nil {
			value, ok = arg.Default, true
		}
		if !ok {
			if arg.Required {
				missing = append(missing, name)
			}
			continue
		}

		coerced, err := coerce(arg.Type, value)
		if err != nil {
			return nil, fmt.Errorf("argument '%s' is of type %T and we were unable to convert to %s: %w",
				name, value, arg.Type, err)
		}
		if arg.Type == TypeStr && arg.Required && coerced == "" {
			missing = append(missing, name)
			continue
		}
		args[name] = coerced
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required arguments: %s", strings.Join(missing, ", "))
	}
	return args, nil
}

func (s ArgSpec) names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookupEnv(keys []string) (any, bool) {
	for _, key := range keys {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
	}
	return nil, false
}

func coerce(t ArgType, value any) (any, error) {
	switch t {
	case TypeStr:
		return cast.ToStringE(value)
	case TypeBool:
		return toBool(value)
	case TypeFloat:
		return cast.ToFloat64E(value)
	case TypeInt:
		return toInt(value)
	default:
		return nil, fmt.Errorf("unknown argument type %q", t)
	}
}

// toInt reads strings as decimal, so "010" is 10 rather than octal.
func toInt(value any) (int, error) {
	switch v := value.(type) {
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("%q is not a decimal integer", v)
		}
		return i, nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%v is not an integer", v)
		}
	}
	return cast.ToIntE(value)
}

// toBool accepts the spellings Ansible's boolean conversion accepts.
func toBool(value any) (bool, error) {
	if s, ok := value.(string); ok {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "yes", "on", "1", "true", "y", "t":
			return true, nil
		case "no", "off", "0", "false", "n", "f":
			return false, nil
		default:
			return false, fmt.Errorf("%q is not a valid boolean", s)
		}
	}
	return cast.ToBoolE(value)
}

// String returns a str argument, or "" when unset.
func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

// Bool returns a bool argument, or false when unset.
func (a Args) Bool(name string) bool {
	b, _ := a[name].(bool)
	return b
}

// Float returns a float argument, or 0 when unset.
func (a Args) Float(name string) float64 {
	f, _ := a[name].(float64)
	return f
}

// Int returns an int argument and whether it was set.
func (a Args) Int(name string) (int, bool) {
	i, ok := a[name].(int)
	return i, ok
}

// Sanitized returns the arguments with no_log values masked, suitable for
// echoing back as module_args.
func (a Args) Sanitized(spec ArgSpec) map[string]any {
	out := make(map[string]any, len(a))
	for name, value := range a {
		if spec[name].NoLog {
			out[name] = NoLogValue
			continue
		}
		out[name] = value
	}
	return out
}

package module

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSpec = ArgSpec{
	"name":     {Type: TypeStr, Required: true},
	"wait":     {Type: TypeBool, Default: true},
	"interval": {Type: TypeFloat, Default: 1.0},
	"timeout":  {Type: TypeInt},
	"ah_token": {Type: TypeStr, NoLog: true, Aliases: []string{"ah_api_token"}, EnvFallback: []string{"AH_API_TOKEN"}},
}

func TestParse_DefaultsApplied(t *testing.T) {
	args, err := Parse(map[string]any{"name": "redhat"}, testSpec)
	require.NoError(t, err)

	assert.Equal(t, "redhat", args.String("name"))
	assert.True(t, args.Bool("wait"))
	assert.Equal(t, 1.0, args.Float("interval"))
	_, ok := args.Int("timeout")
	assert.False(t, ok)
}

func TestParse_Coercion(t *testing.T) {
	args, err := Parse(map[string]any{
		"name":     "redhat",
		"wait":     "no",
		"interval": "2.5",
		"timeout":  float64(30),
	}, testSpec)
	require.NoError(t, err)

	assert.False(t, args.Bool("wait"))
	assert.Equal(t, 2.5, args.Float("interval"))
	timeout, ok := args.Int("timeout")
	require.True(t, ok)
	assert.Equal(t, 30, timeout)
}

func TestParse_BoolSpellings(t *testing.T) {
	for _, v := range []any{"yes", "On", "true", "1", true} {
		args, err := Parse(map[string]any{"name": "r", "wait": v}, testSpec)
		require.NoError(t, err, "%v", v)
		assert.True(t, args.Bool("wait"), "%v", v)
	}
	for _, v := range []any{"no", "OFF", "false", "0", false} {
		args, err := Parse(map[string]any{"name": "r", "wait": v}, testSpec)
		require.NoError(t, err, "%v", v)
		assert.False(t, args.Bool("wait"), "%v", v)
	}

	_, err := Parse(map[string]any{"name": "r", "wait": "maybe"}, testSpec)
	assert.Error(t, err)
}

func TestParse_IntRejectsFraction(t *testing.T) {
	_, err := Parse(map[string]any{"name": "r", "timeout": 1.5}, testSpec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestParse_IntStringsAreDecimal(t *testing.T) {
	args, err := Parse(map[string]any{"name": "r", "timeout": "010"}, testSpec)
	require.NoError(t, err)
	timeout, ok := args.Int("timeout")
	require.True(t, ok)
	assert.Equal(t, 10, timeout)

	args, err = Parse(map[string]any{"name": "r", "timeout": " 300 "}, testSpec)
	require.NoError(t, err)
	timeout, _ = args.Int("timeout")
	assert.Equal(t, 300, timeout)

	for _, bad := range []string{"0x10", "1.5", "ten"} {
		_, err := Parse(map[string]any{"name": "r", "timeout": bad}, testSpec)
		assert.Error(t, err, bad)
	}
}

func TestParse_FloatRejectsGarbage(t *testing.T) {
	_, err := Parse(map[string]any{"name": "r", "interval": "soon"}, testSpec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interval")
}

func TestParse_MissingRequired(t *testing.T) {
	_, err := Parse(map[string]any{"wait": true}, testSpec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required arguments: name")

	_, err = Parse(map[string]any{"name": ""}, testSpec)
	require.Error(t, err)
}

func TestParse_UnsupportedParameter(t *testing.T) {
	_, err := Parse(map[string]any{"name": "r", "colour": "red"}, testSpec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "colour")
}

func TestParse_InternalKeysIgnored(t *testing.T) {
	args, err := Parse(map[string]any{
		"name":                 "r",
		"_ansible_check_mode":  false,
		"_ansible_module_name": "ah_ee_registry_index",
		"_ansible_verbosity":   float64(3),
	}, testSpec)
	require.NoError(t, err)
	assert.Equal(t, "r", args.String("name"))
}

func TestParse_AliasAndEnvFallback(t *testing.T) {
	args, err := Parse(map[string]any{"name": "r", "ah_api_token": "from-alias"}, testSpec)
	require.NoError(t, err)
	assert.Equal(t, "from-alias", args.String("ah_token"))

	t.Setenv("AH_API_TOKEN", "from-env")
	args, err = Parse(map[string]any{"name": "r"}, testSpec)
	require.NoError(t, err)
	assert.Equal(t, "from-env", args.String("ah_token"))

	// An explicit null still falls back to the environment.
	args, err = Parse(map[string]any{"name": "r", "ah_token": nil}, testSpec)
	require.NoError(t, err)
	assert.Equal(t, "from-env", args.String("ah_token"))
}

func TestArgs_Sanitized(t *testing.T) {
	args, err := Parse(map[string]any{"name": "r", "ah_token": "secret"}, testSpec)
	require.NoError(t, err)

	out := args.Sanitized(testSpec)
	assert.Equal(t, NoLogValue, out["ah_token"])
	assert.Equal(t, "r", out["name"])
}

func TestReadArgsFile(t *testing.T) {
	dir := t.TempDir()

	plain := filepath.Join(dir, "plain.json")
	require.NoError(t, os.WriteFile(plain, []byte(`{"name":"redhat","wait":false}`), 0600))
	raw, err := ReadArgsFile(plain)
	require.NoError(t, err)
	assert.Equal(t, "redhat", raw["name"])

	wrapped := filepath.Join(dir, "wrapped.json")
	require.NoError(t, os.WriteFile(wrapped, []byte(`{"ANSIBLE_MODULE_ARGS":{"name":"quay"}}`), 0600))
	raw, err = ReadArgsFile(wrapped)
	require.NoError(t, err)
	assert.Equal(t, "quay", raw["name"])

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`name=redhat`), 0600))
	_, err = ReadArgsFile(bad)
	assert.Error(t, err)

	_, err = ReadArgsFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestExitAndFail(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Exit(&buf, true, map[string]any{"task": "t-1"}))

	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, true, out["changed"])
	assert.Equal(t, false, out["failed"])
	assert.Equal(t, "t-1", out["task"])

	buf.Reset()
	require.NoError(t, Fail(&buf, "registry not found", nil))
	out = nil
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, true, out["failed"])
	assert.Equal(t, false, out["changed"])
	assert.Equal(t, "registry not found", out["msg"])
}

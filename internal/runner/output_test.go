package runner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestStripANSI(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "plain", want: "plain"},
		{in: "\x1b[32mgreen\x1b[0m", want: "green"},
		{in: "\x1b[1;31mERROR\x1b[0m | boom", want: "ERROR | boom"},
		{in: "\x1b]x", want: "x"},
		{in: "", want: ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StripANSI(tt.in), "input %q", tt.in)
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "abc", Truncate("abcdef", 3))
	assert.Equal(t, "abc", Truncate("abc", 3))
	assert.Equal(t, "abc", Truncate("abc", 0))
	assert.Equal(t, "插件", Truncate("插件测试", 2))
}

func TestTruncate_Property(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		text := rapid.String().Draw(t, "text")
		limit := rapid.IntRange(1, 64).Draw(t, "limit")

		got := Truncate(text, limit)
		assert.True(t, strings.HasPrefix(text, got))
		assert.LessOrEqual(t, len([]rune(got)), limit)
	})
}

func TestParseRequirement(t *testing.T) {
	t.Parallel()

	tests := []struct {
		line string
		want string
		ok   bool
	}{
		{line: `anyio==3.6.2 ; python_version >= "3.11" and python_version < "4.0"`, want: "anyio", ok: true},
		{line: `pydantic[dotenv]==1.10.6 ; python_version >= "3.10"`, want: "pydantic", ok: true},
		{line: `  nonebot-plugin-localstore==0.5.1`, want: "nonebot-plugin-localstore", ok: true},
		{line: `--extra-index-url https://example.com`, ok: false},
		{line: ``, ok: false},
	}
	for _, tt := range tests {
		got, ok := ParseRequirement(tt.line)
		assert.Equal(t, tt.ok, ok, tt.line)
		assert.Equal(t, tt.want, got, tt.line)
	}
}

func TestPluginDependencies(t *testing.T) {
	t.Parallel()

	requirements := strings.Join([]string{
		`nonebot2==2.2.0 ; python_version >= "3.8"`,
		`nonebot-plugin-localstore==0.5.1 ; python_version >= "3.8"`,
		`nonebot-plugin-status==0.8.0 ; python_version >= "3.8"`,
		`nonebot-plugin-apscheduler[extra]==0.3.0`,
	}, "\n")
	known := map[string]string{
		"nonebot-plugin-localstore":  "nonebot_plugin_localstore",
		"nonebot-plugin-status":      "nonebot_plugin_status",
		"nonebot-plugin-apscheduler": "nonebot_plugin_apscheduler",
	}

	deps := PluginDependencies(requirements, "nonebot-plugin-status", known)
	assert.Equal(t, []string{"nonebot_plugin_localstore", "nonebot_plugin_apscheduler"}, deps)

	assert.Empty(t, PluginDependencies("", "x", known))
}

func TestParseShowVersion(t *testing.T) {
	t.Parallel()

	output := "\x1b[36mname\x1b[39m         : nonebot-plugin-status\n" +
		"\x1b[36mversion\x1b[39m      : 0.8.0\n" +
		"\x1b[36mdescription\x1b[39m  : status\n"
	assert.Equal(t, "0.8.0", ParseShowVersion(output))
	assert.Equal(t, "", ParseShowVersion("nothing here"))
}

func TestRenderRunnerScript(t *testing.T) {
	t.Parallel()

	script := renderRunnerScript("nonebot_plugin_status", []string{"nonebot_plugin_localstore"})
	assert.Contains(t, script, `plugin = load_plugin("nonebot_plugin_status")`)
	assert.Contains(t, script, `require("nonebot_plugin_localstore")`)
	assert.Contains(t, script, `os.environ["STORE_TEST_METADATA"]`)
	assert.NotContains(t, script, "%!")
}

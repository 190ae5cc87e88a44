package registry

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagUnmarshal(t *testing.T) {
	t.Parallel()

	var tags []Tag
	err := json.Unmarshal([]byte(`[{"label":"game","color":"#ffffff"},"plain"]`), &tags)
	require.NoError(t, err)

	require.Len(t, tags, 2)
	assert.Equal(t, Tag{Label: "game", Color: "#ffffff"}, tags[0])
	assert.Equal(t, Tag{Label: "plain", Color: DefaultTagColor}, tags[1])
	assert.Equal(t, []string{"game", "plain"}, TagLabels(tags))

	var bad Tag
	assert.Error(t, json.Unmarshal([]byte(`42`), &bad))
}

func TestEntryRoundTripKeepsUnknownFields(t *testing.T) {
	t.Parallel()

	doc := `{"module_name":"nonebot.adapters.onebot.v11","project_link":"nonebot-adapter-onebot","name":"OneBot V11","desc":"OneBot V11 protocol","author":"yanyongyu","homepage":"https://onebot.adapters.nonebot.dev/","tags":[],"is_official":true,"extra":"kept"}`

	var entry Entry
	require.NoError(t, json.Unmarshal([]byte(doc), &entry))
	require.NotNil(t, entry.Package)
	assert.Equal(t, "nonebot-adapter-onebot", entry.ProjectLink)
	assert.Equal(t, "OneBot V11", entry.Name)
	assert.True(t, entry.IsOfficial)

	out, err := json.Marshal(&entry)
	require.NoError(t, err)
	assert.JSONEq(t, doc, string(out))
}

func TestEntryWithoutPackage(t *testing.T) {
	t.Parallel()

	var entry Entry
	require.NoError(t, json.Unmarshal([]byte(`{"name":"bot","desc":"d","author":"a","homepage":"h","tags":[],"is_official":false}`), &entry))
	assert.Nil(t, entry.Package)

	built := NewEntry(KindBot, nil, Common{Name: "bot", Tags: []Tag{}})
	out, err := json.Marshal(built)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "project_link")
	assert.False(t, KindBot.HasPackage())
	assert.True(t, KindAdapter.HasPackage())
}

func TestNewPluginCopiesListingFields(t *testing.T) {
	t.Parallel()

	sp := NewTestStorePlugin("nonebot-plugin-status",
		WithSupportedAdapters("~onebot.v11"),
		WithTags(Tag{Label: "tool", Color: "#000000"}),
		WithOfficial(true),
	)
	plugin := NewPlugin(sp)

	assert.Equal(t, sp.Key(), plugin.Key())
	assert.Equal(t, sp.Name, plugin.Name)
	assert.True(t, plugin.IsOfficial)

	plugin.SupportedAdapters[0] = "changed"
	plugin.Tags[0].Label = "changed"
	assert.Equal(t, "~onebot.v11", sp.SupportedAdapters[0])
	assert.Equal(t, "tool", sp.Tags[0].Label)
}

func TestPluginApplyMetadata(t *testing.T) {
	t.Parallel()

	plugin := NewPlugin(NewTestStorePlugin("nonebot-plugin-status"))
	plugin.ApplyMetadata(&Metadata{
		Name:              "Status",
		Description:       "Server status",
		Type:              PluginTypeLibrary,
		Homepage:          "https://example.com",
		SupportedAdapters: nil,
	})

	assert.Equal(t, "Status", plugin.Name)
	assert.Equal(t, "Server status", plugin.Desc)
	assert.Equal(t, PluginTypeLibrary, plugin.Type)
	assert.Nil(t, plugin.SupportedAdapters)

	md := plugin.Metadata()
	assert.Equal(t, "Status", md.Name)
	assert.Equal(t, "https://example.com", md.Homepage)

	plugin.ApplyMetadata(nil)
	assert.Equal(t, "Status", plugin.Name)
}

func TestTestResultPassed(t *testing.T) {
	t.Parallel()

	assert.True(t, NewTestResult("1.0.0").Passed())
	assert.False(t, NewTestResult("1.0.0", WithPassed(false)).Passed())

	partial := NewTestResult("1.0.0")
	partial.Results.Metadata = false
	assert.False(t, partial.Passed())
	assert.Contains(t, partial.String(), "metadata=false")
}

func TestPluginJSONShape(t *testing.T) {
	t.Parallel()

	plugin := NewTestPlugin(NewTestStorePlugin("nonebot-plugin-status"), WithSkipTest(true))
	out, err := json.Marshal(plugin)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(out, &fields))
	for _, name := range []string{
		"module_name", "project_link", "name", "desc", "author", "homepage",
		"tags", "is_official", "type", "supported_adapters", "valid", "time",
		"version", "skip_test",
	} {
		assert.Contains(t, fields, name)
	}
	assert.Equal(t, true, fields["skip_test"])
	assert.Nil(t, fields["supported_adapters"])
}

package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		input       string
		projectLink string
		moduleName  string
		wantErr     bool
	}{
		{
			name:        "package index key",
			input:       "nonebot-plugin-status:nonebot_plugin_status",
			projectLink: "nonebot-plugin-status",
			moduleName:  "nonebot_plugin_status",
		},
		{
			name:        "git key splits on last separator",
			input:       "git+https://github.com/owner/repo:repo_module",
			projectLink: "git+https://github.com/owner/repo",
			moduleName:  "repo_module",
		},
		{name: "no separator", input: "nonebot-plugin-status", wantErr: true},
		{name: "empty module", input: "nonebot-plugin-status:", wantErr: true},
		{name: "empty project", input: ":module", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			key, err := ParseKey(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.projectLink, key.ProjectLink())
			assert.Equal(t, tt.moduleName, key.ModuleName())
			assert.Equal(t, NewKey(tt.projectLink, tt.moduleName), key)
		})
	}
}

func TestKeyIsGitSource(t *testing.T) {
	t.Parallel()

	assert.True(t, NewKey("git+https://github.com/owner/repo", "repo").IsGitSource())
	assert.True(t, NewKey("git+http://example.com/repo", "repo").IsGitSource())
	assert.False(t, NewKey("nonebot-plugin-git", "git_module").IsGitSource())
	assert.False(t, NewKey("git-plugin", "git_plugin").IsGitSource())
}

func TestKeyPathSafe(t *testing.T) {
	t.Parallel()

	key := NewKey("nonebot-plugin-status", "nonebot_plugin_status")
	assert.Equal(t, "nonebot-plugin-status-nonebot_plugin_status", key.PathSafe())
}

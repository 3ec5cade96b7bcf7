package gitsource

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocalPath(t *testing.T) {
	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{url: "https://github.com/owner/decks.git", want: filepath.Join("repos", "github.com", "owner", "decks")},
		{url: "http://example.com/owner/decks", want: filepath.Join("repos", "example.com", "owner", "decks")},
		{url: "git@github.com:owner/decks.git", want: filepath.Join("repos", "github.com", "owner", "decks")},
		{url: "https://github.com/", wantErr: true},
		{url: "not a url", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, err := LocalPath("repos", tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsRemote(t *testing.T) {
	assert.True(t, IsRemote("https://github.com/owner/decks"))
	assert.True(t, IsRemote("git@github.com:owner/decks.git"))
	assert.True(t, IsRemote("/srv/decks.git"))
	assert.False(t, IsRemote("/home/me/decks"))
	assert.False(t, IsRemote("decks"))
}

func TestSyncRejectsNonRepository(t *testing.T) {
	dir := t.TempDir()
	err := Sync(context.Background(), "https://example.com/owner/decks.git", dir, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open existing repo")
}

func TestSyncPullWithoutRemote(t *testing.T) {
	dir := t.TempDir()
	_, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	err = Sync(context.Background(), "https://example.com/owner/decks.git", dir, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to pull changes")
}

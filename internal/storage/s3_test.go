package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestS3KeyMapping(t *testing.T) {
	plain := &S3Store{bucket: "assets"}
	prefixed := &S3Store{bucket: "assets", basePrefix: "creative-engine/prod"}

	key, err := plain.key("briefs/summer-launch/brief.json")
	require.NoError(t, err)
	assert.Equal(t, "briefs/summer-launch/brief.json", key)

	key, err = prefixed.key("briefs/summer-launch/brief.json")
	require.NoError(t, err)
	assert.Equal(t, "creative-engine/prod/briefs/summer-launch/brief.json", key)

	// Leading slashes are normalized before the prefix is applied.
	key, err = prefixed.key("/briefs/summer-launch/metadata.json")
	require.NoError(t, err)
	assert.Equal(t, "creative-engine/prod/briefs/summer-launch/metadata.json", key)

	_, err = prefixed.key("../outside")
	require.Error(t, err)

	_, err = prefixed.key("   ")
	require.Error(t, err)
}

func TestS3StripBase(t *testing.T) {
	plain := &S3Store{bucket: "assets"}
	prefixed := &S3Store{bucket: "assets", basePrefix: "creative-engine/prod"}

	assert.Equal(t, "briefs/summer-launch", plain.stripBase("briefs/summer-launch"))
	assert.Equal(t, "briefs/summer-launch",
		prefixed.stripBase("creative-engine/prod/briefs/summer-launch"))

	// Keys outside the prefix pass through untouched.
	assert.Equal(t, "other/briefs", prefixed.stripBase("other/briefs"))
}

func TestS3KeyStripBaseRoundTrip(t *testing.T) {
	s := &S3Store{bucket: "assets", basePrefix: "tenants/acme"}

	paths := []string{
		"briefs/spring-drop/brief.json",
		"briefs/spring-drop/products/mug/1-1/mug.png",
		"briefs/spring-drop/logs/generation-start-20260131-093000.json",
	}
	for _, path := range paths {
		key, err := s.key(path)
		require.NoError(t, err)
		assert.Equal(t, path, s.stripBase(key))
	}
}

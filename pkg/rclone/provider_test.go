package rclone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasSecrets(t *testing.T) {
	assert.True(t, HasSecrets("s3", map[string]string{"secret_access_key": "xyz"}))
	assert.False(t, HasSecrets("s3", map[string]string{"region": "us-east-1"}))
	assert.False(t, HasSecrets("s3", map[string]string{"secret_access_key": ""}))
	assert.False(t, HasSecrets("unknown-type", map[string]string{"pass": "x"}))
}

func TestSupportedRemoteTypes_IncludesKnownProviders(t *testing.T) {
	types := SupportedRemoteTypes()
	assert.Contains(t, types, "sftp")
	assert.Contains(t, types, "s3")
	assert.Contains(t, types, "local")
}

func TestLookupProvider_UnknownIsMissing(t *testing.T) {
	_, ok := LookupProvider("does-not-exist")
	assert.False(t, ok)
}

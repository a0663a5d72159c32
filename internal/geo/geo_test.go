package geo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupPrivateIPShortCircuits(t *testing.T) {
	c := New(Config{Enabled: true, APIProvider: ProviderIPAPICom})
	rec, err := c.Lookup(context.Background(), "192.168.1.5")
	require.NoError(t, err)
	assert.Equal(t, "Local", rec.Country)
	assert.Equal(t, "Private Network", rec.City)
}

func TestLookupDisabledReturnsError(t *testing.T) {
	c := New(Config{Enabled: false})
	_, err := c.Lookup(context.Background(), "8.8.8.8")
	assert.Error(t, err)
}

func TestIsPrivateCoversAllRanges(t *testing.T) {
	for _, ip := range []string{"127.0.0.1", "10.1.2.3", "192.168.0.1", "172.16.0.1", "172.31.255.255", "169.254.1.1"} {
		assert.True(t, isPrivate(ip), ip)
	}
	assert.False(t, isPrivate("8.8.8.8"))
}

func TestOrUnknown(t *testing.T) {
	assert.Equal(t, "Unknown", orUnknown(""))
	assert.Equal(t, "France", orUnknown("France"))
}

func TestNewBuildsPrimaryFirstChain(t *testing.T) {
	c := New(Config{Enabled: true, APIProvider: ProviderIPInfo})
	require.Len(t, c.chain, 3)
	assert.Equal(t, ProviderIPInfo, c.chain[0].name)
}

func TestNewDefaultsTimeout(t *testing.T) {
	c := New(Config{Enabled: true, APIProvider: ProviderIPAPICo})
	assert.NotZero(t, c.client.Timeout)
}

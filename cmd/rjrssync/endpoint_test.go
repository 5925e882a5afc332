package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseEndpointLocalPath(t *testing.T) {
	ep := parseEndpoint("/data/out")
	assert.Nil(t, ep.Remote)
	assert.Equal(t, "/data/out", ep.Path)
	assert.False(t, ep.TrailingSlash)
}

func TestParseEndpointLocalPathWithTrailingSlash(t *testing.T) {
	ep := parseEndpoint("/data/out/")
	assert.True(t, ep.TrailingSlash)
}

func TestParseEndpointWindowsDriveLetterIsLocal(t *testing.T) {
	ep := parseEndpoint(`C:\data\out`)
	assert.Nil(t, ep.Remote)
	assert.Equal(t, `C:\data\out`, ep.Path)
}

func TestParseEndpointRemoteWithUser(t *testing.T) {
	ep := parseEndpoint("ci@build-box:/data/out")
	require := assert.New(t)
	require.NotNil(ep.Remote)
	require.Equal("ci", ep.Remote.User)
	require.Equal("build-box", ep.Remote.Host)
	require.Equal("/data/out", ep.Path)
}

func TestParseEndpointRemoteWithoutUser(t *testing.T) {
	ep := parseEndpoint("build-box:/data/out")
	assert.NotNil(t, ep.Remote)
	assert.Equal(t, "", ep.Remote.User)
	assert.Equal(t, "build-box", ep.Remote.Host)
}

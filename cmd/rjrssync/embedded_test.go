package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListEmbeddedBinariesOnOwnTestBinaryDoesNotError(t *testing.T) {
	var buf bytes.Buffer
	err := listEmbeddedBinaries(&buf)
	require.NoError(t, err)
	assert.NotEmpty(t, buf.String())
}

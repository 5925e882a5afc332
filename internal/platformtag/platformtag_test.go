package platformtag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForMapsKnownArches(t *testing.T) {
	assert.Equal(t, "x86_64-linux", For("amd64", "linux"))
	assert.Equal(t, "aarch64-windows", For("arm64", "windows"))
	assert.Equal(t, "x86-darwin", For("386", "darwin"))
}

func TestForPassesThroughUnknownArch(t *testing.T) {
	assert.Equal(t, "riscv64-linux", For("riscv64", "linux"))
}

func TestFromUnameMapsCommonValues(t *testing.T) {
	assert.Equal(t, "x86_64-linux", FromUname("x86_64", "Linux"))
	assert.Equal(t, "aarch64-darwin", FromUname("arm64", "Darwin"))
	assert.Equal(t, "x86-linux", FromUname("i686", "Linux"))
}

func TestCurrentReturnsNonEmptyTag(t *testing.T) {
	assert.NotEmpty(t, Current())
}

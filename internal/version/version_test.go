package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	v, c := Version, GitCommit
	t.Cleanup(func() { Version, GitCommit = v, c })

	Version, GitCommit = "1.2.0", "unknown"
	assert.Equal(t, "1.2.0", String())

	GitCommit = "abc1234def5678"
	assert.Equal(t, "1.2.0 (abc1234)", String())

	info := Get()
	assert.Equal(t, "signalnode", info.Name)
	assert.Equal(t, "abc1234def5678", info.GitCommit)
	assert.NotEmpty(t, info.Platform)
}

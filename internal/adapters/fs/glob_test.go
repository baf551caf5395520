package fs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/rex/internal/adapters/fs"
	"go.trai.ch/rex/internal/core/domain"
)

func TestMatcher_Included(t *testing.T) {
	tests := []struct {
		name  string
		globs domain.PathGlobs
		path  string
		want  bool
	}{
		{name: "literal file", globs: domain.PathGlobs{Include: []string{"a.txt"}}, path: "a.txt", want: true},
		{name: "star stays in segment", globs: domain.PathGlobs{Include: []string{"*.go"}}, path: "pkg/x.go", want: false},
		{name: "doublestar any depth", globs: domain.PathGlobs{Include: []string{"**/*.go"}}, path: "pkg/sub/x.go", want: true},
		{name: "doublestar zero depth", globs: domain.PathGlobs{Include: []string{"**/*.go"}}, path: "x.go", want: true},
		{name: "directory selects contents", globs: domain.PathGlobs{Include: []string{"src"}}, path: "src/deep/file", want: true},
		{name: "exclude wins", globs: domain.PathGlobs{Include: []string{"**"}, Exclude: []string{"**/*.log"}}, path: "out/run.log", want: false},
		{name: "excluded parent", globs: domain.PathGlobs{Include: []string{"**"}, Exclude: []string{"vendor"}}, path: "vendor/lib/a.go", want: false},
		{name: "no match", globs: domain.PathGlobs{Include: []string{"src/*.c"}}, path: "src/a.h", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := fs.NewMatcher(tt.globs)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Included(tt.path))
		})
	}
}

func TestMatcher_RejectsInvalidGlobs(t *testing.T) {
	for _, g := range []domain.PathGlobs{
		{},
		{Include: []string{"../outside"}},
		{Include: []string{"/abs"}},
		{Include: []string{"[unclosed"}},
	} {
		_, err := fs.NewMatcher(g)
		assert.Error(t, err, "%v", g)
	}
}

func TestMatcher_Excluded(t *testing.T) {
	m, err := fs.NewMatcher(domain.PathGlobs{
		Include: []string{"**"},
		Exclude: []string{"node_modules", "**/*.tmp"},
	})
	require.NoError(t, err)

	assert.True(t, m.Excluded("node_modules"))
	assert.True(t, m.Excluded("node_modules/pkg/index.js"))
	assert.True(t, m.Excluded("build/cache.tmp"))
	assert.True(t, m.Excluded("scratch.tmp/inner"))
	assert.False(t, m.Excluded("src/node_modules.go"))
	assert.False(t, m.Excluded("src"))
}

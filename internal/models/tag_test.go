package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTagName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want string
	}{
		{"Go", "go"},
		{"go ", "go"},
		{"  GoLang  ", "golang"},
		{"C++", "c++"},
		{"", ""},
		{"   ", ""},
		{"Web-Dev", "web-dev"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.raw, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, NormalizeTagName(tc.raw))
		})
	}
}

func TestSlugifyTagName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want string
	}{
		{"go", "go"},
		{"c++", "c--"},
		{"web dev", "web-dev"},
		{"c#", "c-"},
		{".net", "-net"},
		{"vue3", "vue3"},
		{"data science!", "data-science-"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, SlugifyTagName(tc.name))
		})
	}
}

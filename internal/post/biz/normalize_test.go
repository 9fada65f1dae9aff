package biz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercase passthrough", "hello", "hello"},
		{"uppercase folded", "Hello World", "helloworld"},
		{"punctuation stripped", "My Post, Part 1!", "mypostpart1"},
		{"digits kept", "post 123", "post123"},
		{"cyrillic transliterated", "Привет", "privet"},
		{"mixed scripts collide", "Пост 1", "post1"},
		{"shch expansion", "Щи", "shchi"},
		{"hard and soft signs dropped", "объём", "obem"},
		{"empty", "", ""},
		{"only punctuation", "?!...", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeName(tt.input))
		})
	}
}

func TestNormalizeName_CollisionPairs(t *testing.T) {
	pairs := [][2]string{
		{"Привет", "privet"},
		{"My Post", "my-post"},
		{"HELLO", "h e l l o"},
	}
	for _, pair := range pairs {
		assert.Equal(t, NormalizeName(pair[0]), NormalizeName(pair[1]),
			"%q and %q must normalize identically", pair[0], pair[1])
	}
}

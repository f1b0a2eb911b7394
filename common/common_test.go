package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpanText(t *testing.T) {
	s := Span{Offset: 6, Size: 5}
	assert.Equal(t, 11, s.End())
	assert.Equal(t, "world", s.Text("hello world"))
	assert.Empty(t, s.Text("short"))
	assert.Empty(t, Span{Offset: -1, Size: 2}.Text("hello"))
}

func TestPosition(t *testing.T) {
	p := Position{FileIndex: 2, GlobalLine: 40, FileLine: 3, Column: 5}
	assert.Equal(t, "file#2:3:5", p.String())
	assert.True(t, p.IsValid())
	assert.False(t, Position{}.IsValid())
}

package peers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestListAllAndLen(t *testing.T) {
	l := New([]Peer{{Name: "a", RPCAddr: "x:1"}, {Name: "b", RPCAddr: "y:2"}})
	assert.Equal(t, 2, l.Len())
	assert.Len(t, l.All(), 2)
}

func TestEmptyList(t *testing.T) {
	l := New(nil)
	assert.Equal(t, 0, l.Len())
	assert.Empty(t, l.All())
}

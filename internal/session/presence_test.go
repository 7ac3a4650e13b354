package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPresenceBindUnbind(t *testing.T) {
	p := NewPresence()
	assert.False(t, p.Online("alice"))

	p.bind("alice")
	assert.True(t, p.Online("alice"))

	p.unbind("alice")
	assert.False(t, p.Online("alice"))
}

func TestPresenceMultipleBindsNeedMatchingUnbinds(t *testing.T) {
	p := NewPresence()
	p.bind("alice")
	p.bind("alice")
	p.unbind("alice")
	assert.True(t, p.Online("alice"))
	p.unbind("alice")
	assert.False(t, p.Online("alice"))
}

package chatmsg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloneIsIndependent(t *testing.T) {
	m := Message{ID: "1", Sender: "a", Recipient: "b", Content: "hi", Status: Unread}
	c := m.Clone()
	c.Status = Read
	assert.Equal(t, Unread, m.Status)
	assert.Equal(t, Read, c.Status)
}

func TestNowIncreasesMonotonically(t *testing.T) {
	a := Now()
	b := Now()
	assert.GreaterOrEqual(t, b, a)
}

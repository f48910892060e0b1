package chattext

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
)

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestTemplatesGolden(t *testing.T) {
	g := newGoldie(t)
	g.Assert(t, "welcome", []byte(Welcome("budi santoso")))
	g.Assert(t, "welcome_anonymous", []byte(Welcome("  ")))
	g.Assert(t, "auto_reply", []byte(AutoReply))
	g.Assert(t, "goodbye", []byte(Goodbye))
}

func TestIsEndCommand(t *testing.T) {
	assert.True(t, IsEndCommand("/end"))
	assert.True(t, IsEndCommand("  /END \n"))
	assert.False(t, IsEndCommand("/ending"))
	assert.False(t, IsEndCommand("please /end"))
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "Room Service", Label("room_service"))
	assert.Equal(t, "Housekeeping", Label("housekeeping"))
}

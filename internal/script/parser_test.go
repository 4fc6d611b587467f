package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleScript = `// lobby generated
[GAME]
{
	MapName=DesertPlanet;
	GameType=CoreMod v1;
	ModHash=3735928559;
	HostIP=127.0.0.1;
	HostPort=8500;
	[PLAYER0]
	{
		Name=alice;
		Team=0;
	}
	[player1]
	{
		name=bob;
	}
	[TEAM0]
	{
		TeamLeader=0;
	}
}
`

func TestParse(t *testing.T) {
	s, err := Parse(sampleScript)
	require.NoError(t, err)

	assert.Equal(t, "DesertPlanet", s.MapName)
	assert.Equal(t, "CoreMod v1", s.ModName)
	assert.Equal(t, uint32(0), s.MapHash)
	assert.Equal(t, uint32(0xDEADBEEF), s.ModHash)
	assert.Equal(t, "127.0.0.1", s.HostIP)
	assert.Equal(t, 8500, s.HostPort)
	assert.Equal(t, []string{"alice", "bob"}, s.Players)
	assert.Equal(t, sampleScript, s.Text)
}

func TestParseDefaults(t *testing.T) {
	s, err := Parse("[game]{mapname=m;gametype=g;}")
	require.NoError(t, err)

	assert.Equal(t, 8452, s.HostPort)
	assert.Empty(t, s.HostIP)
	assert.Empty(t, s.Players)
}

func TestParseHashForms(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  uint32
	}{
		{"decimal", "305419896", 0x12345678},
		{"hex", "0x12345678", 0x12345678},
		{"negative", "-559038737", 0xDEADBEEF},
		{"empty", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Parse("[GAME]{MapName=m;GameType=g;MapHash=" + tt.value + ";}")
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.MapHash)
		})
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"no game section", "[OTHER]{a=b;}"},
		{"unclosed section", "[GAME]{MapName=m;GameType=g;"},
		{"missing semicolon", "[GAME]{MapName=m\nGameType=g;}"},
		{"missing equals", "[GAME]{MapName;}"},
		{"missing map", "[GAME]{GameType=g;}"},
		{"missing mod", "[GAME]{MapName=m;}"},
		{"bad hash", "[GAME]{MapName=m;GameType=g;ModHash=abc;}"},
		{"hash overflow", "[GAME]{MapName=m;GameType=g;ModHash=4294967296;}"},
		{"bad port", "[GAME]{MapName=m;GameType=g;HostPort=99999;}"},
		{"garbage", "MapName=m;"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.text)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidScript)
		})
	}
}

func TestParseErrorReportsLine(t *testing.T) {
	_, err := Parse("[GAME]\n{\n\tMapName=m;\n\tGameType\n}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 4")
}

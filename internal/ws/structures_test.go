package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSyncPlaybackAliases(t *testing.T) {
	for _, typ := range []string{"sync_playback", "playback_synced"} {
		msg, err := Decode([]byte(`{"type":"` + typ + `","current_time":12.5,"is_playing":true}`))
		require.NoError(t, err, typ)

		sync, ok := msg.(SyncPlayback)
		require.True(t, ok, typ)
		require.NotNil(t, sync.CurrentTime)
		assert.Equal(t, 12.5, *sync.CurrentTime)
		assert.True(t, sync.IsPlaying)
		assert.Equal(t, typ == "playback_synced", sync.Relayed)
	}
}

func TestDecodeSongStarted(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"song_started","song_url":"https://cdn.example/a.mp3","current_song":"A","current_artist":"B","is_playing":true}`))
	require.NoError(t, err)

	assert.Equal(t, SongStarted{URL: "https://cdn.example/a.mp3", Title: "A", Artist: "B", IsPlaying: true}, msg)

	msg, err = Decode([]byte(`{"type":"song_started","song_url":null}`))
	require.NoError(t, err)
	assert.Empty(t, msg.(SongStarted).URL)
}

func TestDecodeMissingTimeIsNil(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"song_paused"}`))
	require.NoError(t, err)
	assert.Nil(t, msg.(SongPaused).CurrentTime)
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode([]byte(`{not json`))
	assert.ErrorIs(t, err, ErrMalformedMessage)

	_, err = Decode([]byte(`{"current_time":1}`))
	assert.ErrorIs(t, err, ErrMalformedMessage)

	_, err = Decode([]byte(`{"type":"sync_playback","current_time":"soon"}`))
	assert.ErrorIs(t, err, ErrMalformedMessage)

	_, err = Decode([]byte(`{"type":"dance"}`))
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestDecodeUserIDs(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"user_joined","user_id":42,"name":"ana"}`))
	require.NoError(t, err)
	assert.Equal(t, UserJoined{UserID: "42", Name: "ana"}, msg)

	msg, err = Decode([]byte(`{"type":"user_left","user_id":"u-7","name":"bo"}`))
	require.NoError(t, err)
	assert.Equal(t, UserLeft{UserID: "u-7", Name: "bo"}, msg)
}

func TestUserIDRoundTrip(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`42`, `42`},
		{`"42"`, `42`},
		{`"007"`, `"007"`},
		{`"+5"`, `"+5"`},
		{`"-0"`, `"-0"`},
		{`"u-7"`, `"u-7"`},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			msg, err := Decode([]byte(`{"type":"user_joined","user_id":` + tt.in + `,"name":"ana"}`))
			require.NoError(t, err)

			joined := msg.(UserJoined)
			out, err := json.Marshal(struct {
				UserID ID `json:"user_id"`
			}{joined.UserID})
			require.NoError(t, err)
			assert.JSONEq(t, `{"user_id":`+tt.want+`}`, string(out))

			var back struct {
				UserID ID `json:"user_id"`
			}
			require.NoError(t, json.Unmarshal(out, &back))
			assert.Equal(t, joined.UserID, back.UserID)
		})
	}
}

func TestEncodeFlatFrames(t *testing.T) {
	data, err := Encode("ABC123", AddSong{Title: "Song", Artist: "Band", URL: "https://x/y.mp3"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"add_song","room_code":"ABC123","song_title":"Song","artist":"Band","song_url":"https://x/y.mp3"}`, string(data))

	data, err = Encode("ABC123", TogglePlayback{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"toggle_playback","room_code":"ABC123"}`, string(data))

	at := 3.0
	data, err = Encode("ABC123", SyncPlayback{CurrentTime: &at, IsPlaying: false})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"sync_playback","room_code":"ABC123","current_time":3,"is_playing":false}`, string(data))

	data, err = Encode("ABC123", UserJoined{UserID: "42", Name: "ana"})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, float64(42), raw["user_id"])
}

func TestRoomCode(t *testing.T) {
	assert.Equal(t, "R1", RoomCode([]byte(`{"type":"next_song","room_code":"R1"}`)))
	assert.Empty(t, RoomCode([]byte(`garbage`)))
}

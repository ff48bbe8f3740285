package stamp

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFloatJSON(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{42.636, `42.636`},
		{-0.5, `-0.5`},
		{math.Inf(1), `"Infinity"`},
		{math.Inf(-1), `"-Infinity"`},
		{math.NaN(), `"NaN"`},
	}
	for _, tc := range cases {
		b, err := json.Marshal(Float(tc.in))
		require.NoError(t, err)
		assert.Equal(t, tc.want, string(b))

		var back Float
		require.NoError(t, json.Unmarshal(b, &back))
		if math.IsNaN(tc.in) {
			assert.True(t, math.IsNaN(float64(back)))
		} else {
			assert.Equal(t, tc.in, float64(back))
		}
	}

	var f Float
	assert.Error(t, json.Unmarshal([]byte(`"nan"`), &f))
}

func TestRecordJSONWithNaNAltitude(t *testing.T) {
	fix := sampleFix()
	fix.Altitude = math.NaN()
	raw, err := Encode(fix, NewSession(sampleDevice, 1024, SyncBeidouLocked))
	require.NoError(t, err)
	rec, err := Decode(raw)
	require.NoError(t, err)

	b, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"altitude":"NaN"`)
	assert.Contains(t, string(b), `"device_id":"DEADBEEFCAFEBABE"`)
	assert.Contains(t, string(b), `"sync_status":"beidouLocked"`)

	var back Record
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, math.IsNaN(back.Altitude))
	assert.Equal(t, rec.DeviceID, back.DeviceID)
	assert.Equal(t, rec.Latitude, back.Latitude)
	assert.Equal(t, rec.CRC, back.CRC)
	assert.True(t, back.Time.Equal(rec.Time))
}

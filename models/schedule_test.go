package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("08:00")
	require.NoError(t, err)
	assert.Equal(t, 8, tod.Hour)
	assert.Equal(t, 0, tod.Minute)
	assert.Equal(t, "08:00", tod.String())

	tod, err = ParseTimeOfDay("23:59")
	require.NoError(t, err)
	assert.Equal(t, 23, tod.Hour)
	assert.Equal(t, 59, tod.Minute)

	for _, bad := range []string{"24:00", "12:60", "8:00", "12", "noon", "", "12:5", "12:345"} {
		_, err := ParseTimeOfDay(bad)
		assert.Error(t, err, "expected %q to be rejected", bad)
	}
}

func TestTimeOfDayScan(t *testing.T) {
	var tod TimeOfDay
	require.NoError(t, tod.Scan("14:30"))
	assert.Equal(t, TimeOfDay{Hour: 14, Minute: 30}, tod)

	// Postgres time columns include seconds.
	require.NoError(t, tod.Scan([]byte("09:05:00")))
	assert.Equal(t, TimeOfDay{Hour: 9, Minute: 5}, tod)

	assert.Error(t, tod.Scan(42))
}

func TestTimeOfDayValue(t *testing.T) {
	v, err := TimeOfDay{Hour: 7, Minute: 5}.Value()
	require.NoError(t, err)
	assert.Equal(t, "07:05", v)

	_, err = TimeOfDay{Hour: 25}.Value()
	assert.Error(t, err)
}

func TestTimeOfDayJSON(t *testing.T) {
	b, err := json.Marshal(TimeOfDay{Hour: 8, Minute: 0})
	require.NoError(t, err)
	assert.Equal(t, `"08:00"`, string(b))

	var tod TimeOfDay
	require.NoError(t, json.Unmarshal([]byte(`"18:45"`), &tod))
	assert.Equal(t, TimeOfDay{Hour: 18, Minute: 45}, tod)

	assert.Error(t, json.Unmarshal([]byte(`"25:00"`), &tod))
}

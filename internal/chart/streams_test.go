package chart

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrcode/loopchart/internal/models"
)

func TestParseStream(t *testing.T) {
	for _, s := range Streams() {
		got, err := ParseStream(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	got, err := ParseStream("TEMPBASALS")
	require.NoError(t, err)
	assert.Equal(t, StreamTempBasals, got)

	_, err = ParseStream("bogus")
	assert.ErrorIs(t, err, ErrUnknownStream)
}

func TestChangedStreams(t *testing.T) {
	a := fullSnapshot()
	b := fullSnapshot()
	assert.Empty(t, ChangedStreams(&a, &b))

	b.Carbs = append(b.Carbs, models.CarbEntry{CreatedAt: ago(time.Minute), Carbs: 5})
	b.MaxBasal = 4
	b.Now = b.Now.Add(time.Hour)
	assert.Equal(t, []Stream{StreamCarbs, StreamMaxBasal}, ChangedStreams(&a, &b))
}

func TestCopyStream(t *testing.T) {
	src := fullSnapshot()
	var dst models.Snapshot

	CopyStream(&dst, &src, StreamBoluses)
	CopyStream(&dst, &src, StreamSuggestion)

	assert.Equal(t, src.Boluses, dst.Boluses)
	assert.Same(t, src.Suggestion, dst.Suggestion)
	assert.Empty(t, dst.Glucose)
}

func TestStreamField_DecodesInPlace(t *testing.T) {
	var snap models.Snapshot
	body := `[{"dateString":"2024-05-01T11:55:00Z","glucose":123}]`

	require.NoError(t, json.Unmarshal([]byte(body), StreamField(&snap, StreamGlucose)))
	require.Len(t, snap.Glucose, 1)
	assert.Equal(t, 123.0, snap.Glucose[0].Value())

	assert.Nil(t, StreamField(&snap, Stream(42)))
}

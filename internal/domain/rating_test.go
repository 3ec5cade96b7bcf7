package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRatingUnmarshalJSON(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		want    Rating
		wantErr bool
	}{
		{name: "name", input: `"Good"`, want: Good},
		{name: "number", input: `1`, want: Again},
		{name: "numeric string", input: `"4"`, want: Easy},
		{name: "zero", input: `0`, wantErr: true},
		{name: "out of range", input: `5`, wantErr: true},
		{name: "unknown name", input: `"Perfect"`, wantErr: true},
		{name: "lowercase name", input: `"good"`, wantErr: true},
		{name: "fraction", input: `2.5`, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var r Rating
			err := json.Unmarshal([]byte(tc.input), &r)
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrValidation), "want ErrValidation, got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, r)
		})
	}
}

func TestRatingMarshalJSON(t *testing.T) {
	b, err := json.Marshal(Hard)
	require.NoError(t, err)
	assert.Equal(t, `"Hard"`, string(b))

	_, err = json.Marshal(Rating(9))
	assert.Error(t, err)
}

func TestStateJSON(t *testing.T) {
	for _, s := range []State{StateNew, StateLearning, StateReview, StateRelearning} {
		b, err := json.Marshal(s)
		require.NoError(t, err)

		var got State
		require.NoError(t, json.Unmarshal(b, &got))
		assert.Equal(t, s, got)
	}

	assert.False(t, State(7).IsValid())
	assert.Equal(t, "State(7)", State(7).String())
}

func TestDetailsScan(t *testing.T) {
	var d Details
	require.NoError(t, d.Scan(`{"pinyin":"hànzì","exampleSentences":[{"sentence":"我学汉字"}]}`))
	assert.Equal(t, "hànzì", d.Pinyin)
	require.Len(t, d.ExampleSentences, 1)

	var empty Details
	require.NoError(t, empty.Scan(nil))
	assert.Error(t, empty.Scan(42))

	var nilDetails *Details
	v, err := nilDetails.Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}

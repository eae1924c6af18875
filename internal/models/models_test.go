package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	t.Run("Expect: member, message and cause", func(t *testing.T) {
		err := &AppError{Member: "CIK0000320193.json", Message: "Failed to decode submission", Err: errors.New("unexpected EOF")}
		assert.Equal(t, "CIK0000320193.json: Failed to decode submission - unexpected EOF", err.Error())
	})

	t.Run("Expect: row details when a row is attached", func(t *testing.T) {
		err := &AppError{Member: "upload.csv", Message: "Invalid row", Row: &FilingRow{CIK: "0000000001"}}
		assert.Contains(t, err.Error(), `"cik":"0000000001"`)
	})

	t.Run("Expect: unwrap exposes the cause", func(t *testing.T) {
		cause := errors.New("boom")
		err := &AppError{Member: "m", Message: "x", Err: cause}
		assert.ErrorIs(t, err, cause)
	})
}

func TestAppError_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(AppError{Member: "a.json", Message: "skipped", Err: errors.New("misaligned")})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "a.json", decoded["member"])
	assert.Equal(t, "skipped", decoded["message"])
	assert.Equal(t, "misaligned", decoded["error"])
}

func TestFilingRow_Fields(t *testing.T) {
	row := FilingRow{"0000320193", "Apple Inc.", "2019-05-01", "S-1", "0000320193-19-000002", "s1.htm"}
	assert.Equal(t, []string{"0000320193", "Apple Inc.", "2019-05-01", "S-1", "0000320193-19-000002", "s1.htm"}, row.Fields())
}

package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runTickCmd(t *testing.T, args ...string) []byte {
	t.Helper()
	cmd := newTickCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.Bytes()
}

func TestTickFromPrice(t *testing.T) {
	var got tickOutput
	require.NoError(t, json.Unmarshal(runTickCmd(t, "--price", "1", "--spacing", "60"), &got))
	assert.Equal(t, int32(0), got.Tick)
	assert.Equal(t, "1", got.Price)
	assert.Equal(t, int32(0), got.SnapDown)
	assert.Equal(t, int32(0), got.SnapUp)
}

func TestTickSnapping(t *testing.T) {
	var got tickOutput
	require.NoError(t, json.Unmarshal(runTickCmd(t, "--tick", "-61", "--spacing", "60"), &got))
	assert.Equal(t, int32(-120), got.SnapDown)
	assert.Equal(t, int32(-60), got.SnapUp)
	assert.Equal(t, int32(-60), got.Nearest)
}

func TestTickRange(t *testing.T) {
	var got rangeOutput
	require.NoError(t, json.Unmarshal(runTickCmd(t, "--low", "0.9", "--high", "1.1", "--spacing", "10"), &got))
	assert.Equal(t, int32(0), got.TickLower%10)
	assert.Equal(t, int32(0), got.TickUpper%10)
	assert.Less(t, got.TickLower, got.TickUpper)
}

func TestTickRequiresInput(t *testing.T) {
	cmd := newTickCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})
	require.Error(t, cmd.Execute())
}

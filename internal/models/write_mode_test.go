package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteModeValid(t *testing.T) {
	assert.True(t, ModeAppend.Valid())
	assert.True(t, ModeUpsertSnapshot.Valid())
	assert.False(t, WriteMode("").Valid())
	assert.False(t, WriteMode("replace").Valid())
	assert.False(t, WriteMode("Append").Valid())
}

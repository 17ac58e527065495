package deadline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArmThenReadReflectsSnapshot(t *testing.T) {
	var r Register
	r.Arm("EngineA", "think", 1000, 5000, 42)

	snap := r.Read()
	assert.True(t, snap.Set)
	assert.Equal(t, "EngineA", snap.EngineName)
	assert.Equal(t, "think", snap.Description)
	assert.Equal(t, int64(1000), snap.Started)
	assert.Equal(t, int64(5000), snap.WallDeadline)
	assert.Equal(t, 42, snap.PID)
	assert.False(t, snap.CallbackFired)
}

func TestClearResetsSetAndCallbackFired(t *testing.T) {
	var r Register
	r.Arm("EngineA", "think", 0, 1000, 1)
	r.MarkCallbackFired()
	r.Clear()

	snap := r.Read()
	assert.False(t, snap.Set)
	assert.False(t, snap.CallbackFired)
}

func TestMarkCallbackFiredIsNoopWhenNotSet(t *testing.T) {
	var r Register
	r.MarkCallbackFired()
	assert.False(t, r.Read().CallbackFired)
}

func TestReArmReplacesPriorState(t *testing.T) {
	var r Register
	r.Arm("EngineA", "think", 0, 1000, 1)
	r.MarkCallbackFired()
	r.Arm("EngineB", "think", 10, 2000, 2)

	snap := r.Read()
	assert.Equal(t, "EngineB", snap.EngineName)
	assert.False(t, snap.CallbackFired, "a fresh Arm must clear any previously fired callback flag")
}

package solver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVariableSpace_InitialBounds(t *testing.T) {
	f := newShopFixture(1)
	pm, err := f.load(Toggles{})
	require.NoError(t, err)

	vs := NewVariableSpace(pm)

	assert.Equal(t, 0, vs.StartLB[0])
	assert.Equal(t, 25, vs.EndLB[0])
	assert.Equal(t, pm.Horizon-25, vs.StartUB[0])

	// Single-mode operations carry no indicator variables.
	assert.Nil(t, vs.Eligible[0])
	assert.Nil(t, vs.Eligible[1])
	require.Len(t, vs.Eligible[2], 2)
	assert.True(t, vs.ModeEligible(2, 0))
	assert.True(t, vs.ModeEligible(2, 1))

	// 2 per op plus one indicator per mode of the multi-mode op.
	assert.Equal(t, 2*3+2, vs.VariableCount())
}

func TestVariableSpace_PropagateTightensChains(t *testing.T) {
	f := newShopFixture(1)
	pm, err := f.load(Toggles{})
	require.NoError(t, err)

	vs := NewVariableSpace(pm)
	require.NoError(t, vs.Propagate(pm))

	// cut(25) -> weld(30) -> polish(20) forward pass.
	assert.Equal(t, 25, vs.StartLB[1])
	assert.Equal(t, 55, vs.StartLB[2])
	assert.Equal(t, 75, vs.EndLB[2])

	// Backward pass: cut must leave room for its successors.
	assert.Equal(t, pm.Horizon-75, vs.StartUB[0])
}

func TestVariableSpace_MaxDelayPropagates(t *testing.T) {
	f := newShopFixture(1)
	f.pattern.Precedences[0].MaxDelayMinutes = 10
	pm, err := f.load(Toggles{})
	require.NoError(t, err)

	vs := NewVariableSpace(pm)
	require.NoError(t, vs.Propagate(pm))

	// weld.start <= cut.end + 10
	assert.LessOrEqual(t, vs.StartUB[1], vs.EndUB[0]+10)
}

func TestVariableSpace_DisableMode(t *testing.T) {
	f := newShopFixture(1)
	pm, err := f.load(Toggles{})
	require.NoError(t, err)
	vs := NewVariableSpace(pm)

	require.NoError(t, vs.DisableMode(pm, 2, 0, "test"))
	assert.False(t, vs.ModeEligible(2, 0))
	assert.True(t, vs.ModeEligible(2, 1))

	err = vs.DisableMode(pm, 2, 1, "test")
	require.Error(t, err)
	var ede *emptyDomainError
	require.ErrorAs(t, err, &ede)
	assert.Equal(t, 2, ede.op)

	// Disabling the only mode of a single-mode operation fails immediately.
	err = vs.DisableMode(pm, 0, 0, "test")
	require.Error(t, err)
}

func TestVariableSpace_Clone(t *testing.T) {
	f := newShopFixture(1)
	pm, err := f.load(Toggles{})
	require.NoError(t, err)
	vs := NewVariableSpace(pm)

	clone := vs.Clone()
	clone.StartLB[0] = 99
	require.NoError(t, clone.DisableMode(pm, 2, 0, "test"))

	assert.Equal(t, 0, vs.StartLB[0])
	assert.True(t, vs.ModeEligible(2, 0))
}

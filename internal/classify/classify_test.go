package classify

import (
	"testing"

	"hoardd/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	mb = 1000 * 1000
	gb = 1000 * mb
)

var th = Thresholds{FloppyCeiling: 10 * mb, DestinationMin: 100 * mb}

func dev(name string, size int64, removable bool) model.BlockDevice {
	return model.BlockDevice{Name: name, Path: "/dev/" + name, Size: size, Removable: removable}
}

func TestClassifyFloppyAndStick(t *testing.T) {
	inv := []model.BlockDevice{
		dev("mmcblk0", 32*gb, false),
		dev("sda", 1474560, true),
		dev("sdb", 32*gb, true),
	}
	roles := Classify(inv, model.RoleAssignment{}, th)
	require.NotNil(t, roles.Source)
	require.NotNil(t, roles.Destination)
	assert.Equal(t, "sda", roles.Source.Name)
	assert.Equal(t, "sdb", roles.Destination.Name)
	assert.NotEqual(t, roles.Source.Name, roles.Destination.Name)
}

func TestClassifyEmptyDriveReportsZero(t *testing.T) {
	roles := Classify([]model.BlockDevice{dev("sda", 0, true)}, model.RoleAssignment{}, th)
	require.NotNil(t, roles.Source)
	assert.Equal(t, "sda", roles.Source.Name)
	assert.Nil(t, roles.Destination)
}

func TestClassifySourceNeedsExactlyOneCandidate(t *testing.T) {
	cases := map[string][]model.BlockDevice{
		"none":          {dev("sdb", 32*gb, true)},
		"two floppies":  {dev("sda", 1474560, true), dev("sdc", 737280, true), dev("sdb", 32*gb, true)},
		"not removable": {dev("sda", 1474560, false)},
	}
	for name, inv := range cases {
		t.Run(name, func(t *testing.T) {
			roles := Classify(inv, model.RoleAssignment{}, th)
			assert.Nil(t, roles.Source)
		})
	}
}

func TestClassifyAmbiguousDestinations(t *testing.T) {
	inv := []model.BlockDevice{dev("sda", 32*gb, true), dev("sdb", 32*gb, true)}
	roles := Classify(inv, model.RoleAssignment{}, th)
	assert.Nil(t, roles.Source)
	assert.Nil(t, roles.Destination)
}

func TestClassifyIgnoresMidSizeDevices(t *testing.T) {
	inv := []model.BlockDevice{dev("sda", 1474560, true), dev("sdb", 50*mb, true)}
	roles := Classify(inv, model.RoleAssignment{}, th)
	require.NotNil(t, roles.Source)
	assert.Nil(t, roles.Destination)
}

func TestClassifyKeepsPreviousRoles(t *testing.T) {
	first := Classify([]model.BlockDevice{
		dev("sda", 1474560, true),
		dev("sdb", 32*gb, true),
	}, model.RoleAssignment{}, th)
	require.NotNil(t, first.Source)
	require.NotNil(t, first.Destination)

	// a second drive and a second stick show up
	inv := []model.BlockDevice{
		dev("sdd", 64*gb, true),
		dev("sdc", 1474560, true),
		dev("sda", 1474560, true),
		dev("sdb", 32*gb, true),
	}
	next := Classify(inv, first, th)
	require.NotNil(t, next.Source)
	require.NotNil(t, next.Destination)
	assert.Equal(t, "sda", next.Source.Name)
	assert.Equal(t, "sdb", next.Destination.Name)

	// order of enumeration doesn't matter
	inv[0], inv[3] = inv[3], inv[0]
	again := Classify(inv, next, th)
	assert.Equal(t, "sda", again.Source.Name)
	assert.Equal(t, "sdb", again.Destination.Name)
}

func TestClassifyDropsPreviousWhenGone(t *testing.T) {
	prev := model.RoleAssignment{Source: &model.BlockDevice{Name: "sda"}}
	inv := []model.BlockDevice{dev("sdc", 1474560, true), dev("sdd", 1474560, true)}
	roles := Classify(inv, prev, th)
	assert.Nil(t, roles.Source)
}

func TestClassifyPreviousMustStillQualify(t *testing.T) {
	prev := model.RoleAssignment{Destination: &model.BlockDevice{Name: "sdb"}}
	// sdb is now too small to be a destination
	inv := []model.BlockDevice{dev("sdb", 50*mb, true), dev("sdc", 16*gb, true)}
	roles := Classify(inv, prev, th)
	require.NotNil(t, roles.Destination)
	assert.Equal(t, "sdc", roles.Destination.Name)
}

func TestClassifyReturnsFreshRecords(t *testing.T) {
	prev := model.RoleAssignment{Source: &model.BlockDevice{Name: "sda", Size: 0, Removable: true}}
	roles := Classify([]model.BlockDevice{dev("sda", 1474560, true)}, prev, th)
	require.NotNil(t, roles.Source)
	assert.Equal(t, int64(1474560), roles.Source.Size)
}

func TestClassifyCeilingIsInclusive(t *testing.T) {
	roles := Classify([]model.BlockDevice{dev("sda", 10*mb, true)}, model.RoleAssignment{}, th)
	require.NotNil(t, roles.Source)

	roles = Classify([]model.BlockDevice{dev("sda", 10*mb+1, true)}, model.RoleAssignment{}, th)
	assert.Nil(t, roles.Source)
	assert.Nil(t, roles.Destination)
}

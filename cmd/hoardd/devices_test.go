package main

import (
	"testing"

	"hoardd/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestRoleOf(t *testing.T) {
	floppy := model.BlockDevice{Name: "sdb", Size: 1474560, Removable: true}
	stick := model.BlockDevice{Name: "sdc", Size: 16e9, Removable: true}
	disk := model.BlockDevice{Name: "mmcblk0", Size: 32e9}
	roles := model.RoleAssignment{Source: &floppy, Destination: &stick}

	assert.Equal(t, "source", roleOf(floppy, roles))
	assert.Equal(t, "destination", roleOf(stick, roles))
	assert.Equal(t, "-", roleOf(disk, roles))
	assert.Equal(t, "-", roleOf(floppy, model.RoleAssignment{}))
}

package blockdev

import (
	"bytes"
	"context"
	"errors"
	"log"
	"testing"

	"hoardd/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLsblk = `{
   "blockdevices": [
      {"name":"mmcblk0", "path":"/dev/mmcblk0", "size":31914983424, "rm":false, "type":"disk", "tran":null, "serial":"0x1234", "mountpoint":null,
         "children": [
            {"name":"mmcblk0p1", "path":"/dev/mmcblk0p1", "size":268435456, "rm":false, "type":"part", "tran":null, "serial":null, "mountpoint":"/boot"}
         ]
      },
      {"name":"sda", "path":"/dev/sda", "size":1474560, "rm":true, "type":"disk", "tran":"usb", "serial":"TEAC FD-05PUB", "mountpoint":null},
      {"name":"sdb", "path":"/dev/sdb", "size":"32017047552", "rm":"1", "type":"disk", "tran":"usb", "serial":"4C530001", "mountpoint":null,
         "children": [
            {"name":"sdb1", "path":"/dev/sdb1", "size":"32015974400", "rm":"1", "type":"part", "tran":null, "serial":null, "mountpoint":"/media/pi/STICK"}
         ]
      },
      {"name":"sr0", "path":"/dev/sr0", "size":1073741312, "rm":true, "type":"rom", "tran":"usb"}
   ]
}`

func TestParse(t *testing.T) {
	devs, dropped, err := Parse([]byte(sampleLsblk))
	require.NoError(t, err)
	assert.Equal(t, 0, dropped)
	require.Len(t, devs, 3)

	assert.Equal(t, "mmcblk0", devs[0].Name)
	assert.False(t, devs[0].Removable)
	require.Len(t, devs[0].Partitions, 1)
	assert.Equal(t, "/boot", devs[0].Partitions[0].Mountpoint)

	floppy := devs[1]
	assert.Equal(t, "/dev/sda", floppy.Path)
	assert.Equal(t, int64(1474560), floppy.Size)
	assert.True(t, floppy.Removable)
	assert.Equal(t, "usb", floppy.Transport)
	assert.Empty(t, floppy.Partitions)

	stick := devs[2]
	assert.Equal(t, int64(32017047552), stick.Size)
	assert.True(t, stick.Removable)
	node, mp := stick.MountTarget()
	assert.Equal(t, "/dev/sdb1", node)
	assert.Equal(t, "/media/pi/STICK", mp)
}

func TestParseDropsMalformedRows(t *testing.T) {
	data := `{"blockdevices": [
		{"name":"sda", "size":null, "rm":true, "type":"disk"},
		{"name":"sdb", "size":1000, "rm":"maybe", "type":"disk"},
		{"name":"", "size":1000, "rm":true, "type":"disk"},
		{"name":"sdc", "size":"1.4M", "rm":1, "type":"disk"}
	]}`
	devs, dropped, err := Parse([]byte(data))
	require.NoError(t, err)
	assert.Equal(t, 3, dropped)
	require.Len(t, devs, 1)
	assert.Equal(t, "sdc", devs[0].Name)
	assert.Equal(t, "/dev/sdc", devs[0].Path)
	assert.Equal(t, int64(1400000), devs[0].Size)
	assert.True(t, devs[0].Removable)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, _, err := Parse([]byte("lsblk: unknown column"))
	assert.Error(t, err)
}

func TestListFailureIsEmptyInventory(t *testing.T) {
	var buf bytes.Buffer
	l := NewLsblk(log.New(&buf, "", 0))
	l.Run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return nil, errors.New("exec: \"lsblk\": executable file not found in $PATH")
	}

	assert.Empty(t, l.List(context.Background()))
	assert.Empty(t, l.List(context.Background()))
	// throttled: one warning for back-to-back failures
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("lsblk failed")))
}

func TestListPassesArgs(t *testing.T) {
	var gotName string
	var gotArgs []string
	l := NewLsblk(nil)
	l.Run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		gotName, gotArgs = name, args
		return []byte(sampleLsblk), nil
	}

	devs := l.List(context.Background())
	assert.Len(t, devs, 3)
	assert.Equal(t, "lsblk", gotName)
	assert.Contains(t, gotArgs, "--bytes")
	assert.Contains(t, gotArgs, "--json")
}

func TestKey(t *testing.T) {
	assert.Equal(t, "sda", Key(model.BlockDevice{Name: "sda"}))
	assert.Equal(t, "sda@TEAC_FD-05PUB", Key(model.BlockDevice{Name: "sda", Serial: "TEAC FD-05PUB"}))
	assert.NotEqual(t,
		Key(model.BlockDevice{Name: "sdb", Serial: "A"}),
		Key(model.BlockDevice{Name: "sdb", Serial: "B"}))
}

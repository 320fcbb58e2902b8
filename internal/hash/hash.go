package hash

import (
	"crypto/sha256"
	"encoding/hex"
	gohash "hash"
	"hash/crc32"
	"io"
	"os"
)

// util package to hash archived files, while copying or after the fact

type Result struct {
	Size   int64
	SHA256 string
	CRC32C uint32
}

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Digest is an io.Writer that updates both digests at once.
type Digest struct {
	sha gohash.Hash
	crc gohash.Hash32
	n   int64
}

func New() *Digest {
	return &Digest{sha: sha256.New(), crc: crc32.New(castagnoli)}
}

func (d *Digest) Write(p []byte) (int, error) {
	d.sha.Write(p)
	d.crc.Write(p)
	d.n += int64(len(p))
	return len(p), nil
}

func (d *Digest) Result() Result {
	return Result{
		Size:   d.n,
		SHA256: hex.EncodeToString(d.sha.Sum(nil)),
		CRC32C: d.crc.Sum32(),
	}
}

func Compute(path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, err
	}
	defer f.Close()

	d := New()
	if _, err := io.Copy(d, f); err != nil {
		return Result{}, err
	}
	return d.Result(), nil
}

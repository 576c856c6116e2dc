package id

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

// Digest builds a canonical text form of named fields and hashes it with
// SHA-256. Callers must add fields in a fixed order; maps have to be
// walked in sorted key order.
type Digest struct {
	h hash.Hash
}

// NewDigest starts a digest for a kind of content ("policy", "run", ...).
func NewDigest(kind string) *Digest {
	d := &Digest{h: sha256.New()}
	d.line("kind", strconv.Quote("plumbline/"+kind+"/v1"))
	return d
}

func (d *Digest) line(key, value string) {
	d.h.Write([]byte(key))
	d.h.Write([]byte{'='})
	d.h.Write([]byte(value))
	d.h.Write([]byte{'\n'})
}

// Str adds a quoted string field.
func (d *Digest) Str(key, v string) *Digest {
	d.line(key, strconv.Quote(v))
	return d
}

// Float adds a number in its shortest exact decimal form.
func (d *Digest) Float(key string, v float64) *Digest {
	d.line(key, Canonical(v))
	return d
}

// Int adds an integer field.
func (d *Digest) Int(key string, v int64) *Digest {
	d.line(key, strconv.FormatInt(v, 10))
	return d
}

// Bool adds a boolean field.
func (d *Digest) Bool(key string, v bool) *Digest {
	d.line(key, strconv.FormatBool(v))
	return d
}

// Sum returns the hex digest. The Digest must not be used afterwards.
func (d *Digest) Sum() string {
	return hex.EncodeToString(d.h.Sum(nil))
}

// Canonical renders v so that equal floats always yield equal text and
// -0 reads as 0.
func Canonical(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	case v == 0:
		return "0"
	}
	return decimal.NewFromFloat(v).String()
}

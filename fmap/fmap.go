//
// Copyright (c) 2021-2024 The flashkit authors
// All rights reserved
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

// Package fmap locates and decodes the flashmap structure that coreboot
// and friends embed in ROM images. All multi-byte fields are little
// endian; names are fixed 32-byte NUL-padded fields that need not be
// terminated.
package fmap

import (
	"bytes"
	"encoding/binary"

	"github.com/golang/glog"
	"github.com/juju/errors"
)

const (
	// Signature marks the start of an fmap header.
	Signature = "__FMAP__"

	// StrLen is the fixed size of name fields.
	StrLen = 32

	headerLen = 8 + 1 + 1 + 8 + 4 + StrLen + 2
	areaLen   = 4 + 4 + StrLen + 2

	// An fmap with more areas than this is considered corrupt.
	maxAreas = 512
)

// Area is one region described by the fmap.
type Area struct {
	Offset uint32
	Size   uint32
	Name   string
	Flags  uint16
}

// FMap is a decoded flashmap.
type FMap struct {
	VerMajor uint8
	VerMinor uint8
	Base     uint64
	Size     uint32
	Name     string
	Areas    []Area
}

func trimName(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// parse decodes an fmap that starts at the beginning of b. Returns the
// decoded map and the number of bytes it occupied.
func parse(b []byte) (*FMap, int, error) {
	if len(b) < headerLen || string(b[:8]) != Signature {
		return nil, 0, errors.Errorf("no fmap signature")
	}
	f := &FMap{
		VerMajor: b[8],
		VerMinor: b[9],
		Base:     binary.LittleEndian.Uint64(b[10:]),
		Size:     binary.LittleEndian.Uint32(b[18:]),
		Name:     trimName(b[22 : 22+StrLen]),
	}
	nareas := int(binary.LittleEndian.Uint16(b[22+StrLen:]))
	if nareas > maxAreas {
		return nil, 0, errors.Errorf("implausible fmap area count %d", nareas)
	}
	total := headerLen + nareas*areaLen
	if len(b) < total {
		return nil, 0, errors.Errorf("truncated fmap: %d areas need %d bytes, have %d",
			nareas, total, len(b))
	}
	for i := 0; i < nareas; i++ {
		a := b[headerLen+i*areaLen:]
		f.Areas = append(f.Areas, Area{
			Offset: binary.LittleEndian.Uint32(a),
			Size:   binary.LittleEndian.Uint32(a[4:]),
			Name:   trimName(a[8 : 8+StrLen]),
			Flags:  binary.LittleEndian.Uint16(a[8+StrLen:]),
		})
	}
	return f, total, nil
}

// ReadFromBuffer searches buf for an fmap and decodes the first one found.
func ReadFromBuffer(buf []byte) (*FMap, error) {
	off, err := find(uint32(len(buf)), func(start uint32, n int) ([]byte, error) {
		end := int(start) + n
		if end > len(buf) {
			end = len(buf)
		}
		return buf[start:end], nil
	}, 0, uint32(len(buf)))
	if err != nil {
		return nil, errors.Trace(err)
	}
	f, _, err := parse(buf[off:])
	return f, errors.Trace(err)
}

// ReadFunc reads n bytes of ROM starting at start.
type ReadFunc func(start uint32, n int) ([]byte, error)

// ReadFromROM searches [offset, offset+length) of the chip for an fmap,
// reading through read.
func ReadFromROM(read ReadFunc, offset, length uint32) (*FMap, error) {
	off, err := find(offset+length, read, offset, length)
	if err != nil {
		return nil, errors.Trace(err)
	}
	// Read the header to size the full map, then the whole thing.
	hdr, err := read(off, headerLen)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if len(hdr) < headerLen {
		return nil, errors.Errorf("short read at fmap header")
	}
	nareas := int(binary.LittleEndian.Uint16(hdr[22+StrLen:]))
	if nareas > maxAreas {
		return nil, errors.Errorf("implausible fmap area count %d", nareas)
	}
	all, err := read(off, headerLen+nareas*areaLen)
	if err != nil {
		return nil, errors.Trace(err)
	}
	f, _, err := parse(all)
	return f, errors.Trace(err)
}

// find locates the fmap signature. Aligned strides are tried first, from
// coarse to fine, before falling back to a byte-by-byte scan; real images
// place the fmap at a power-of-two boundary so the fallback rarely runs.
func find(limit uint32, read ReadFunc, offset, length uint32) (uint32, error) {
	if length < headerLen {
		return 0, errors.Errorf("search window too small for an fmap")
	}
	check := func(pos uint32) bool {
		if pos+headerLen > limit {
			return false
		}
		b, err := read(pos, len(Signature))
		if err != nil || len(b) < len(Signature) {
			return false
		}
		return string(b[:len(Signature)]) == Signature
	}
	for stride := length / 2; stride >= 16; stride /= 2 {
		glog.V(3).Infof("fmap search stride 0x%x", stride)
		pos := (offset + stride - 1) / stride * stride
		for ; pos < offset+length; pos += stride {
			if check(pos) {
				return pos, nil
			}
		}
	}
	for pos := offset; pos+headerLen <= offset+length; pos++ {
		if check(pos) {
			return pos, nil
		}
	}
	return 0, errors.Errorf("no fmap found in 0x%x..0x%x", offset, offset+length)
}

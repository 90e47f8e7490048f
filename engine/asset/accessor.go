package asset

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// glTF accessor component types.
const (
	ComponentByte          = 5120
	ComponentUnsignedByte  = 5121
	ComponentShort         = 5122
	ComponentUnsignedShort = 5123
	ComponentUnsignedInt   = 5125
	ComponentFloat         = 5126
)

// glTF accessor element types.
const (
	TypeScalar = "SCALAR"
	TypeVec2   = "VEC2"
	TypeVec3   = "VEC3"
	TypeVec4   = "VEC4"
	TypeMat4   = "MAT4"
)

var (
	errNoBufferView   = errors.New("accessor has no bufferView")
	errAccessorBounds = errors.New("accessor exceeds buffer bounds")
)

// ReadAccessorData reads the tightly packed bytes of an accessor, honoring the buffer view stride.
//
// Parameters:
//   - index: the accessor index
//
// Returns:
//   - []byte: count*elementSize bytes
//   - error: error if the accessor or its buffer view is invalid
func (a *Asset) ReadAccessorData(index int) ([]byte, error) {
	if index < 0 || index >= len(a.Accessors) {
		return nil, fmt.Errorf("accessor index %d out of range", index)
	}
	acc := &a.Accessors[index]
	if acc.BufferView == nil {
		return nil, errNoBufferView
	}

	bvIndex := *acc.BufferView
	if bvIndex < 0 || bvIndex >= len(a.BufferViews) {
		return nil, fmt.Errorf("bufferView index %d out of range", bvIndex)
	}
	bv := &a.BufferViews[bvIndex]
	if bv.Buffer < 0 || bv.Buffer >= len(a.Buffers) {
		return nil, fmt.Errorf("buffer index %d out of range", bv.Buffer)
	}
	buf := a.Buffers[bv.Buffer].Data

	elementSize := componentSize(acc.ComponentType) * componentCount(acc.Type)
	if elementSize == 0 {
		return nil, fmt.Errorf("unsupported accessor layout: type=%s componentType=%d", acc.Type, acc.ComponentType)
	}
	stride := elementSize
	if bv.ByteStride > 0 {
		stride = bv.ByteStride
	}

	base := bv.ByteOffset + acc.ByteOffset
	if acc.Count > 0 && base+(acc.Count-1)*stride+elementSize > len(buf) {
		return nil, errAccessorBounds
	}

	result := make([]byte, acc.Count*elementSize)
	for i := 0; i < acc.Count; i++ {
		src := base + i*stride
		copy(result[i*elementSize:(i+1)*elementSize], buf[src:src+elementSize])
	}
	return result, nil
}

// ReadVec2 reads a VEC2 FLOAT accessor.
func (a *Asset) ReadVec2(index int) ([][2]float32, error) {
	return readFloats[[2]float32](a, index, TypeVec2)
}

// ReadVec3 reads a VEC3 FLOAT accessor.
func (a *Asset) ReadVec3(index int) ([][3]float32, error) {
	return readFloats[[3]float32](a, index, TypeVec3)
}

// ReadIndices reads a SCALAR index accessor and widens it to uint32.
// Handles UNSIGNED_BYTE, UNSIGNED_SHORT, and UNSIGNED_INT component types.
func (a *Asset) ReadIndices(index int) ([]uint32, error) {
	if index < 0 || index >= len(a.Accessors) {
		return nil, fmt.Errorf("accessor index %d out of range", index)
	}
	acc := &a.Accessors[index]
	if acc.Type != TypeScalar {
		return nil, fmt.Errorf("index accessor is not SCALAR: type=%s", acc.Type)
	}

	data, err := a.ReadAccessorData(index)
	if err != nil {
		return nil, err
	}

	result := make([]uint32, acc.Count)
	switch acc.ComponentType {
	case ComponentUnsignedByte:
		for i := range result {
			result[i] = uint32(data[i])
		}
	case ComponentUnsignedShort:
		for i := range result {
			result[i] = uint32(binary.LittleEndian.Uint16(data[i*2:]))
		}
	case ComponentUnsignedInt:
		for i := range result {
			result[i] = binary.LittleEndian.Uint32(data[i*4:])
		}
	default:
		return nil, fmt.Errorf("unsupported index component type: %d", acc.ComponentType)
	}
	return result, nil
}

// BufferViewBytes returns a copy of the raw bytes of a buffer view. Used for images embedded in buffers.
func (a *Asset) BufferViewBytes(index int) ([]byte, error) {
	if index < 0 || index >= len(a.BufferViews) {
		return nil, fmt.Errorf("bufferView index %d out of range", index)
	}
	bv := &a.BufferViews[index]
	if bv.Buffer < 0 || bv.Buffer >= len(a.Buffers) {
		return nil, fmt.Errorf("buffer index %d out of range", bv.Buffer)
	}
	buf := a.Buffers[bv.Buffer].Data
	end := bv.ByteOffset + bv.ByteLength
	if bv.ByteOffset < 0 || end > len(buf) {
		return nil, fmt.Errorf("bufferView exceeds buffer bounds: offset=%d length=%d bufSize=%d", bv.ByteOffset, bv.ByteLength, len(buf))
	}
	out := make([]byte, bv.ByteLength)
	copy(out, buf[bv.ByteOffset:end])
	return out, nil
}

func readFloats[T any](a *Asset, index int, accessorType string) ([]T, error) {
	if index < 0 || index >= len(a.Accessors) {
		return nil, fmt.Errorf("accessor index %d out of range", index)
	}
	acc := &a.Accessors[index]
	if acc.Type != accessorType || acc.ComponentType != ComponentFloat {
		return nil, fmt.Errorf("accessor is not %s FLOAT: type=%s, componentType=%d", accessorType, acc.Type, acc.ComponentType)
	}

	data, err := a.ReadAccessorData(index)
	if err != nil {
		return nil, err
	}

	result := make([]T, acc.Count)
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, result); err != nil {
		return nil, err
	}
	return result, nil
}

func componentSize(componentType int) int {
	switch componentType {
	case ComponentByte, ComponentUnsignedByte:
		return 1
	case ComponentShort, ComponentUnsignedShort:
		return 2
	case ComponentUnsignedInt, ComponentFloat:
		return 4
	default:
		return 0
	}
}

func componentCount(accessorType string) int {
	switch accessorType {
	case TypeScalar:
		return 1
	case TypeVec2:
		return 2
	case TypeVec3:
		return 3
	case TypeVec4:
		return 4
	case TypeMat4:
		return 16
	default:
		return 0
	}
}

package common

import "unsafe"

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// Uses unsafe pointer operations to create a view into the original data.
// WARNING: The returned slice shares memory with the input - do not modify.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), int(size)*len(data))
}

// StructToBytes reinterprets a pointer to a struct as a raw byte slice using unsafe.
// The returned slice has length equal to the struct's size in memory and shares its memory.
//
// Parameters:
//   - v: pointer to the struct to reinterpret
//
// Returns:
//   - []byte: byte slice view of the struct's memory
func StructToBytes[T any](v *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), int(unsafe.Sizeof(*v)))
}

package control

import "encoding/binary"

// nativeEndian matches pod's convention: this protocol crosses
// process boundaries on one host only (spec Non-goal: cross-machine
// portability), so fixed-width fields are written in the host's
// native byte order rather than a fixed wire endianness.
var nativeEndian = binary.NativeEndian

func appendU32(dst []byte, v uint32) []byte {
	var b [4]byte
	nativeEndian.PutUint32(b[:], v)
	return append(dst, b[:]...)
}

func getU32(src []byte) uint32 { return nativeEndian.Uint32(src) }

func appendDirection(dst []byte, d Direction) []byte {
	return appendU32(dst, uint32(d))
}

// putU32At patches a 4-byte field at byte offset off within dst,
// in place. Used to back-patch header offset fields once a command's
// variable-length tail has been appended and its position is known.
func putU32At(dst []byte, off int, v uint32) {
	nativeEndian.PutUint32(dst[off:off+4], v)
}

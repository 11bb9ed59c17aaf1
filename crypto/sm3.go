package crypto

import "encoding/binary"

// SM3 implements the Chinese national cryptographic hash standard
// GB/T 32905-2016, used by the Crypto precompile's sm3 operation. No
// third-party SM3 implementation appears anywhere in the example corpus,
// so this is written directly against the published algorithm (DESIGN.md
// records the justification).

const sm3BlockSize = 64

var sm3IV = [8]uint32{
	0x7380166f, 0x4914b2b9, 0x172442d7, 0xda8a0600,
	0xa96f30bc, 0x163138aa, 0xe38dee4d, 0xb0fb0e4e,
}

func sm3T(j int) uint32 {
	if j < 16 {
		return 0x79cc4519
	}
	return 0x7a879d8a
}

func leftRotate(x uint32, n uint) uint32 {
	n %= 32
	return (x << n) | (x >> (32 - n))
}

func sm3FF(j int, x, y, z uint32) uint32 {
	if j < 16 {
		return x ^ y ^ z
	}
	return (x & y) | (x & z) | (y & z)
}

func sm3GG(j int, x, y, z uint32) uint32 {
	if j < 16 {
		return x ^ y ^ z
	}
	return (x & y) | (^x & z)
}

func sm3P0(x uint32) uint32 { return x ^ leftRotate(x, 9) ^ leftRotate(x, 17) }
func sm3P1(x uint32) uint32 { return x ^ leftRotate(x, 15) ^ leftRotate(x, 23) }

// SM3 hashes data per GB/T 32905-2016 and returns the 32-byte digest.
func SM3(data ...[]byte) []byte {
	var msg []byte
	for _, d := range data {
		msg = append(msg, d...)
	}
	msg = sm3Pad(msg)

	v := sm3IV
	for off := 0; off < len(msg); off += sm3BlockSize {
		sm3Compress(&v, msg[off:off+sm3BlockSize])
	}

	out := make([]byte, 32)
	for i, w := range v {
		binary.BigEndian.PutUint32(out[i*4:], w)
	}
	return out
}

func sm3Pad(msg []byte) []byte {
	bitLen := uint64(len(msg)) * 8
	msg = append(msg, 0x80)
	for len(msg)%sm3BlockSize != 56 {
		msg = append(msg, 0x00)
	}
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], bitLen)
	return append(msg, lenBuf[:]...)
}

func sm3Compress(v *[8]uint32, block []byte) {
	var w [68]uint32
	var w1 [64]uint32
	for i := 0; i < 16; i++ {
		w[i] = binary.BigEndian.Uint32(block[i*4:])
	}
	for i := 16; i < 68; i++ {
		w[i] = sm3P1(w[i-16]^w[i-9]^leftRotate(w[i-3], 15)) ^ leftRotate(w[i-13], 7) ^ w[i-6]
	}
	for i := 0; i < 64; i++ {
		w1[i] = w[i] ^ w[i+4]
	}

	a, b, c, d, e, f, g, h := v[0], v[1], v[2], v[3], v[4], v[5], v[6], v[7]
	for j := 0; j < 64; j++ {
		ss1 := leftRotate(leftRotate(a, 12)+e+leftRotate(sm3T(j), uint(j%32)), 7)
		ss2 := ss1 ^ leftRotate(a, 12)
		tt1 := sm3FF(j, a, b, c) + d + ss2 + w1[j]
		tt2 := sm3GG(j, e, f, g) + h + ss1 + w[j]
		d = c
		c = leftRotate(b, 9)
		b = a
		a = tt1
		h = g
		g = leftRotate(f, 19)
		f = e
		e = sm3P0(tt2)
	}

	v[0] ^= a
	v[1] ^= b
	v[2] ^= c
	v[3] ^= d
	v[4] ^= e
	v[5] ^= f
	v[6] ^= g
	v[7] ^= h
}

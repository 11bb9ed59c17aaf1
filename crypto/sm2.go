package crypto

import (
	"crypto/elliptic"
	"encoding/binary"
	"math/big"
	"sync"
)

// SM2 implements the Chinese national elliptic-curve standard GB/T
// 32918.2-2016's signature verification, used by the Crypto precompile's
// sm2Verify operation. No third-party SM2 implementation appears anywhere
// in the example corpus, so this follows the teacher's own hand-rolled
// secp256k1Curve pattern (DESIGN.md records the justification). SM2's
// recommended curve has a == p-3, so unlike secp256k1 it fits stdlib's
// elliptic.CurveParams Jacobian formulas directly — no custom Add/Double
// is needed.

var sm2Once sync.Once
var sm2Params *elliptic.CurveParams

func initSM2() {
	p, _ := new(big.Int).SetString("FFFFFFFEFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFF00000000FFFFFFFFFFFFFFFF", 16)
	n, _ := new(big.Int).SetString("FFFFFFFEFFFFFFFFFFFFFFFFFFFFFFFF7203DF6B21C6052B53BBF40939D54123", 16)
	b, _ := new(big.Int).SetString("28E9FA9E9D9F5E344D5A9E4BCF6509A7F39789F515AB8F92DDBCBD414D940E93", 16)
	gx, _ := new(big.Int).SetString("32C4AE2C1F1981195F9904466A39C9948FE30BBFF2660BE1715A4589334C74C7", 16)
	gy, _ := new(big.Int).SetString("BC3736A2F4F6779C59BDCEE36B692153D0A9877CC62A474002DF32E52139F0A0", 16)
	sm2Params = &elliptic.CurveParams{
		P: p, N: n, B: b, Gx: gx, Gy: gy, BitSize: 256, Name: "sm2p256v1",
	}
}

// SM2Curve returns the SM2 recommended curve (a == p-3, so stdlib's
// generic Jacobian point-arithmetic formulas apply unmodified).
func SM2Curve() elliptic.Curve {
	sm2Once.Do(initSM2)
	return sm2Params
}

// sm2Za computes Za = SM3(ENTL || ID || a || b || Gx || Gy || Xa || Ya),
// the user/curve-binding prehash GB/T 32918.2-2016 folds into every
// SM2 signature.
func sm2Za(id []byte, pubX, pubY *big.Int) []byte {
	curve := SM2Curve().Params()
	a := new(big.Int).Sub(curve.P, big.NewInt(3))
	a.Mod(a, curve.P)

	entl := make([]byte, 2)
	binary.BigEndian.PutUint16(entl, uint16(len(id)*8))

	buf := append([]byte{}, entl...)
	buf = append(buf, id...)
	buf = append(buf, leftPad32(a.Bytes())...)
	buf = append(buf, leftPad32(curve.B.Bytes())...)
	buf = append(buf, leftPad32(curve.Gx.Bytes())...)
	buf = append(buf, leftPad32(curve.Gy.Bytes())...)
	buf = append(buf, leftPad32(pubX.Bytes())...)
	buf = append(buf, leftPad32(pubY.Bytes())...)
	return SM3(buf)
}

func leftPad32(b []byte) []byte {
	if len(b) >= 32 {
		return b[len(b)-32:]
	}
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}

// SM2Verify checks an SM2 signature (r, s) over msg made by the public key
// (pubX, pubY), identified by id (the default SM2 user ID is
// "1234567890123456" when the signer used none explicitly).
func SM2Verify(id, msg []byte, pubX, pubY, r, s *big.Int) bool {
	curve := SM2Curve()
	params := curve.Params()

	if r.Sign() <= 0 || r.Cmp(params.N) >= 0 {
		return false
	}
	if s.Sign() <= 0 || s.Cmp(params.N) >= 0 {
		return false
	}
	if !curve.IsOnCurve(pubX, pubY) {
		return false
	}

	za := sm2Za(id, pubX, pubY)
	e := new(big.Int).SetBytes(SM3(append(za, msg...)))

	t := new(big.Int).Add(r, s)
	t.Mod(t, params.N)
	if t.Sign() == 0 {
		return false
	}

	sx, sy := curve.ScalarBaseMult(s.Bytes())
	tx, ty := curve.ScalarMult(pubX, pubY, t.Bytes())
	x1, _ := curve.Add(sx, sy, tx, ty)

	rr := new(big.Int).Add(e, x1)
	rr.Mod(rr, params.N)
	return rr.Cmp(r) == 0
}

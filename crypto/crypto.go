// This is free and unencumbered software released into the public domain.
//
// Anyone is free to copy, modify, publish, use, compile, sell, or
// distribute this software, either in source code form or as a compiled
// binary, for any purpose, commercial or non-commercial, and by any
// means.
//
// In jurisdictions that recognize copyright laws, the author or authors
// of this software dedicate any and all copyright interest in the
// software to the public domain. We make this dedication for the benefit
// of the public at large and to the detriment of our heirs and
// successors. We intend this dedication to be an overt act of
// relinquishment in perpetuity of all present and future rights to this
// software under copyright law.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND,
// EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF
// MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.
// IN NO EVENT SHALL THE AUTHORS BE LIABLE FOR ANY CLAIM, DAMAGES OR
// OTHER LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE,
// ARISING FROM, OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR
// OTHER DEALINGS IN THE SOFTWARE.
//
// For more information, please refer to <https://unlicense.org>

// Package crypto holds the Diffie-Hellman primitives the tree recurrence
// is built on: the fixed group (g, p), the per-member scalar source, and
// the modular exponentiations that turn a private key into a blinded key
// or combine a blinded key with a private key into a parent's key.
package crypto

import (
	"crypto/rand"
	"errors"
	"math/big"
)

type (
	// Scalar is a private key: an exponent in [1, p-2].
	Scalar = big.Int
	// BlindKey is g^Scalar mod p, safe to publish.
	BlindKey = big.Int
)

// modp2048Hex is the RFC 3526 group 14 safe prime, used as the fixed
// Diffie-Hellman modulus. Any interoperable implementation must agree on
// this constant (or negotiate one out of band); it is not configurable
// per group the way, say, a TLS cipher suite is.
const modp2048Hex = "FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD129024E088A67CC74020BBEA63B139B22514A08798E3404DDEF9519B3CD3A431B302B0A6DF25F14374FE1356D6D51C245E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7EDEE386BFB5A899FA5AE9F24117C4B1FE649286651ECE45B3DC2007CB8A163BF0598DA48361C55D39A69163FA8FD24CF5F83655D23DCA3AD961C62F356208552BB9ED529077096966D670C354E4ABC9804F1746C08CA18217C32905E462E36CE3BE39E772C180E86039B2783A2EC07A28FB5C55DF06F4C52C9DE2BCBF6955817183995497CEA956AE515D2261898FA051015728E5A8AACAA68FFFFFFFFFFFFFFFF"

// Params is the fixed Diffie-Hellman group every member computes over.
type Params struct {
	G *big.Int
	P *big.Int
}

// NewParams returns the RFC 3526 2048-bit MODP group with generator 2,
// matching spec.md's external interface (g=2, p=standard 2048-bit MODP).
func NewParams() *Params {
	p, ok := new(big.Int).SetString(modp2048Hex, 16)
	if !ok {
		// The constant above is fixed at compile time; a failure here
		// means the source was edited incorrectly.
		panic("crypto: malformed modp2048Hex constant")
	}
	return &Params{
		G: big.NewInt(2),
		P: p,
	}
}

// ScalarSource yields a private scalar for a leaf. The reference
// implementation draws one from the DER bytes of a freshly generated RSA
// key; any source producing a uniform integer in [1, p-2] preserves the
// TGDH invariants, so this is kept pluggable.
type ScalarSource interface {
	Next(params *Params) (*Scalar, error)
}

// RandomSource draws a cryptographically strong uniform scalar in
// [1, p-2] using crypto/rand, replacing the reference's RSA-key-bytes
// source (see spec.md §9, "Scalar source").
type RandomSource struct{}

// Next implements ScalarSource.
func (RandomSource) Next(params *Params) (*Scalar, error) {
	if params == nil || params.P == nil {
		return nil, errors.New("crypto: nil group params")
	}
	// upper = p-2, so Int(rand, upper) yields [0, p-3]; add 1 for [1, p-2].
	upper := new(big.Int).Sub(params.P, big.NewInt(2))
	if upper.Sign() <= 0 {
		return nil, errors.New("crypto: modulus too small")
	}
	n, err := rand.Int(rand.Reader, upper)
	if err != nil {
		return nil, err
	}
	return n.Add(n, big.NewInt(1)), nil
}

// BlindOf computes g^key mod p.
func BlindOf(params *Params, key *Scalar) *BlindKey {
	return new(big.Int).Exp(params.G, key, params.P)
}

// DeriveKey computes theirBlind^myKey mod p, the recurrence step that
// raises a co-path blinded key and this member's path key into the
// parent's private key.
func DeriveKey(params *Params, theirBlind, myKey *Scalar) *Scalar {
	return new(big.Int).Exp(theirBlind, myKey, params.P)
}

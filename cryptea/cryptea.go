// Package cryptea implements the XXTEA block cipher used to obfuscate
// credentials stored in the gateway configuration.
//
// Plaintext and key are packed into little-endian 32-bit words, the final
// partial word padded with zero bytes. Encoded output is standard base64.
package cryptea

import (
	"encoding/base64"
	"errors"
	"fmt"
	"unicode/utf8"
)

const (
	delta = 0x9E3779B9

	// minWords keeps encoded payloads invertible; XXTEA over a single word
	// loses information.
	minWords = 2
	keyWords = 4
)

var (
	// ErrEmptyInput is returned when encoding an empty string.
	ErrEmptyInput = errors.New("cannot encode empty input")
	// ErrDecode is returned when the payload is not valid base64 or too short.
	ErrDecode = errors.New("could not decode bytes")
	// ErrInvalidUTF8 is returned when the decoded bytes are not UTF-8 text,
	// which is what a wrong key produces.
	ErrInvalidUTF8 = errors.New("decoded bytes are not valid utf-8")
)

// Encode encrypts input with key and returns the base64 representation.
func Encode(input, key string) (string, error) {
	raw, err := EncodeToBytes(input, key)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// EncodeToBytes encrypts input with key and returns the raw cipher bytes.
func EncodeToBytes(input, key string) ([]byte, error) {
	if len(input) == 0 {
		return nil, ErrEmptyInput
	}

	v := toWords([]byte(input), minWords)
	encrypt(v, toKey(key))

	return fromWords(v), nil
}

// Decode reverses Encode. Trailing zero padding is stripped and the result
// must be valid UTF-8.
func Decode(input, key string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(input)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("%w: empty payload", ErrDecode)
	}

	v := toWords(raw, 1)
	decrypt(v, toKey(key))

	out := fromWords(v)
	for len(out) > 0 && out[len(out)-1] == 0 {
		out = out[:len(out)-1]
	}
	if !utf8.Valid(out) {
		return "", ErrInvalidUTF8
	}

	return string(out), nil
}

func mx(sum, y, z uint32, p int, e uint32, k []uint32) uint32 {
	return ((z>>5 ^ y<<2) + (y>>3 ^ z<<4)) ^ ((sum ^ y) + (k[uint32(p&3)^e] ^ z))
}

func encrypt(v, k []uint32) {
	n := len(v)
	rounds := 6 + 52/n
	z := v[n-1]
	var sum uint32

	for ; rounds > 0; rounds-- {
		sum += delta
		e := (sum >> 2) & 3
		for p := 0; p < n; p++ {
			y := v[(p+1)%n]
			v[p] += mx(sum, y, z, p, e, k)
			z = v[p]
		}
	}
}

func decrypt(v, k []uint32) {
	n := len(v)
	rounds := 6 + 52/n
	sum := uint32(rounds) * delta
	y := v[0]

	for ; rounds > 0; rounds-- {
		e := (sum >> 2) & 3
		for p := n - 1; p >= 0; p-- {
			z := v[(p+n-1)%n]
			v[p] -= mx(sum, y, z, p, e, k)
			y = v[p]
		}
		sum -= delta
	}
}

// toWords packs b into little-endian words, returning at least min words.
func toWords(b []byte, min int) []uint32 {
	n := (len(b) + 3) / 4
	if n < min {
		n = min
	}
	v := make([]uint32, n)
	for i, c := range b {
		v[i/4] |= uint32(c) << (8 * (i % 4))
	}
	return v
}

// toKey packs key the same way as the payload, fixed to four words.
func toKey(key string) []uint32 {
	k := toWords([]byte(key), keyWords)
	return k[:keyWords]
}

func fromWords(v []uint32) []byte {
	out := make([]byte, len(v)*4)
	for i, w := range v {
		out[i*4] = byte(w)
		out[i*4+1] = byte(w >> 8)
		out[i*4+2] = byte(w >> 16)
		out[i*4+3] = byte(w >> 24)
	}
	return out
}

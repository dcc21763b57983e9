package skillauth

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha1" // #nosec G505 -- the platform signs with SHA-1 and RSA
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
)

// sha1DigestInfoLen is the length of the DER DigestInfo prefix that precedes
// a SHA-1 hash inside a PKCS #1 v1.5 signature block.
const sha1DigestInfoLen = 15

// VerifySignature checks signature over body with the certificate's RSA key
// using PKCS #1 v1.5 with SHA-1.
func VerifySignature(cert *Certificate, body, signature []byte) error {
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return fmt.Errorf("%w: certificate key is %T, want RSA", ErrUnverifiableSignatureChain, cert.PublicKey)
	}
	digest := sha1.Sum(body) // #nosec G401
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA1, digest[:], signature); err != nil {
		return fmt.Errorf("%w: %v", ErrUnverifiableSignatureChain, err)
	}
	return nil
}

// VerifyDigest recovers the signed block with a raw RSA public operation and
// compares the embedded hash against the SHA-1 of body. It runs independently
// of VerifySignature so a fault in one path does not admit a request.
func VerifyDigest(cert *Certificate, body, signature []byte) error {
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return fmt.Errorf("%w: certificate key is %T, want RSA", ErrSignatureMismatch, cert.PublicKey)
	}
	payload, err := publicDecrypt(pub, signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureMismatch, err)
	}
	if len(payload) <= sha1DigestInfoLen {
		return fmt.Errorf("%w: decrypted block too short", ErrSignatureMismatch)
	}

	digest := sha1.Sum(body) // #nosec G401
	want := hex.EncodeToString(digest[:])
	got := hex.EncodeToString(payload[sha1DigestInfoLen:])
	if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
		return ErrSignatureMismatch
	}
	return nil
}

// publicDecrypt computes s^e mod n and strips PKCS #1 block type 1 padding
// (0x00 0x01 0xFF... 0x00), returning what follows the separator.
func publicDecrypt(pub *rsa.PublicKey, signature []byte) ([]byte, error) {
	k := pub.Size()
	if len(signature) != k {
		return nil, fmt.Errorf("signature length %d, want %d", len(signature), k)
	}
	s := new(big.Int).SetBytes(signature)
	if s.Cmp(pub.N) >= 0 {
		return nil, fmt.Errorf("signature representative out of range")
	}
	m := new(big.Int).Exp(s, big.NewInt(int64(pub.E)), pub.N)
	em := m.FillBytes(make([]byte, k))

	if em[0] != 0x00 || em[1] != 0x01 {
		return nil, fmt.Errorf("unexpected block type")
	}
	i := 2
	for ; i < len(em) && em[i] == 0xff; i++ {
	}
	// At least eight bytes of 0xFF padding are required.
	if i-2 < 8 || i >= len(em) || em[i] != 0x00 {
		return nil, fmt.Errorf("invalid padding")
	}
	return em[i+1:], nil
}

package fetch

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
	"lukechampine.com/blake3"

	"github.com/forgeup/forgeup/internal/catalog"
)

// verifyStaged checks a downloaded file against the expected size and
// checksum from the catalog. Missing expectations are skipped, not errors:
// not every publisher ships digests.
func verifyStaged(path string, art *catalog.Artifact) error {
	if art.Size > 0 {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("stat staged file: %w", err)
		}
		if info.Size() != art.Size {
			return &IntegrityError{
				URL:      art.URL,
				Expected: fmt.Sprintf("%d bytes", art.Size),
				Actual:   fmt.Sprintf("%d bytes", info.Size()),
			}
		}
	}

	if art.Checksum == "" {
		return nil
	}

	algo, expected, ok := strings.Cut(art.Checksum, ":")
	if !ok {
		return fmt.Errorf("malformed checksum %q (want algo:hex)", art.Checksum)
	}

	actual, err := hashFile(path, algo)
	if err != nil {
		return err
	}

	if !strings.EqualFold(actual, expected) {
		return &IntegrityError{URL: art.URL, Expected: art.Checksum, Actual: algo + ":" + actual}
	}

	return nil
}

// hashFile computes the hex digest of a file with the named algorithm.
// Supported: sha256, b3 (BLAKE3-256).
func hashFile(path, algo string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open staged file: %w", err)
	}
	defer f.Close()

	var h io.Writer
	var sum func() []byte

	switch algo {
	case "sha256":
		hasher := sha256.New()
		h = hasher
		sum = func() []byte { return hasher.Sum(nil) }
	case "b3":
		hasher := blake3.New(32, nil)
		h = hasher
		sum = func() []byte { return hasher.Sum(nil) }
	default:
		return "", fmt.Errorf("unsupported checksum algorithm %q", algo)
	}

	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash staged file: %w", err)
	}

	return hex.EncodeToString(sum()), nil
}

// VerifySignature checks a detached PGP signature over the staged payload
// against the publisher keyring. Armored and binary signatures are both
// accepted.
func VerifySignature(payload *Staged, signature *Staged, keyring io.Reader) error {
	keys, err := readKeyring(keyring)
	if err != nil {
		return &SignatureError{URL: payload.URL, Cause: err}
	}

	payloadFile, err := os.Open(payload.Path)
	if err != nil {
		return &SignatureError{URL: payload.URL, Cause: fmt.Errorf("open payload: %w", err)}
	}
	defer payloadFile.Close()

	sigFile, err := os.Open(signature.Path)
	if err != nil {
		return &SignatureError{URL: payload.URL, Cause: fmt.Errorf("open signature: %w", err)}
	}
	defer sigFile.Close()

	_, err = openpgp.CheckArmoredDetachedSignature(keys, payloadFile, sigFile, nil)
	if err != nil {
		payloadFile.Seek(0, io.SeekStart)
		sigFile.Seek(0, io.SeekStart)
		_, err = openpgp.CheckDetachedSignature(keys, payloadFile, sigFile, nil)
	}
	if err != nil {
		return &SignatureError{URL: payload.URL, Cause: err}
	}

	return nil
}

// readKeyring reads an armored or binary keyring.
func readKeyring(r io.Reader) (openpgp.EntityList, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read keyring: %w", err)
	}

	keys, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(data))
	if err != nil {
		keys, err = openpgp.ReadKeyRing(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("parse keyring: %w", err)
		}
	}

	if len(keys) == 0 {
		return nil, fmt.Errorf("keyring is empty")
	}

	return keys, nil
}

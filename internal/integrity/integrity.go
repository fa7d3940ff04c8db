// Package integrity gates the build pipeline on source authenticity:
// a mandatory SHA-256 checksum compare and an optional detached
// OpenPGP signature check.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/packet"

	"github.com/open-edge-platform/pkg-builder/internal/utils/logger"
)

// ComputeChecksum returns the lower-case SHA-256 hex digest of a file.
func ComputeChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyChecksum compares the SHA-256 digest of the file against the
// expected hex digest. The comparison is case-insensitive. A mismatch
// is fatal to the build and the error names the offending file.
func VerifyChecksum(path string, expected string) error {
	actual, err := ComputeChecksum(path)
	if err != nil {
		return err
	}
	if !strings.EqualFold(actual, expected) {
		return fmt.Errorf("checksum mismatch for %s: expected %s, got %s",
			path, strings.ToLower(expected), actual)
	}
	logger.Logger().Debugf("checksum verified for %s", path)
	return nil
}

// VerifySignature checks a detached OpenPGP signature over the archive
// against the trusted keyring. Both armored and binary keyrings and
// signatures are accepted.
func VerifySignature(archivePath, signaturePath, keyringPath string) error {
	keyring, err := loadKeyring(keyringPath)
	if err != nil {
		return err
	}

	sig, err := os.ReadFile(signaturePath)
	if err != nil {
		return fmt.Errorf("reading signature %s: %w", signaturePath, err)
	}

	archive, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", archivePath, err)
	}
	defer archive.Close()

	var cfg *packet.Config
	if strings.Contains(string(sig), "BEGIN PGP SIGNATURE") {
		_, err = openpgp.CheckArmoredDetachedSignature(keyring, archive, strings.NewReader(string(sig)), cfg)
	} else {
		_, err = openpgp.CheckDetachedSignature(keyring, archive, strings.NewReader(string(sig)), cfg)
	}
	if err != nil {
		return fmt.Errorf("signature verification failed for %s: %w", archivePath, err)
	}

	logger.Logger().Debugf("signature verified for %s", archivePath)
	return nil
}

// loadKeyring reads an armored or binary OpenPGP public keyring.
func loadKeyring(path string) (openpgp.EntityList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading keyring %s: %w", path, err)
	}

	if strings.Contains(string(data), "BEGIN PGP PUBLIC KEY BLOCK") {
		keyring, err := openpgp.ReadArmoredKeyRing(strings.NewReader(string(data)))
		if err != nil {
			return nil, fmt.Errorf("parsing armored keyring %s: %w", path, err)
		}
		return keyring, nil
	}

	keyring, err := openpgp.ReadKeyRing(strings.NewReader(string(data)))
	if err != nil {
		return nil, fmt.Errorf("parsing keyring %s: %w", path, err)
	}
	return keyring, nil
}

package storage

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
)

// argon2idHash is a decoded PHC string:
// $argon2id$v=19$m=65536,t=1,p=4$<saltB64>$<hashB64>
type argon2idHash struct {
	params Argon2idParams
	salt   []byte
	key    []byte
}

func (h argon2idHash) String() string {
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.params.MemoryKiB, h.params.Time, h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(h.salt),
		base64.RawStdEncoding.EncodeToString(h.key),
	)
}

func hashPasswordArgon2id(password string, p Argon2idParams) (string, error) {
	if p.Time == 0 {
		p = defaultArgon2idParams()
	}
	salt := make([]byte, p.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", errors.Wrap(err, "users: salt generation failed")
	}
	h := argon2idHash{
		params: p,
		salt:   salt,
		key:    argon2.IDKey([]byte(password), salt, p.Time, p.MemoryKiB, p.Parallelism, p.KeyLen),
	}
	return h.String(), nil
}

func verifyPasswordArgon2id(encoded, password string) (bool, error) {
	h, err := parseArgon2id(encoded)
	if err != nil {
		return false, err
	}
	p := h.params
	dk := argon2.IDKey([]byte(password), h.salt, p.Time, p.MemoryKiB, p.Parallelism, uint32(len(h.key)))
	return subtle.ConstantTimeCompare(dk, h.key) == 1, nil
}

func extractArgon2idParams(encoded string) (Argon2idParams, error) {
	h, err := parseArgon2id(encoded)
	return h.params, err
}

func parseArgon2id(encoded string) (argon2idHash, error) {
	var h argon2idHash
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return h, errors.New("unsupported password hash format")
	}
	if parts[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return h, errors.New("unsupported argon2 version")
	}
	for _, kv := range strings.Split(parts[3], ",") {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			return h, errors.Errorf("invalid argon2id parameter %q", kv)
		}
		switch name {
		case "m":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil {
				return h, errors.Wrap(err, "invalid argon2id memory")
			}
			h.params.MemoryKiB = uint32(v)
		case "t":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil {
				return h, errors.Wrap(err, "invalid argon2id time")
			}
			h.params.Time = uint32(v)
		case "p":
			v, err := strconv.ParseUint(value, 10, 8)
			if err != nil {
				return h, errors.Wrap(err, "invalid argon2id parallelism")
			}
			h.params.Parallelism = uint8(v)
		}
	}
	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return h, errors.Wrap(err, "invalid argon2id salt")
	}
	if h.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return h, errors.Wrap(err, "invalid argon2id key")
	}
	h.params.SaltLen = uint32(len(h.salt))
	h.params.KeyLen = uint32(len(h.key))
	return h, nil
}

func argon2idParamsEqual(a, b Argon2idParams) bool {
	return a == b
}

func defaultArgon2idParams() Argon2idParams {
	return Argon2idParams{Time: 1, MemoryKiB: 64 * 1024, Parallelism: 4, KeyLen: 32, SaltLen: 16}
}

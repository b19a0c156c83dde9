// Package password provides salted argon2id hashing and verification for the
// self-hosted credential path. Hashes are stored in PHC string format.
package password

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

const (
	memoryKB    uint32 = 64 * 1024
	timeCost    uint32 = 3
	parallelism uint8  = 2
	saltLength         = 16
	keyLength   uint32 = 32
)

// Hash derives an argon2id hash of password with a fresh random salt and
// returns it in PHC format, e.g. "$argon2id$v=19$m=65536,t=3,p=2$<salt>$<key>".
// It fails only when the OS entropy source does, which callers should treat
// as fatal.
func Hash(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", errors.Wrap(err, "[password.Hash] rand.Read")
	}

	key := argon2.IDKey([]byte(password), salt, timeCost, memoryKB, parallelism, keyLength)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		memoryKB,
		timeCost,
		parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches encodedHash. A malformed stored
// hash is reported exactly like a mismatch so callers cannot distinguish the
// two cases.
func Verify(password, encodedHash string) bool {
	p, err := parsePHC(encodedHash)
	if err != nil {
		return false
	}
	computed := argon2.IDKey([]byte(password), p.salt, p.time, p.memory, p.parallelism, uint32(len(p.key)))
	return subtle.ConstantTimeCompare(computed, p.key) == 1
}

type phc struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func parsePHC(encodedHash string) (*phc, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return nil, errors.New("invalid PHC format")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, errors.New("unsupported argon2 version")
	}

	p, err := parseParams(parts[3])
	if err != nil {
		return nil, err
	}

	if p.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil || len(p.salt) == 0 {
		return nil, errors.New("invalid salt encoding")
	}
	if p.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(p.key) == 0 {
		return nil, errors.New("invalid key encoding")
	}
	return p, nil
}

func parseParams(part string) (*phc, error) {
	var p phc
	for _, pair := range strings.Split(part, ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return nil, errors.New("invalid parameter entry")
		}
		switch kv[0] {
		case "m":
			v, err := strconv.ParseUint(kv[1], 10, 32)
			if err != nil || v == 0 {
				return nil, errors.New("invalid memory parameter")
			}
			p.memory = uint32(v)
		case "t":
			v, err := strconv.ParseUint(kv[1], 10, 32)
			if err != nil || v == 0 {
				return nil, errors.New("invalid time parameter")
			}
			p.time = uint32(v)
		case "p":
			v, err := strconv.ParseUint(kv[1], 10, 8)
			if err != nil || v == 0 {
				return nil, errors.New("invalid parallelism parameter")
			}
			p.parallelism = uint8(v)
		default:
			return nil, errors.New("unsupported parameter")
		}
	}
	if p.memory == 0 || p.time == 0 || p.parallelism == 0 {
		return nil, errors.New("missing parameters")
	}
	return &p, nil
}

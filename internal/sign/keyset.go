package sign

import (
	"bufio"
	"encoding/base64"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/objectrepo/corestore/internal/coreerr"
)

// KeySet is one algorithm's trusted and revoked public keys, assembled from
// the §4.6 key material sources: inline config, a key file, and
// trusted.d/revoked.d drop-in directories.
type KeySet struct {
	Trusted [][]byte
	Revoked [][]byte
}

// DecodeInlineKey base64-decodes a single key from a remote config's
// inline verification-<algo>-key option.
func DecodeInlineKey(b64 string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b64))
	if err != nil {
		return nil, coreerr.Wrap(coreerr.InvalidArgument, err, "sign: decode inline key")
	}
	return key, nil
}

// LoadKeyFile reads a newline-separated base64 key file
// (verification-<algo>-file).
func LoadKeyFile(path string) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.Io, err, "sign: open key file %s", path)
	}
	defer f.Close()
	return decodeKeyLines(f, path)
}

// LoadKeyDir reads every file in a trusted.<algo>.d or revoked.<algo>.d
// drop-in directory, each holding one or more newline-separated base64
// keys. A missing directory yields an empty, non-error result.
func LoadKeyDir(dir string) ([][]byte, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, coreerr.Wrap(coreerr.Io, err, "sign: read key directory %s", dir)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var keys [][]byte
	for _, name := range names {
		fileKeys, err := LoadKeyFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		keys = append(keys, fileKeys...)
	}
	return keys, nil
}

func decodeKeyLines(r io.Reader, path string) ([][]byte, error) {
	scanner := bufio.NewScanner(r)
	var keys [][]byte
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, err := DecodeInlineKey(line)
		if err != nil {
			return nil, coreerr.Wrap(coreerr.InvalidArgument, err, "sign: decode key in %s", path)
		}
		keys = append(keys, key)
	}
	if err := scanner.Err(); err != nil {
		return nil, coreerr.Wrap(coreerr.Io, err, "sign: scan key file %s", path)
	}
	return keys, nil
}

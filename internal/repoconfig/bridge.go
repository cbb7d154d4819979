package repoconfig

import (
	"github.com/objectrepo/corestore/internal/repofinder"
	"github.com/objectrepo/corestore/internal/sign"
)

// ToFinderRemote reduces a RemoteConfig to the minimal identity a
// repofinder.Result carries.
func (rc RemoteConfig) ToFinderRemote() repofinder.RemoteConfig {
	keyring := ""
	for _, f := range rc.VerificationFiles {
		keyring = f
		break
	}
	return repofinder.RemoteConfig{Name: rc.Name, URL: rc.URL, Keyring: keyring}
}

// KeySetFor loads the trusted keys configured for one signing algorithm on
// this remote: an inline base64 key (verification-<algo>-key) and/or a
// newline-separated key file (verification-<algo>-file).
func (rc RemoteConfig) KeySetFor(algo string) (sign.KeySet, error) {
	var ks sign.KeySet
	if inline, ok := rc.VerificationKeys[algo]; ok {
		key, err := sign.DecodeInlineKey(inline)
		if err != nil {
			return sign.KeySet{}, err
		}
		ks.Trusted = append(ks.Trusted, key)
	}
	if path, ok := rc.VerificationFiles[algo]; ok {
		keys, err := sign.LoadKeyFile(path)
		if err != nil {
			return sign.KeySet{}, err
		}
		ks.Trusted = append(ks.Trusted, keys...)
	}
	return ks, nil
}

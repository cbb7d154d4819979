package repoconfig

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/objectrepo/corestore/internal/coreerr"
	"github.com/objectrepo/corestore/internal/objstore"
)

// CoreConfig is the typed [core] section, per §6's config option table.
type CoreConfig struct {
	Mode                objstore.Mode
	RepoVersion         int
	Parent              string
	MinFreeSpacePercent int
	MinFreeSpaceSize    uint64
	CollectionID        string
	TmpExpiry           time.Duration
	ZlibLevel           int
}

// DefaultTmpExpiry matches txn.DefaultTmpExpiry; repeated here (rather
// than imported) to avoid a repoconfig->txn dependency for a single
// constant.
const DefaultTmpExpiry = 24 * time.Hour

// SignVerify is a sign-verify/sign-verify-summary option value: either
// "every algorithm with configured keys" or an explicit list.
type SignVerify struct {
	All        bool
	Algorithms []string
}

// RemoteConfig is the typed [remote "name"] section.
type RemoteConfig struct {
	Name              string
	URL               string
	ContentURL        string
	CollectionID      string
	GPGVerify         bool
	SignVerify        SignVerify
	SignVerifySummary SignVerify
	VerificationKeys  map[string]string // algo -> inline base64 key
	VerificationFiles map[string]string // algo -> key file path
}

// LoadCore extracts and validates the [core] section.
func (c *Config) LoadCore() (CoreConfig, error) {
	cc := CoreConfig{RepoVersion: 1, ZlibLevel: -1}

	if v, ok := c.Get("core", "mode"); ok {
		mode, err := objstore.ParseMode(v)
		if err != nil {
			return CoreConfig{}, err
		}
		cc.Mode = mode
	}
	if v, ok := c.Get("core", "repo_version"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return CoreConfig{}, coreerr.Wrap(coreerr.InvalidArgument, err, "repoconfig: invalid core.repo_version")
		}
		cc.RepoVersion = n
	}
	if v, ok := c.Get("core", "parent"); ok {
		cc.Parent = v
	}
	if v, ok := c.Get("core", "min-free-space-percent"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 99 {
			return CoreConfig{}, coreerr.New(coreerr.InvalidArgument, "repoconfig: core.min-free-space-percent must be 0-99, got %q", v)
		}
		cc.MinFreeSpacePercent = n
	}
	if v, ok := c.Get("core", "min-free-space-size"); ok {
		n, err := ParseSize(v)
		if err != nil {
			return CoreConfig{}, err
		}
		cc.MinFreeSpaceSize = n
	}
	if v, ok := c.Get("core", "collection-id"); ok {
		cc.CollectionID = v
	}
	cc.TmpExpiry = DefaultTmpExpiry
	if v, ok := c.Get("core", "tmp-expiry-seconds"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return CoreConfig{}, coreerr.Wrap(coreerr.InvalidArgument, err, "repoconfig: invalid core.tmp-expiry-seconds")
		}
		cc.TmpExpiry = time.Duration(n) * time.Second
	}
	if v, ok := c.Get("core", "zlib-level"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return CoreConfig{}, coreerr.Wrap(coreerr.InvalidArgument, err, "repoconfig: invalid core.zlib-level")
		}
		cc.ZlibLevel = n
	}
	return cc, nil
}

// LoadRemote extracts and validates one named remote's section.
func (c *Config) LoadRemote(name string) (RemoteConfig, error) {
	section := "remote:" + name
	rc := RemoteConfig{
		Name:              name,
		VerificationKeys:  make(map[string]string),
		VerificationFiles: make(map[string]string),
	}
	kv, ok := c.values[section]
	if !ok {
		return RemoteConfig{}, coreerr.New(coreerr.NotFound, "repoconfig: remote %q not configured", name)
	}

	rc.URL = kv["url"]
	rc.ContentURL = kv["contenturl"]
	rc.CollectionID = kv["collection-id"]
	rc.GPGVerify = parseBool(kv["gpg-verify"], true)
	rc.SignVerify = parseSignVerify(kv["sign-verify"])
	rc.SignVerifySummary = parseSignVerify(kv["sign-verify-summary"])

	for k, v := range kv {
		if algo, ok := strings.CutSuffix(k, "-key"); ok {
			if a, ok := strings.CutPrefix(algo, "verification-"); ok {
				rc.VerificationKeys[a] = v
			}
		}
		if algo, ok := strings.CutSuffix(k, "-file"); ok {
			if a, ok := strings.CutPrefix(algo, "verification-"); ok {
				rc.VerificationFiles[a] = v
			}
		}
	}

	if !rc.SignVerify.All && len(rc.SignVerify.Algorithms) > 0 {
		for _, algo := range rc.SignVerify.Algorithms {
			_, hasKey := rc.VerificationKeys[algo]
			_, hasFile := rc.VerificationFiles[algo]
			if !hasKey && !hasFile {
				return RemoteConfig{}, coreerr.New(coreerr.InvalidArgument,
					"repoconfig: remote %q requests sign-verify algorithm %q with no configured key", name, algo)
			}
		}
	}
	return rc, nil
}

func parseBool(v string, def bool) bool {
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func parseSignVerify(v string) SignVerify {
	if v == "" {
		return SignVerify{}
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return SignVerify{All: b}
	}
	var algos []string
	for _, a := range strings.Split(v, ";") {
		a = strings.TrimSpace(a)
		if a != "" {
			algos = append(algos, a)
		}
	}
	return SignVerify{Algorithms: algos}
}

// LoadFile reads and parses repoRoot/config, merging any
// repoRoot/remotes.d/*.conf drop-ins (§6) as additional remote sections.
func LoadFile(repoRoot string) (*Config, error) {
	data, err := os.ReadFile(filepath.Join(repoRoot, "config"))
	if err != nil {
		return nil, coreerr.Wrap(coreerr.Io, err, "repoconfig: read config")
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	dropinDir := filepath.Join(repoRoot, "remotes.d")
	entries, err := os.ReadDir(dropinDir)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, coreerr.Wrap(coreerr.Io, err, "repoconfig: read remotes.d")
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".conf") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dropinDir, name))
		if err != nil {
			return nil, coreerr.Wrap(coreerr.Io, err, "repoconfig: read remotes.d/%s", name)
		}
		dropin, err := Parse(data)
		if err != nil {
			return nil, err
		}
		for _, remoteName := range dropin.RemoteNames() {
			for k, v := range dropin.values["remote:"+remoteName] {
				cfg.Set("remote:"+remoteName, k, v)
			}
		}
	}
	return cfg, nil
}

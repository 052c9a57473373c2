package am

import (
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/teranos/vidmask/errors"
)

// CheckUnknownKeys decodes an am.toml file strictly and returns every key
// that does not map onto Config, sorted. Viper silently ignores such keys,
// so typos like "engine.pipline" would otherwise go unnoticed.
func CheckUnknownKeys(path string) ([]string, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", path)
	}

	var unknown []string
	for _, key := range md.Undecoded() {
		unknown = append(unknown, key.String())
	}
	sort.Strings(unknown)
	return unknown, nil
}

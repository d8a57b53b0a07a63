package shardset

import (
	"fmt"
	"path/filepath"
	"sort"

	"framelabel/internal/services"
)

// Shard is one file of the dataset, addressed by its sort position.
type Shard struct {
	Path          string
	SequenceIndex int
}

// Resolve expands pattern into the ordered shard list. It fails with a
// not-found error when nothing matches, since an empty dataset is always an
// operator mistake.
func Resolve(pattern string) ([]Shard, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "shardset", "resolve",
			fmt.Sprintf("bad shard pattern %q", pattern), err)
	}
	if len(matches) == 0 {
		return nil, services.Wrap(services.ErrNotFound, "shardset", "resolve",
			fmt.Sprintf("no shards match pattern %q", pattern), nil)
	}

	paths := make([]string, 0, len(matches))
	for _, match := range matches {
		abs, err := filepath.Abs(match)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "shardset", "resolve",
				fmt.Sprintf("resolve shard path %q", match), err)
		}
		paths = append(paths, abs)
	}
	sort.Strings(paths)

	shards := make([]Shard, 0, len(paths))
	for i, path := range paths {
		shards = append(shards, Shard{Path: path, SequenceIndex: i})
	}
	return shards, nil
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package markdown

import (
	"maps"
	"slices"
	"strings"
)

// RewriteImageRefs replaces every placeholder ![id](id) in text with
// ![id](path) for each id in paths. Placeholders without a mapping are left
// untouched. Rewriting is idempotent.
func RewriteImageRefs(text string, paths map[string]string) string {
	if len(paths) == 0 {
		return text
	}
	ids := slices.Collect(maps.Keys(paths))
	slices.Sort(ids)

	pairs := make([]string, 0, 2*len(ids))
	for _, id := range ids {
		pairs = append(pairs, "!["+id+"]("+id+")", "!["+id+"]("+paths[id]+")")
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

package report

import (
	"strings"

	"github.com/google/pprof/profile"
)

// samples indexes sample values by their stack, leaf first, frames joined by
// ";".
func samples(in []*profile.Sample) map[string][]int64 {
	out := make(map[string][]int64, len(in))
	for _, s := range in {
		names := make([]string, 0, len(s.Location))
		for _, loc := range s.Location {
			names = append(names, loc.Line[0].Function.Name)
		}
		out[strings.Join(names, ";")] = s.Value
	}
	return out
}

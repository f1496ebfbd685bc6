package snapshot

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TimestampLayout is the fixed-width, zero-padded timestamp embedded in every
// snapshot name. Lexicographic order of this text is chronological order.
const TimestampLayout = "20060102_150405"

var timestampPattern = regexp.MustCompile(`(\d{8}_\d{6})`)

// Version identifies one snapshot: creation time at second resolution plus a
// short random disambiguator for runs that land in the same second.
type Version struct {
	Timestamp string
	Suffix    string
}

// NewVersion builds a version key for now expressed in loc. The suffix is the
// first four hex characters of a random UUID.
func NewVersion(now time.Time, loc *time.Location) Version {
	return Version{
		Timestamp: now.In(loc).Format(TimestampLayout),
		Suffix:    strings.ReplaceAll(uuid.NewString(), "-", "")[:4],
	}
}

func (v Version) String() string { return v.Timestamp + "_" + v.Suffix }

// DatasetName composes <prefix>_<YYYYMMDD>_<HHMMSS>_<suffix>.
func (v Version) DatasetName(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, v)
}

// ParseTimestamp extracts the embedded timestamp of a dataset name. Names that
// do not carry one are reported with ok=false.
func ParseTimestamp(name string) (ts string, ok bool) {
	m := timestampPattern.FindStringSubmatch(name)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Latest picks the dataset with the greatest embedded timestamp among names
// that start with prefix. Equal timestamps fall back to the full name so the
// choice is deterministic.
func Latest(names []string, prefix string) (string, bool) {
	var best, bestTS string
	for _, n := range names {
		if !strings.HasPrefix(n, prefix) {
			continue
		}
		ts, ok := ParseTimestamp(strings.TrimPrefix(n, prefix))
		if !ok {
			continue
		}
		if best == "" || ts > bestTS || (ts == bestTS && n > best) {
			best, bestTS = n, ts
		}
	}
	return best, best != ""
}

package archive

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// DefaultKeyPrefix is the namespace raw observations are archived under.
const DefaultKeyPrefix = "raw/weather"

// ObjectKey identifies an archive object partitioned by calendar date.
type ObjectKey struct {
	Prefix   string
	Date     time.Time
	FileName string
}

// NewObjectKey builds the key for a landing artifact archived on date.
func NewObjectKey(prefix string, date time.Time, localPath string) ObjectKey {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return ObjectKey{
		Prefix:   strings.Trim(prefix, "/"),
		Date:     date,
		FileName: filepath.Base(localPath),
	}
}

// Partition returns the YYYY/MM/DD component of the key.
func (k ObjectKey) Partition() string {
	return k.Date.Format("2006/01/02")
}

// String renders the key as <prefix>/<YYYY>/<MM>/<DD>/<file name>.
func (k ObjectKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Prefix, k.Partition(), k.FileName)
}

package archive

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/lestrrat-go/strftime"
)

// Default output name patterns (strftime syntax).
const (
	HexLogPattern  = "stamp_encoded_%Y%m%d_%H%M%S.hex"
	SummaryPattern = "stamp_results_%Y%m%d_%H%M%S.json"
	RawPattern     = "stamp_%Y%m%d_%H%M%S.bin"
)

// OutputPath expands pattern at t and joins it to dir.
func OutputPath(dir, pattern string, t time.Time) (string, error) {
	name, err := strftime.Format(pattern, t)
	if err != nil {
		return "", fmt.Errorf("output name %q: %w", pattern, err)
	}
	if name == "" || strings.ContainsRune(name, filepath.Separator) {
		return "", fmt.Errorf("output name %q: must be a plain file name", pattern)
	}
	return filepath.Join(dir, name), nil
}

// Stem is the file name without directory and extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

package catalog

import (
	"strings"

	"github.com/lexigate/lexigate/internal/errcode"
)

// reservedChars are rejected in model identifiers: path separators, the
// Windows-reserved set, and the null byte.
const reservedChars = "/\\:<>\"|?*\x00"

// ValidateID checks that id is a safe model directory name. Identifiers are
// used as path components under the models directory, so anything that
// could escape it or confuse a filesystem is rejected with MODEL_INVALID_ID.
func ValidateID(id string) error {
	switch {
	case id == "", id == ".", id == "..":
		return errcode.New(errcode.ModelInvalidID)
	case strings.ContainsAny(id, reservedChars):
		return errcode.New(errcode.ModelInvalidID)
	case strings.HasPrefix(id, "~"):
		return errcode.New(errcode.ModelInvalidID)
	}
	return nil
}

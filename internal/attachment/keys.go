package attachment

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// BuildKey mints a stable attachment id and the object key it is stored
// under. Keys group evidence by member so bucket policies can scope access.
func BuildKey(memberID int64, filename string) (id, key string) {
	id = uuid.NewString()
	ext := strings.ToLower(filepath.Ext(filename))
	return id, fmt.Sprintf("member/%d/%s%s", memberID, id, ext)
}

// ParseKey extracts the member id and attachment id from an object key.
func ParseKey(key string) (memberID, attachmentID string, ok bool) {
	parts := strings.Split(key, "/")
	if len(parts) != 3 || parts[0] != "member" {
		return "", "", false
	}
	name := parts[2]
	if ext := filepath.Ext(name); ext != "" {
		name = strings.TrimSuffix(name, ext)
	}
	return parts[1], name, true
}

// OwnedBy reports whether an object key lives under the member's prefix.
func OwnedBy(key string, memberID int64) bool {
	owner, _, ok := ParseKey(key)
	return ok && owner == strconv.FormatInt(memberID, 10)
}

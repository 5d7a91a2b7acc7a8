package util

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// GenerateNodeID derives the stable identifier of a stored symbol row.
// Hashing the file path together with the fully-qualified name keeps IDs
// deterministic across re-indexes, so upserts replace rows instead of
// accumulating duplicates.
func GenerateNodeID(filePath, fullName string) string {
	input := fmt.Sprintf("%s:%s", filePath, fullName)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])
}

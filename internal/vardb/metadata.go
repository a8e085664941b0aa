package vardb

import "strings"

// Metadata keys stored in a package record.
const (
	KeyCategory   = "CATEGORY"
	KeyPF         = "PF"
	KeySlot       = "SLOT"
	KeyRepository = "repository"
	KeyUse        = "USE"
	KeyIUse       = "IUSE"
	KeyRestrict   = "RESTRICT"
	KeyContents   = "CONTENTS"
	KeyBuildID    = "BUILD_ID"
	KeyBuildTime  = "BUILD_TIME"
	KeyEAPI       = "EAPI"
)

// Metadata maps record keys to their raw file contents.
type Metadata map[string]string

// Get returns the value of key with surrounding whitespace removed.
func (m Metadata) Get(key string) string {
	return strings.TrimSpace(m[key])
}

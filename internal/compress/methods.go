package compress

import (
	"sort"
	"strings"
)

// Method describes one supported compressor.
type Method struct {
	Name      string
	Template  string
	Package   string
	Extension string
}

// StoreMethod is the pass-through method used when no compressor is set.
var StoreMethod = Method{Name: "", Template: "cat", Package: "sys-apps/coreutils"}

var methods = map[string]Method{
	"bzip2": {
		Name:      "bzip2",
		Template:  "${PORTAGE_BZIP2_COMMAND:-bzip2} ${BINPKG_COMPRESS_FLAGS}",
		Package:   "app-arch/bzip2",
		Extension: "bz2",
	},
	"gzip": {
		Name:      "gzip",
		Template:  "gzip ${BINPKG_COMPRESS_FLAGS}",
		Package:   "app-arch/gzip",
		Extension: "gz",
	},
	"xz": {
		Name:      "xz",
		Template:  "xz ${BINPKG_COMPRESS_FLAGS} -T{JOBS} --memlimit-compress=50% -q",
		Package:   "app-arch/xz-utils",
		Extension: "xz",
	},
	"zstd": {
		Name:      "zstd",
		Template:  "zstd -T{JOBS} ${BINPKG_COMPRESS_FLAGS}",
		Package:   "app-arch/zstd",
		Extension: "zst",
	},
	"lz4": {
		Name:      "lz4",
		Template:  "lz4 ${BINPKG_COMPRESS_FLAGS}",
		Package:   "app-arch/lz4",
		Extension: "lz4",
	},
	"lzip": {
		Name:      "lzip",
		Template:  "lzip ${BINPKG_COMPRESS_FLAGS}",
		Package:   "app-arch/lzip",
		Extension: "lz",
	},
	"lzop": {
		Name:      "lzop",
		Template:  "lzop ${BINPKG_COMPRESS_FLAGS}",
		Package:   "app-arch/lzop",
		Extension: "lzo",
	},
	"brotli": {
		Name:      "brotli",
		Template:  "brotli -c ${BINPKG_COMPRESS_FLAGS}",
		Package:   "app-arch/brotli",
		Extension: "br",
	},
}

// Lookup returns the method called name. The empty name is StoreMethod.
func Lookup(name string) (Method, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return StoreMethod, true
	}
	m, ok := methods[name]
	return m, ok
}

// Methods returns every known compressor sorted by name.
func Methods() []Method {
	out := make([]Method, 0, len(methods))
	for _, m := range methods {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

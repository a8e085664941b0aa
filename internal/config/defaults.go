package config

const (
	defaultConfigPath    = "~/.config/quickpkg/config.toml"
	defaultRoot          = "/"
	defaultVDBSubdir     = "var/db/pkg"
	defaultPkgDir        = "/var/cache/binpkgs"
	defaultSetsDir       = "/etc/portage/sets"
	defaultWorldFile     = "/var/lib/portage/world"
	defaultWorldSetsFile = "/var/lib/portage/world_sets"
	defaultFormat        = FormatXPAK
	defaultCompress      = "zstd"
	defaultUmask         = "0077"
	defaultLogFormat     = "console"
	defaultLogLevel      = "info"
)

// Supported binary package container formats.
const (
	FormatXPAK = "xpak"
	FormatGPKG = "gpkg"
)

var (
	defaultConfigProtect     = []string{"/etc"}
	defaultConfigProtectMask = []string{"/etc/env.d", "/etc/gconf", "/etc/sandbox.d"}
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			Root:          defaultRoot,
			PkgDir:        defaultPkgDir,
			SetsDir:       defaultSetsDir,
			WorldFile:     defaultWorldFile,
			WorldSetsFile: defaultWorldSetsFile,
		},
		Binpkg: Binpkg{
			Format:   defaultFormat,
			Compress: defaultCompress,
		},
		ConfigProtect: ConfigProtect{
			Protect:     append([]string(nil), defaultConfigProtect...),
			ProtectMask: append([]string(nil), defaultConfigProtectMask...),
		},
		Options: Options{
			Umask: defaultUmask,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

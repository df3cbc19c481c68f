package config

const (
	defaultDownloadDir        = "~/Downloads/etch"
	defaultStateDir           = "~/.local/share/etch"
	defaultLogDir             = "~/.local/share/etch/logs"
	defaultCatalogURL         = "https://raw.githubusercontent.com/etch-project/catalog/main/catalog.json"
	defaultCatalogRefreshH    = 24
	defaultBroker             = "pkexec"
	defaultProgressIntervalMS = 100
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DownloadDir: defaultDownloadDir,
			StateDir:    defaultStateDir,
			LogDir:      defaultLogDir,
		},
		Catalog: Catalog{
			URL:          defaultCatalogURL,
			RefreshHours: defaultCatalogRefreshH,
		},
		Helper: Helper{
			Broker: defaultBroker,
		},
		Imaging: Imaging{
			ProgressIntervalMS: defaultProgressIntervalMS,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

package config

const (
	defaultDataDir           = "~/.local/share/recomo"
	defaultLogDir            = "~/.local/share/recomo/logs"
	defaultBaseURL           = "http://192.168.100.100:7000/api"
	defaultGroup             = "默认组"
	defaultScriptType        = "full"
	defaultRequestTimeout    = 30
	defaultTransferTimeout   = 600
	defaultPollInterval      = 2
	defaultMaxPoints         = 100000
	defaultCacheBackend      = "json"
	defaultCacheFile         = "project_cache.json"
	defaultCacheDBFile       = "project_cache.db"
	defaultRelayPort         = "3001"
	defaultRelayStorage      = "~/RECOMO_App_Data"
	defaultRelayMaxUploadMiB = 2048
	defaultFrameRate         = 60
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Reconstruction: Reconstruction{
			BaseURL:           defaultBaseURL,
			Group:             defaultGroup,
			ScriptType:        defaultScriptType,
			RequestTimeout:    defaultRequestTimeout,
			TransferTimeout:   defaultTransferTimeout,
			PollInterval:      defaultPollInterval,
			MaxPoints:         defaultMaxPoints,
			PreviewPointCloud: true,
		},
		Cache: Cache{
			Backend: defaultCacheBackend,
		},
		Relay: Relay{
			Bind:            ":" + defaultRelayPort,
			StorageBasePath: defaultRelayStorage,
			MaxUploadMiB:    defaultRelayMaxUploadMiB,
		},
		Playback: Playback{
			FrameRate: defaultFrameRate,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

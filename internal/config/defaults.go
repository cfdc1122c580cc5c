package config

const (
	defaultMediaDir                 = "/sdcard/DCIM/PlantCamera"
	defaultStateDir                 = "~/.local/share/plantcam"
	defaultWebBind                  = "0.0.0.0:8000"
	defaultCaptureBinary            = "termux-camera-photo"
	defaultCaptureIntervalSeconds   = 15 * 60
	defaultLiveViewIntervalSeconds  = 5
	defaultRotationDegrees          = 90
	defaultBlackDetectionPercentage = 90.0
	defaultFrameThreshold           = 48
	defaultFPS                      = 24
	defaultCodec                    = "libx264"
	defaultUpdateRemote             = "origin"
	defaultUpdateBranch             = "main"
	defaultNotifyRequestTimeout     = 10
	defaultLogFormat                = "console"
	defaultLogLevel                 = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			MediaDir: defaultMediaDir,
			StateDir: defaultStateDir,
			WebBind:  defaultWebBind,
		},
		Capture: Capture{
			Binary:                   defaultCaptureBinary,
			IntervalSeconds:          defaultCaptureIntervalSeconds,
			LiveViewIntervalSeconds:  defaultLiveViewIntervalSeconds,
			RotationDegrees:          defaultRotationDegrees,
			BlackDetectionPercentage: defaultBlackDetectionPercentage,
		},
		Session: Session{
			FrameThreshold: defaultFrameThreshold,
			FPS:            defaultFPS,
			Codec:          defaultCodec,
		},
		Updater: Updater{
			Remote: defaultUpdateRemote,
			Branch: defaultUpdateBranch,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

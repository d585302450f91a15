package internal

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config     *Config
	configPath string
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithConfigPath records where the configuration was loaded from so the
// image-policy watcher can re-read it on change. Without a path the
// watcher is disabled.
func WithConfigPath(path string) Option {
	return func(a *application) {
		a.configPath = path
	}
}

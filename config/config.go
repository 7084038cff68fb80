package config

import (
	"sync"

	"github.com/jichu20/sleuth-go/log"
	"github.com/jichu20/sleuth-go/pkg/config"
	"github.com/jichu20/sleuth-go/pkg/config/file"
	"github.com/jichu20/sleuth-go/pkg/sys/env"
)

var (
	mu  sync.RWMutex
	app config.Config = &file.Config{}
)

// Init loads the file named by the sleuth_config flag. Without the flag the
// application config stays empty.
func Init() error {
	env.Parse()
	path := env.ConfigPath()
	if path == "" {
		return nil
	}
	c, err := file.Load(path)
	if err != nil {
		return err
	}
	mu.Lock()
	app = c
	mu.Unlock()
	log.DefaultLog.Infow("msg", "config loaded", "path", path)
	return nil
}

// App returns the application config; it is never nil.
func App() config.Config {
	mu.RLock()
	defer mu.RUnlock()
	return app
}

// GetString reads key from the application config, falling back to def.
func GetString(key string, def string) string {
	if v, ok := App().GetString(key); ok && v != "" {
		return v
	}
	return def
}

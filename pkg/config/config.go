package config

import (
	"log"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

type options struct {
	defaults map[string]any
	paths    []string
	onChange func()
}

type Option func(*options)

// WithDefaults 配置文件和环境变量都没给时使用的值，key 用点号分隔 (reconciler.interval)
func WithDefaults(defaults map[string]any) Option {
	return func(o *options) { o.defaults = defaults }
}

// WithPaths 额外的配置目录，放在 ./config 和 . 前面
func WithPaths(paths ...string) Option {
	return func(o *options) { o.paths = append(o.paths, paths...) }
}

// OnChange 配置文件热更新成功后回调
func OnChange(fn func()) Option {
	return func(o *options) { o.onChange = fn }
}

// LoadAndWatch 读取 config/{service}.yaml 并监听变更
//
// 环境变量覆盖 (服务名里的 - 换成 _)，例如：
//
//	LEDGER_SERVICE_CHAIN_API_KEY 覆盖 chain.api_key
//	LEDGER_SERVICE_DB_SOURCE_NAME 覆盖 db.source_name
func LoadAndWatch(service string, out interface{}, opts ...Option) (*viper.Viper, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	v := viper.New()
	v.SetConfigName(service)
	v.SetConfigType("yaml")
	for _, p := range o.paths {
		v.AddConfigPath(p)
	}
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	for k, val := range o.defaults {
		v.SetDefault(k, val)
	}

	v.SetEnvPrefix(strings.ToUpper(strings.ReplaceAll(service, "-", "_")))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	if err := v.Unmarshal(out); err != nil {
		return nil, err
	}
	log.Printf("[%s] config loaded from %s", service, v.ConfigFileUsed())

	// 热更新时 out 会被并发写，这里串行化回调
	var mu sync.Mutex
	v.OnConfigChange(func(e fsnotify.Event) {
		mu.Lock()
		defer mu.Unlock()
		log.Printf("[%s] config file changed: %s", service, e.Name)

		if err := v.Unmarshal(out); err != nil {
			log.Printf("[%s] reload config error: %v", service, err)
			return
		}
		log.Printf("[%s] config reloaded OK", service)
		if o.onChange != nil {
			o.onChange()
		}
	})
	v.WatchConfig()

	return v, nil
}

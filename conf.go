package main

import (
	"os"

	"github.com/spf13/viper"
)

var conf *Conf

type Conf struct {
	App struct {
		Version string `mapstructure:"version"`
		Title   string `mapstructure:"title"`
	} `mapstructure:"app"`
	Input struct {
		Directory string `mapstructure:"directory"`
	} `mapstructure:"input"`
	Output struct {
		Directory      string `mapstructure:"directory"`
		LogDir         string `mapstructure:"logDir"`
		OutputTerminal bool   `mapstructure:"outputTerminal"`
	} `mapstructure:"output"`
	Zoom struct {
		Min int `mapstructure:"min"`
		Max int `mapstructure:"max"`
	} `mapstructure:"zoom"`
	Reproject bool `mapstructure:"reproject"`
	Task      struct {
		Workers int `mapstructure:"workers"`
		Timeout int `mapstructure:"timeout"` // seconds per tool invocation, 0 = none
	} `mapstructure:"task"`
	Tippecanoe struct {
		Args []string `mapstructure:"args"`
	} `mapstructure:"tippecanoe"`
	Chown struct {
		Enabled bool `mapstructure:"enabled"`
		UID     int  `mapstructure:"uid"`
		GID     int  `mapstructure:"gid"`
	} `mapstructure:"chown"`
	Preview struct {
		Skip    bool     `mapstructure:"skip"`
		Command string   `mapstructure:"command"`
		Args    []string `mapstructure:"args"`
		Port    int      `mapstructure:"port"`
	} `mapstructure:"preview"`
}

// InitConf 初始化配置
func InitConf(cfgFile string) {
	if cfgFile == "" {
		cfgFile = "config.yaml"
	}
	viper.SetConfigType("yaml")
	viper.SetConfigFile(cfgFile)
	viper.AutomaticEnv() // read in environment variables that match
	if _, err := os.Stat(cfgFile); err == nil {
		if err := viper.ReadInConfig(); err != nil {
			log.Warnf("read config file(%s) error, details: %s", viper.ConfigFileUsed(), err)
		}
	} else {
		log.Warnf("config file(%s) not found, using defaults", cfgFile)
	}
	// 设置默认值
	viper.SetDefault("app.version", "v 0.1.0")
	viper.SetDefault("app.title", "Shapefile Tiler")
	viper.SetDefault("input.directory", "input")
	viper.SetDefault("output.directory", "output")
	viper.SetDefault("output.outputTerminal", true)
	viper.SetDefault("zoom.min", 4)
	viper.SetDefault("zoom.max", 14)
	viper.SetDefault("reproject", true)
	viper.SetDefault("task.workers", 4)
	viper.SetDefault("task.timeout", 0)
	viper.SetDefault("tippecanoe.args", []string{
		"--read-parallel",
		"--drop-densest-as-needed",
		"--extend-zooms-if-still-dropping",
		"--simplify-only-low-zooms",
		"--detect-shared-borders",
		"--no-feature-limit",
		"--no-tile-size-limit",
		"--force",
	})
	viper.SetDefault("preview.port", 5000)

	if err := viper.Unmarshal(&conf); err != nil {
		panic("配置文件解析失败")
	}
}

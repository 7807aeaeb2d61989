package config

import (
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ReceiverDefaults is the subset of ReceiverConfig an optional -c YAML
// file may override before flags are parsed.
type ReceiverDefaults struct {
	Port      uint16 `yaml:"port"`
	OutputDir string `yaml:"output_dir"`
	Verbose   bool   `yaml:"verbose"`
	LogFile   string `yaml:"log_file"`
	LogFormat string `yaml:"log_format"`
}

// ReceiverConfig is filexfer-recv's resolved configuration.
type ReceiverConfig struct {
	Port      uint16
	OutputDir string
	Verbose   bool
	LogFile   string
	LogFormat string
}

// ParseReceiverArgs parses args (normally os.Args[1:]) into a
// ReceiverConfig. -d defaults to the current directory.
func ParseReceiverArgs(args []string) (ReceiverConfig, error) {
	fs := flag.NewFlagSet("filexfer-recv", flag.ContinueOnError)

	var defaultsPath string
	fs.StringVar(&defaultsPath, "c", "", "optional YAML defaults file")

	port := fs.Uint("p", DefaultPort, "port to listen on")
	outputDir := fs.String("d", ".", "output directory for received files")
	verbose := fs.Bool("v", false, "verbose logging")
	logFile := fs.String("l", "", "log to file")
	logFormat := fs.String("log-format", "json", "log format: json or text")

	if preScanPath := scanForFlagValue(args, "c"); preScanPath != "" {
		def, err := loadReceiverDefaults(preScanPath)
		if err != nil {
			return ReceiverConfig{}, fmt.Errorf("loading defaults file: %w", err)
		}
		if def.Port != 0 {
			*port = uint(def.Port)
		}
		if def.OutputDir != "" {
			*outputDir = def.OutputDir
		}
		*verbose = def.Verbose
		*logFile = def.LogFile
		if def.LogFormat != "" {
			*logFormat = def.LogFormat
		}
	}

	if err := fs.Parse(args); err != nil {
		return ReceiverConfig{}, err
	}

	return ReceiverConfig{
		Port:      uint16(*port),
		OutputDir: *outputDir,
		Verbose:   *verbose,
		LogFile:   *logFile,
		LogFormat: *logFormat,
	}, nil
}

func loadReceiverDefaults(path string) (ReceiverDefaults, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ReceiverDefaults{}, err
	}
	var def ReceiverDefaults
	if err := yaml.Unmarshal(raw, &def); err != nil {
		return ReceiverDefaults{}, fmt.Errorf("parsing yaml: %w", err)
	}
	return def, nil
}

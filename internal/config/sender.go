package config

import (
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SenderDefaults is the subset of SenderConfig an optional -c YAML file
// may override before flags are parsed. Flags always win over the file.
type SenderDefaults struct {
	Port      uint16 `yaml:"port"`
	Verbose   bool   `yaml:"verbose"`
	LogFile   string `yaml:"log_file"`
	LogFormat string `yaml:"log_format"`
	ChunkSize string `yaml:"chunk_size"`
	Bandwidth string `yaml:"bandwidth"`
}

// SenderConfig is filexfer-send's resolved configuration.
type SenderConfig struct {
	Host      string
	Port      uint16
	FilePath  string
	Verbose   bool
	LogFile   string
	LogFormat string
	ChunkSize int64 // bytes; 0 means protocol.DefaultChunkSize
	Bandwidth int64 // bytes/sec; 0 means unthrottled
}

// ParseSenderArgs parses args (normally os.Args[1:]) into a SenderConfig.
// -h and -f are required. -c loads a YAML defaults file first; any flag
// the user actually supplies overrides it.
func ParseSenderArgs(args []string) (SenderConfig, error) {
	fs := flag.NewFlagSet("filexfer-send", flag.ContinueOnError)

	var defaultsPath string
	fs.StringVar(&defaultsPath, "c", "", "optional YAML defaults file")

	host := fs.String("h", "", "server hostname or IP address (required)")
	port := fs.Uint("p", DefaultPort, "server port")
	filePath := fs.String("f", "", "file to transfer (required)")
	verbose := fs.Bool("v", false, "verbose logging")
	logFile := fs.String("l", "", "log to file")
	logFormat := fs.String("log-format", "json", "log format: json or text")
	chunkSize := fs.String("chunk-size", "", "chunk size, e.g. 512kb, 4mb (default: protocol default)")
	bandwidth := fs.String("bandwidth", "", "bandwidth cap, e.g. 1mb (default: unthrottled)")

	// Pre-scan for -c so its values seed the flag defaults before the real
	// parse: config-file values apply first, explicit flags always win.
	if preScanPath := scanForFlagValue(args, "c"); preScanPath != "" {
		def, err := loadSenderDefaults(preScanPath)
		if err != nil {
			return SenderConfig{}, fmt.Errorf("loading defaults file: %w", err)
		}
		if def.Port != 0 {
			*port = uint(def.Port)
		}
		*verbose = def.Verbose
		*logFile = def.LogFile
		if def.LogFormat != "" {
			*logFormat = def.LogFormat
		}
		*chunkSize = def.ChunkSize
		*bandwidth = def.Bandwidth
	}

	if err := fs.Parse(args); err != nil {
		return SenderConfig{}, err
	}

	if *host == "" || *filePath == "" {
		return SenderConfig{}, fmt.Errorf("host (-h) and file (-f) are required")
	}

	cfg := SenderConfig{
		Host:      *host,
		Port:      uint16(*port),
		FilePath:  *filePath,
		Verbose:   *verbose,
		LogFile:   *logFile,
		LogFormat: *logFormat,
	}

	if *chunkSize != "" {
		n, err := ParseByteSize(*chunkSize)
		if err != nil {
			return SenderConfig{}, fmt.Errorf("chunk-size: %w", err)
		}
		cfg.ChunkSize = n
	}
	if *bandwidth != "" {
		n, err := ParseByteSize(*bandwidth)
		if err != nil {
			return SenderConfig{}, fmt.Errorf("bandwidth: %w", err)
		}
		cfg.Bandwidth = n
	}

	return cfg, nil
}

func loadSenderDefaults(path string) (SenderDefaults, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return SenderDefaults{}, err
	}
	var def SenderDefaults
	if err := yaml.Unmarshal(raw, &def); err != nil {
		return SenderDefaults{}, fmt.Errorf("parsing yaml: %w", err)
	}
	return def, nil
}

package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Fuonder/zipfilter.git/internal/compress"
)

var (
	version  = "0.2.1"
	progName = "Fuonder's zipfilter server"
	source   = "https://github.com/Fuonder/zipfilter"
)

var usage = func() {
	_, err := fmt.Fprintf(flag.CommandLine.Output(), "%s\nSource code:\t%s\nVersion:\t%s\nUsage of %s:\n",
		progName,
		source,
		version,
		progName)
	if err != nil {
		return
	}
	flag.PrintDefaults()
}

var (
	ErrNotFullIP   = errors.New("given ip address and port incorrect")
	ErrInvalidIP   = errors.New("incorrect ip address")
	ErrInvalidPort = errors.New("incorrect port number")
)

type NetAddress struct {
	IPAddr string
	Port   int
}

func (n *NetAddress) String() string {
	return fmt.Sprintf("%s:%d", n.IPAddr, n.Port)
}

func (n *NetAddress) Set(value string) error {
	values := strings.Split(value, ":")
	if len(values) != 2 {
		return fmt.Errorf("%w: \"%s\"", ErrNotFullIP, value)
	}
	n.IPAddr = values[0]
	if n.IPAddr == "" {
		return fmt.Errorf("%w: \"%s\"", ErrInvalidIP, values[0])
	}
	var err error
	n.Port, err = strconv.Atoi(values[1])
	if err != nil {
		return fmt.Errorf("%w: \"%s\"", ErrInvalidPort, values[1])
	}
	return nil
}

type CliOptions struct {
	NetAddr             NetAddress
	Threshold           int
	Level               int
	LogLevel            string
	StoreInterval       time.Duration
	FileStoragePath     string
	DatabaseDSN         string
	StatsEnabled        bool
	IncludePaths        []string
	ExcludePaths        []string
	IncludeUserAgents   []string
	ExcludeUserAgents   []string
	NoVaryUserAgents    []string
	IncludeContentTypes []string
	ExcludeContentTypes []string
}

func (o *CliOptions) String() string {
	return fmt.Sprintf(
		"netAddr:%s, threshold:%d, level:%d, logLevel:%s, "+
			"storeInterval:%s, fileStoragePath:%s, databaseDSN set:%t, statsEnabled:%t",
		o.NetAddr.String(),
		o.Threshold,
		o.Level,
		o.LogLevel,
		o.StoreInterval,
		o.FileStoragePath,
		o.DatabaseDSN != "",
		o.StatsEnabled,
	)
}

var CliOpt = CliOptions{
	NetAddr: NetAddress{IPAddr: "localhost", Port: 8080},
}

func parseFlags() error {
	flag.Usage = usage
	flag.Var(&CliOpt.NetAddr, "a", "ip and port of server in format <ip>:<port>")
	flag.IntVar(&CliOpt.Threshold, "t", 1024, "minimal response size in bytes to be compressed")
	flag.IntVar(&CliOpt.Level, "c", compress.DefaultCompressionLevel, "compression level 1..9, -1 for default")
	flag.StringVar(&CliOpt.LogLevel, "l", "info", "log level")
	storeInterval := flag.Int64("i", 300, "interval in seconds between stats snapshots, 0 disables dumping")
	flag.StringVar(&CliOpt.FileStoragePath, "f", "", "path to stats snapshot file")
	flag.StringVar(&CliOpt.DatabaseDSN, "d", "", "database dsn for stats snapshots")
	flag.BoolVar(&CliOpt.StatsEnabled, "s", true, "enable stats collection")
	includePaths := flag.String("ip", "", "comma-separated regexps of paths to compress")
	excludePaths := flag.String("ep", "", "comma-separated regexps of paths to not compress")
	includeUA := flag.String("iu", "", "comma-separated regexps of user-agents to compress for")
	excludeUA := flag.String("eu", "", "comma-separated regexps of user-agents to not compress for")
	noVaryUA := flag.String("nv", "", "comma-separated regexps of user-agents to not send Vary to")
	includeCT := flag.String("ic", "", "comma-separated content types to compress")
	excludeCT := flag.String("ec", "", "comma-separated content types to not compress")

	flag.Parse()

	if envRunAddr := os.Getenv("ADDRESS"); envRunAddr != "" {
		if err := CliOpt.NetAddr.Set(envRunAddr); err != nil {
			return fmt.Errorf("env ADDRESS: %w", err)
		}
	}
	if envThreshold := os.Getenv("COMPRESSION_THRESHOLD"); envThreshold != "" {
		value, err := strconv.Atoi(envThreshold)
		if err != nil {
			return fmt.Errorf("env COMPRESSION_THRESHOLD: %w", err)
		}
		CliOpt.Threshold = value
	}
	if envLevel := os.Getenv("COMPRESSION_LEVEL"); envLevel != "" {
		value, err := strconv.Atoi(envLevel)
		if err != nil {
			return fmt.Errorf("env COMPRESSION_LEVEL: %w", err)
		}
		CliOpt.Level = value
	}
	if envLogLevel := os.Getenv("LOG_LEVEL"); envLogLevel != "" {
		CliOpt.LogLevel = envLogLevel
	}
	if envInterval := os.Getenv("STORE_INTERVAL"); envInterval != "" {
		value, err := strconv.ParseInt(envInterval, 10, 64)
		if err != nil {
			return fmt.Errorf("env STORE_INTERVAL: %w", err)
		}
		*storeInterval = value
	}
	if envPath := os.Getenv("FILE_STORAGE_PATH"); envPath != "" {
		CliOpt.FileStoragePath = envPath
	}
	if envDSN := os.Getenv("DATABASE_DSN"); envDSN != "" {
		CliOpt.DatabaseDSN = envDSN
	}
	if envStats := os.Getenv("STATS_ENABLED"); envStats != "" {
		value, err := strconv.ParseBool(envStats)
		if err != nil {
			return fmt.Errorf("env STATS_ENABLED: %w", err)
		}
		CliOpt.StatsEnabled = value
	}

	if *storeInterval < 0 {
		return fmt.Errorf("flag -i: store interval must be non-negative")
	}
	CliOpt.StoreInterval = time.Duration(*storeInterval) * time.Second

	CliOpt.IncludePaths = splitList(envOr("INCLUDE_PATH_PATTERNS", *includePaths))
	CliOpt.ExcludePaths = splitList(envOr("EXCLUDE_PATH_PATTERNS", *excludePaths))
	CliOpt.IncludeUserAgents = splitList(envOr("INCLUDE_USER_AGENT_PATTERNS", *includeUA))
	CliOpt.ExcludeUserAgents = splitList(envOr("EXCLUDE_USER_AGENT_PATTERNS", *excludeUA))
	CliOpt.NoVaryUserAgents = splitList(envOr("NO_VARY_USER_AGENT_PATTERNS", *noVaryUA))
	CliOpt.IncludeContentTypes = splitList(envOr("INCLUDE_CONTENT_TYPES", *includeCT))
	CliOpt.ExcludeContentTypes = splitList(envOr("EXCLUDE_CONTENT_TYPES", *excludeCT))

	return nil
}

func envOr(name string, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	list := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			list = append(list, p)
		}
	}
	return list
}

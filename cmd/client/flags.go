package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

var (
	version  = "0.2.1"
	progName = "Fuonder's zipfilter client"
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
	NetAddr        NetAddress
	ReportInterval time.Duration
	ReportCount    int64
	Encoding       string
	LogLevel       string
}

func (o *CliOptions) String() string {
	return fmt.Sprintf("netAddr:%s, reportInterval:%s, reportCount:%d, encoding:%s, logLevel:%s",
		o.NetAddr.String(),
		o.ReportInterval,
		o.ReportCount,
		o.Encoding,
		o.LogLevel,
	)
}

var CliOpt = CliOptions{
	NetAddr: NetAddress{IPAddr: "localhost", Port: 8080},
}

func parseFlags() error {
	flag.Usage = usage
	flag.Var(&CliOpt.NetAddr, "a", "ip and port of server in format <ip>:<port>")
	reportInterval := flag.Int64("r", 10, "interval in seconds between reports")
	flag.Int64Var(&CliOpt.ReportCount, "n", 0, "number of reports to send, 0 means until interrupted")
	flag.StringVar(&CliOpt.Encoding, "e", "gzip", "request body encoding token, \"identity\" sends plain")
	flag.StringVar(&CliOpt.LogLevel, "l", "info", "log level")

	flag.Parse()

	if envRunAddr := os.Getenv("ADDRESS"); envRunAddr != "" {
		if err := CliOpt.NetAddr.Set(envRunAddr); err != nil {
			return fmt.Errorf("env ADDRESS: %w", err)
		}
	}
	if envRInterval := os.Getenv("REPORT_INTERVAL"); envRInterval != "" {
		value, err := strconv.ParseInt(envRInterval, 10, 64)
		if err != nil {
			return fmt.Errorf("env REPORT_INTERVAL: %w", err)
		}
		*reportInterval = value
	}
	if envCount := os.Getenv("REPORT_COUNT"); envCount != "" {
		value, err := strconv.ParseInt(envCount, 10, 64)
		if err != nil {
			return fmt.Errorf("env REPORT_COUNT: %w", err)
		}
		CliOpt.ReportCount = value
	}
	if envEncoding := os.Getenv("REQUEST_ENCODING"); envEncoding != "" {
		CliOpt.Encoding = envEncoding
	}

	if *reportInterval <= 0 {
		return fmt.Errorf("flag -r: report interval must be positive")
	}
	CliOpt.ReportInterval = time.Duration(*reportInterval) * time.Second
	return nil
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/Fuonder/zipfilter.git/internal/compress"
	"github.com/Fuonder/zipfilter.git/internal/logger"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

var (
	ErrWrongResponseStatus = errors.New("wrong response status")
	ErrCanNotSend          = errors.New("can not send report")
)

var timeouts = []time.Duration{
	1 * time.Second,
	3 * time.Second,
	5 * time.Second,
}

const maxRetries = 3

func main() {
	if err := parseFlags(); err != nil {
		panic(err)
	}
	if err := logger.Initialize(CliOpt.LogLevel); err != nil {
		panic(err)
	}
	logger.Log.Info("Flags parsed",
		zap.String("flags", CliOpt.String()))
	if err := run(&CliOpt); err != nil {
		logger.Log.Fatal("client stopped", zap.Error(err))
	}
}

func run(opt *CliOptions) error {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
		syscall.SIGQUIT,
	)
	defer cancel()

	client := resty.New()
	url := "http://" + opt.NetAddr.String() + "/report"

	ticker := time.NewTicker(opt.ReportInterval)
	defer ticker.Stop()

	var sent int64
	for {
		report, err := collectReport()
		if err != nil {
			return err
		}
		if err := sendReportWithRetries(client, url, report, opt.Encoding); err != nil {
			logger.Log.Warn("report dropped", zap.Error(err))
		} else {
			logger.Log.Info("report sent", zap.String("report", report.String()))
		}
		sent++
		if opt.ReportCount > 0 && sent >= opt.ReportCount {
			return nil
		}
		select {
		case <-ctx.Done():
			logger.Log.Info("shutting down gracefully")
			return nil
		case <-ticker.C:
		}
	}
}

// sendReportWithRetries повторяет отправку при сетевых сбоях
// с нарастающими паузами между попытками.
func sendReportWithRetries(client *resty.Client, url string, report any, encoding string) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			logger.Log.Info("retrying send",
				zap.Int("attempt", attempt),
				zap.Duration("after", timeouts[attempt-1]))
			time.Sleep(timeouts[attempt-1])
		}
		lastErr = sendReport(client, url, report, encoding)
		if lastErr == nil {
			return nil
		}
		var netErr net.Error
		if !errors.As(lastErr, &netErr) {
			return lastErr
		}
	}
	return fmt.Errorf("%w: %v", ErrCanNotSend, lastErr)
}

func sendReport(client *resty.Client, url string, report any, encoding string) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("can not marshal report: %v", err)
	}

	req := client.R().
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept-Encoding", "gzip")

	if encoding != "" && encoding != compress.IdentityEncoding {
		body, err = compressBody(body, encoding)
		if err != nil {
			return err
		}
		req.SetHeader("Content-Encoding", encoding)
	}

	resp, err := req.SetBody(body).Post(url)
	if err != nil {
		return fmt.Errorf("failed to send report: %w", err)
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("%w: %d", ErrWrongResponseStatus, resp.StatusCode())
	}
	return nil
}

func compressBody(data []byte, token string) ([]byte, error) {
	codec, err := compress.DefaultRegistry().Resolve(token)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	cw, err := codec.NewCompressor(&buf, compress.DefaultCompressionLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to init compressor: %v", err)
	}
	if _, err := cw.Write(data); err != nil {
		return nil, fmt.Errorf("failed to compress data: %v", err)
	}
	if err := cw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish compression: %v", err)
	}
	return buf.Bytes(), nil
}

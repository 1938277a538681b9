// Package server описывает функционал, который необходим для работы
// демонстрационного HTTP-сервера: endpoint'ы, прогоняющие трафик через
// фильтр сжатия, и отчетные ручки статистики.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/Fuonder/zipfilter.git/internal/compress"
	"github.com/Fuonder/zipfilter.git/internal/logger"
	"github.com/Fuonder/zipfilter.git/internal/models"
	"github.com/Fuonder/zipfilter.git/internal/storage"
	"go.uber.org/zap"
)

var ErrNoHealthChecker = errors.New("storage health checker not configured")

// Handler реализует обработчики HTTP-запросов демонстрационного сервера.
type Handler struct {
	filter *compress.Filter
	health storage.HealthChecker

	mu         sync.RWMutex
	lastReport *models.Report
}

// NewHandler создает новый экземпляр Handler. health может быть nil,
// если хранилище статистики не настроено.
func NewHandler(filter *compress.Filter, health storage.HealthChecker) *Handler {
	return &Handler{
		filter: filter,
		health: health,
	}
}

// RootHandler обрабатывает корневой GET-запрос и возвращает сводку
// статистики фильтра в формате text/html.
func (h *Handler) RootHandler(rw http.ResponseWriter, r *http.Request) {
	logger.Log.Debug("Entering root handler")
	snap := h.filter.Stats()

	var b strings.Builder
	b.WriteString("<html><body><h1>zipfilter</h1><ul>")
	fmt.Fprintf(&b, "<li>requests decompressed: %d</li>", snap.RequestsDecompressed)
	fmt.Fprintf(&b, "<li>requests not decompressed: %d</li>", snap.RequestsNotDecompressed)
	fmt.Fprintf(&b, "<li>responses compressed: %d</li>", snap.ResponsesCompressed)
	fmt.Fprintf(&b, "<li>responses not compressed: %d</li>", snap.ResponsesNotCompressed)
	fmt.Fprintf(&b, "<li>bytes in/out: %d/%d</li>", snap.ResponseBytesIn, snap.ResponseBytesOut)
	fmt.Fprintf(&b, "<li>compression ratio: %.3f</li>", snap.CompressionRatio)
	b.WriteString("</ul></body></html>")

	rw.Header().Set("Content-Type", "text/html")
	rw.WriteHeader(http.StatusOK)
	_, err := rw.Write([]byte(b.String()))
	if err != nil {
		return
	}
}

// EchoHandler возвращает тело запроса обратно с тем же Content-Type.
// Сжатое тело запроса к этому моменту уже прозрачно распаковано фильтром.
func (h *Handler) EchoHandler(rw http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Log.Info("can not read request body", zap.Error(err))
		http.Error(rw, "can not read request body", http.StatusBadRequest)
		return
	}
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/octet-stream"
	}
	rw.Header().Set("Content-Type", ct)
	rw.WriteHeader(http.StatusOK)
	_, err = rw.Write(body)
	if err != nil {
		return
	}
}

// ReportHandler принимает JSON-отчет клиента и запоминает последний.
func (h *Handler) ReportHandler(rw http.ResponseWriter, r *http.Request) {
	var report models.Report
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		logger.Log.Info("invalid report payload", zap.Error(err))
		http.Error(rw, "invalid report payload", http.StatusBadRequest)
		return
	}
	logger.Log.Debug("got report", zap.String("report", report.String()))

	h.mu.Lock()
	h.lastReport = &report
	h.mu.Unlock()

	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(http.StatusOK)
	resp, _ := json.Marshal(report)
	_, err := rw.Write(resp)
	if err != nil {
		return
	}
}

// StatsHandler возвращает моментальный срез счетчиков фильтра в JSON.
func (h *Handler) StatsHandler(rw http.ResponseWriter, r *http.Request) {
	snap := h.filter.Stats()
	resp, err := json.MarshalIndent(snap, "", "    ")
	if err != nil {
		http.Error(rw, "can not marshal stats", http.StatusInternalServerError)
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(http.StatusOK)
	_, err = rw.Write(resp)
	if err != nil {
		return
	}
}

// PingHandler проверяет доступность хранилища статистики.
func (h *Handler) PingHandler(rw http.ResponseWriter, r *http.Request) {
	if h.health == nil {
		logger.Log.Info("ping failed", zap.Error(ErrNoHealthChecker))
		http.Error(rw, ErrNoHealthChecker.Error(), http.StatusInternalServerError)
		return
	}
	if err := h.health.CheckConnection(); err != nil {
		logger.Log.Info("ping failed", zap.Error(err))
		http.Error(rw, "storage unavailable", http.StatusInternalServerError)
		return
	}
	rw.WriteHeader(http.StatusOK)
}

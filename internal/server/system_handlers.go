package server

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/truckboard/truckboard/internal/database"
)

// SystemHandlers serves process and database health endpoints.
type SystemHandlers struct {
	log       zerolog.Logger
	dataDir   string
	configDB  *database.DB
	recordsDB *database.DB
	startedAt time.Time
}

// NewSystemHandlers creates the system handler set.
func NewSystemHandlers(log zerolog.Logger, dataDir string, configDB, recordsDB *database.DB) *SystemHandlers {
	return &SystemHandlers{
		log:       log.With().Str("handler", "system").Logger(),
		dataDir:   dataDir,
		configDB:  configDB,
		recordsDB: recordsDB,
		startedAt: time.Now(),
	}
}

// HealthResponse is the GET /api/system/health payload.
type HealthResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	CPUPercent    float64 `json:"cpu_percent"`
	RAMPercent    float64 `json:"ram_percent"`
	DataDirMB     float64 `json:"data_dir_mb"`
	ConfigDB      string  `json:"config_db"`
	RecordsDB     string  `json:"records_db"`
}

// HandleHealth handles GET /api/system/health. The default check is a
// cheap ping per database; `?deep=1` runs the full integrity check, which
// is too expensive for dashboard polling intervals.
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	deep := r.URL.Query().Get("deep") != ""
	cpuPct, ramPct := h.systemStats()

	response := HealthResponse{
		Status:        "ok",
		UptimeSeconds: time.Since(h.startedAt).Seconds(),
		CPUPercent:    cpuPct,
		RAMPercent:    ramPct,
		DataDirMB:     h.dirSizeMB(h.dataDir),
		ConfigDB:      h.dbStatus(ctx, h.configDB, deep),
		RecordsDB:     h.dbStatus(ctx, h.recordsDB, deep),
	}
	if response.ConfigDB != "ok" || response.RecordsDB != "ok" {
		response.Status = "degraded"
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode health response")
	}
}

func (h *SystemHandlers) dbStatus(ctx context.Context, db *database.DB, deep bool) string {
	if db == nil {
		return "not configured"
	}

	check := db.QuickCheck
	if deep {
		check = db.HealthCheck
	}
	if err := check(ctx); err != nil {
		h.log.Warn().Err(err).Str("db", db.Name()).Msg("Database health check failed")
		return err.Error()
	}
	return "ok"
}

// systemStats samples CPU and RAM usage. A 100ms CPU window keeps the
// endpoint responsive for dashboard polling.
func (h *SystemHandlers) systemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}
	return cpuAvg, memStat.UsedPercent
}

func (h *SystemHandlers) dirSizeMB(dirPath string) float64 {
	var totalSize int64

	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if !info.IsDir() {
			totalSize += info.Size()
		}
		return nil
	})
	if err != nil {
		h.log.Warn().Err(err).Str("dir", dirPath).Msg("Failed to calculate directory size")
		return 0
	}
	return float64(totalSize) / 1024 / 1024
}

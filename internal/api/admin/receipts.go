// receipts.go implements the support surface for receipt scans: the backlog
// of images the vision model could not read, and retrieval of archived
// originals verified against the checksum recorded at ingest time.
package admin

import (
	"bytes"
	"database/sql"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/db/repositories"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/storage"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/pkg/checksum"
)

const (
	defaultBacklogLimit = 50
	maxBacklogLimit     = 500
)

// ReceiptHandlers serves the unparseable backlog and archived originals.
type ReceiptHandlers struct {
	scanRepo *repositories.ReceiptScanRepository
	archive  storage.Archive
}

// NewReceiptHandlers creates the receipt scan handlers.
func NewReceiptHandlers(db *sql.DB, archive storage.Archive) *ReceiptHandlers {
	return &ReceiptHandlers{
		scanRepo: repositories.NewReceiptScanRepository(db),
		archive:  archive,
	}
}

// @Summary      Unparseable scan backlog
// @Description  Lists the oldest receipt photos the vision model could not read. Each entry is a support case: the user sent a receipt and no transaction was recorded.
// @Tags         Receipts
// @Security     OpsToken
// @Produce      json
// @Param        limit  query  int  false  "Maximum entries to return (default 50, max 500)"
// @Success      200  {object}  map[string]interface{}  "count: entries returned, scans: scan records"
// @Failure      400  {object}  map[string]interface{}  "Invalid limit"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/admin/receipts/unparseable [get]
// ListUnparseable lists the oldest unparseable scans
// GET /api/v1/admin/receipts/unparseable
func (h *ReceiptHandlers) ListUnparseable(c *gin.Context) {
	limit := defaultBacklogLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		if parsed > maxBacklogLimit {
			parsed = maxBacklogLimit
		}
		limit = parsed
	}

	scans, err := h.scanRepo.ListUnparseable(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load scan backlog"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count": len(scans),
		"scans": scans,
	})
}

// @Summary      Fetch archived receipt photo
// @Description  Downloads the original photo for a scan and verifies it against the checksum recorded at ingest before returning it. A mismatch means the archived object was altered or corrupted after ingest.
// @Tags         Receipts
// @Security     OpsToken
// @Produce      image/jpeg
// @Param        id  path  string  true  "Scan ID"
// @Success      200  {file}    binary                  "The archived photo"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      404  {object}  map[string]interface{}  "Scan not found"
// @Failure      500  {object}  map[string]interface{}  "Integrity check failed"
// @Failure      502  {object}  map[string]interface{}  "Archive backend unavailable"
// @Router       /api/v1/admin/receipts/{id}/archive [get]
// GetArchive fetches the archived original for a scan
// GET /api/v1/admin/receipts/:id/archive
func (h *ReceiptHandlers) GetArchive(c *gin.Context) {
	id := c.Param("id")

	scan, err := h.scanRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load scan"})
		return
	}
	if scan == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Scan not found"})
		return
	}

	reader, err := h.archive.Download(c.Request.Context(), scan.StoragePath)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Archive backend unavailable"})
		return
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Archive read failed"})
		return
	}

	// The archived object must still hash to the checksum recorded at ingest.
	ok, actual, err := checksum.VerifySHA256(bytes.NewReader(data), scan.Checksum)
	if err != nil || !ok {
		slog.Error("archived receipt failed integrity check",
			"scan_id", scan.ID,
			"storage_path", scan.StoragePath,
			"recorded_checksum", scan.Checksum,
			"actual_checksum", actual,
			"error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Archive integrity check failed",
			"scan_id": scan.ID,
		})
		return
	}

	c.Set("audit_resource_id", scan.ID)
	c.Set("audit_external_chat_id", scan.ExternalChatID)

	c.Data(http.StatusOK, contentTypeFor(scan.StoragePath), data)
}

// @Summary      Stat archived receipt photo
// @Description  Reports size, last-modified time and checksum agreement for the archived original without downloading it. A checksum mismatch means the archive copy no longer matches what was ingested.
// @Tags         Receipts
// @Security     OpsToken
// @Produce      json
// @Param        id  path  string  true  "Scan ID"
// @Success      200  {object}  map[string]interface{}  "Archive object metadata"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      404  {object}  map[string]interface{}  "Scan not found"
// @Failure      502  {object}  map[string]interface{}  "Archive backend unavailable"
// @Router       /api/v1/admin/receipts/{id}/archive/meta [get]
// GetArchiveInfo stats the archived original without downloading it
// GET /api/v1/admin/receipts/:id/archive/meta
func (h *ReceiptHandlers) GetArchiveInfo(c *gin.Context) {
	id := c.Param("id")

	scan, err := h.scanRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load scan"})
		return
	}
	if scan == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Scan not found"})
		return
	}

	meta, err := h.archive.GetMetadata(c.Request.Context(), scan.StoragePath)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Archive backend unavailable"})
		return
	}

	c.Set("audit_resource_id", scan.ID)
	c.Set("audit_external_chat_id", scan.ExternalChatID)

	c.JSON(http.StatusOK, gin.H{
		"scan_id":           scan.ID,
		"storage_path":      scan.StoragePath,
		"size":              meta.Size,
		"last_modified":     meta.LastModified,
		"recorded_checksum": scan.Checksum,
		"archive_checksum":  meta.Checksum,
		"checksum_match":    meta.Checksum == scan.Checksum,
	})
}

// contentTypeFor maps an archive path back to the MIME type recorded in its
// extension at ingest time.
func contentTypeFor(path string) string {
	switch {
	case strings.HasSuffix(path, ".jpg"):
		return "image/jpeg"
	case strings.HasSuffix(path, ".png"):
		return "image/png"
	case strings.HasSuffix(path, ".webp"):
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

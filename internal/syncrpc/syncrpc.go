// Package syncrpc implements the peer-facing Sync RPC surface (spec §4.E):
// FullSync, IncrementalSync, and GetFullData, exposed as HTTP+JSON
// endpoints mounted on a gin.Engine. Grounded directly on the teacher's
// internal/api package: a Handler struct holding its collaborators,
// constructed with NewHandler, wired onto the router by Register.
package syncrpc

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"replichat/internal/chatmsg"
	"replichat/internal/store"
)

// DataPackage is the wire payload shared by all three operations (spec
// §4.E): "each field defaults to empty".
type DataPackage struct {
	Messages   []chatmsg.Message `json:"messages"`
	DeletedIDs []string          `json:"deleted_ids"`
	ReadIDs    []string          `json:"read_ids"`
}

// SyncResponse is the reply to FullSync and IncrementalSync.
type SyncResponse struct {
	Success bool `json:"success"`
}

// Handler holds the dependencies the Sync RPC surface needs.
type Handler struct {
	store *store.Store
	log   zerolog.Logger
}

// NewHandler creates a Handler.
func NewHandler(s *store.Store, log zerolog.Logger) *Handler {
	return &Handler{store: s, log: log}
}

// Register mounts the three Sync RPC routes on r.
func (h *Handler) Register(r *gin.Engine) {
	sync := r.Group("/sync")
	sync.POST("/full", h.FullSync)
	sync.POST("/incremental", h.IncrementalSync)
	sync.GET("/full", h.GetFullData)
}

// FullSync replaces the local store with the package contents (spec: "
// Clears both structures, applies every message as upsert, applies every
// deleted_id. Rewrites the log in snapshot mode.").
func (h *Handler) FullSync(c *gin.Context) {
	var pkg DataPackage
	if err := c.ShouldBindJSON(&pkg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	byID := make(map[string]chatmsg.Message, len(pkg.Messages))
	for _, m := range pkg.Messages {
		byID[m.ID] = m
	}
	for _, id := range pkg.DeletedIDs {
		delete(byID, id)
	}
	merged := make([]chatmsg.Message, 0, len(byID))
	for _, m := range byID {
		merged = append(merged, m)
	}

	if err := h.store.ReplaceAll(merged); err != nil {
		h.log.Error().Err(err).Msg("full sync replace failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, SyncResponse{Success: true})
}

// IncrementalSync applies the package's upserts, deletes, and reads in
// order, each under its own log record kind (spec: "an empty sub-list of
// any kind is skipped. Idempotent.").
func (h *Handler) IncrementalSync(c *gin.Context) {
	var pkg DataPackage
	if err := c.ShouldBindJSON(&pkg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	for _, m := range pkg.Messages {
		if _, err := h.store.ApplyRemoteUpsert(m); err != nil {
			h.log.Error().Err(err).Str("id", m.ID).Msg("incremental sync upsert failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}
	if len(pkg.DeletedIDs) > 0 {
		if err := h.store.ApplyRemoteDelete(pkg.DeletedIDs); err != nil {
			h.log.Error().Err(err).Msg("incremental sync delete failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}
	if len(pkg.ReadIDs) > 0 {
		if err := h.store.ApplyRemoteRead(pkg.ReadIDs); err != nil {
			h.log.Error().Err(err).Msg("incremental sync read failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, SyncResponse{Success: true})
}

// GetFullData returns a snapshot of every message currently in by_id.
// deleted_ids and read_ids are always empty on this path (spec §4.E).
func (h *Handler) GetFullData(c *gin.Context) {
	c.JSON(http.StatusOK, DataPackage{
		Messages:   h.store.Snapshot(),
		DeletedIDs: []string{},
		ReadIDs:    []string{},
	})
}

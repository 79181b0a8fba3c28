package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/3merillon/rmt-compose-poc-sub004/internal/expr/bytecode"
	"github.com/3merillon/rmt-compose-poc-sub004/internal/expr/module"
	"github.com/3merillon/rmt-compose-poc-sub004/internal/logger"
	"github.com/3merillon/rmt-compose-poc-sub004/internal/metrics"
	"github.com/3merillon/rmt-compose-poc-sub004/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CompositionHandler is the sole consumer of the expression core over
// HTTP/JSON (spec §6 "external collaborator"): it only ever calls through
// the module.Module facade, never into bytecode or the graph directly.
type CompositionHandler struct {
	store      CompositionStore
	cloudwatch *metrics.Client
	sentry     *metrics.SentryMetrics
}

// NewCompositionHandler constructs a handler backed by store. cloudwatch
// may be nil (CloudWatch disabled).
func NewCompositionHandler(store CompositionStore, cloudwatch *metrics.Client) *CompositionHandler {
	return &CompositionHandler{
		store:      store,
		cloudwatch: cloudwatch,
		sentry:     metrics.NewSentryMetrics(),
	}
}

func (h *CompositionHandler) recordEvaluate(c *gin.Context, id string, dur time.Duration, stats module.Stats) {
	logger.LogEvaluate(c.Request.Context(), id, dur, stats.DirtyCount, stats.CorruptedCount, nil)
	h.sentry.RecordEvaluate(c.Request.Context(), id, dur, stats.DirtyCount, stats.CorruptedCount)
	if h.cloudwatch != nil {
		h.cloudwatch.RecordEvaluate(dur, stats.DirtyCount, stats.NoteCount, stats.CorruptedCount)
	}
}

// CreateComposition accepts a Module JSON document (spec §6), rebuilds
// and evaluates it, and persists the result under a fresh id.
func (h *CompositionHandler) CreateComposition(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	m, err := module.FromJSON(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ownerID, _ := middleware.GetCurrentUserID(c)
	id := uuid.New().String()
	if err := h.store.Create(id, ownerID, m); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	doc, err := m.ToJSON()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusCreated, "application/json; charset=utf-8", append([]byte(`{"id":"`+id+`","document":`), append(doc, '}')...))
}

// GetComposition returns the stored document as-is.
func (h *CompositionHandler) GetComposition(c *gin.Context) {
	m, err := h.store.Load(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	doc, err := m.ToJSON()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", doc)
}

// EvaluateComposition forces a re-evaluation and returns every note's
// current cache: value and corrupted flag for each evaluated property.
func (h *CompositionHandler) EvaluateComposition(c *gin.Context) {
	id := c.Param("id")
	m, err := h.store.Load(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	start := time.Now()
	if err := m.Reevaluate(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	dur := time.Since(start)
	stats := m.Stats()
	h.recordEvaluate(c, id, dur, stats)

	if err := h.store.Save(id, m); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"stats": stats, "notes": notesSnapshot(m)})
}

// GetNote returns one note's cached property values.
func (h *CompositionHandler) GetNote(c *gin.Context) {
	noteID, ok := parseNoteID(c)
	if !ok {
		return
	}
	m, err := h.store.Load(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	n := m.Note(noteID)
	if n == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "note not found"})
		return
	}
	c.JSON(http.StatusOK, noteSnapshot(m, noteID))
}

type setExpressionRequest struct {
	Property string `json:"property" binding:"required"`
	Source   string `json:"source" binding:"required"`
}

// SetNoteExpression compiles and installs a new expression for one
// property of one note (module.Set), then re-evaluates the notes that
// change dirtied and persists the composition.
func (h *CompositionHandler) SetNoteExpression(c *gin.Context) {
	noteID, ok := parseNoteID(c)
	if !ok {
		return
	}
	var req setExpressionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	property, ok := parseProperty(req.Property)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown property " + req.Property})
		return
	}

	id := c.Param("id")
	m, err := h.store.Load(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err := m.Set(noteID, property, req.Source); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	start := time.Now()
	if err := m.Reevaluate(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.recordEvaluate(c, id, time.Since(start), m.Stats())

	if err := h.store.Save(id, m); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, noteSnapshot(m, noteID))
}

type addNoteRequest struct {
	ID             int    `json:"id" binding:"required"`
	ParentID       *int   `json:"parentId"`
	MeasureChainOf *int   `json:"measureChainOf"`
	Color          string `json:"color"`
	Instrument     string `json:"instrument"`
}

// AddNote creates a new note under parentId (module.AddNote).
func (h *CompositionHandler) AddNote(c *gin.Context) {
	var req addNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := c.Param("id")
	m, err := h.store.Load(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err := m.AddNote(req.ID, req.ParentID, req.MeasureChainOf, req.Color, req.Instrument); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	if err := h.store.Save(id, m); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, noteSnapshot(m, req.ID))
}

// DeleteNote removes a note, cascading to dependents (?strategy=cascade,
// the default) or liberating them in place (?strategy=keep).
func (h *CompositionHandler) DeleteNote(c *gin.Context) {
	noteID, ok := parseNoteID(c)
	if !ok {
		return
	}
	cascade := c.DefaultQuery("strategy", "cascade") != "keep"

	id := c.Param("id")
	m, err := h.store.Load(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err := m.Delete(noteID, cascade); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	if err := h.store.Save(id, m); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

type liberateRequest struct {
	Property string `json:"property" binding:"required"`
}

// LiberateNote freezes a note's property to a standalone expression
// carrying its current value (module.Liberate).
func (h *CompositionHandler) LiberateNote(c *gin.Context) {
	noteID, ok := parseNoteID(c)
	if !ok {
		return
	}
	var req liberateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	property, ok := parseProperty(req.Property)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown property " + req.Property})
		return
	}

	id := c.Param("id")
	m, err := h.store.Load(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err := m.Liberate(noteID, property); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	if err := h.store.Save(id, m); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, noteSnapshot(m, noteID))
}

// EvaluateToBase returns the base-note-only rewrite of a note's property
// (module.EvaluateToBase), a read-only operation.
func (h *CompositionHandler) EvaluateToBase(c *gin.Context) {
	noteID, ok := parseNoteID(c)
	if !ok {
		return
	}
	property, ok := parseProperty(c.Query("property"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown or missing property"})
		return
	}

	m, err := h.store.Load(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	src, err := m.EvaluateToBase(noteID, property)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"source": src})
}

type batchChange struct {
	NoteID   int    `json:"noteId"`
	Property string `json:"property" binding:"required"`
	Source   string `json:"source" binding:"required"`
}

type batchRequest struct {
	Changes []batchChange `json:"changes" binding:"required"`
}

// BatchSetExpressions applies a set of changes atomically (module.
// BatchSet): either all compile/validate and commit together, or none
// take effect.
func (h *CompositionHandler) BatchSetExpressions(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	changes := make([]module.Change, 0, len(req.Changes))
	for _, ch := range req.Changes {
		property, ok := parseProperty(ch.Property)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown property " + ch.Property})
			return
		}
		changes = append(changes, module.Change{NoteID: ch.NoteID, Property: property, Source: ch.Source})
	}

	id := c.Param("id")
	m, err := h.store.Load(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	start := time.Now()
	if err := m.BatchSet(changes); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	h.recordEvaluate(c, id, time.Since(start), m.Stats())

	if err := h.store.Save(id, m); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notes": notesSnapshot(m)})
}

// NoteDependents reports the notes whose expressions read noteId's
// fromProp value (module.DependentsByProperty). The toProp query
// parameter is ignored: the graph records which notes read a provider's
// property, not which of their own properties does the reading.
func (h *CompositionHandler) NoteDependents(c *gin.Context) {
	noteID, ok := parseNoteID(c)
	if !ok {
		return
	}
	property, ok := parseProperty(c.Query("fromProp"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown or missing fromProp"})
		return
	}

	m, err := h.store.Load(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"dependents": m.DependentsByProperty(noteID, property)})
}

func parseNoteID(c *gin.Context) (int, bool) {
	n, err := strconv.Atoi(c.Param("noteId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid note id"})
		return 0, false
	}
	return n, true
}

func noteSnapshot(m *module.Module, noteID int) gin.H {
	n := m.Note(noteID)
	if n == nil {
		return gin.H{"id": noteID, "exists": false}
	}
	props := gin.H{}
	for v := byte(0); v <= bytecode.VarMeasureLength; v++ {
		val, evaluated, corrupted := m.Value(noteID, v)
		if !evaluated {
			continue
		}
		props[bytecode.VarName(v)] = gin.H{
			"value":     val.Float64(),
			"corrupted": corrupted,
		}
	}
	return gin.H{
		"id":             n.ID,
		"parentId":       n.ParentID,
		"measureChainOf": n.MeasureChainOf,
		"color":          n.Color,
		"instrument":     n.Instrument,
		"properties":     props,
	}
}

func notesSnapshot(m *module.Module) []gin.H {
	ids := m.NoteIDs()
	out := make([]gin.H, 0, len(ids))
	for _, id := range ids {
		out = append(out, noteSnapshot(m, id))
	}
	return out
}

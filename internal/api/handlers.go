package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Veraticus/contract-sentinel/internal/common"
	"github.com/Veraticus/contract-sentinel/internal/model"
	"github.com/Veraticus/contract-sentinel/internal/normalize"
	"github.com/Veraticus/contract-sentinel/internal/session"
	"github.com/Veraticus/contract-sentinel/internal/storage"
)

const maxPreviewIDs = 50

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": s.clock.Now().UTC().Format("2006-01-02T15:04:05Z07:00"),
	})
}

func (s *Server) listContracts(c *gin.Context) {
	entries, err := s.orch.Registry().ListEntries(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	views := make([]contractView, 0, len(entries))
	for i := range entries {
		views = append(views, newContractView(&entries[i]))
	}
	c.JSON(http.StatusOK, gin.H{"contracts": views})
}

func (s *Server) getContract(c *gin.Context) {
	entry, err := s.orch.Registry().GetEntry(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newContractView(entry))
}

type registerRequest struct {
	// Input is a registry number or a contract card URL.
	Input string `json:"input" binding:"required"`
}

func (s *Server) registerContract(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, created, err := s.orch.Register(c.Request.Context(), req.Input)
	if err != nil {
		s.fail(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"id": id, "created": created})
}

func (s *Server) removeContract(c *gin.Context) {
	if err := s.orch.Remove(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listChecks(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	checks, err := s.orch.Registry().ListChecks(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	views := make([]checkView, 0, len(checks))
	for _, ch := range checks {
		views = append(views, checkView{
			CheckedAt:      ch.CheckedAt,
			ObjectsHash:    ch.ObjectsHash,
			RequisitesHash: ch.RequisitesHash,
			Price:          ch.Price,
		})
	}
	c.JSON(http.StatusOK, gin.H{"checks": views})
}

func (s *Server) listSnapshots(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	dim := model.Dimension(c.DefaultQuery("dimension", string(model.DimensionObjects)))
	snaps, err := s.orch.Registry().ListSnapshots(c.Request.Context(), c.Param("id"), dim, limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	views := make([]snapshotView, 0, len(snaps))
	for _, sn := range snaps {
		views = append(views, snapshotView{
			ChangedAt: sn.ChangedAt,
			Dimension: string(sn.Dimension),
			Hash:      sn.Hash,
			Payload:   sn.Payload,
		})
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": views})
}

func (s *Server) checkContract(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if _, err := s.orch.Registry().GetEntry(ctx, id); err != nil {
		s.fail(c, err)
		return
	}

	silent := c.Query("silent") == "true"
	res := s.orch.CheckOne(ctx, id, silent)
	if res.Err != nil {
		c.JSON(statusFor(res.Err), newResultView(res))
		return
	}
	c.JSON(http.StatusOK, newResultView(res))
}

func (s *Server) sweep(c *gin.Context) {
	report, err := s.orch.Sweep(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newReportView(report))
}

type previewRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

func (s *Server) preview(c *gin.Context) {
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ids, err := parseIDs(req.IDs)
	if err != nil {
		s.fail(c, err)
		return
	}
	if len(ids) > maxPreviewIDs {
		c.JSON(http.StatusBadRequest, gin.H{"error": "too many ids"})
		return
	}

	ctx := c.Request.Context()
	previews, err := s.orch.Preview(ctx, ids)
	if err != nil {
		s.fail(c, err)
		return
	}

	sess, err := s.sessions.Create(ctx, previews)
	if errors.Is(err, session.ErrEmpty) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "no contracts found", "previews": previews})
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, sess)
}

func (s *Server) getSession(c *gin.Context) {
	sess, err := s.sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// confirmSession registers the selected contracts and checks them. The
// session survives a failed registration so the selection can be retried.
func (s *Server) confirmSession(c *gin.Context) {
	ctx := c.Request.Context()
	registered, err := s.sessions.Confirm(ctx, c.Param("id"), func(ids []string) error {
		for _, id := range ids {
			if _, _, err := s.orch.Register(ctx, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	report := s.orch.CheckAll(ctx, registered)
	c.JSON(http.StatusOK, gin.H{"registered": registered, "report": newReportView(report)})
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "request_id", GetRequestID(c), "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error(), "request_id": GetRequestID(c)})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrNotFound), errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrExpired):
		return http.StatusGone
	case errors.Is(err, normalize.ErrMissingID),
		errors.Is(err, storage.ErrInvalidID),
		errors.Is(err, storage.ErrEmptyString),
		errors.Is(err, storage.ErrInvalidFeedURL),
		errors.Is(err, storage.ErrUnknownDimension):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrFetchTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, common.ErrFetchNetwork), errors.Is(err, common.ErrFetchParse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func queryLimit(c *gin.Context) (int, bool) {
	raw := c.DefaultQuery("limit", "50")
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return 0, false
	}
	return limit, true
}

// parseIDs accepts registry numbers or contract URLs, one per element or
// comma separated, and drops duplicates.
func parseIDs(inputs []string) ([]string, error) {
	seen := make(map[string]bool)
	var ids []string
	for _, in := range inputs {
		for _, part := range strings.Split(in, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := normalize.ParseID(part)
			if err != nil {
				return nil, err
			}
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	if len(ids) == 0 {
		return nil, normalize.ErrMissingID
	}
	return ids, nil
}

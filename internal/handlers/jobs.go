package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"aquafarm/internal/repository"

	"github.com/gin-gonic/gin"
)

const (
	errListJobs     = "failed to list jobs"
	errSetJobActive = "failed to update job"
	errInvalidJobID = "invalid job id"
)

// Request DTO for flipping the active flag.
type jobActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// @Summary      List jobs
// @Tags         jobs
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, jobs"
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/jobs [get]
// @Security     BearerAuth
func (h *Handler) listJobs(c *gin.Context) {
	jobs, err := h.services.Jobs.List(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errListJobs, "jobs_list_failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count": len(jobs),
		"jobs":  jobs,
	})
}

// @Summary      Activate or deactivate a job
// @Description  The active flag is the only job field the engine exposes for writing.
// @Tags         jobs
// @Accept       json
// @Produce      json
// @Param        id    path  int               true  "Job id"
// @Param        body  body  jobActiveRequest  true  "Active flag"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/jobs/{id}/active [patch]
// @Security     BearerAuth
func (h *Handler) setJobActive(c *gin.Context) {
	jobID, err := strconv.Atoi(c.Param("id"))
	if err != nil || jobID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidJobID})
		return
	}

	var input jobActiveRequest
	if ok := h.bindJSONOrBadRequest(c, &input); !ok {
		return
	}

	if err := h.services.Jobs.SetActive(c.Request.Context(), jobID, *input.Active); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, errSetJobActive,
			"job_set_active_failed", err, "job_id", jobID)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": statusOK, "job_id": jobID, "active": *input.Active})
}

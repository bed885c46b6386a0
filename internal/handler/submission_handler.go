package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tclass-api/internal/dto"
	"github.com/noah-isme/tclass-api/internal/models"
	"github.com/noah-isme/tclass-api/internal/service"
	appErrors "github.com/noah-isme/tclass-api/pkg/errors"
	"github.com/noah-isme/tclass-api/pkg/response"
)

type submissionService interface {
	Submit(ctx context.Context, req service.SubmitRequest, claims *models.JWTClaims) (*models.SubmissionDetail, error)
	Return(ctx context.Context, id string, req service.ReturnSubmissionRequest, claims *models.JWTClaims) (*models.SubmissionDetail, error)
	List(ctx context.Context, filter models.SubmissionFilter, claims *models.JWTClaims, mine bool) ([]models.SubmissionDetail, *models.Pagination, error)
	Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.SubmissionDetail, error)
	Delete(ctx context.Context, id string, claims *models.JWTClaims) error
	AttachmentLink(ctx context.Context, id string, claims *models.JWTClaims) (*dto.DownloadLinkResponse, error)
}

// SubmissionHandler exposes student submissions and their review.
type SubmissionHandler struct {
	service submissionService
}

// NewSubmissionHandler constructs the handler.
func NewSubmissionHandler(svc submissionService) *SubmissionHandler {
	return &SubmissionHandler{service: svc}
}

// Submit godoc
// @Summary Submit work for an assignment
// @Description Accepts JSON or multipart/form-data with an optional "attachment" file. A returned submission may be resubmitted once.
// @Tags Submissions
// @Accept json
// @Accept mpfd
// @Produce json
// @Param assignment_id formData string true "Assignment ID"
// @Param content formData string false "Text answer"
// @Param attachment formData file false "Attachment"
// @Success 201 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /submissions [post]
func (h *SubmissionHandler) Submit(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}

	var req service.SubmitRequest
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		req.AssignmentID = c.PostForm("assignment_id")
		if content, ok := c.GetPostForm("content"); ok {
			req.Content = &content
		}
		header, err := c.FormFile("attachment")
		switch {
		case errors.Is(err, http.ErrMissingFile):
		case err != nil:
			response.Error(c, appErrors.Validation(err, "invalid attachment"))
			return
		default:
			file, err := header.Open()
			if err != nil {
				response.Error(c, appErrors.Validation(err, "invalid attachment"))
				return
			}
			defer file.Close() //nolint:errcheck
			req.Attachment = &service.Upload{
				Filename:    header.Filename,
				ContentType: header.Header.Get("Content-Type"),
				Size:        header.Size,
				Reader:      file,
			}
		}
	} else if !bindJSON(c, &req, "invalid submission payload") {
		return
	}

	submission, err := h.service.Submit(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, submission)
}

// List godoc
// @Summary List submissions
// @Description Students see their own submissions, faculty those of courses they teach
// @Tags Submissions
// @Produce json
// @Param assignment_id query string false "Assignment ID"
// @Param status query string false "submitted|late|graded|returned"
// @Param my_submissions query bool false "Scope to the caller"
// @Param page query int false "Page number"
// @Param per_page query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /submissions [get]
func (h *SubmissionHandler) List(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	filter := models.SubmissionFilter{
		AssignmentID: c.Query("assignment_id"),
		Status:       models.SubmissionStatus(c.Query("status")),
	}
	filter.Page, filter.PageSize = pageParams(c)
	submissions, pagination, err := h.service.List(c.Request.Context(), filter, claims, queryBool(c, "my_submissions"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submissions, pagination)
}

// Get godoc
// @Summary Get submission
// @Tags Submissions
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /submissions/{id} [get]
func (h *SubmissionHandler) Get(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	submission, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}

// Return godoc
// @Summary Return submission to the student
// @Tags Submissions
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body service.ReturnSubmissionRequest false "Feedback"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /submissions/{id}/return [post]
func (h *SubmissionHandler) Return(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req service.ReturnSubmissionRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req, "invalid payload") {
		return
	}
	submission, err := h.service.Return(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "submission returned", submission)
}

// Delete godoc
// @Summary Delete submission
// @Tags Submissions
// @Param id path string true "Submission ID"
// @Success 204
// @Router /submissions/{id} [delete]
func (h *SubmissionHandler) Delete(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Attachment godoc
// @Summary Attachment download link
// @Tags Submissions
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /submissions/{id}/attachment [get]
func (h *SubmissionHandler) Attachment(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	link, err := h.service.AttachmentLink(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

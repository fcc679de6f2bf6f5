package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/submissions-pipeline/internal/common"
	"github.com/joseph-ayodele/submissions-pipeline/internal/services/processing"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type handlers struct {
	processing Processing
	exporter   Exporter
	ping       func(ctx context.Context) error
	logger     *slog.Logger
}

type createProjectBody struct {
	Name           string `json:"project_name"`
	DriveFolderURL string `json:"drive_folder_url"`
}

func (h *handlers) health(c *gin.Context) {
	if h.ping != nil {
		if err := h.ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": "unreachable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "database": "connected"})
}

func (h *handlers) createProject(c *gin.Context) {
	var body createProjectBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "detail": err.Error()})
		return
	}
	p, err := h.processing.CreateProject(c.Request.Context(), processing.CreateProjectRequest{
		Name:           body.Name,
		DriveFolderURL: body.DriveFolderURL,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *handlers) projectStatus(c *gin.Context) {
	st, err := h.processing.ProjectStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *handlers) startProcessing(c *gin.Context) {
	res, err := h.processing.StartProcessing(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, res)
}

func (h *handlers) resetProject(c *gin.Context) {
	reprocess, _ := strconv.ParseBool(c.DefaultQuery("reprocess", "false"))
	res, err := h.processing.ResetProject(c.Request.Context(), c.Param("id"), reprocess)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) retryFailed(c *gin.Context) {
	res, err := h.processing.RetryFailed(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, res)
}

func (h *handlers) scanProject(c *gin.Context) {
	res, err := h.processing.ScanProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) listSlides(c *gin.Context) {
	slides, err := h.processing.ListSlides(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"submission_id": c.Param("id"), "slides": slides})
}

func (h *handlers) exportProject(c *gin.Context) {
	raw := strings.TrimSpace(c.Param("id"))
	projectID, err := uuid.Parse(raw)
	if err != nil {
		h.writeError(c, common.InvalidArgumentError("project_id must be a UUID"))
		return
	}
	data, err := h.exporter.ProjectSlidesXLSX(c.Request.Context(), projectID)
	if err != nil {
		h.logger.Error("export.xlsx.failed", "project_id", raw, "err", err)
		h.writeError(c, common.ToStatus(err))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="project-%s.xlsx"`, projectID))
	c.Data(http.StatusOK, xlsxContentType, data)
}

func (h *handlers) writeError(c *gin.Context, err error) {
	st := status.Convert(common.ToStatus(err))
	code := HTTPStatus(st.Code())
	if code >= http.StatusInternalServerError {
		h.logger.Error("request failed", "path", c.FullPath(), "code", st.Code().String(), "error", st.Message())
	}
	c.JSON(code, gin.H{"error": st.Message(), "code": st.Code().String()})
}

// HTTPStatus maps a gRPC code to the closest HTTP status.
func HTTPStatus(code codes.Code) int {
	switch code {
	case codes.OK:
		return http.StatusOK
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists, codes.Aborted:
		return http.StatusConflict
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.Canceled:
		return 499
	case codes.Unimplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

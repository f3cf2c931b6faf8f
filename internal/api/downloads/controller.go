package downloads

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hbomb79/mediaload/internal/api/gen"
	"github.com/hbomb79/mediaload/internal/api/util"
	"github.com/hbomb79/mediaload/internal/download"
	"github.com/hbomb79/mediaload/pkg/logger"
	"github.com/labstack/echo/v4"
)

const notFoundStatus = "not_found"

type (
	// CreateRequest is the body accepted by the download endpoint. Every
	// field except URL is optional and defaults to the user's settings.
	CreateRequest struct {
		URL     string `json:"url"`
		Type    string `json:"type"`
		Quality string `json:"quality"`
		Format  string `json:"format"`
		Title   string `json:"title"`
	}

	CreateResponse struct {
		DownloadID uuid.UUID `json:"download_id"`
	}

	// Dto is the response used by endpoints that return downloads. The field names
	// match those polled by the web UI.
	Dto struct {
		ID             uuid.UUID  `json:"id"`
		Status         string     `json:"status"`
		Progress       float64    `json:"progress"`
		Speed          string     `json:"speed"`
		ETA            string     `json:"eta"`
		Title          string     `json:"title"`
		URL            string     `json:"url"`
		Type           string     `json:"type"`
		Quality        string     `json:"quality,omitempty"`
		Format         string     `json:"format,omitempty"`
		Error          string     `json:"error,omitempty"`
		PostProcessing bool       `json:"post_processing"`
		CreatedAt      time.Time  `json:"created_at"`
		FinishedAt     *time.Time `json:"finished_at,omitempty"`
	}

	NotFoundDto struct {
		Status string `json:"status"`
	}

	Service interface {
		Submit(download.Request) (uuid.UUID, error)
		Job(uuid.UUID) (download.Job, bool)
		Jobs() []download.Job
	}

	// Controller is the struct which is responsible for defining the
	// routes for this controller. Additionally, it holds the reference to
	// the service used to start and query downloads.
	Controller struct {
		service Service
	}
)

var controllerLogger = logger.Get("DownloadsController")

func New(service Service) *Controller {
	return &Controller{service: service}
}

// SetRoutes accepts the Echo group for the API and sets the download routes on it.
func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.POST("/download", controller.create)
	eg.GET("/status/:id", controller.status)
	eg.GET("/downloads", controller.list)
}

// create submits a new download, responding with the ID of the job as soon as it
// has been accepted. The download itself happens in the background.
func (controller *Controller) create(ec echo.Context) error {
	var request CreateRequest
	if err := ec.Bind(&request); err != nil {
		return gen.NewAPIError(http.StatusBadRequest, gen.CodeInvalidRequest, "Request body is not valid JSON")
	}

	id, err := controller.service.Submit(download.Request{
		URL:       request.URL,
		Kind:      download.MediaKind(request.Type),
		Quality:   request.Quality,
		Container: request.Format,
		Title:     request.Title,
	})
	if err != nil {
		var validationErr *download.ValidationError
		if errors.As(err, &validationErr) {
			return gen.NewAPIError(http.StatusBadRequest, gen.CodeInvalidRequest, validationErr.Error())
		}
		if errors.Is(err, download.ErrServiceClosed) {
			return gen.NewAPIError(http.StatusServiceUnavailable, gen.CodeUnavailable, err.Error())
		}

		return gen.APIError{Status: http.StatusInternalServerError, Code: gen.CodeInternal, InternalMessage: err.Error()}
	}

	controllerLogger.Emit(logger.DEBUG, "Accepted download %s for %s\n", id, request.URL)
	return ec.JSON(http.StatusAccepted, CreateResponse{DownloadID: id})
}

// status returns the current state of the download with the 'id' path param. Unknown
// (or malformed) IDs are not an error: a not_found status is returned instead.
func (controller *Controller) status(ec echo.Context) error {
	id, err := uuid.Parse(ec.Param("id"))
	if err != nil {
		return ec.JSON(http.StatusOK, NotFoundDto{Status: notFoundStatus})
	}

	job, ok := controller.service.Job(id)
	if !ok {
		return ec.JSON(http.StatusOK, NotFoundDto{Status: notFoundStatus})
	}

	return ec.JSON(http.StatusOK, NewDto(job))
}

// list returns every download known to the service, newest first.
func (controller *Controller) list(ec echo.Context) error {
	return ec.JSON(http.StatusOK, util.ApplyConversion(controller.service.Jobs(), NewDto))
}

func NewDto(job download.Job) *Dto {
	dto := &Dto{
		ID:             job.ID,
		Status:         string(job.Status),
		Progress:       job.Progress,
		Speed:          job.Speed,
		ETA:            job.ETA,
		Title:          job.Title,
		URL:            job.SourceURL,
		Type:           string(job.Kind),
		Quality:        job.Quality,
		Format:         job.Container,
		Error:          job.Error,
		PostProcessing: job.PostProcessing,
		CreatedAt:      job.CreatedAt,
	}

	if !job.FinishedAt.IsZero() {
		finished := job.FinishedAt
		dto.FinishedAt = &finished
	}

	return dto
}

package medias

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/hbomb79/mediaload/internal/api/gen"
	"github.com/hbomb79/mediaload/internal/download"
	"github.com/hbomb79/mediaload/internal/engine"
	"github.com/labstack/echo/v4"
)

type (
	Prober interface {
		Probe(ctx context.Context, url string) (*engine.Metadata, error)
	}

	// Controller serves metadata lookups for remote media, used by the web UI
	// to preview a URL and offer the available resolutions before downloading.
	Controller struct {
		prober Prober
	}
)

func New(prober Prober) *Controller {
	return &Controller{prober: prober}
}

func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.POST("/info", controller.getInfo)
}

// getInfo probes the URL in the request body and responds with the simplified
// metadata. A missing URL is a 400; a failed probe is a 500 carrying the
// engine's error message.
func (controller *Controller) getInfo(ec echo.Context) error {
	var request InfoRequest
	if err := ec.Bind(&request); err != nil {
		return gen.NewAPIError(http.StatusBadRequest, gen.CodeInvalidRequest, "Request body is not valid JSON")
	}

	if strings.TrimSpace(request.URL) == "" {
		return gen.NewAPIError(http.StatusBadRequest, gen.CodeInvalidRequest, "No URL provided")
	}

	metadata, err := controller.prober.Probe(ec.Request().Context(), request.URL)
	if err != nil {
		var validationErr *download.ValidationError
		if errors.As(err, &validationErr) {
			return gen.NewAPIError(http.StatusBadRequest, gen.CodeInvalidRequest, validationErr.Error())
		}

		return gen.NewAPIError(http.StatusInternalServerError, gen.CodeProbeFailed, err.Error())
	}

	return ec.JSON(http.StatusOK, NewInfoDto(metadata))
}

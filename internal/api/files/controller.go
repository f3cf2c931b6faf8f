package files

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/hbomb79/mediaload/internal/api/gen"
	"github.com/hbomb79/mediaload/internal/library"
	"github.com/labstack/echo/v4"
)

type (
	DeleteRequest struct {
		Path string `json:"path"`
	}

	DeleteResponse struct {
		Success bool `json:"success"`
	}

	Library interface {
		Recent(limit int) ([]library.File, error)
		Resolve(relPath string) (string, error)
		Delete(relPath string) error
	}

	// Controller exposes the downloaded files: listing the most recent, serving
	// their content, and deleting them.
	Controller struct {
		library Library
	}
)

func New(library Library) *Controller {
	return &Controller{library: library}
}

func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.GET("/files", controller.list)
	eg.GET("/serve/*", controller.serve)
	eg.DELETE("/delete", controller.delete)
}

// list returns the most recently modified library files.
func (controller *Controller) list(ec echo.Context) error {
	files, err := controller.library.Recent(library.DefaultListLimit)
	if err != nil {
		return gen.APIError{Status: http.StatusInternalServerError, Code: gen.CodeInternal, InternalMessage: err.Error()}
	}

	return ec.JSON(http.StatusOK, files)
}

// serve streams the content of the library file named by the wildcard path.
func (controller *Controller) serve(ec echo.Context) error {
	relPath, err := url.PathUnescape(ec.Param("*"))
	if err != nil {
		return gen.NewAPIError(http.StatusBadRequest, gen.CodeInvalidRequest, "Path is not valid")
	}

	path, err := controller.library.Resolve(relPath)
	if err != nil {
		return libraryError(err)
	}

	return ec.File(path)
}

// delete removes the library file named in the request body.
func (controller *Controller) delete(ec echo.Context) error {
	var request DeleteRequest
	if err := ec.Bind(&request); err != nil {
		return gen.NewAPIError(http.StatusBadRequest, gen.CodeInvalidRequest, "Request body is not valid JSON")
	}

	if request.Path == "" {
		return gen.NewAPIError(http.StatusBadRequest, gen.CodeInvalidRequest, "No path provided")
	}

	if err := controller.library.Delete(request.Path); err != nil {
		return libraryError(err)
	}

	return ec.JSON(http.StatusOK, DeleteResponse{Success: true})
}

func libraryError(err error) error {
	switch {
	case errors.Is(err, library.ErrOutsideLibrary):
		return gen.NewAPIError(http.StatusBadRequest, gen.CodeForbiddenPath, "Path is outside of the download directory")
	case errors.Is(err, library.ErrFileNotFound):
		return gen.NewAPIError(http.StatusNotFound, gen.CodeNotFound, "File not found")
	default:
		return gen.APIError{Status: http.StatusInternalServerError, Code: gen.CodeInternal, Message: "Failed to access file", InternalMessage: err.Error()}
	}
}

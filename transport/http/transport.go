package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-kit/kit/endpoint"

	"github.com/civicgrid/bylawsearch"
)

// isValidationError separates caller mistakes from internal failures, so
// internal detail stays in the server logs and clients get a generic error.
func isValidationError(err error) bool {
	return errors.Is(err, bylawsearch.ErrQueryTooShort) ||
		errors.Is(err, bylawsearch.ErrQueryTooLong) ||
		errors.Is(err, bylawsearch.ErrInvalidLimit) ||
		errors.Is(err, bylawsearch.ErrInvalidMinScore) ||
		errors.Is(err, bylawsearch.ErrEmptyDocument)
}

func SearchHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req bylawsearch.SearchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.String(http.StatusBadRequest, err.Error())
			c.Error(err)
			c.Abort()
			return
		}

		ctx := c.Request.Context()
		resp, err := endpoint(ctx, req)
		if err != nil {
			if isValidationError(err) {
				c.String(http.StatusBadRequest, err.Error())
			} else {
				c.String(http.StatusInternalServerError, "search failed")
			}

			c.Error(err)
			c.Abort()
			return
		}

		c.JSON(http.StatusOK, &resp)
	}
}

func IngestDocumentHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req bylawsearch.IngestDocumentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.String(http.StatusBadRequest, err.Error())
			c.Error(err)
			c.Abort()
			return
		}

		ctx := c.Request.Context()
		resp, err := endpoint(ctx, req)
		if err != nil {
			if isValidationError(err) {
				c.String(http.StatusBadRequest, err.Error())
			} else {
				c.String(http.StatusInternalServerError, "ingestion failed")
			}

			c.Error(err)
			c.Abort()
			return
		}

		c.JSON(http.StatusOK, &resp)
	}
}

func ListBylawsHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		resp, err := endpoint(ctx, nil)
		if err != nil {
			c.String(http.StatusInternalServerError, "listing failed")
			c.Error(err)
			c.Abort()
			return
		}

		c.JSON(http.StatusOK, &resp)
	}
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/campus-market/internal/imaging"
)

// UploadResponse describes a stored image.
type UploadResponse struct {
	Path   string `json:"path"   example:"/uploads/5f0c7a9e-8d1b-4f7e-9b61-0c2d7b3f1a22.jpg"`
	MIME   string `json:"mime"   example:"image/jpeg"`
	Width  int    `json:"width"  example:"1024"`
	Height int    `json:"height" example:"768"`
	Size   int    `json:"size"   example:"183422"`
}

// Upload godoc
// @ID          upload
// @Summary     Upload an image
// @Description Accepts one JPEG or PNG in the "image" form field, downscales it to 1024px and stores it as JPEG.
// @Tags        Uploads
// @Accept      multipart/form-data
// @Produce     json
// @Security    BearerAuth
// @Param       image  formData  file  true  "Image file"
// @Success     201    {object}  handlers.UploadResponse
// @Failure     400    {object}  handlers.ErrorResponse  "Missing file"
// @Failure     413    {object}  handlers.ErrorResponse  "File too large"
// @Failure     415    {object}  handlers.ErrorResponse  "Not a JPEG or PNG"
// @Router      /upload [post]
func (h *Handlers) Upload(c *gin.Context) {
	fh, err := c.FormFile("image")
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		fail(c, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, imaging.ErrTooLarge.Error())
		return
	}
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, `multipart field "image" is required`)
		return
	}
	f, err := fh.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "cannot read upload")
		return
	}
	defer f.Close()

	path, res, err := h.images.Save(f)
	switch {
	case errors.Is(err, imaging.ErrTooLarge):
		fail(c, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, err.Error())
		return
	case errors.Is(err, imaging.ErrUnsupported):
		fail(c, http.StatusUnsupportedMediaType, ErrCodeUnsupportedMedia, err.Error())
		return
	case err != nil:
		writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, UploadResponse{
		Path:   path,
		MIME:   res.MIME,
		Width:  res.Width,
		Height: res.Height,
		Size:   len(res.Data),
	})
}

package main

import (
	"context"
	"io"
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mmdatafocus/kitchen_backend/config"
	"github.com/mmdatafocus/kitchen_backend/models"
	"github.com/mmdatafocus/kitchen_backend/utils"
	"github.com/sirupsen/logrus"
)

type uploadImageResponse struct {
	ImageURL           string           `json:"imageUrl"`
	ThumbnailURL       string           `json:"thumbnailUrl"`
	ObjectKey          string           `json:"objectKey"`
	ThumbnailObjectKey string           `json:"thumbnailObjectKey"`
	MenuItem           *models.MenuItem `json:"menuItem"`
}

const maxUploadSizeBytes int64 = 5 * 1024 * 1024

var imageMimeTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
}

// swapped in tests
var (
	uploadObject = utils.UploadBytesToGCS
	deleteObject = utils.DeleteObjectFromGCS
)

// uploadMenuItemImageHandler stores a multipart "file" image and its
// thumbnail, then points the menu item at both.
func uploadMenuItemImageHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()
		ctx := c.Request.Context()
		itemId := c.Param("id")

		if _, err := models.GetMenuItem(ctx, itemId); err != nil {
			respondError(c, "uploadMenuItemImageHandler", err)
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSizeBytes+1024*1024)
		fh, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		if fh.Size > maxUploadSizeBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file size exceeds 5MB limit"})
			return
		}
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read file"})
			return
		}
		defer f.Close()
		data, err := io.ReadAll(io.LimitReader(f, maxUploadSizeBytes+1))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read file"})
			return
		}
		if int64(len(data)) > maxUploadSizeBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file size exceeds 5MB limit"})
			return
		}

		mimeType := http.DetectContentType(data)
		ext, ok := imageMimeTypes[mimeType]
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported image type"})
			return
		}

		thumbnail, err := utils.MakeThumbnail(data)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid image"})
			return
		}

		objectKey := path.Join("menu-items", itemId, uuid.NewString()+ext)
		thumbnailKey := utils.ThumbnailObjectKey(objectKey)
		if err := uploadObject(ctx, objectKey, data, mimeType); err != nil {
			config.LogError(logger, "uploads.go", "uploadMenuItemImageHandler", "upload image", objectKey, err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to store image"})
			return
		}
		if err := uploadObject(ctx, thumbnailKey, thumbnail, "image/jpeg"); err != nil {
			config.LogError(logger, "uploads.go", "uploadMenuItemImageHandler", "upload thumbnail", thumbnailKey, err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to store image"})
			return
		}

		imageURL := utils.BuildObjectAccessURL(objectKey)
		thumbnailURL := utils.BuildObjectAccessURL(thumbnailKey)
		item, err := models.SetMenuItemImages(ctx, itemId, imageURL, thumbnailURL)
		if err != nil {
			// the item is gone or unwritable: don't leave orphaned objects behind
			for _, key := range []string{objectKey, thumbnailKey} {
				if delErr := deleteObject(context.WithoutCancel(ctx), key); delErr != nil {
					logger.WithFields(logrus.Fields{
						"field":      "uploadMenuItemImageHandler",
						"object_key": key,
					}).Warn("failed to remove orphaned image: " + delErr.Error())
				}
			}
			respondError(c, "uploadMenuItemImageHandler", err)
			return
		}

		c.JSON(http.StatusOK, uploadImageResponse{
			ImageURL:           imageURL,
			ThumbnailURL:       thumbnailURL,
			ObjectKey:          objectKey,
			ThumbnailObjectKey: thumbnailKey,
			MenuItem:           item,
		})
	}
}

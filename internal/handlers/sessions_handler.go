package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"catalog-admin-service/internal/clients"
	"catalog-admin-service/internal/matrix"
	"catalog-admin-service/internal/models"
	"catalog-admin-service/internal/payload"
	"catalog-admin-service/internal/services"
)

const defaultMaxUploadBytes = 10 << 20

type SessionsHandler struct {
	sessions       *services.SessionService
	maxUploadBytes int64
}

func NewSessionsHandler(sessions *services.SessionService, maxUploadBytes int64) *SessionsHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &SessionsHandler{
		sessions:       sessions,
		maxUploadBytes: maxUploadBytes,
	}
}

// errorMapping translates service errors into HTTP responses
type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{services.ErrSessionNotFound, http.StatusNotFound, "SESSION_NOT_FOUND"},
	{clients.ErrNotFound, http.StatusNotFound, "PRODUCT_NOT_FOUND"},
	{matrix.ErrRowNotFound, http.StatusNotFound, "OPTION_ROW_NOT_FOUND"},
	{matrix.ErrVariantNotFound, http.StatusNotFound, "VARIANT_NOT_FOUND"},
	{models.ErrImageNotFound, http.StatusNotFound, "IMAGE_NOT_FOUND"},

	{matrix.ErrDuplicateOptionName, http.StatusConflict, "DUPLICATE_OPTION_NAME"},
	{matrix.ErrDuplicateVariantValue, http.StatusConflict, "DUPLICATE_OPTION_VALUE"},
	{matrix.ErrRegistrationDuplicate, http.StatusConflict, "ALREADY_EXISTS"},

	{matrix.ErrUnknownOptionName, http.StatusBadRequest, "UNKNOWN_OPTION_NAME"},
	{matrix.ErrUnknownOptionValue, http.StatusBadRequest, "UNKNOWN_OPTION_VALUE"},
	{matrix.ErrOptionNotDefined, http.StatusBadRequest, "OPTION_NOT_DEFINED"},
	{matrix.ErrOptionNameNotSet, http.StatusBadRequest, "OPTION_NAME_REQUIRED"},
	{matrix.ErrRegistrationEmpty, http.StatusBadRequest, "VALIDATION_ERROR"},
	{matrix.ErrInvalidRegistrationType, http.StatusBadRequest, "VALIDATION_ERROR"},
	{matrix.ErrNoRegistration, http.StatusBadRequest, "NO_REGISTRATION"},
	{payload.ErrInvalidMode, http.StatusBadRequest, "INVALID_MODE"},
	{services.ErrProductIDRequired, http.StatusBadRequest, "VALIDATION_ERROR"},
	{services.ErrVariantRecord, http.StatusBadRequest, "VARIANT_RECORD"},
	{services.ErrImagesOnVariant, http.StatusBadRequest, "VALIDATION_ERROR"},
	{services.ErrSingleVariant, http.StatusBadRequest, "VALIDATION_ERROR"},
	{models.ErrInvalidImageType, http.StatusBadRequest, "INVALID_IMAGE_TYPE"},
	{models.ErrTooManyAltImages, http.StatusBadRequest, "TOO_MANY_IMAGES"},
	{models.ErrEmptyImageSource, http.StatusBadRequest, "IMAGE_ERROR"},
	{payload.ErrBlobNotFound, http.StatusBadRequest, "IMAGE_ERROR"},
	{payload.ErrUnresolvedImage, http.StatusBadRequest, "IMAGE_ERROR"},
	{clients.ErrImageTooLarge, http.StatusBadRequest, "IMAGE_ERROR"},

	{services.ErrVariantDeleteFailed, http.StatusBadGateway, "DELETE_FAILED"},
	{services.ErrSubmitFailed, http.StatusBadGateway, "SUBMIT_FAILED"},
}

func respondError(c *gin.Context, err error) {
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "VALIDATION_FAILED",
				Message: "Option rows are incomplete",
				Details: verr.Errors,
			},
		})
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			c.JSON(m.status, models.ErrorResponse{
				Success: false,
				Error: models.Error{
					Code:    m.code,
					Message: err.Error(),
				},
			})
			return
		}
	}

	c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Success: false,
		Error: models.Error{
			Code:    "INTERNAL_ERROR",
			Message: "Internal server error",
		},
	})
}

func badRequest(c *gin.Context, code, message, field string) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Success: false,
		Error: models.Error{
			Code:    code,
			Message: message,
			Field:   field,
		},
	})
}

func respondView(c *gin.Context, status int, view *services.SessionView, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(status, models.SuccessResponse{
		Success: true,
		Data:    view,
	})
}

// requestContext carries the acting staff member into the service
func requestContext(c *gin.Context) context.Context {
	ctx := c.Request.Context()
	if userID := c.GetString("user_id"); userID != "" {
		ctx = services.WithActor(ctx, userID)
	}
	return ctx
}

func sessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "INVALID_ID", "Invalid session ID format", "id")
		return uuid.Nil, false
	}
	return id, true
}

func indexParam(c *gin.Context, name string) (int, bool) {
	index, err := strconv.Atoi(c.Param(name))
	if err != nil || index < 0 {
		badRequest(c, "INVALID_INDEX", fmt.Sprintf("Invalid %s", name), name)
		return 0, false
	}
	return index, true
}

// uploadedFile reads the multipart "file" field and the optional "type" field
func (h *SessionsHandler) uploadedFile(c *gin.Context) (models.FileRef, models.ImageType, bool) {
	header, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "VALIDATION_ERROR", "file is required", "file")
		return models.FileRef{}, "", false
	}
	if header.Size > h.maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "FILE_TOO_LARGE",
				Message: fmt.Sprintf("Maximum upload size is %d bytes", h.maxUploadBytes),
				Field:   "file",
			},
		})
		return models.FileRef{}, "", false
	}

	f, err := header.Open()
	if err != nil {
		badRequest(c, "VALIDATION_ERROR", "file could not be read", "file")
		return models.FileRef{}, "", false
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, h.maxUploadBytes))
	if err != nil {
		badRequest(c, "VALIDATION_ERROR", "file could not be read", "file")
		return models.FileRef{}, "", false
	}

	imageType := models.ImageType(c.DefaultPostForm("type", string(models.ImageTypeAlt)))
	return models.FileRef{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, imageType, true
}

// OpenSession starts a matrix edit session for a product dialog
// @Summary Open a matrix session
// @Tags matrix-sessions
// @Accept json
// @Produce json
// @Param request body models.OpenSessionRequest true "Dialog mode"
// @Success 201 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /matrix-sessions [post]
func (h *SessionsHandler) OpenSession(c *gin.Context) {
	var req models.OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "VALIDATION_ERROR", err.Error(), "")
		return
	}

	view, err := h.sessions.Open(requestContext(c), req.Mode, req.ProductID)
	respondView(c, http.StatusCreated, view, err)
}

// GetSession returns the current session state
// @Summary Get a matrix session
// @Tags matrix-sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /matrix-sessions/{id} [get]
func (h *SessionsHandler) GetSession(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	view, err := h.sessions.Get(requestContext(c), id)
	respondView(c, http.StatusOK, view, err)
}

// DiscardSession closes a dialog without saving
func (h *SessionsHandler) DiscardSession(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	if err := h.sessions.Discard(requestContext(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *SessionsHandler) UpdateFields(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var req models.UpdateFieldsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "VALIDATION_ERROR", err.Error(), "")
		return
	}
	view, err := h.sessions.UpdateFields(requestContext(c), id, req.Fields, req.Remove)
	respondView(c, http.StatusOK, view, err)
}

// AddImage stages a product image upload
// @Summary Stage a product image
// @Tags matrix-sessions
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Session ID"
// @Param file formData file true "Image file"
// @Param type formData string false "main or alt"
// @Success 200 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 413 {object} models.ErrorResponse
// @Router /matrix-sessions/{id}/images [post]
func (h *SessionsHandler) AddImage(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	file, imageType, ok := h.uploadedFile(c)
	if !ok {
		return
	}
	view, err := h.sessions.AddImage(requestContext(c), id, file, imageType)
	respondView(c, http.StatusOK, view, err)
}

func (h *SessionsHandler) RemoveImage(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	index, ok := indexParam(c, "index")
	if !ok {
		return
	}
	view, err := h.sessions.RemoveImage(requestContext(c), id, index)
	respondView(c, http.StatusOK, view, err)
}

func (h *SessionsHandler) AddOptionRow(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	view, err := h.sessions.AddOptionRow(requestContext(c), id)
	respondView(c, http.StatusCreated, view, err)
}

func (h *SessionsHandler) RemoveOptionRow(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	view, err := h.sessions.RemoveOptionRow(requestContext(c), id, c.Param("rowId"))
	respondView(c, http.StatusOK, view, err)
}

// SetOptionName names an option row. The "__add_new__" sentinel opens the
// registration sub-flow instead.
// @Summary Set an option row name
// @Tags matrix-sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param rowId path string true "Option row ID"
// @Param request body models.SetOptionNameRequest true "Name"
// @Success 200 {object} models.SuccessResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /matrix-sessions/{id}/options/{rowId}/name [put]
func (h *SessionsHandler) SetOptionName(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var req models.SetOptionNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "VALIDATION_ERROR", err.Error(), "name")
		return
	}
	view, err := h.sessions.SetOptionName(requestContext(c), id, c.Param("rowId"), req.Name)
	respondView(c, http.StatusOK, view, err)
}

func (h *SessionsHandler) SetOptionValue(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var req models.SetOptionValueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "VALIDATION_ERROR", err.Error(), "value")
		return
	}
	view, err := h.sessions.SetOptionValue(requestContext(c), id, c.Param("rowId"), req.Value)
	respondView(c, http.StatusOK, view, err)
}

func (h *SessionsHandler) OptionNameChoices(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	choices, err := h.sessions.OptionNameChoices(requestContext(c), id, c.Param("rowId"))
	respondChoices(c, choices, err)
}

func (h *SessionsHandler) OptionValueChoices(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	choices, err := h.sessions.OptionValueChoices(requestContext(c), id, c.Param("rowId"))
	respondChoices(c, choices, err)
}

func respondChoices(c *gin.Context, choices []string, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    choices,
	})
}

func (h *SessionsHandler) AddVariant(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var req models.VariantFields
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "VALIDATION_ERROR", err.Error(), "")
		return
	}
	view, err := h.sessions.AddVariant(requestContext(c), id, req)
	respondView(c, http.StatusCreated, view, err)
}

func (h *SessionsHandler) UpdateVariant(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	index, ok := indexParam(c, "index")
	if !ok {
		return
	}
	var req models.VariantFields
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "VALIDATION_ERROR", err.Error(), "")
		return
	}
	view, err := h.sessions.UpdateVariant(requestContext(c), id, index, req)
	respondView(c, http.StatusOK, view, err)
}

// SetVariantOption assigns or clears one option value on a variant row
// @Summary Assign a variant option value
// @Tags matrix-sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param index path int true "Variant index"
// @Param request body models.SetVariantOptionRequest true "Assignment"
// @Success 200 {object} models.SuccessResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /matrix-sessions/{id}/variants/{index}/options [put]
func (h *SessionsHandler) SetVariantOption(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	index, ok := indexParam(c, "index")
	if !ok {
		return
	}
	var req models.SetVariantOptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "VALIDATION_ERROR", err.Error(), "name")
		return
	}
	view, err := h.sessions.SetVariantOption(requestContext(c), id, index, req.Name, req.Value)
	respondView(c, http.StatusOK, view, err)
}

func (h *SessionsHandler) VariantValueChoices(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	index, ok := indexParam(c, "index")
	if !ok {
		return
	}
	choices, err := h.sessions.VariantValueChoices(requestContext(c), id, index, c.Param("name"))
	respondChoices(c, choices, err)
}

// DeleteVariant removes a variant row, deleting persisted variants remotely
// @Summary Delete a variant row
// @Tags matrix-sessions
// @Produce json
// @Param id path string true "Session ID"
// @Param index path int true "Variant index"
// @Success 200 {object} models.SuccessResponse
// @Failure 502 {object} models.ErrorResponse
// @Router /matrix-sessions/{id}/variants/{index} [delete]
func (h *SessionsHandler) DeleteVariant(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	index, ok := indexParam(c, "index")
	if !ok {
		return
	}
	view, err := h.sessions.DeleteVariant(requestContext(c), id, index)
	respondView(c, http.StatusOK, view, err)
}

func (h *SessionsHandler) AddVariantImage(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	index, ok := indexParam(c, "index")
	if !ok {
		return
	}
	file, imageType, ok := h.uploadedFile(c)
	if !ok {
		return
	}
	view, err := h.sessions.AddVariantImage(requestContext(c), id, index, file, imageType)
	respondView(c, http.StatusOK, view, err)
}

func (h *SessionsHandler) RemoveVariantImage(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	index, ok := indexParam(c, "index")
	if !ok {
		return
	}
	imageIndex, ok := indexParam(c, "imageIndex")
	if !ok {
		return
	}
	view, err := h.sessions.RemoveVariantImage(requestContext(c), id, index, imageIndex)
	respondView(c, http.StatusOK, view, err)
}

func (h *SessionsHandler) OpenRegistration(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var req models.OpenRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "VALIDATION_ERROR", err.Error(), "type")
		return
	}
	view, err := h.sessions.OpenRegistration(requestContext(c), id, matrix.Registration{
		Type:         matrix.RegistrationType(req.Type),
		RowID:        req.RowID,
		VariantIndex: req.VariantIndex,
		OptionName:   req.OptionName,
	})
	respondView(c, http.StatusOK, view, err)
}

// ConfirmRegistration adds the typed name or value and selects it
// @Summary Confirm an option registration
// @Tags matrix-sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body models.ConfirmRegistrationRequest true "Typed entry"
// @Success 200 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /matrix-sessions/{id}/registration/confirm [post]
func (h *SessionsHandler) ConfirmRegistration(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var req models.ConfirmRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "VALIDATION_ERROR", err.Error(), "input")
		return
	}
	view, err := h.sessions.ConfirmRegistration(requestContext(c), id, req.Input)
	respondView(c, http.StatusOK, view, err)
}

func (h *SessionsHandler) CancelRegistration(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	view, err := h.sessions.CancelRegistration(requestContext(c), id)
	respondView(c, http.StatusOK, view, err)
}

func (h *SessionsHandler) Validate(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	view, err := h.sessions.Validate(requestContext(c), id)
	respondView(c, http.StatusOK, view, err)
}

// Submit validates and sends the product to the commerce API
// @Summary Submit a matrix session
// @Tags matrix-sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 422 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Router /matrix-sessions/{id}/submit [post]
func (h *SessionsHandler) Submit(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	outcome, err := h.sessions.Submit(requestContext(c), id)
	if err != nil {
		respondError(c, err)
		return
	}

	message := "Product saved successfully"
	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    outcome,
		Message: &message,
	})
}

// RegisterRoutes mounts the session API on group. read, write and remove guard
// the routes by the permission they need; a nil guard is skipped.
func (h *SessionsHandler) RegisterRoutes(group *gin.RouterGroup, read, write, remove gin.HandlerFunc) {
	chain := func(guard gin.HandlerFunc, handler gin.HandlerFunc) []gin.HandlerFunc {
		if guard == nil {
			return []gin.HandlerFunc{handler}
		}
		return []gin.HandlerFunc{guard, handler}
	}

	sessions := group.Group("/matrix-sessions")
	{
		sessions.POST("", chain(write, h.OpenSession)...)
		sessions.GET("/:id", chain(read, h.GetSession)...)
		sessions.DELETE("/:id", chain(write, h.DiscardSession)...)
		sessions.PUT("/:id/fields", chain(write, h.UpdateFields)...)

		sessions.POST("/:id/images", chain(write, h.AddImage)...)
		sessions.DELETE("/:id/images/:index", chain(write, h.RemoveImage)...)

		sessions.POST("/:id/options", chain(write, h.AddOptionRow)...)
		sessions.DELETE("/:id/options/:rowId", chain(write, h.RemoveOptionRow)...)
		sessions.PUT("/:id/options/:rowId/name", chain(write, h.SetOptionName)...)
		sessions.PUT("/:id/options/:rowId/value", chain(write, h.SetOptionValue)...)
		sessions.GET("/:id/options/:rowId/names", chain(read, h.OptionNameChoices)...)
		sessions.GET("/:id/options/:rowId/values", chain(read, h.OptionValueChoices)...)

		sessions.POST("/:id/variants", chain(write, h.AddVariant)...)
		sessions.PUT("/:id/variants/:index", chain(write, h.UpdateVariant)...)
		sessions.PUT("/:id/variants/:index/options", chain(write, h.SetVariantOption)...)
		sessions.GET("/:id/variants/:index/options/:name/values", chain(read, h.VariantValueChoices)...)
		sessions.POST("/:id/variants/:index/images", chain(write, h.AddVariantImage)...)
		sessions.DELETE("/:id/variants/:index/images/:imageIndex", chain(write, h.RemoveVariantImage)...)
		sessions.DELETE("/:id/variants/:index", chain(remove, h.DeleteVariant)...)

		sessions.POST("/:id/registration", chain(write, h.OpenRegistration)...)
		sessions.POST("/:id/registration/confirm", chain(write, h.ConfirmRegistration)...)
		sessions.DELETE("/:id/registration", chain(write, h.CancelRegistration)...)

		sessions.POST("/:id/validate", chain(read, h.Validate)...)
		sessions.POST("/:id/submit", chain(write, h.Submit)...)
	}
}

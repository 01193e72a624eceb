package handler

import (
	"io"
	"log"

	"github.com/labstack/echo/v4"

	"chatcore/internal/domain/entity"
	"chatcore/internal/domain/service"
	"chatcore/internal/usecase"
	"chatcore/pkg/errors"
	"chatcore/pkg/response"
)

type ChatHandler struct {
	sessions      *usecase.ChatSessionUseCase
	messages      *usecase.MessageUseCase
	identity      service.IdentityProvider
	maxImageBytes int64
}

func NewChatHandler(
	sessions *usecase.ChatSessionUseCase,
	messages *usecase.MessageUseCase,
	identity service.IdentityProvider,
	maxImageBytes int64,
) *ChatHandler {
	if maxImageBytes <= 0 {
		maxImageBytes = usecase.DefaultMaxImageBytes
	}
	return &ChatHandler{
		sessions:      sessions,
		messages:      messages,
		identity:      identity,
		maxImageBytes: maxImageBytes,
	}
}

type mediaRequest struct {
	Type   string `json:"type" validate:"required,oneof=gifs stickers"`
	URL    string `json:"url" validate:"required,url"`
	Width  int    `json:"width" validate:"min=0"`
	Height int    `json:"height" validate:"min=0"`
}

type sendMessageRequest struct {
	Text  string        `json:"text" validate:"max=4000"`
	Media *mediaRequest `json:"media" validate:"omitempty"`
}

func (r *mediaRequest) toEntity() *entity.Media {
	if r == nil {
		return nil
	}
	return &entity.Media{
		Type:   entity.MediaKind(r.Type),
		URL:    r.URL,
		Width:  r.Width,
		Height: r.Height,
	}
}

// localParticipant resolves the authenticated user's display fields. A user
// without an Auth profile still gets a bare identity.
func localParticipant(c echo.Context, identity service.IdentityProvider) (entity.Participant, error) {
	uid, ok := c.Get("uid").(string)
	if !ok || uid == "" {
		return entity.Participant{}, errors.Unauthorized("Authentication required", nil)
	}

	participant, err := identity.GetParticipant(c.Request().Context(), uid)
	if err != nil {
		if errors.Is(err, errors.CodeNotFound) {
			return entity.Participant{ID: uid}, nil
		}
		return entity.Participant{}, err
	}
	return *participant, nil
}

func (h *ChatHandler) OpenChat(c echo.Context) error {
	local, err := localParticipant(c, h.identity)
	if err != nil {
		return response.Error(c, err)
	}

	session, err := h.sessions.OpenSession(c.Request().Context(), local, c.Param("remoteId"))
	if err != nil {
		return response.Error(c, err)
	}
	session.Room.LastMessage = h.messages.DecryptSummary(session.Room.LastMessage)

	return response.Success(c, session)
}

func (h *ChatHandler) SendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	input := usecase.SendMessageInput{
		Text:  req.Text,
		Media: req.Media.toEntity(),
	}
	if err := h.messages.Validate(input); err != nil {
		return response.Error(c, err)
	}

	local, err := localParticipant(c, h.identity)
	if err != nil {
		return response.Error(c, err)
	}

	session, err := h.sessions.OpenSession(c.Request().Context(), local, c.Param("remoteId"))
	if err != nil {
		return response.Error(c, err)
	}

	message, err := h.messages.Send(c.Request().Context(), session.RoomID, local, input)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, message)
}

func (h *ChatHandler) UploadImage(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return response.Error(c, errors.BadRequest("File is required", err))
	}
	if fileHeader.Size > h.maxImageBytes {
		return response.Error(c, errors.InvalidAttachment("Image is too large"))
	}

	file, err := fileHeader.Open()
	if err != nil {
		return response.Error(c, errors.BadRequest("Failed to open file", err))
	}
	defer file.Close()

	// One byte past the limit is enough for the pipeline to reject it.
	data, err := io.ReadAll(io.LimitReader(file, h.maxImageBytes+1))
	if err != nil {
		return response.Error(c, errors.BadRequest("Failed to read file", err))
	}

	input := usecase.SendMessageInput{
		Text: c.FormValue("text"),
		Image: &entity.Attachment{
			Data:        data,
			ContentType: fileHeader.Header.Get("Content-Type"),
			Filename:    fileHeader.Filename,
		},
	}
	if err := h.messages.Validate(input); err != nil {
		return response.Error(c, err)
	}

	local, err := localParticipant(c, h.identity)
	if err != nil {
		return response.Error(c, err)
	}

	session, err := h.sessions.OpenSession(c.Request().Context(), local, c.Param("remoteId"))
	if err != nil {
		return response.Error(c, err)
	}

	message, err := h.messages.Send(c.Request().Context(), session.RoomID, local, input)
	if err != nil {
		log.Printf("UploadImage Error: user %s: %v", local.ID, err)
		return response.Error(c, err)
	}

	return response.Created(c, message)
}

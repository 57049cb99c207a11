package handler

import (
	"strings"

	"github.com/labstack/echo/v4"

	"instapro/internal/adapter/api/middleware"
	"instapro/internal/domain/entity"
	"instapro/internal/usecase"
	"instapro/pkg/errors"
	"instapro/pkg/response"
	"instapro/pkg/utils"
)

// ProgressSink receives upload events of a send running over HTTP, so the
// sender's live connections can render them.
type ProgressSink interface {
	SendUploadProgress(userID, chatID string, progress entity.UploadProgress)
}

type ChatHandler struct {
	conversationUseCase *usecase.ConversationUseCase
	messageUseCase      *usecase.MessageUseCase
	sendPipeline        *usecase.SendPipeline
	progress            ProgressSink
}

func NewChatHandler(
	conversationUseCase *usecase.ConversationUseCase,
	messageUseCase *usecase.MessageUseCase,
	sendPipeline *usecase.SendPipeline,
	progress ProgressSink,
) *ChatHandler {
	return &ChatHandler{
		conversationUseCase: conversationUseCase,
		messageUseCase:      messageUseCase,
		sendPipeline:        sendPipeline,
		progress:            progress,
	}
}

type createGroupRequest struct {
	Name        string   `json:"name" validate:"required,max=100"`
	Description string   `json:"description" validate:"max=500"`
	AvatarURL   string   `json:"avatar_url" validate:"omitempty,url"`
	Members     []string `json:"members" validate:"dive,username"`
}

type directChatRequest struct {
	Username string `json:"username" validate:"required,username"`
}

type updateMetadataRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	AvatarURL   *string `json:"avatar_url" validate:"omitempty,url"`
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

type addMemberRequest struct {
	Username string `json:"username" validate:"required,username"`
}

type setRoleRequest struct {
	Role entity.Role `json:"role" validate:"required,oneof=admin member creator"`
}

// GetUserChats lists the caller's conversations, most recent first.
func (h *ChatHandler) GetUserChats(c echo.Context) error {
	caller, err := middleware.CurrentIdentity(c)
	if err != nil {
		return response.Error(c, err)
	}

	chats, err := h.conversationUseCase.ListConversations(c.Request().Context(), caller, utils.GetLimitParam(c, 50))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, chats)
}

func (h *ChatHandler) CreateGroup(c echo.Context) error {
	caller, err := middleware.CurrentIdentity(c)
	if err != nil {
		return response.Error(c, err)
	}

	var req createGroupRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	group, err := h.conversationUseCase.CreateGroup(c.Request().Context(), caller, usecase.CreateGroupInput{
		Name:        req.Name,
		Description: req.Description,
		AvatarURL:   req.AvatarURL,
		Members:     req.Members,
	})
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, group)
}

// OpenDirectChat returns the direct chat with another user. The chat needs
// no creation step; its id is derived from both usernames.
func (h *ChatHandler) OpenDirectChat(c echo.Context) error {
	caller, err := middleware.CurrentIdentity(c)
	if err != nil {
		return response.Error(c, err)
	}

	var req directChatRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	id, err := entity.DirectChatID(caller.Username, req.Username)
	if err != nil {
		return response.Error(c, err)
	}
	conv, err := h.resolve(c, caller, id)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, conv)
}

func (h *ChatHandler) GetChatByID(c echo.Context) error {
	caller, err := middleware.CurrentIdentity(c)
	if err != nil {
		return response.Error(c, err)
	}

	conv, err := h.resolve(c, caller, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, conv)
}

func (h *ChatHandler) UpdateChat(c echo.Context) error {
	caller, err := middleware.CurrentIdentity(c)
	if err != nil {
		return response.Error(c, err)
	}

	var req updateMetadataRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	ref, err := entity.ParseConversationRef(c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	ctx := c.Request().Context()
	patch := entity.MetadataPatch{Name: req.Name, Description: req.Description, AvatarURL: req.AvatarURL}
	if err := h.conversationUseCase.UpdateMetadata(ctx, caller, ref, patch); err != nil {
		return response.Error(c, err)
	}

	conv, err := h.conversationUseCase.Resolve(ctx, caller, ref)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, conv)
}

// GetChatMessages returns the newest window of messages, oldest first.
func (h *ChatHandler) GetChatMessages(c echo.Context) error {
	caller, err := middleware.CurrentIdentity(c)
	if err != nil {
		return response.Error(c, err)
	}

	conv, err := h.resolve(c, caller, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	limit := utils.GetLimitParam(c, h.messageUseCase.PageSize())
	window, err := h.messageUseCase.Window(c.Request().Context(), conv.ConversationRef(), limit)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Window(c, window.Items, window.Limit, window.HasMore)
}

// SendMessage accepts JSON text or a multipart form with one file.
func (h *ChatHandler) SendMessage(c echo.Context) error {
	caller, err := middleware.CurrentIdentity(c)
	if err != nil {
		return response.Error(c, err)
	}

	conv, err := h.resolve(c, caller, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	var input usecase.SendInput
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		input.Text = c.FormValue("text")
		fileHeader, err := c.FormFile("file")
		if err != nil {
			return response.Error(c, errors.InvalidMessage("Attachment is missing"))
		}
		file, closeFile, err := openFormFile(fileHeader)
		if err != nil {
			return response.Error(c, err)
		}
		defer closeFile()
		input.File = &file
	} else {
		var req sendMessageRequest
		if err := c.Bind(&req); err != nil {
			return response.Error(c, err)
		}
		input.Text = req.Text
	}

	var onProgress func(entity.UploadProgress)
	if input.File != nil && h.progress != nil {
		chatID := conv.ConversationRef().ID
		onProgress = func(p entity.UploadProgress) {
			h.progress.SendUploadProgress(caller.UID, chatID, p)
		}
	}

	message, err := h.sendPipeline.Send(c.Request().Context(), caller, conv, input, onProgress)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, message)
}

func (h *ChatHandler) DeleteMessage(c echo.Context) error {
	caller, err := middleware.CurrentIdentity(c)
	if err != nil {
		return response.Error(c, err)
	}

	ref, err := entity.ParseConversationRef(c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	if err := h.messageUseCase.Remove(c.Request().Context(), caller, ref, c.Param("messageId")); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]string{"message": "Message removed"})
}

func (h *ChatHandler) AddMember(c echo.Context) error {
	caller, err := middleware.CurrentIdentity(c)
	if err != nil {
		return response.Error(c, err)
	}

	var req addMemberRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	ref, err := entity.ParseConversationRef(c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	group, err := h.conversationUseCase.AddMember(c.Request().Context(), caller, ref, req.Username)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, group)
}

func (h *ChatHandler) SetMemberRole(c echo.Context) error {
	caller, err := middleware.CurrentIdentity(c)
	if err != nil {
		return response.Error(c, err)
	}

	var req setRoleRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	ref, err := entity.ParseConversationRef(c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	group, err := h.conversationUseCase.SetRole(c.Request().Context(), caller, ref, c.Param("username"), req.Role)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, group)
}

func (h *ChatHandler) resolve(c echo.Context, caller entity.Identity, id string) (entity.Conversation, error) {
	ref, err := entity.ParseConversationRef(id)
	if err != nil {
		return nil, err
	}
	return h.conversationUseCase.Resolve(c.Request().Context(), caller, ref)
}

package chat

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	midsec "ChatLink/middleware/security"
	"ChatLink/module/chat/invite"
	"ChatLink/module/chat/message"
	chatmodel "ChatLink/module/chat/model"
	usersvc "ChatLink/module/user/service"
	chatsvc "ChatLink/service/chat"
	"ChatLink/tools/errs"
	"ChatLink/tools/ids"
	jwtsec "ChatLink/tools/security"
)

// Handler serves the invitation and message REST routes. When the gateway is
// running, creation paths push realtime notifications through it; with a nil
// gateway the routes degrade to store-only.
type Handler struct {
	invites *invite.Service
	msgs    *message.Store
	users   *usersvc.Service
	gw      *chatsvc.Server
}

func NewHandler(invites *invite.Service, msgs *message.Store, users *usersvc.Service, gw *chatsvc.Server) *Handler {
	return &Handler{invites: invites, msgs: msgs, users: users, gw: gw}
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(errs.HTTPStatus(err), gin.H{"error": errs.Message(err)})
}

func refOf(id *jwtsec.Identity) chatsvc.UserRef {
	return chatsvc.UserRef{ID: id.ID, Name: id.Name, Email: id.Email}
}

// ===== invitations =====

type createInvitationRequest struct {
	RecipientID    string `json:"recipientId"`
	RecipientEmail string `json:"recipientEmail"`
}

// HandlerCreateInvitation POST /api/invitations
func (h *Handler) HandlerCreateInvitation(c *gin.Context) {
	self := midsec.Current(c)

	var req createInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	recipientID := req.RecipientID
	if recipientID == "" && req.RecipientEmail != "" {
		recipient, err := h.users.GetByEmail(c.Request.Context(), req.RecipientEmail)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Recipient not found"})
			return
		}
		recipientID = recipient.ID
	}

	inv, err := h.invites.Create(c.Request.Context(), self.ID, recipientID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	if h.gw != nil {
		h.gw.EmitToUser(inv.RecipientID, chatsvc.EventNewInvitation, gin.H{
			"from":       refOf(self),
			"invitation": inv,
		})
	}

	c.JSON(http.StatusOK, gin.H{"invitation": inv})
}

// HandlerListInvitations GET /api/invitations
func (h *Handler) HandlerListInvitations(c *gin.Context) {
	self := midsec.Current(c)
	invs, err := h.invites.ListForUser(c.Request.Context(), self.ID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if invs == nil {
		invs = []*chatmodel.Invitation{}
	}
	c.JSON(http.StatusOK, gin.H{"invitations": invs})
}

type respondInvitationRequest struct {
	Status string `json:"status"`
}

// HandlerRespondInvitation PUT /api/invitations/:id
func (h *Handler) HandlerRespondInvitation(c *gin.Context) {
	self := midsec.Current(c)

	var req respondInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	inv, err := h.invites.Respond(c.Request.Context(), c.Param("id"), self.ID, req.Status)
	if err != nil {
		abortWithError(c, err)
		return
	}

	if h.gw != nil {
		h.gw.EmitToUser(inv.SenderID, chatsvc.EventInvitationUpdated, gin.H{"invitation": inv})
	}

	c.JSON(http.StatusOK, gin.H{"invitation": inv})
}

// HandlerDeleteInvitation DELETE /api/invitations/:id
func (h *Handler) HandlerDeleteInvitation(c *gin.Context) {
	self := midsec.Current(c)
	if err := h.invites.Delete(c.Request.Context(), c.Param("id"), self.ID); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ===== messages =====

// HandlerGetMessages GET /api/messages?otherUserId=&page=&limit=
//
// Same query and read-marking side effect as the websocket get_messages
// event, for clients reading history over plain HTTP.
func (h *Handler) HandlerGetMessages(c *gin.Context) {
	self := midsec.Current(c)

	otherUserID := c.Query("otherUserId")
	if otherUserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "otherUserId is required"})
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	page, limit = message.Normalize(page, limit)

	ctx := c.Request.Context()
	total, err := h.msgs.ConversationCount(ctx, self.ID, otherUserID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	msgs, err := h.msgs.ConversationPage(ctx, self.ID, otherUserID, page, limit)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if _, err := h.msgs.MarkConversationRead(ctx, self.ID, otherUserID); err != nil {
		abortWithError(c, err)
		return
	}
	if msgs == nil {
		msgs = []*chatmodel.Message{}
	}

	c.JSON(http.StatusOK, gin.H{
		"messages":   message.Chronological(msgs),
		"pagination": message.Paginate(total, page, limit),
	})
}

type createMessageRequest struct {
	RecipientID string `json:"recipientId"`
	Content     string `json:"content"`
}

// HandlerCreateMessage POST /api/messages
func (h *Handler) HandlerCreateMessage(c *gin.Context) {
	self := midsec.Current(c)

	var req createMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RecipientID == "" || req.Content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "recipientId and content are required"})
		return
	}

	msg := &chatmodel.Message{
		ID:          ids.GenerateString(),
		SenderID:    self.ID,
		RecipientID: req.RecipientID,
		Content:     req.Content,
		Read:        false,
		CreatedAt:   time.Now(),
	}
	if err := h.msgs.Insert(c.Request.Context(), msg); err != nil {
		abortWithError(c, err)
		return
	}

	if h.gw != nil {
		h.gw.EmitToAll(chatsvc.EventNewMessage, gin.H{
			"message": msg,
			"from":    refOf(self),
		})
	}

	c.JSON(http.StatusOK, gin.H{"message": msg})
}

package user

import (
	"net/http"

	"github.com/gin-gonic/gin"

	midsec "ChatLink/middleware/security"
	usersvc "ChatLink/module/user/service"
	chatsvc "ChatLink/service/chat"
	"ChatLink/tools/errs"
)

// Handler serves the auth and user-listing routes. The presence registry is
// consulted for the isOnline flag so listings reflect live connections, not
// a persisted snapshot.
type Handler struct {
	svc      *usersvc.Service
	registry *chatsvc.Registry
}

func NewHandler(svc *usersvc.Service, registry *chatsvc.Registry) *Handler {
	return &Handler{svc: svc, registry: registry}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandlerRegister POST /api/auth/register
func (h *Handler) HandlerRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, token, err := h.svc.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":  gin.H{"id": user.ID, "name": user.Name, "email": user.Email},
		"token": token,
	})
}

// HandlerLogin POST /api/auth/login
func (h *Handler) HandlerLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, token, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":  gin.H{"id": user.ID, "name": user.Name, "email": user.Email},
		"token": token,
	})
}

// HandlerMe GET /api/auth/me
func (h *Handler) HandlerMe(c *gin.Context) {
	id := midsec.Current(c)
	user, err := h.svc.GetByID(c.Request.Context(), id.ID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user": gin.H{"id": user.ID, "name": user.Name, "email": user.Email},
	})
}

// HandlerList GET /api/users — everyone except self, with live presence.
func (h *Handler) HandlerList(c *gin.Context) {
	id := midsec.Current(c)
	users, err := h.svc.ListOthers(c.Request.Context(), id.ID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	out := make([]any, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public(h.registry.IsOnline(u.ID)))
	}
	c.JSON(http.StatusOK, gin.H{"users": out})
}

// HandlerSeed POST /api/seed — demo data bootstrap.
func (h *Handler) HandlerSeed(c *gin.Context) {
	n, err := h.svc.Seed(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	if n == 0 {
		c.JSON(http.StatusOK, gin.H{"message": "Database already seeded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Database seeded successfully", "count": n})
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(errs.HTTPStatus(err), gin.H{"error": errs.Message(err)})
}

package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	goAccount "github.com/MrEthical07/goAccount"
	"github.com/MrEthical07/goAccount/model"
)

func (h *Handler) me(c *gin.Context) {
	id, _ := caller(c)
	acct, err := h.engine.GetAccount(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toAccount(acct))
}

func (h *Handler) getAccount(c *gin.Context) {
	id := c.Param("id")
	if !selfOrAdmin(c, id) {
		h.respondError(c, goAccount.ErrPermissionDenied)
		return
	}

	acct, err := h.engine.GetAccount(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toAccount(acct))
}

func (h *Handler) listAccounts(c *gin.Context) {
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		badRequest(c, "offset must be a non-negative integer")
		return
	}
	limit, err := queryInt(c, "limit", 50)
	if err != nil {
		badRequest(c, "limit must be a non-negative integer")
		return
	}

	accounts, err := h.engine.ListAccounts(c.Request.Context(), offset, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	out := make([]*AccountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toAccount(a))
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) createAccount(c *gin.Context) {
	var req createAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email and password are required")
		return
	}

	role := model.RoleUser
	if req.Role != "" {
		parsed, ok := model.ParseRole(req.Role)
		if !ok {
			h.respondError(c, goAccount.ErrInvalidRole)
			return
		}
		role = parsed
	}

	acct, err := h.engine.CreateAccount(c.Request.Context(), req.Email, req.Password, role)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toAccount(acct))
}

func (h *Handler) updateAccount(c *gin.Context) {
	id := c.Param("id")
	if !selfOrAdmin(c, id) {
		h.respondError(c, goAccount.ErrPermissionDenied)
		return
	}

	var req updateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "malformed body")
		return
	}

	update := goAccount.AccountUpdate{Email: req.Email, Password: req.Password}
	if callerID, _ := caller(c); callerID == id && req.Password != nil {
		if req.CurrentPassword == nil || *req.CurrentPassword == "" {
			badRequest(c, "current_password is required to change your password")
			return
		}
		update.CurrentPassword = req.CurrentPassword
	}
	if req.Role != nil {
		if _, role := caller(c); role != model.RoleAdmin {
			h.respondError(c, goAccount.ErrPermissionDenied)
			return
		}
		parsed, ok := model.ParseRole(*req.Role)
		if !ok {
			h.respondError(c, goAccount.ErrInvalidRole)
			return
		}
		update.Role = &parsed
	}

	acct, err := h.engine.UpdateAccount(c.Request.Context(), id, update)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toAccount(acct))
}

func (h *Handler) deleteAccount(c *gin.Context) {
	if err := h.engine.DeleteAccount(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func queryInt(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, strconv.ErrSyntax
	}
	return n, nil
}

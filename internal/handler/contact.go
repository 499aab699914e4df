package handler

import (
	"context"
	"net/http"
	"net/mail"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/studio-booking/internal/chat"
	"github.com/iliyamo/studio-booking/internal/model"
)

// ContactStore persists contact form messages.
type ContactStore interface {
	Create(ctx context.Context, m *model.ContactMessage) error
	List(ctx context.Context) ([]model.ContactMessage, error)
}

// ContactHandler serves the contact form and the chat widget.
type ContactHandler struct {
	Contacts ContactStore
}

type contactReq struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Mobile  string `json:"mobile"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// Submit handles POST /v1/contact.
func (h *ContactHandler) Submit(c echo.Context) error {
	var req contactReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	m := model.ContactMessage{
		Name:    strings.TrimSpace(req.Name),
		Email:   strings.ToLower(strings.TrimSpace(req.Email)),
		Mobile:  strings.TrimSpace(req.Mobile),
		Subject: strings.TrimSpace(req.Subject),
		Message: strings.TrimSpace(req.Message),
	}
	switch {
	case m.Name == "":
		return badRequest(c, "name is required")
	case !validEmail(m.Email):
		return badRequest(c, "a valid email is required")
	case len([]rune(m.Message)) < 10:
		return badRequest(c, "message must be at least 10 characters")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Contacts.Create(ctx, &m); err != nil {
		return fail(c, http.StatusServiceUnavailable, "try_again", "could not send message, please try again")
	}
	return c.JSON(http.StatusCreated, m)
}

// List handles GET /v1/admin/contacts.
func (h *ContactHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	out, err := h.Contacts.List(ctx)
	if err != nil {
		return fail(c, http.StatusServiceUnavailable, "try_again", "load messages failed")
	}
	if out == nil {
		out = []model.ContactMessage{}
	}
	return c.JSON(http.StatusOK, out)
}

type chatReq struct {
	Message string `json:"message"`
}

// Chat handles POST /v1/chat.
func (h *ContactHandler) Chat(c echo.Context) error {
	var req chatReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		return badRequest(c, "message is required")
	}
	return c.JSON(http.StatusOK, chat.Answer(req.Message))
}

func validEmail(s string) bool {
	a, err := mail.ParseAddress(s)
	return err == nil && a.Address == s && strings.Contains(s[strings.LastIndex(s, "@")+1:], ".")
}

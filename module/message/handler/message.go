package handler

import (
	"net/http"
	"strconv"
	"time"

	mid "github.com/affanraza84/Chatting-App/middleware"
	midsec "github.com/affanraza84/Chatting-App/middleware/security"
	"github.com/affanraza84/Chatting-App/module/message/model"
	"github.com/affanraza84/Chatting-App/service/chat"
	"github.com/affanraza84/Chatting-App/tools/errs"
	"github.com/gin-gonic/gin"
)

type sendBody struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

// MessageHandler serves the message API on top of the delivery coordinator.
type MessageHandler struct {
	coord *chat.Coordinator
}

func NewMessageHandler(coord *chat.Coordinator) *MessageHandler {
	return &MessageHandler{coord: coord}
}

// Register mounts the routes under /api/message.
func (h *MessageHandler) Register(rt *mid.Router, sendLimit gin.HandlerFunc) {
	opt := mid.RouteOpt{IsAuth: true}
	sendOpt := opt
	if sendLimit != nil {
		sendOpt.Before = []gin.HandlerFunc{sendLimit}
	}
	rt.GET("/api/message/online", h.Online, opt)
	rt.GET("/api/message/:id", h.List, opt)
	rt.POST("/api/message/send/:id", h.Send, sendOpt)
}

// Send handles POST /api/message/send/:id.
func (h *MessageHandler) Send(c *gin.Context) {
	var body sendBody
	if err := c.ShouldBindJSON(&body); err != nil {
		mid.Fail(c, errs.ErrArgs.WrapMsg("invalid request body", "err", err.Error()))
		return
	}
	msg, err := h.coord.Send(c.Request.Context(), chat.SendRequest{
		SenderID:   midsec.UserID(c),
		ReceiverID: c.Param("id"),
		Text:       body.Text,
		Image:      body.Image,
	})
	if err != nil {
		mid.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// List handles GET /api/message/:id?limit=&before=.
// before is RFC3339 or unix milliseconds.
func (h *MessageHandler) List(c *gin.Context) {
	opts, err := listOptions(c)
	if err != nil {
		mid.Fail(c, err)
		return
	}
	list, err := h.coord.History(c.Request.Context(), midsec.UserID(c), c.Param("id"), opts)
	if err != nil {
		mid.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// Online handles GET /api/message/online.
func (h *MessageHandler) Online(c *gin.Context) {
	c.JSON(http.StatusOK, h.coord.Online())
}

func listOptions(c *gin.Context) (model.ListOptions, error) {
	var opts model.ListOptions
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return opts, errs.ErrArgs.WrapMsg("limit must be a positive integer", "limit", s)
		}
		opts.Limit = n
	}
	if s := c.Query("before"); s != "" {
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			opts.Before = time.UnixMilli(ms)
		} else if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			opts.Before = t
		} else {
			return opts, errs.ErrArgs.WrapMsg("before must be RFC3339 or unix ms", "before", s)
		}
	}
	return opts, nil
}

package contact

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	sender Sender
	to     string
	site   string
	log    *zap.Logger
}

func NewHandler(sender Sender, to, site string, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{sender: sender, to: to, site: site, log: log.Named("contact")}
}

// Register mounts the form endpoint behind limit.
func (h *Handler) Register(rg *gin.RouterGroup, limit gin.HandlerFunc) {
	rg.POST("", limit, h.Submit)
}

func (h *Handler) Submit(c *gin.Context) {
	var s Submission
	if err := c.ShouldBind(&s); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name, a valid email, and message are required"})
		return
	}
	s.Name = strings.TrimSpace(s.Name)
	s.Message = strings.TrimSpace(s.Message)
	if s.Name == "" || s.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name, a valid email, and message are required"})
		return
	}

	msg, err := Render(s, h.to, h.site)
	if err == nil {
		err = h.sender.Send(c.Request.Context(), msg)
	}
	if err != nil {
		h.log.Error("contact mail failed",
			zap.String("request_id", c.GetString("request_id")),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to send message. Please try again or contact us directly.",
		})
		return
	}

	h.log.Info("contact mail sent", zap.String("request_id", c.GetString("request_id")))
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Thank you! Your message has been sent successfully.",
	})
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/soporte-digital/whatsapp-bot/internal/dispatch"
)

// SendHandler is the inbound control surface: integrators POST a number
// and a message (optionally an attachment) and the dispatcher delivers
// it over the chat transport.
type SendHandler struct {
	dispatcher *dispatch.Dispatcher
	ready      func() bool
}

func NewSendHandler(d *dispatch.Dispatcher, ready func() bool) *SendHandler {
	return &SendHandler{dispatcher: d, ready: ready}
}

// sendRequest accepts the canonical field names plus the aliases older
// integrators still send. encoding/json matches keys case-insensitively,
// so Numero/Mensaje/Archivo_local also land here.
type sendRequest struct {
	Numero       string `json:"numero"`
	Phone        string `json:"phone"`
	To           string `json:"to"`
	Mensaje      string `json:"mensaje"`
	Text         string `json:"text"`
	ArchivoLocal string `json:"archivo_local"`
	FilePath     string `json:"filePath"`
	ArchivoURL   string `json:"archivo_url"`
	FileURL      string `json:"fileUrl"`
	Caption      string `json:"caption"`
	Titulo       string `json:"titulo"`
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (h *SendHandler) Send(c *gin.Context) {
	if !h.ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "message": "whatsapp_no_listo"})
		return
	}

	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "message": "json_invalido"})
		return
	}

	numero := coalesce(req.Numero, req.Phone, req.To)
	if numero == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"ok": false, "message": "numero_requerido"})
		return
	}

	mensaje := coalesce(req.Mensaje, req.Text)
	result := h.dispatcher.Send(c.Request.Context(), numero, mensaje, dispatch.Options{
		AttachmentPath: coalesce(req.ArchivoLocal, req.FilePath),
		AttachmentURL:  coalesce(req.ArchivoURL, req.FileURL),
		Caption:        coalesce(req.Caption, req.Titulo),
	})

	// 200 even for failed sends so integrators do not retry forever.
	if !result.OK {
		c.JSON(http.StatusOK, gin.H{"ok": false, "numero": numero, "reason": result.Reason})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "numero": result.ResolvedAddress, "message": "enviado"})
}

package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	svcErr "github.com/spark-dating/spark-server/internal/errors"
	"github.com/spark-dating/spark-server/internal/service/chat"
)

type sendMessageRequest struct {
	ReceiverID uint64           `json:"receiverId" binding:"required"`
	Content    string           `json:"content"`
	Attachment *chat.Attachment `json:"attachment"`
}

func (s *Server) handleSendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "receiverId is required"})
		return
	}

	msg, err := s.chat.SendMessage(c.Request.Context(), currentUserID(c), req.ReceiverID, req.Content, req.Attachment)
	if err != nil {
		c.JSON(svcErr.HTTPStatus(err), gin.H{"success": false, "message": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "message": msg})
}

func (s *Server) handleGetConversation(c *gin.Context) {
	otherID, err := strconv.ParseUint(c.Param("userId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "userId must be a valid id"})
		return
	}

	var token *string
	if v := c.Query("paginationToken"); v != "" {
		token = &v
	}
	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	messages, nextToken, err := s.chat.Conversation(c.Request.Context(), currentUserID(c), otherID, token, limit)
	if err != nil {
		c.JSON(svcErr.HTTPStatus(err), gin.H{"success": false, "message": err.Error()})
		return
	}

	resp := gin.H{"success": true, "messages": messages}
	if nextToken != nil {
		resp["nextPaginationToken"] = *nextToken
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleMarkConversationRead(c *gin.Context) {
	otherID, err := strconv.ParseUint(c.Param("userId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "userId must be a valid id"})
		return
	}

	total, err := s.unread.OnConversationRead(c.Request.Context(), currentUserID(c), otherID)
	if err != nil {
		c.JSON(svcErr.HTTPStatus(err), gin.H{"success": false, "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "total": total, "perConversation": 0})
}

func (s *Server) handleDeleteMessage(c *gin.Context) {
	messageID := c.Param("messageId")

	if err := s.chat.DeleteMessage(c.Request.Context(), currentUserID(c), messageID); err != nil {
		c.JSON(svcErr.HTTPStatus(err), gin.H{"success": false, "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "messageId": messageID})
}

func (s *Server) handleGetUnreadCounts(c *gin.Context) {
	counts, err := s.unread.Counts(c.Request.Context(), currentUserID(c))
	if err != nil {
		c.JSON(svcErr.HTTPStatus(err), gin.H{"success": false, "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "total": counts.Total, "perSender": counts.PerSender})
}

type presignRequest struct {
	FileName string `json:"fileName" binding:"required"`
	FileType string `json:"fileType" binding:"required"`
}

func (s *Server) handlePresignUpload(c *gin.Context) {
	if s.objects == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "uploads are not configured"})
		return
	}

	var req presignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "fileName and fileType are required"})
		return
	}

	url, key, err := s.objects.PresignUpload(c.Request.Context(), req.FileName, req.FileType)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "failed to presign upload"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "uploadUrl": url, "key": key})
}

package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sakuuj/blogsite/internal/paging"
	"github.com/sakuuj/blogsite/internal/topics"
)

type topicResponsePayload struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Version   int32     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toTopicResponse(topic topics.Topic) topicResponsePayload {
	return topicResponsePayload{
		ID:        topic.ID,
		Name:      topic.Name,
		Version:   topic.Version,
		CreatedAt: topic.CreatedAt,
		UpdatedAt: topic.UpdatedAt,
	}
}

func toTopicPage(view paging.View[topics.Topic]) pageResponsePayload[topicResponsePayload] {
	content := make([]topicResponsePayload, 0, len(view.Content))
	for _, topic := range view.Content {
		content = append(content, toTopicResponse(topic))
	}
	return pageResponsePayload[topicResponsePayload]{
		Content: content,
		Number:  view.Number,
		Size:    view.Size,
	}
}

func (h *httpHandler) handleListTopics(c *gin.Context) {
	page, ok := requestedPageFromQuery(c)
	if !ok {
		return
	}
	view, err := h.topics.FindAllSortedByCreatedAtDesc(c.Request.Context(), page)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTopicPage(view))
}

func (h *httpHandler) handleGetTopic(c *gin.Context) {
	topicID, ok := pathUUID(c, "topicId")
	if !ok {
		return
	}
	topic, err := h.topics.FindByID(c.Request.Context(), topicID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTopicResponse(*topic))
}

func (h *httpHandler) handleCreateTopic(c *gin.Context) {
	user, ok := h.authenticatedUser(c)
	if !ok {
		return
	}
	tokenValue, ok := h.idempotencyToken(c)
	if !ok {
		return
	}

	var request topics.Request
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	topicID, err := h.topics.Create(c.Request.Context(), request, tokenValue, user)
	h.recorder.RecordWrite("topic", "create", writeOutcome(err))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": topicID.String()})
}

type topicUpdatePayload struct {
	Name    string `json:"name"`
	Version *int32 `json:"version"`
}

func (h *httpHandler) handleUpdateTopic(c *gin.Context) {
	user, ok := h.authenticatedUser(c)
	if !ok {
		return
	}
	topicID, ok := pathUUID(c, "topicId")
	if !ok {
		return
	}

	var payload topicUpdatePayload
	if err := c.ShouldBindJSON(&payload); err != nil || payload.Version == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	err := h.topics.UpdateByID(c.Request.Context(), topicID, topics.Request{Name: payload.Name}, *payload.Version, user)
	h.recorder.RecordWrite("topic", "update", writeOutcome(err))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleDeleteTopic(c *gin.Context) {
	user, ok := h.authenticatedUser(c)
	if !ok {
		return
	}
	topicID, ok := pathUUID(c, "topicId")
	if !ok {
		return
	}

	err := h.topics.DeleteByID(c.Request.Context(), topicID, user)
	h.recorder.RecordWrite("topic", "delete", writeOutcome(err))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

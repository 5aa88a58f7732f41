package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sakuuj/blogsite/internal/articles"
	"github.com/sakuuj/blogsite/internal/paging"
)

type articleResponsePayload struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	AuthorID  string    `json:"author_id"`
	Version   int32     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type pageResponsePayload[T any] struct {
	Content []T `json:"content"`
	Number  int `json:"number"`
	Size    int `json:"size"`
}

func toArticleResponse(article articles.Article) articleResponsePayload {
	return articleResponsePayload{
		ID:        article.ID,
		Title:     article.Title,
		Content:   article.Content,
		AuthorID:  article.AuthorID,
		Version:   article.Version,
		CreatedAt: article.CreatedAt,
		UpdatedAt: article.UpdatedAt,
	}
}

func toArticlePage(view paging.View[articles.Article]) pageResponsePayload[articleResponsePayload] {
	content := make([]articleResponsePayload, 0, len(view.Content))
	for _, article := range view.Content {
		content = append(content, toArticleResponse(article))
	}
	return pageResponsePayload[articleResponsePayload]{
		Content: content,
		Number:  view.Number,
		Size:    view.Size,
	}
}

func requestedPageFromQuery(c *gin.Context) (paging.RequestedPage, bool) {
	number, err := strconv.Atoi(c.DefaultQuery("page", "0"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_page"})
		return paging.RequestedPage{}, false
	}
	size, err := strconv.Atoi(c.DefaultQuery("size", "0"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_page"})
		return paging.RequestedPage{}, false
	}
	page, err := paging.NewRequestedPage(number, size)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_page"})
		return paging.RequestedPage{}, false
	}
	return page, true
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	value, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_id"})
		return uuid.Nil, false
	}
	return value, true
}

func (h *httpHandler) idempotencyToken(c *gin.Context) (uuid.UUID, bool) {
	value, err := uuid.Parse(strings.TrimSpace(c.GetHeader(idempotencyTokenHeader)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errMissingIdempotencyToken.Error()})
		return uuid.Nil, false
	}
	return value, true
}

func (h *httpHandler) handleListArticles(c *gin.Context) {
	page, ok := requestedPageFromQuery(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()

	var view paging.View[articles.Article]
	var err error
	switch {
	case strings.TrimSpace(c.Query("search")) != "":
		view, err = h.articles.FindAllBySearchTermsSortedByRelevance(ctx, c.Query("search"), page)
	case strings.TrimSpace(c.Query("topics")) != "":
		names := splitTopicNames(c.Query("topics"))
		view, err = h.articles.FindAllByTopicsSortedByCreatedAtDesc(ctx, names, page)
	default:
		view, err = h.articles.FindAllSortedByCreatedAtDesc(ctx, page)
	}
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toArticlePage(view))
}

func splitTopicNames(raw string) []string {
	parts := strings.Split(raw, ",")
	names := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			names = append(names, trimmed)
		}
	}
	return names
}

func (h *httpHandler) handleGetArticle(c *gin.Context) {
	articleID, ok := pathUUID(c, "articleId")
	if !ok {
		return
	}
	article, err := h.articles.FindByID(c.Request.Context(), articleID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toArticleResponse(*article))
}

func (h *httpHandler) handleCreateArticle(c *gin.Context) {
	user, ok := h.authenticatedUser(c)
	if !ok {
		return
	}
	tokenValue, ok := h.idempotencyToken(c)
	if !ok {
		return
	}

	var request articles.Request
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	articleID, err := h.articles.Create(c.Request.Context(), request, user.PersonID, tokenValue, user)
	h.recorder.RecordWrite("article", "create", writeOutcome(err))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": articleID.String()})
}

type articleUpdatePayload struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Version *int32 `json:"version"`
}

func (h *httpHandler) handleUpdateArticle(c *gin.Context) {
	user, ok := h.authenticatedUser(c)
	if !ok {
		return
	}
	articleID, ok := pathUUID(c, "articleId")
	if !ok {
		return
	}

	var payload articleUpdatePayload
	if err := c.ShouldBindJSON(&payload); err != nil || payload.Version == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	request := articles.Request{Title: payload.Title, Content: payload.Content}
	err := h.articles.UpdateByID(c.Request.Context(), articleID, request, *payload.Version, user)
	h.recorder.RecordWrite("article", "update", writeOutcome(err))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleDeleteArticle(c *gin.Context) {
	user, ok := h.authenticatedUser(c)
	if !ok {
		return
	}
	articleID, ok := pathUUID(c, "articleId")
	if !ok {
		return
	}

	err := h.articles.DeleteByID(c.Request.Context(), articleID, user)
	h.recorder.RecordWrite("article", "delete", writeOutcome(err))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleAddTopic(c *gin.Context) {
	user, ok := h.authenticatedUser(c)
	if !ok {
		return
	}
	articleID, ok := pathUUID(c, "articleId")
	if !ok {
		return
	}
	topicID, ok := pathUUID(c, "topicId")
	if !ok {
		return
	}

	err := h.articles.AddTopic(c.Request.Context(), topicID, articleID, user)
	h.recorder.RecordWrite("article", "add_topic", writeOutcome(err))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleRemoveTopic(c *gin.Context) {
	user, ok := h.authenticatedUser(c)
	if !ok {
		return
	}
	articleID, ok := pathUUID(c, "articleId")
	if !ok {
		return
	}
	topicID, ok := pathUUID(c, "topicId")
	if !ok {
		return
	}

	err := h.articles.RemoveTopic(c.Request.Context(), topicID, articleID, user)
	h.recorder.RecordWrite("article", "remove_topic", writeOutcome(err))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sakuuj/blogsite/internal/articles"
	"github.com/sakuuj/blogsite/internal/auth"
	"github.com/sakuuj/blogsite/internal/authz"
	"github.com/sakuuj/blogsite/internal/metrics"
	"github.com/sakuuj/blogsite/internal/topics"
)

const (
	authenticatedUserContextKey = "blogsite_authenticated_user"
	idempotencyTokenHeader      = "X-Idempotency-Token"
)

var (
	errMissingVerifier         = errors.New("identity verifier dependency required")
	errMissingTokenManager     = errors.New("token manager dependency required")
	errMissingPersonResolver   = errors.New("person resolver dependency required")
	errMissingArticleService   = errors.New("article service dependency required")
	errMissingTopicService     = errors.New("topic service dependency required")
	errInvalidAuthorization    = errors.New("authorization header missing or invalid")
	errMissingIdempotencyToken = errors.New("idempotency token header missing or invalid")
)

// IdentityVerifier verifies upstream OIDC id tokens.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (auth.IdentityClaims, error)
}

// BearerTokenManager issues and validates backend bearer tokens.
type BearerTokenManager interface {
	IssueBearerToken(ctx context.Context, personID, email string, roles []string) (string, int64, error)
	ValidateToken(token string) (auth.BearerClaims, error)
}

// PersonResolver maps a verified email to the caller's authenticated identity.
type PersonResolver interface {
	Resolve(ctx context.Context, email, displayName string) (authz.AuthenticatedUser, error)
}

// Dependencies wires the HTTP layer to its collaborators.
type Dependencies struct {
	Verifier IdentityVerifier
	Tokens   BearerTokenManager
	Persons  PersonResolver
	Articles *articles.Service
	Topics   *topics.Service
	Metrics  *metrics.Recorder
	Logger   *zap.Logger
}

// NewHTTPHandler builds the gin router: public reads, bearer-protected writes.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Verifier == nil {
		return nil, errMissingVerifier
	}
	if deps.Tokens == nil {
		return nil, errMissingTokenManager
	}
	if deps.Persons == nil {
		return nil, errMissingPersonResolver
	}
	if deps.Articles == nil {
		return nil, errMissingArticleService
	}
	if deps.Topics == nil {
		return nil, errMissingTopicService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type", idempotencyTokenHeader},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		verifier: deps.Verifier,
		tokens:   deps.Tokens,
		persons:  deps.Persons,
		articles: deps.Articles,
		topics:   deps.Topics,
		recorder: deps.Metrics,
		logger:   logger,
	}

	router.POST("/auth/token", handler.handleIssueToken)

	router.GET("/articles", handler.handleListArticles)
	router.GET("/articles/:articleId", handler.handleGetArticle)
	router.GET("/topics", handler.handleListTopics)
	router.GET("/topics/:topicId", handler.handleGetTopic)

	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Metrics.Registry(), promhttp.HandlerOpts{})))
	}

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.POST("/articles", handler.handleCreateArticle)
	protected.PUT("/articles/:articleId", handler.handleUpdateArticle)
	protected.DELETE("/articles/:articleId", handler.handleDeleteArticle)
	protected.PUT("/articles/:articleId/topics/:topicId", handler.handleAddTopic)
	protected.DELETE("/articles/:articleId/topics/:topicId", handler.handleRemoveTopic)
	protected.POST("/topics", handler.handleCreateTopic)
	protected.PUT("/topics/:topicId", handler.handleUpdateTopic)
	protected.DELETE("/topics/:topicId", handler.handleDeleteTopic)

	return router, nil
}

type httpHandler struct {
	verifier IdentityVerifier
	tokens   BearerTokenManager
	persons  PersonResolver
	articles *articles.Service
	topics   *topics.Service
	recorder *metrics.Recorder
	logger   *zap.Logger
}

type tokenRequestPayload struct {
	IDToken string `json:"id_token"`
}

type tokenResponsePayload struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func (h *httpHandler) handleIssueToken(c *gin.Context) {
	var request tokenRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.IDToken) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	claims, err := h.verifier.Verify(c.Request.Context(), request.IDToken)
	if err != nil {
		h.logger.Warn("id token verification failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	user, err := h.persons.Resolve(c.Request.Context(), claims.Email, claims.DisplayName)
	if err != nil {
		h.logger.Error("person resolution failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "person_resolution_failed"})
		return
	}

	token, expiresIn, err := h.tokens.IssueBearerToken(c.Request.Context(), user.PersonID.String(), user.Email, user.Roles)
	if err != nil {
		h.logger.Error("failed to issue bearer token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	c.JSON(http.StatusOK, tokenResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
	})
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	claims, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("bearer token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	personID, err := uuid.Parse(claims.Subject)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(authenticatedUserContextKey, authz.AuthenticatedUser{
		PersonID: personID,
		Email:    claims.Email,
		Roles:    claims.Roles,
	})
	c.Next()
}

func (h *httpHandler) authenticatedUser(c *gin.Context) (authz.AuthenticatedUser, bool) {
	value, ok := c.Get(authenticatedUserContextKey)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return authz.AuthenticatedUser{}, false
	}
	user, ok := value.(authz.AuthenticatedUser)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return authz.AuthenticatedUser{}, false
	}
	return user, true
}

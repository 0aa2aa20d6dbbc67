package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/vireo-social/vireo/internal/apperr"
	"github.com/vireo-social/vireo/internal/db"
	"github.com/vireo-social/vireo/internal/models"
	"github.com/vireo-social/vireo/internal/storage"
)

// Content length caps.
const (
	maxPostLen    = 5000
	maxCommentLen = 1000
)

// PostHandler manages feed posts, their media, likes and comments.
type PostHandler struct {
	db       *gorm.DB
	media    *storage.MediaStore
	maxMedia int64
}

// NewPostHandler constructs a PostHandler.
func NewPostHandler(db *gorm.DB, media *storage.MediaStore, maxMedia int64) *PostHandler {
	return &PostHandler{db: db, media: media, maxMedia: maxMedia}
}

// postBody renders a post for responses.
func postBody(p *models.Post) gin.H {
	body := gin.H{
		"id":             p.ID,
		"content":        p.Content,
		"media_url":      p.MediaURL,
		"media_type":     p.MediaType,
		"likes_count":    p.LikesCount,
		"comments_count": p.CommentsCount,
		"shares_count":   p.SharesCount,
		"created_at":     p.CreatedAt,
	}
	if p.User != nil {
		body["user"] = gin.H{"id": p.User.ID, "username": p.User.Username}
	}
	return body
}

// mediaTypeFor derives the media kind from a URL's file extension.
func mediaTypeFor(mediaURL string) string {
	idx := strings.LastIndex(mediaURL, ".")
	if idx < 0 {
		return ""
	}
	switch strings.ToLower(mediaURL[idx+1:]) {
	case "png", "jpg", "jpeg", "gif", "webp":
		return "image"
	case "mp4", "webm", "ogg":
		return "video"
	default:
		return ""
	}
}

// createPostRequest defines the request body for post creation.
type createPostRequest struct {
	Content  string `json:"content"`
	MediaURL string `json:"media_url"`
}

// Create publishes a new post by the current user.
func (h *PostHandler) Create(c *gin.Context) {
	userID := getUserID(c)

	var body createPostRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respondError(c, apperr.New(apperr.KindValidation, "Invalid JSON body."))
		return
	}
	content := strings.TrimSpace(body.Content)
	if content == "" {
		respondError(c, apperr.New(apperr.KindValidation, "Content cannot be empty."))
		return
	}
	if utf8.RuneCountInString(content) > maxPostLen {
		respondError(c, apperr.New(apperr.KindValidation, "Content cannot exceed 5000 characters."))
		return
	}

	post := models.Post{
		UserID:   userID,
		Content:  content,
		MediaURL: strings.TrimSpace(body.MediaURL),
		Status:   models.PostStatusActive,
	}
	if post.MediaURL != "" {
		post.MediaType = mediaTypeFor(post.MediaURL)
	}

	if errCreate := h.db.WithContext(c.Request.Context()).Create(&post).Error; errCreate != nil {
		log.WithError(errCreate).Error("posts: create failed")
		respondError(c, apperr.Internal())
		return
	}
	if errLoad := h.db.WithContext(c.Request.Context()).Preload("User").First(&post, post.ID).Error; errLoad != nil {
		log.WithError(errLoad).Error("posts: reload failed")
		respondError(c, apperr.Internal())
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "post": postBody(&post)})
}

// UploadMedia stores an image or video attachment and returns the URL to
// reference from a post's media_url.
func (h *PostHandler) UploadMedia(c *gin.Context) {
	file, errFile := c.FormFile("file")
	if errFile != nil {
		respondError(c, apperr.New(apperr.KindValidation, "No file provided."))
		return
	}
	if file.Size > h.maxMedia {
		respondError(c, apperr.New(apperr.KindPayloadTooLarge, "File size exceeds 10MB limit."))
		return
	}

	src, errOpen := file.Open()
	if errOpen != nil {
		log.WithError(errOpen).Error("post media: open upload failed")
		respondError(c, apperr.Internal())
		return
	}
	defer src.Close()
	data, errRead := io.ReadAll(io.LimitReader(src, h.maxMedia+1))
	if errRead != nil {
		log.WithError(errRead).Error("post media: read upload failed")
		respondError(c, apperr.Internal())
		return
	}
	if int64(len(data)) > h.maxMedia {
		respondError(c, apperr.New(apperr.KindPayloadTooLarge, "File size exceeds 10MB limit."))
		return
	}

	name, mediaType, errSave := h.media.SaveMedia(file.Filename, data)
	if errSave != nil {
		if errors.Is(errSave, storage.ErrUnsupportedType) {
			respondError(c, apperr.New(apperr.KindValidation, "File type not allowed."))
			return
		}
		log.WithError(errSave).Error("post media: save failed")
		respondError(c, apperr.Internal())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"url":        "/api/posts/uploads/" + name,
		"filename":   name,
		"media_type": mediaType,
	})
}

// ServeMedia streams a stored media file.
func (h *PostHandler) ServeMedia(c *gin.Context) {
	name := c.Param("name")
	path, errPath := h.media.Path(name)
	if errPath != nil {
		switch {
		case errors.Is(errPath, storage.ErrPathEscape):
			respondError(c, apperr.New(apperr.KindAuthorization, "Invalid media path."))
		case errors.Is(errPath, storage.ErrNotFound):
			respondError(c, apperr.New(apperr.KindNotFound, "File not found."))
		default:
			log.WithError(errPath).Error("post media: resolve failed")
			respondError(c, apperr.Internal())
		}
		return
	}
	c.File(path)
}

// List returns active posts, newest first, paginated, optionally restricted
// to one author.
func (h *PostHandler) List(c *gin.Context) {
	page, perPage := pageParams(c)

	q := h.db.WithContext(c.Request.Context()).
		Model(&models.Post{}).
		Where("status = ?", models.PostStatusActive)
	if userIDQ := strings.TrimSpace(c.Query("user_id")); userIDQ != "" {
		if userID, errParse := strconv.ParseUint(userIDQ, 10, 64); errParse == nil {
			q = q.Where("user_id = ?", userID)
		}
	}

	var total int64
	if errCount := q.Count(&total).Error; errCount != nil {
		log.WithError(errCount).Error("posts: count failed")
		respondError(c, apperr.Internal())
		return
	}

	var rows []models.Post
	if errFind := q.Preload("User").
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&rows).Error; errFind != nil {
		log.WithError(errFind).Error("posts: list failed")
		respondError(c, apperr.Internal())
		return
	}

	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, postBody(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"posts":      out,
		"pagination": paginationBody(page, perPage, total),
	})
}

// Get returns a single active post.
func (h *PostHandler) Get(c *gin.Context) {
	postID, ok := postIDParam(c)
	if !ok {
		return
	}
	var post models.Post
	errFind := h.db.WithContext(c.Request.Context()).
		Preload("User").
		Where("id = ? AND status = ?", postID, models.PostStatusActive).
		First(&post).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			respondError(c, apperr.New(apperr.KindNotFound, "Post not found."))
			return
		}
		log.WithError(errFind).Error("posts: get failed")
		respondError(c, apperr.Internal())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "post": postBody(&post)})
}

// Delete soft-deletes a post; only its author may do so.
func (h *PostHandler) Delete(c *gin.Context) {
	userID := getUserID(c)
	postID, ok := postIDParam(c)
	if !ok {
		return
	}

	var post models.Post
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND status = ?", postID, models.PostStatusActive).
		First(&post).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			respondError(c, apperr.New(apperr.KindNotFound, "Post not found."))
			return
		}
		log.WithError(errFind).Error("posts: load failed")
		respondError(c, apperr.Internal())
		return
	}
	if post.UserID != userID {
		respondError(c, apperr.New(apperr.KindAuthorization, "Not allowed to delete this post."))
		return
	}

	if errUpdate := h.db.WithContext(c.Request.Context()).Model(&post).
		Update("status", models.PostStatusDeleted).Error; errUpdate != nil {
		log.WithError(errUpdate).Error("posts: soft delete failed")
		respondError(c, apperr.Internal())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Post deleted successfully."})
}

// Like toggles the current user's like on a post. The like row and the
// denormalized counter change inside one transaction so the counter always
// equals the live row count.
func (h *PostHandler) Like(c *gin.Context) {
	userID := getUserID(c)
	postID, ok := postIDParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	var post models.Post
	if errFind := h.db.WithContext(ctx).
		Where("id = ? AND status = ?", postID, models.PostStatusActive).
		First(&post).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			respondError(c, apperr.New(apperr.KindNotFound, "Post not found."))
			return
		}
		log.WithError(errFind).Error("posts: load failed")
		respondError(c, apperr.Internal())
		return
	}

	liked := false
	errTx := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&models.PostLike{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return tx.Model(&models.Post{}).
				Where("id = ? AND likes_count > 0", postID).
				UpdateColumn("likes_count", gorm.Expr("likes_count - 1")).Error
		}
		if errCreate := tx.Create(&models.PostLike{PostID: postID, UserID: userID}).Error; errCreate != nil {
			return errCreate
		}
		liked = true
		return tx.Model(&models.Post{}).
			Where("id = ?", postID).
			UpdateColumn("likes_count", gorm.Expr("likes_count + 1")).Error
	})
	if errTx != nil {
		// A concurrent duplicate like hit the unique constraint; the like
		// already exists, so report the current state.
		if db.IsUniqueViolation(errTx) {
			liked = true
		} else {
			log.WithError(errTx).Error("posts: like toggle failed")
			respondError(c, apperr.Internal())
			return
		}
	}

	var likesCount int
	if errCount := h.db.WithContext(ctx).Model(&models.Post{}).
		Select("likes_count").Where("id = ?", postID).
		Scan(&likesCount).Error; errCount != nil {
		log.WithError(errCount).Error("posts: reload count failed")
		respondError(c, apperr.Internal())
		return
	}

	message := "Post unliked successfully."
	if liked {
		message = "Post liked successfully."
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"message":     message,
		"liked":       liked,
		"likes_count": likesCount,
	})
}

// addCommentRequest defines the request body for commenting.
type addCommentRequest struct {
	Content  string  `json:"content"`
	ParentID *uint64 `json:"parent_id"`
}

// AddComment attaches a comment to a post, optionally replying to a
// top-level comment.
func (h *PostHandler) AddComment(c *gin.Context) {
	userID := getUserID(c)
	postID, ok := postIDParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	var body addCommentRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respondError(c, apperr.New(apperr.KindValidation, "Invalid JSON body."))
		return
	}
	content := strings.TrimSpace(body.Content)
	if content == "" {
		respondError(c, apperr.New(apperr.KindValidation, "Comment content cannot be empty."))
		return
	}
	if utf8.RuneCountInString(content) > maxCommentLen {
		respondError(c, apperr.New(apperr.KindValidation, "Comment cannot exceed 1000 characters."))
		return
	}

	var post models.Post
	if errFind := h.db.WithContext(ctx).
		Where("id = ? AND status = ?", postID, models.PostStatusActive).
		First(&post).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			respondError(c, apperr.New(apperr.KindNotFound, "Post not found."))
			return
		}
		log.WithError(errFind).Error("posts: load failed")
		respondError(c, apperr.Internal())
		return
	}

	if body.ParentID != nil {
		var parent models.PostComment
		if errParent := h.db.WithContext(ctx).
			Where("id = ? AND post_id = ?", *body.ParentID, postID).
			First(&parent).Error; errParent != nil {
			respondError(c, apperr.New(apperr.KindValidation, "Parent comment not found."))
			return
		}
		// Only one level of threading: replies to replies are rejected.
		if parent.ParentID != nil {
			respondError(c, apperr.New(apperr.KindValidation, "Cannot reply to a reply."))
			return
		}
	}

	comment := models.PostComment{
		PostID:   postID,
		UserID:   userID,
		Content:  content,
		ParentID: body.ParentID,
		Status:   models.PostStatusActive,
	}
	errTx := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errCreate := tx.Create(&comment).Error; errCreate != nil {
			return errCreate
		}
		return tx.Model(&models.Post{}).
			Where("id = ?", postID).
			UpdateColumn("comments_count", gorm.Expr("comments_count + 1")).Error
	})
	if errTx != nil {
		log.WithError(errTx).Error("posts: add comment failed")
		respondError(c, apperr.Internal())
		return
	}

	var user models.User
	if errUser := h.db.WithContext(ctx).First(&user, userID).Error; errUser != nil {
		log.WithError(errUser).Error("posts: load commenter failed")
		respondError(c, apperr.Internal())
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"comment": gin.H{
			"id":         comment.ID,
			"content":    comment.Content,
			"parent_id":  comment.ParentID,
			"user":       gin.H{"id": user.ID, "username": user.Username},
			"created_at": comment.CreatedAt,
		},
	})
}

// ListComments returns a post's top-level comments, newest first, each with
// its reply count.
func (h *PostHandler) ListComments(c *gin.Context) {
	postID, ok := postIDParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	page, perPage := pageParams(c)

	var count int64
	if errPost := h.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ? AND status = ?", postID, models.PostStatusActive).
		Count(&count).Error; errPost != nil {
		log.WithError(errPost).Error("posts: load failed")
		respondError(c, apperr.Internal())
		return
	}
	if count == 0 {
		respondError(c, apperr.New(apperr.KindNotFound, "Post not found."))
		return
	}

	q := h.db.WithContext(ctx).Model(&models.PostComment{}).
		Where("post_id = ? AND status = ? AND parent_id IS NULL", postID, models.PostStatusActive)

	var total int64
	if errCount := q.Count(&total).Error; errCount != nil {
		log.WithError(errCount).Error("posts: count comments failed")
		respondError(c, apperr.Internal())
		return
	}

	var rows []models.PostComment
	if errFind := q.Preload("User").
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&rows).Error; errFind != nil {
		log.WithError(errFind).Error("posts: list comments failed")
		respondError(c, apperr.Internal())
		return
	}

	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		comment := &rows[i]
		var replies int64
		if errReplies := h.db.WithContext(ctx).Model(&models.PostComment{}).
			Where("parent_id = ? AND status = ?", comment.ID, models.PostStatusActive).
			Count(&replies).Error; errReplies != nil {
			log.WithError(errReplies).Error("posts: count replies failed")
			respondError(c, apperr.Internal())
			return
		}
		body := gin.H{
			"id":            comment.ID,
			"content":       comment.Content,
			"parent_id":     comment.ParentID,
			"replies_count": replies,
			"created_at":    comment.CreatedAt,
		}
		if comment.User != nil {
			body["user"] = gin.H{"id": comment.User.ID, "username": comment.User.Username}
		}
		out = append(out, body)
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"comments":   out,
		"pagination": paginationBody(page, perPage, total),
	})
}

// postIDParam parses the :id route parameter, responding on failure.
func postIDParam(c *gin.Context) (uint64, bool) {
	postID, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil || postID == 0 {
		respondError(c, apperr.New(apperr.KindNotFound, "Post not found."))
		return 0, false
	}
	return postID, true
}

// pageParams reads page and per_page query values with sane bounds.
func pageParams(c *gin.Context) (int, int) {
	page := 1
	if v, errParse := strconv.Atoi(c.DefaultQuery("page", "1")); errParse == nil && v > 0 {
		page = v
	}
	perPage := 10
	if v, errParse := strconv.Atoi(c.DefaultQuery("per_page", "10")); errParse == nil && v > 0 && v <= 100 {
		perPage = v
	}
	return page, perPage
}

// paginationBody renders the standard pagination envelope.
func paginationBody(page, perPage int, total int64) gin.H {
	pages := int((total + int64(perPage) - 1) / int64(perPage))
	return gin.H{
		"page":     page,
		"per_page": perPage,
		"total":    total,
		"pages":    pages,
		"has_next": page < pages,
		"has_prev": page > 1 && total > 0,
	}
}

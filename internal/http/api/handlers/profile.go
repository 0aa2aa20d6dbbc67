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
	"github.com/vireo-social/vireo/internal/models"
	"github.com/vireo-social/vireo/internal/sanitize"
	"github.com/vireo-social/vireo/internal/storage"
)

// Field length caps on profile updates.
const (
	maxBioLen      = 500
	maxLocationLen = 120
)

// ProfileHandler manages the current user's profile and its image.
type ProfileHandler struct {
	db        *gorm.DB
	images    *storage.ImageStore
	maxUpload int64
}

// NewProfileHandler constructs a ProfileHandler.
func NewProfileHandler(db *gorm.DB, images *storage.ImageStore, maxUpload int64) *ProfileHandler {
	return &ProfileHandler{db: db, images: images, maxUpload: maxUpload}
}

// profileBody renders a profile row for responses.
func profileBody(p *models.Profile) gin.H {
	if p == nil {
		return nil
	}
	return gin.H{
		"id":            p.ID,
		"bio":           p.Bio,
		"location":      p.Location,
		"image_url":     p.ImageURL,
		"thumbnail_url": p.ThumbnailURL,
	}
}

// Get returns the current user plus their profile, which may not exist yet.
func (h *ProfileHandler) Get(c *gin.Context) {
	userID := getUserID(c)

	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).First(&user, userID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			respondError(c, apperr.New(apperr.KindNotFound, "User not found."))
			return
		}
		log.WithError(errFind).Error("profile: load user failed")
		respondError(c, apperr.Internal())
		return
	}

	var profile models.Profile
	errProfile := h.db.WithContext(c.Request.Context()).Where("user_id = ?", userID).First(&profile).Error
	if errProfile != nil && !errors.Is(errProfile, gorm.ErrRecordNotFound) {
		log.WithError(errProfile).Error("profile: load profile failed")
		respondError(c, apperr.Internal())
		return
	}

	body := gin.H{"user": user.Public()}
	if errProfile == nil {
		body["profile"] = profileBody(&profile)
	} else {
		body["profile"] = nil
	}
	c.JSON(http.StatusOK, body)
}

// updateProfileRequest defines the request body for profile updates. Only
// the allow-listed fields can be set.
type updateProfileRequest struct {
	Bio      *string `json:"bio"`
	Location *string `json:"location"`
}

// Update modifies the profile, creating the row on first use.
func (h *ProfileHandler) Update(c *gin.Context) {
	userID := getUserID(c)

	var body updateProfileRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respondError(c, apperr.New(apperr.KindValidation, "Invalid JSON body."))
		return
	}

	updates := map[string]any{}
	if body.Bio != nil {
		bio := sanitize.Clean(*body.Bio)
		if utf8.RuneCountInString(bio) > maxBioLen {
			respondError(c, apperr.New(apperr.KindValidation, "Bio cannot exceed 500 characters."))
			return
		}
		updates["bio"] = bio
	}
	if body.Location != nil {
		location := sanitize.Clean(*body.Location)
		if utf8.RuneCountInString(location) > maxLocationLen {
			respondError(c, apperr.New(apperr.KindValidation, "Location cannot exceed 120 characters."))
			return
		}
		updates["location"] = location
	}

	profile, errEnsure := h.ensureProfile(c, userID)
	if errEnsure != nil {
		respondError(c, errEnsure)
		return
	}

	if len(updates) > 0 {
		if errUpdate := h.db.WithContext(c.Request.Context()).Model(profile).Updates(updates).Error; errUpdate != nil {
			log.WithError(errUpdate).Error("profile: update failed")
			respondError(c, apperr.Internal())
			return
		}
		if errReload := h.db.WithContext(c.Request.Context()).First(profile, profile.ID).Error; errReload != nil {
			log.WithError(errReload).Error("profile: reload failed")
			respondError(c, apperr.Internal())
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"profile": profileBody(profile)})
}

// UploadImage stores a profile image plus thumbnail and records both URLs.
func (h *ProfileHandler) UploadImage(c *gin.Context) {
	userID := getUserID(c)

	file, errFile := c.FormFile("image")
	if errFile != nil {
		respondError(c, apperr.New(apperr.KindValidation, "No image file provided."))
		return
	}
	if file.Size > h.maxUpload {
		respondError(c, apperr.New(apperr.KindPayloadTooLarge, "Image exceeds the size limit."))
		return
	}

	src, errOpen := file.Open()
	if errOpen != nil {
		log.WithError(errOpen).Error("profile image: open upload failed")
		respondError(c, apperr.Internal())
		return
	}
	defer src.Close()
	data, errRead := io.ReadAll(io.LimitReader(src, h.maxUpload+1))
	if errRead != nil {
		log.WithError(errRead).Error("profile image: read upload failed")
		respondError(c, apperr.Internal())
		return
	}
	if int64(len(data)) > h.maxUpload {
		respondError(c, apperr.New(apperr.KindPayloadTooLarge, "Image exceeds the size limit."))
		return
	}

	name, thumbName, errSave := h.images.SaveProfileImage(file.Filename, data)
	if errSave != nil {
		if errors.Is(errSave, storage.ErrUnsupportedType) {
			respondError(c, apperr.New(apperr.KindValidation, "Image type not allowed. Use png, jpg, or jpeg."))
			return
		}
		log.WithError(errSave).Error("profile image: save failed")
		respondError(c, apperr.Internal())
		return
	}

	imageURL := "/api/profile/image/" + name
	thumbnailURL := "/api/profile/image/" + thumbName

	profile, errEnsure := h.ensureProfile(c, userID)
	if errEnsure != nil {
		respondError(c, errEnsure)
		return
	}
	if errUpdate := h.db.WithContext(c.Request.Context()).Model(profile).
		Updates(map[string]any{"image_url": imageURL, "thumbnail_url": thumbnailURL}).Error; errUpdate != nil {
		log.WithError(errUpdate).Error("profile image: record urls failed")
		respondError(c, apperr.Internal())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"image_url":     imageURL,
		"thumbnail_url": thumbnailURL,
	})
}

// ServeImage streams a stored profile image.
func (h *ProfileHandler) ServeImage(c *gin.Context) {
	name := c.Param("name")
	path, errPath := h.images.Path(name)
	if errPath != nil {
		switch {
		case errors.Is(errPath, storage.ErrPathEscape):
			respondError(c, apperr.New(apperr.KindAuthorization, "Invalid image path."))
		case errors.Is(errPath, storage.ErrNotFound):
			respondError(c, apperr.New(apperr.KindNotFound, "Image not found."))
		default:
			log.WithError(errPath).Error("profile image: resolve failed")
			respondError(c, apperr.Internal())
		}
		return
	}
	c.File(path)
}

// addSkillRequest defines the request body for adding a skill.
type addSkillRequest struct {
	Name string `json:"name"`
}

// AddSkill attaches a skill to the current user's profile.
func (h *ProfileHandler) AddSkill(c *gin.Context) {
	userID := getUserID(c)

	var body addSkillRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respondError(c, apperr.New(apperr.KindValidation, "Invalid JSON body."))
		return
	}
	name := sanitize.Clean(body.Name)
	if name == "" {
		respondError(c, apperr.New(apperr.KindValidation, "Skill name is required."))
		return
	}

	profile, errEnsure := h.ensureProfile(c, userID)
	if errEnsure != nil {
		respondError(c, errEnsure)
		return
	}

	skill := models.Skill{ProfileID: profile.ID, Name: name}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&skill).Error; errCreate != nil {
		log.WithError(errCreate).Error("profile: create skill failed")
		respondError(c, apperr.Internal())
		return
	}
	c.JSON(http.StatusCreated, gin.H{"skill": gin.H{"id": skill.ID, "name": skill.Name}})
}

// ListSkills returns the profile's skills.
func (h *ProfileHandler) ListSkills(c *gin.Context) {
	userID := getUserID(c)

	var profile models.Profile
	errFind := h.db.WithContext(c.Request.Context()).Where("user_id = ?", userID).First(&profile).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusOK, gin.H{"skills": []gin.H{}})
			return
		}
		log.WithError(errFind).Error("profile: load profile failed")
		respondError(c, apperr.Internal())
		return
	}

	var skills []models.Skill
	if errList := h.db.WithContext(c.Request.Context()).
		Where("profile_id = ?", profile.ID).Order("id ASC").Find(&skills).Error; errList != nil {
		log.WithError(errList).Error("profile: list skills failed")
		respondError(c, apperr.Internal())
		return
	}
	out := make([]gin.H, 0, len(skills))
	for _, skill := range skills {
		out = append(out, gin.H{"id": skill.ID, "name": skill.Name})
	}
	c.JSON(http.StatusOK, gin.H{"skills": out})
}

// DeleteSkill removes a skill owned by the current user's profile.
func (h *ProfileHandler) DeleteSkill(c *gin.Context) {
	userID := getUserID(c)

	skillID, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		respondError(c, apperr.New(apperr.KindValidation, "Invalid skill id."))
		return
	}

	var profile models.Profile
	if errFind := h.db.WithContext(c.Request.Context()).Where("user_id = ?", userID).First(&profile).Error; errFind != nil {
		respondError(c, apperr.New(apperr.KindNotFound, "Skill not found."))
		return
	}

	res := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND profile_id = ?", skillID, profile.ID).
		Delete(&models.Skill{})
	if res.Error != nil {
		log.WithError(res.Error).Error("profile: delete skill failed")
		respondError(c, apperr.Internal())
		return
	}
	if res.RowsAffected == 0 {
		respondError(c, apperr.New(apperr.KindNotFound, "Skill not found."))
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ensureProfile loads the user's profile, creating the row on first use.
func (h *ProfileHandler) ensureProfile(c *gin.Context, userID uint64) (*models.Profile, *apperr.Error) {
	ctx := c.Request.Context()

	var count int64
	if errCount := h.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; errCount != nil {
		log.WithError(errCount).Error("profile: user lookup failed")
		return nil, apperr.Internal()
	}
	if count == 0 {
		return nil, apperr.New(apperr.KindNotFound, "User not found.")
	}

	var profile models.Profile
	errFind := h.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error
	if errFind == nil {
		return &profile, nil
	}
	if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		log.WithError(errFind).Error("profile: load profile failed")
		return nil, apperr.Internal()
	}

	profile = models.Profile{UserID: userID}
	if errCreate := h.db.WithContext(ctx).Create(&profile).Error; errCreate != nil {
		log.WithError(errCreate).Error("profile: create profile failed")
		return nil, apperr.Internal()
	}
	return &profile, nil
}

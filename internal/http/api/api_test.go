package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/vireo-social/vireo/internal/config"
	"github.com/vireo-social/vireo/internal/db"
	"github.com/vireo-social/vireo/internal/ratelimit"
	"github.com/vireo-social/vireo/internal/storage"
)

const testPassword = "Str0ng!pass"

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, errOpen := db.Open("file:" + filepath.Join(t.TempDir(), "api.db"))
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	images, errStore := storage.NewImageStore(t.TempDir())
	if errStore != nil {
		t.Fatalf("image store: %v", errStore)
	}
	media, errMedia := storage.NewMediaStore(t.TempDir())
	if errMedia != nil {
		t.Fatalf("media store: %v", errMedia)
	}

	cfg := config.AppConfig{
		JWT:       config.JWTConfig{Secret: "test-secret", Expiry: time.Hour},
		RateLimit: config.RateLimitConfig{Disabled: true},
	}
	limiter := ratelimit.NewManager(cfg.RateLimit, nil, nil)

	r := gin.New()
	RegisterRoutes(r, conn, cfg, limiter, images, media)
	return r, conn
}

func doJSON(t *testing.T, r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, errMarshal := json.Marshal(body)
		if errMarshal != nil {
			t.Fatalf("marshal body: %v", errMarshal)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if errDecode := json.Unmarshal(w.Body.Bytes(), &out); errDecode != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), errDecode)
	}
	return out
}

// signupAndLogin registers a user and returns a bearer token for it.
func signupAndLogin(t *testing.T, r http.Handler, username string) string {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/api/signup", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": testPassword,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("signup %s: status = %d, body = %s", username, w.Code, w.Body.String())
	}
	w = doJSON(t, r, http.MethodPost, "/api/login", "", map[string]string{
		"username": username,
		"password": testPassword,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login %s: status = %d, body = %s", username, w.Code, w.Body.String())
	}
	token, _ := decodeBody(t, w)["token"].(string)
	if token == "" {
		t.Fatalf("login %s: no token in response", username)
	}
	return token
}

func TestSignupLoginFlow(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/signup", "", map[string]string{
		"username": "alice",
		"email":    "Alice@Example.com",
		"password": testPassword,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("signup status = %d, body = %s", w.Code, w.Body.String())
	}
	if got := decodeBody(t, w)["message"]; got != "User created successfully." {
		t.Fatalf("signup message = %v", got)
	}

	w = doJSON(t, r, http.MethodPost, "/api/signup", "", map[string]string{
		"username": "alice",
		"email":    "other@example.com",
		"password": testPassword,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("duplicate signup status = %d", w.Code)
	}
	if got := decodeBody(t, w)["error"]; got != "Username already exists." {
		t.Fatalf("duplicate signup error = %v", got)
	}

	w = doJSON(t, r, http.MethodPost, "/api/login", "", map[string]string{
		"username": "alice",
		"password": "WrongPass1!",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad password status = %d", w.Code)
	}
	if got := decodeBody(t, w)["error"]; got != "Invalid credentials." {
		t.Fatalf("bad password error = %v", got)
	}

	// Email was stored lowercased, so login by email works case-folded.
	w = doJSON(t, r, http.MethodPost, "/api/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": testPassword,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, body = %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["token"] == "" || body["token"] == nil {
		t.Fatal("login returned no token")
	}
	user, _ := body["user"].(map[string]any)
	if user["username"] != "alice" {
		t.Fatalf("login user = %v", body["user"])
	}
}

func TestAuthGuard(t *testing.T) {
	r, _ := newTestRouter(t)

	cases := []struct {
		name    string
		header  string
		wantErr string
	}{
		{"missing header", "", "Missing authorization header."},
		{"wrong scheme", "Token abc", "Invalid authorization format."},
		{"empty token", "Bearer   ", "Empty token."},
		{"garbage token", "Bearer not-a-jwt", "Invalid or expired token."},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s: status = %d", tc.name, w.Code)
		}
		if got := decodeBody(t, w)["error"]; got != tc.wantErr {
			t.Fatalf("%s: error = %v, want %q", tc.name, got, tc.wantErr)
		}
	}

	token := signupAndLogin(t, r, "guarded")
	w := doJSON(t, r, http.MethodGet, "/api/profile", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("authed profile status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestProfileUpdate(t *testing.T) {
	r, _ := newTestRouter(t)
	token := signupAndLogin(t, r, "bob")

	w := doJSON(t, r, http.MethodGet, "/api/profile", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	if body := decodeBody(t, w); body["profile"] != nil {
		t.Fatalf("fresh profile = %v, want null", body["profile"])
	}

	w = doJSON(t, r, http.MethodPut, "/api/profile", token, map[string]string{
		"bio":      "Gopher<script> in Berlin",
		"location": "Berlin",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", w.Code, w.Body.String())
	}
	profile, _ := decodeBody(t, w)["profile"].(map[string]any)
	if profile["bio"] != "Gopherscript in Berlin" {
		t.Fatalf("bio = %v, want markup stripped", profile["bio"])
	}
	if profile["location"] != "Berlin" {
		t.Fatalf("location = %v", profile["location"])
	}

	w = doJSON(t, r, http.MethodPut, "/api/profile", token, map[string]string{
		"bio": strings.Repeat("a", 501),
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("oversized bio status = %d", w.Code)
	}
	if got := decodeBody(t, w)["error"]; got != "Bio cannot exceed 500 characters." {
		t.Fatalf("oversized bio error = %v", got)
	}

	// 500 multibyte runes exceed 500 bytes but stay within the cap.
	w = doJSON(t, r, http.MethodPut, "/api/profile", token, map[string]string{
		"bio": strings.Repeat("é", 500),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("multibyte bio status = %d, body = %s", w.Code, w.Body.String())
	}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), A: 255})
		}
	}
	var buf bytes.Buffer
	if errEncode := png.Encode(&buf, img); errEncode != nil {
		t.Fatalf("encode png: %v", errEncode)
	}
	return buf.Bytes()
}

func uploadFile(t *testing.T, r http.Handler, token, path, field, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, errPart := mw.CreateFormFile(field, filename)
	if errPart != nil {
		t.Fatalf("create form file: %v", errPart)
	}
	if _, errWrite := part.Write(data); errWrite != nil {
		t.Fatalf("write form file: %v", errWrite)
	}
	if errClose := mw.Close(); errClose != nil {
		t.Fatalf("close multipart: %v", errClose)
	}

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func uploadImage(t *testing.T, r http.Handler, token, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	return uploadFile(t, r, token, "/api/profile/image", "image", filename, data)
}

func TestProfileImageUpload(t *testing.T) {
	r, _ := newTestRouter(t)
	token := signupAndLogin(t, r, "carol")

	w := uploadImage(t, r, token, "avatar.png", pngBytes(t, 300, 200))
	if w.Code != http.StatusOK {
		t.Fatalf("upload status = %d, body = %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	imageURL, _ := body["image_url"].(string)
	thumbURL, _ := body["thumbnail_url"].(string)
	if !strings.HasPrefix(imageURL, "/api/profile/image/") || !strings.HasPrefix(thumbURL, "/api/profile/image/") {
		t.Fatalf("urls = %q, %q", imageURL, thumbURL)
	}

	req := httptest.NewRequest(http.MethodGet, thumbURL, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	serveW := httptest.NewRecorder()
	r.ServeHTTP(serveW, req)
	if serveW.Code != http.StatusOK {
		t.Fatalf("serve thumbnail status = %d", serveW.Code)
	}
	thumb, errDecode := png.Decode(bytes.NewReader(serveW.Body.Bytes()))
	if errDecode != nil {
		t.Fatalf("decode served thumbnail: %v", errDecode)
	}
	if thumb.Bounds().Dx() > 128 || thumb.Bounds().Dy() > 128 {
		t.Fatalf("thumbnail bounds = %v, want within 128px", thumb.Bounds())
	}

	w = uploadImage(t, r, token, "clip.gif", pngBytes(t, 10, 10))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("gif upload status = %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/api/profile/image/..", token, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("path escape status = %d", w.Code)
	}
}

func TestSkills(t *testing.T) {
	r, _ := newTestRouter(t)
	token := signupAndLogin(t, r, "dave")
	otherToken := signupAndLogin(t, r, "eve")

	w := doJSON(t, r, http.MethodPost, "/api/profile/skills", token, map[string]string{"name": "Go"})
	if w.Code != http.StatusCreated {
		t.Fatalf("add skill status = %d, body = %s", w.Code, w.Body.String())
	}
	skill, _ := decodeBody(t, w)["skill"].(map[string]any)
	skillID := int(skill["id"].(float64))

	w = doJSON(t, r, http.MethodGet, "/api/profile/skills", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list skills status = %d", w.Code)
	}
	skills, _ := decodeBody(t, w)["skills"].([]any)
	if len(skills) != 1 {
		t.Fatalf("skills = %v, want 1 entry", skills)
	}

	w = doJSON(t, r, http.MethodDelete, fmt.Sprintf("/api/profile/skills/%d", skillID), otherToken, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("foreign delete status = %d", w.Code)
	}

	w = doJSON(t, r, http.MethodDelete, fmt.Sprintf("/api/profile/skills/%d", skillID), token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete skill status = %d", w.Code)
	}
	w = doJSON(t, r, http.MethodDelete, fmt.Sprintf("/api/profile/skills/%d", skillID), token, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("repeat delete status = %d", w.Code)
	}
}

func TestPostMediaUpload(t *testing.T) {
	r, _ := newTestRouter(t)
	token := signupAndLogin(t, r, "mallory")

	w := uploadFile(t, r, token, "/api/posts/upload-media", "file", "beach.png", pngBytes(t, 20, 20))
	if w.Code != http.StatusOK {
		t.Fatalf("upload status = %d, body = %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["media_type"] != "image" {
		t.Fatalf("media_type = %v, want image", body["media_type"])
	}
	mediaURL, _ := body["url"].(string)
	if !strings.HasPrefix(mediaURL, "/api/posts/uploads/") {
		t.Fatalf("url = %q", mediaURL)
	}

	req := httptest.NewRequest(http.MethodGet, mediaURL, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	serveW := httptest.NewRecorder()
	r.ServeHTTP(serveW, req)
	if serveW.Code != http.StatusOK {
		t.Fatalf("serve media status = %d", serveW.Code)
	}

	w = uploadFile(t, r, token, "/api/posts/upload-media", "file", "clip.mp4", []byte("fake video bytes"))
	if w.Code != http.StatusOK {
		t.Fatalf("video upload status = %d, body = %s", w.Code, w.Body.String())
	}
	if got := decodeBody(t, w)["media_type"]; got != "video" {
		t.Fatalf("video media_type = %v", got)
	}

	w = uploadFile(t, r, token, "/api/posts/upload-media", "file", "tool.exe", []byte("nope"))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("exe upload status = %d", w.Code)
	}
	if got := decodeBody(t, w)["error"]; got != "File type not allowed." {
		t.Fatalf("exe upload error = %v", got)
	}

	w = uploadFile(t, r, token, "/api/posts/upload-media", "file", "big.png", bytes.Repeat([]byte{0}, 10<<20+1))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversized upload status = %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/api/posts/uploads/..", token, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("media path escape status = %d", w.Code)
	}
}

func createPost(t *testing.T, r http.Handler, token, content string) int {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/api/posts/", token, map[string]string{"content": content})
	if w.Code != http.StatusCreated {
		t.Fatalf("create post: status = %d, body = %s", w.Code, w.Body.String())
	}
	post, _ := decodeBody(t, w)["post"].(map[string]any)
	return int(post["id"].(float64))
}

func TestPostLifecycle(t *testing.T) {
	r, _ := newTestRouter(t)
	token := signupAndLogin(t, r, "frank")
	otherToken := signupAndLogin(t, r, "grace")

	w := doJSON(t, r, http.MethodPost, "/api/posts/", token, map[string]string{
		"content":   "First post",
		"media_url": "https://cdn.example.com/pic.JPG",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	post, _ := decodeBody(t, w)["post"].(map[string]any)
	if post["media_type"] != "image" {
		t.Fatalf("media_type = %v, want image", post["media_type"])
	}
	user, _ := post["user"].(map[string]any)
	if user["username"] != "frank" {
		t.Fatalf("post user = %v", post["user"])
	}
	postID := int(post["id"].(float64))

	w = doJSON(t, r, http.MethodPost, "/api/posts/", token, map[string]string{"content": "  "})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty content status = %d", w.Code)
	}
	w = doJSON(t, r, http.MethodPost, "/api/posts/", token, map[string]string{"content": strings.Repeat("x", 5001)})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("oversized content status = %d", w.Code)
	}
	w = doJSON(t, r, http.MethodPost, "/api/posts/", token, map[string]string{"content": strings.Repeat("ü", 5000)})
	if w.Code != http.StatusCreated {
		t.Fatalf("multibyte content status = %d, body = %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/posts/%d", postID), otherToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}

	w = doJSON(t, r, http.MethodDelete, fmt.Sprintf("/api/posts/%d", postID), otherToken, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("foreign delete status = %d", w.Code)
	}
	w = doJSON(t, r, http.MethodDelete, fmt.Sprintf("/api/posts/%d", postID), token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("owner delete status = %d, body = %s", w.Code, w.Body.String())
	}
	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/posts/%d", postID), token, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("deleted get status = %d", w.Code)
	}
}

func TestPostFeedPagination(t *testing.T) {
	r, _ := newTestRouter(t)
	token := signupAndLogin(t, r, "henry")
	otherToken := signupAndLogin(t, r, "iris")

	for i := 0; i < 3; i++ {
		createPost(t, r, token, fmt.Sprintf("post %d", i))
	}
	createPost(t, r, otherToken, "from iris")

	w := doJSON(t, r, http.MethodGet, "/api/posts/?page=1&per_page=2", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	body := decodeBody(t, w)
	posts, _ := body["posts"].([]any)
	if len(posts) != 2 {
		t.Fatalf("page 1 size = %d, want 2", len(posts))
	}
	pagination, _ := body["pagination"].(map[string]any)
	if pagination["total"].(float64) != 4 || pagination["pages"].(float64) != 2 {
		t.Fatalf("pagination = %v", pagination)
	}
	if pagination["has_next"] != true || pagination["has_prev"] != false {
		t.Fatalf("pagination flags = %v", pagination)
	}

	w = doJSON(t, r, http.MethodGet, "/api/posts/?user_id=2", token, nil)
	body = decodeBody(t, w)
	posts, _ = body["posts"].([]any)
	if len(posts) != 1 {
		t.Fatalf("filtered feed size = %d, want 1", len(posts))
	}
	only, _ := posts[0].(map[string]any)
	if only["content"] != "from iris" {
		t.Fatalf("filtered post = %v", only)
	}
}

func TestPostLikeToggle(t *testing.T) {
	r, _ := newTestRouter(t)
	token := signupAndLogin(t, r, "judy")
	postID := createPost(t, r, token, "like me")

	w := doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/posts/%d/like", postID), token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("like status = %d, body = %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["liked"] != true || body["likes_count"].(float64) != 1 {
		t.Fatalf("like response = %v", body)
	}

	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/posts/%d/like", postID), token, nil)
	body = decodeBody(t, w)
	if body["liked"] != false || body["likes_count"].(float64) != 0 {
		t.Fatalf("unlike response = %v", body)
	}

	w = doJSON(t, r, http.MethodPost, "/api/posts/9999/like", token, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing post like status = %d", w.Code)
	}
}

func TestPostComments(t *testing.T) {
	r, _ := newTestRouter(t)
	token := signupAndLogin(t, r, "kate")
	postID := createPost(t, r, token, "discuss")

	w := doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/posts/%d/comments", postID), token, map[string]any{
		"content": "top level",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("comment status = %d, body = %s", w.Code, w.Body.String())
	}
	comment, _ := decodeBody(t, w)["comment"].(map[string]any)
	parentID := int(comment["id"].(float64))

	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/posts/%d/comments", postID), token, map[string]any{
		"content":   "a reply",
		"parent_id": parentID,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("reply status = %d, body = %s", w.Code, w.Body.String())
	}
	reply, _ := decodeBody(t, w)["comment"].(map[string]any)
	replyID := int(reply["id"].(float64))

	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/posts/%d/comments", postID), token, map[string]any{
		"content":   "reply to reply",
		"parent_id": replyID,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("nested reply status = %d", w.Code)
	}
	if got := decodeBody(t, w)["error"]; got != "Cannot reply to a reply." {
		t.Fatalf("nested reply error = %v", got)
	}

	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/posts/%d/comments", postID), token, map[string]any{
		"content": strings.Repeat("c", 1001),
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("oversized comment status = %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/posts/%d/comments", postID), token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list comments status = %d", w.Code)
	}
	body := decodeBody(t, w)
	comments, _ := body["comments"].([]any)
	if len(comments) != 1 {
		t.Fatalf("top-level comments = %d, want 1", len(comments))
	}
	top, _ := comments[0].(map[string]any)
	if top["replies_count"].(float64) != 1 {
		t.Fatalf("replies_count = %v", top["replies_count"])
	}

	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/posts/%d", postID), token, nil)
	post, _ := decodeBody(t, w)["post"].(map[string]any)
	if post["comments_count"].(float64) != 2 {
		t.Fatalf("comments_count = %v, want 2", post["comments_count"])
	}
}

// Package fakeapi is an in-process stand-in for the Caption Generator
// service. It serves canned data over the real endpoint layout and lets
// tests count calls, inject failures and stall responses.
package fakeapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// DefaultUser and DefaultPassword are accepted by /token.
const (
	DefaultUser     = "demo"
	DefaultPassword = "demo-password"
)

// maxUpload mirrors the service's upload limit.
const maxUpload = 10 << 20

type fault struct {
	status int
	body   string
	drop   bool
	hang   bool
	times  int
}

// Server is the fake caption service. The zero value is not usable; call New.
type Server struct {
	router *chi.Mux

	mu        sync.Mutex
	calls     map[string]int
	faults    map[string]*fault
	delay     time.Duration
	aborted   int
	users     map[string]user
	tokens    map[string]string
	musicians []musician
	venues    []venue
	templates []template
	captions  []captionRecord
	lastAuth  string
}

type user struct {
	ID        int       `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	FullName  string    `json:"full_name,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	password  string
}

type musician struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Instrument string `json:"instrument"`
	Style      string `json:"style"`
	Bio        string `json:"bio,omitempty"`
	ImageURL   string `json:"image_url,omitempty"`
}

type venue struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	City        string `json:"city"`
	Type        string `json:"type"`
	Address     string `json:"address,omitempty"`
	Description string `json:"description,omitempty"`
	Website     string `json:"website,omitempty"`
}

type template struct {
	ID                int      `json:"id"`
	Name              string   `json:"name"`
	Category          string   `json:"category,omitempty"`
	TemplateText      string   `json:"template_text"`
	RequiredVariables []string `json:"required_variables,omitempty"`
	DefaultHashtags   []string `json:"default_hashtags,omitempty"`
	UsageCount        int      `json:"usage_count"`
	AverageEngagement float64  `json:"average_engagement"`
}

type captionRecord struct {
	ID            int       `json:"id"`
	UserID        int       `json:"user_id"`
	CaptionText   string    `json:"caption_text"`
	MediaFilename string    `json:"media_filename,omitempty"`
	Style         string    `json:"style,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// New returns a server seeded with a demo user, musicians, venues and templates.
func New() *Server {
	s := &Server{
		calls:  make(map[string]int),
		faults: make(map[string]*fault),
		users: map[string]user{
			DefaultUser: {ID: 1, Email: "demo@example.com", Username: DefaultUser, FullName: "Demo User", IsActive: true, CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), password: DefaultPassword},
		},
		tokens: make(map[string]string),
		musicians: []musician{
			{ID: 1, Name: "Ibrahim Maalouf", Instrument: "trumpet", Style: "jazz"},
			{ID: 2, Name: "Avishai Cohen", Instrument: "double bass", Style: "jazz"},
		},
		venues: []venue{
			{ID: 1, Name: "New Morning", City: "Paris", Type: "club", Address: "7 rue des Petites Écuries"},
			{ID: 2, Name: "Duc des Lombards", City: "Paris", Type: "club"},
		},
		templates: []template{
			{ID: 1, Name: "Live tonight", Category: "concert", TemplateText: "{musician} live at {venue} tonight", RequiredVariables: []string{"musician", "venue"}, DefaultHashtags: []string{"#live", "#jazz"}},
			{ID: 2, Name: "Studio day", Category: "studio", TemplateText: "In the studio with {musician}", RequiredVariables: []string{"musician"}},
		},
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(s.instrument)

	r.Get("/", s.handleStatus)
	r.Post("/register", s.handleRegister)
	r.Post("/token", s.handleToken)
	r.Post("/analyze-media", s.handleAnalyzeMedia)
	r.Post("/generate-caption", s.handleGenerateCaption)
	r.Post("/analyze-and-generate", s.handleAnalyzeAndGenerate)
	r.Get("/musicians", s.handleListMusicians)
	r.Get("/venues", s.handleListVenues)
	r.Get("/templates", s.handleListTemplates)
	r.Post("/templates/suggest", s.handleSuggestTemplates)
	r.Get("/templates/{id}", s.handleGetTemplate)
	r.Post("/templates/{id}/render", s.handleRenderTemplate)
	r.Get("/templates/{id}/performance", s.handleTemplatePerformance)
	r.Route("/ai", s.mountAI)

	r.Group(func(pr chi.Router) {
		pr.Use(s.requireAuth)
		pr.Get("/me", s.handleMe)
		pr.Get("/my-captions", s.handleMyCaptions)
		pr.Get("/analytics", s.handleAnalytics)
		pr.Post("/musicians", s.handleCreateMusician)
		pr.Post("/venues", s.handleCreateVenue)
		pr.Post("/templates", s.handleCreateTemplate)
	})

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func callKey(method, path string) string {
	return strings.ToUpper(method) + " " + path
}

// Calls returns how many requests reached method and path, faults included.
func (s *Server) Calls(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[callKey(method, path)]
}

// TotalCalls returns the number of requests served.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

// Aborted returns how many stalled requests were cancelled by the client.
func (s *Server) Aborted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborted
}

// LastAuthorization returns the Authorization header of the last request.
func (s *Server) LastAuthorization() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAuth
}

// SetDelay makes every response wait d first.
func (s *Server) SetDelay(d time.Duration) {
	s.mu.Lock()
	s.delay = d
	s.mu.Unlock()
}

// Fail makes the next times requests to method and path answer status with
// body. A negative times fails forever.
func (s *Server) Fail(method, path string, status int, body string, times int) {
	s.setFault(method, path, &fault{status: status, body: body, times: times})
}

// Drop makes the next times requests to method and path close the
// connection without answering.
func (s *Server) Drop(method, path string, times int) {
	s.setFault(method, path, &fault{drop: true, times: times})
}

// Hang makes requests to method and path block until the client gives up.
func (s *Server) Hang(method, path string) {
	s.setFault(method, path, &fault{hang: true, times: -1})
}

// Reset clears faults, delay and counters.
func (s *Server) Reset() {
	s.mu.Lock()
	s.faults = make(map[string]*fault)
	s.calls = make(map[string]int)
	s.delay = 0
	s.aborted = 0
	s.mu.Unlock()
}

func (s *Server) setFault(method, path string, f *fault) {
	s.mu.Lock()
	s.faults[callKey(method, path)] = f
	s.mu.Unlock()
}

// takeFault returns the active fault for key and consumes one use.
func (s *Server) takeFault(key string) *fault {
	f, ok := s.faults[key]
	if !ok {
		return nil
	}
	if f.times > 0 {
		f.times--
		if f.times == 0 {
			delete(s.faults, key)
		}
	}
	cp := *f
	return &cp
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := callKey(r.Method, r.URL.Path)

		s.mu.Lock()
		s.calls[key]++
		s.lastAuth = r.Header.Get("Authorization")
		f := s.takeFault(key)
		delay := s.delay
		s.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				s.recordAbort()
				return
			}
		}

		switch {
		case f == nil:
			next.ServeHTTP(w, r)
		case f.hang:
			<-r.Context().Done()
			s.recordAbort()
		case f.drop:
			dropConnection(w)
		default:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(f.status)
			_, _ = w.Write([]byte(f.body))
		}
	})
}

func (s *Server) recordAbort() {
	s.mu.Lock()
	s.aborted++
	s.mu.Unlock()
}

func dropConnection(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		panic(http.ErrAbortHandler)
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		panic(http.ErrAbortHandler)
	}
	_ = conn.Close()
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := s.tokenUser(r); !ok {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// tokenUser resolves the bearer token of r.
func (s *Server) tokenUser(r *http.Request) (user, bool) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" {
		return user{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.tokens[token]
	if !ok {
		return user{}, false
	}
	return s.users[name], true
}

func (s *Server) currentUser(r *http.Request) user {
	u, _ := s.tokenUser(r)
	return u
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"detail": []map[string]string{{"msg": "invalid JSON body: " + err.Error()}},
		})
		return false
	}
	return true
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Caption Generator API",
		"status":  "running",
		"version": "2.0.0",
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Username string `json:"username"`
		FullName string `json:"full_name"`
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &in) {
		return
	}
	if in.Username == "" || in.Password == "" || in.Email == "" {
		writeDetail(w, http.StatusBadRequest, "email, username and password are required")
		return
	}

	s.mu.Lock()
	for _, u := range s.users {
		if u.Username == in.Username || u.Email == in.Email {
			s.mu.Unlock()
			writeDetail(w, http.StatusBadRequest, "Email or username already registered")
			return
		}
	}
	u := user{
		ID:        len(s.users) + 1,
		Email:     in.Email,
		Username:  in.Username,
		FullName:  in.FullName,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
		password:  in.Password,
	}
	s.users[u.Username] = u
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid form")
		return
	}
	username, password := r.PostForm.Get("username"), r.PostForm.Get("password")

	s.mu.Lock()
	u, ok := s.users[username]
	if !ok || u.password != password {
		s.mu.Unlock()
		writeDetail(w, http.StatusUnauthorized, "Incorrect username or password")
		return
	}
	token := uuid.NewString()
	s.tokens[token] = username
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"access_token": token, "token_type": "bearer"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.currentUser(r))
}

type upload struct {
	filename    string
	contentType string
	size        int
}

func readUpload(w http.ResponseWriter, r *http.Request) (upload, bool) {
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		writeDetail(w, http.StatusBadRequest, "expected multipart form with a file")
		return upload{}, false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "file is required")
		return upload{}, false
	}
	defer file.Close()

	ct := header.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "image/") && !strings.HasPrefix(ct, "video/") {
		writeDetail(w, http.StatusBadRequest, "File must be an image or video")
		return upload{}, false
	}
	return upload{filename: header.Filename, contentType: ct, size: int(header.Size)}, true
}

func analysisFor(u upload) map[string]interface{} {
	return map[string]interface{}{
		"detected_objects": []string{"stage", "musician", "instrument"},
		"suggested_tags":   []string{"jazz", "live", "concert"},
		"confidence":       0.92,
		"scene_type":       "concert",
		"mood":             "energetic",
	}
}

func captionFor(musicians []string, venue, style string) (string, []string) {
	caption := "Une soirée " + style
	if len(musicians) > 0 {
		caption += " avec " + strings.Join(musicians, ", ")
	}
	if venue != "" {
		caption += " au " + venue
	}
	return caption + " 🎷", []string{"#" + style, "#live", "#music"}
}

func (s *Server) handleAnalyzeMedia(w http.ResponseWriter, r *http.Request) {
	u, ok := readUpload(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"filename":     u.filename,
		"content_type": u.contentType,
		"analysis":     analysisFor(u),
	})
}

func (s *Server) handleGenerateCaption(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Musicians []string `json:"musicians"`
		Venue     string   `json:"venue"`
		Style     string   `json:"style"`
		Language  string   `json:"language"`
	}
	if !decodeBody(w, r, &in) {
		return
	}
	if in.Style == "" {
		in.Style = "jazz"
	}
	if in.Language == "" {
		in.Language = "fr"
	}
	caption, hashtags := captionFor(in.Musicians, in.Venue, in.Style)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"caption":  caption,
		"hashtags": hashtags,
		"language": in.Language,
	})
}

func (s *Server) handleAnalyzeAndGenerate(w http.ResponseWriter, r *http.Request) {
	u, ok := readUpload(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	var musicians []string
	if m := q.Get("musicians"); m != "" {
		musicians = strings.Split(m, ",")
	}
	style := q.Get("style")
	if style == "" {
		style = "jazz"
	}
	caption, hashtags := captionFor(musicians, q.Get("venue"), style)

	s.mu.Lock()
	s.captions = append(s.captions, captionRecord{
		ID:            len(s.captions) + 1,
		UserID:        1,
		CaptionText:   caption,
		MediaFilename: u.filename,
		Style:         style,
		CreatedAt:     time.Now().UTC(),
	})
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"filename": u.filename,
		"analysis": analysisFor(u),
		"caption":  caption,
		"hashtags": hashtags,
	})
}

func pageBounds(r *http.Request, n, defLimit int) (int, int) {
	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = defLimit
	}
	if skip < 0 || skip > n {
		skip = n
	}
	end := skip + limit
	if end > n {
		end = n
	}
	return skip, end
}

func (s *Server) handleListMusicians(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	from, to := pageBounds(r, len(s.musicians), 100)
	list := append([]musician(nil), s.musicians[from:to]...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{"musicians": list, "count": len(list)})
}

func (s *Server) handleCreateMusician(w http.ResponseWriter, r *http.Request) {
	var m musician
	if !decodeBody(w, r, &m) {
		return
	}
	if m.Name == "" || m.Instrument == "" || m.Style == "" {
		writeDetail(w, http.StatusBadRequest, "name, instrument and style are required")
		return
	}
	s.mu.Lock()
	m.ID = len(s.musicians) + 1
	s.musicians = append(s.musicians, m)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleListVenues(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	from, to := pageBounds(r, len(s.venues), 100)
	list := append([]venue(nil), s.venues[from:to]...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{"venues": list, "count": len(list)})
}

func (s *Server) handleCreateVenue(w http.ResponseWriter, r *http.Request) {
	var v venue
	if !decodeBody(w, r, &v) {
		return
	}
	if v.Name == "" || v.City == "" || v.Type == "" {
		writeDetail(w, http.StatusBadRequest, "name, city and type are required")
		return
	}
	s.mu.Lock()
	v.ID = len(s.venues) + 1
	s.venues = append(s.venues, v)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleMyCaptions(w http.ResponseWriter, r *http.Request) {
	u := s.currentUser(r)
	s.mu.Lock()
	var mine []captionRecord
	for i := len(s.captions) - 1; i >= 0; i-- {
		if s.captions[i].UserID == u.ID {
			mine = append(mine, s.captions[i])
		}
	}
	s.mu.Unlock()

	from, to := pageBounds(r, len(mine), 50)
	writeJSON(w, http.StatusOK, append([]captionRecord{}, mine[from:to]...))
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	total := len(s.captions)
	styles := make(map[string]int)
	for _, c := range s.captions {
		if c.Style != "" {
			styles[c.Style]++
		}
	}
	s.mu.Unlock()

	mostUsed := make([]map[string]interface{}, 0, len(styles))
	for style, n := range styles {
		mostUsed = append(mostUsed, map[string]interface{}{"style": style, "count": n})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_captions_generated": total,
		"total_media_analyzed":     total,
		"most_used_styles":         mostUsed,
		"top_venues":               []interface{}{},
		"avg_caption_length":       245,
		"total_hashtags_used":      total * 10,
	})
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	s.mu.Lock()
	list := make([]template, 0, len(s.templates))
	for _, t := range s.templates {
		if category == "" || t.Category == category {
			list = append(list, t)
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) templateByID(w http.ResponseWriter, r *http.Request) (template, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid template id")
		return template{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.templates {
		if t.ID == id {
			return t, true
		}
	}
	writeDetail(w, http.StatusNotFound, "Template not found")
	return template{}, false
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	if t, ok := s.templateByID(w, r); ok {
		writeJSON(w, http.StatusOK, t)
	}
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var t template
	if !decodeBody(w, r, &t) {
		return
	}
	if t.Name == "" || t.TemplateText == "" {
		writeDetail(w, http.StatusBadRequest, "name and template_text are required")
		return
	}
	s.mu.Lock()
	t.ID = len(s.templates) + 1
	s.templates = append(s.templates, t)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, t)
}

// handleRenderTemplate echoes the stored text; substitution happens in the
// real service only.
func (s *Server) handleRenderTemplate(w http.ResponseWriter, r *http.Request) {
	t, ok := s.templateByID(w, r)
	if !ok {
		return
	}
	var vars map[string]string
	if !decodeBody(w, r, &vars) {
		return
	}
	for _, name := range t.RequiredVariables {
		if vars[name] == "" {
			writeDetail(w, http.StatusBadRequest, "missing variable: "+name)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"caption": t.TemplateText, "hashtags": t.DefaultHashtags})
}

func (s *Server) handleSuggestTemplates(w http.ResponseWriter, r *http.Request) {
	var analysis struct {
		SceneType string `json:"scene_type"`
	}
	if !decodeBody(w, r, &analysis) {
		return
	}
	s.mu.Lock()
	list := make([]template, 0, len(s.templates))
	for _, t := range s.templates {
		if analysis.SceneType == "" || t.Category == analysis.SceneType {
			list = append(list, t)
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleTemplatePerformance(w http.ResponseWriter, r *http.Request) {
	if t, ok := s.templateByID(w, r); ok {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"template_id":        t.ID,
			"usage_count":        t.UsageCount,
			"average_engagement": t.AverageEngagement,
		})
	}
}

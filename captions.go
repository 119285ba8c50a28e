package captionkit

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Media is a file to analyse, held in memory so uploads can be retried.
type Media struct {
	Name        string
	ContentType string
	Data        []byte
}

// OpenMedia reads a media file from disk and validates it.
func OpenMedia(path string) (Media, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Media{}, err
	}
	name := filepath.Base(path)
	contentType := MediaType(name)
	if err := ValidateMedia(name, info.Size(), contentType); err != nil {
		return Media{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Media{}, err
	}
	return Media{Name: name, ContentType: contentType, Data: data}, nil
}

func (m Media) file() File {
	return File{Name: m.Name, ContentType: m.ContentType, Content: bytes.NewReader(m.Data)}
}

func (m Media) validate() error {
	return ValidateMedia(m.Name, int64(len(m.Data)), m.ContentType)
}

// CaptionService is a typed facade over the caption service endpoints.
type CaptionService struct {
	client *Client

	mu    sync.RWMutex
	token string
}

// NewCaptionService wraps client.
func NewCaptionService(client *Client) *CaptionService {
	return &CaptionService{client: client}
}

// Client returns the underlying client.
func (s *CaptionService) Client() *Client {
	return s.client
}

// SetToken sets the bearer token sent with every call. An empty token
// clears it.
func (s *CaptionService) SetToken(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// Token returns the current bearer token.
func (s *CaptionService) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *CaptionService) opts(extra ...RequestOption) []RequestOption {
	token := s.Token()
	if token == "" {
		return extra
	}
	return append([]RequestOption{WithHeader("Authorization", "Bearer "+token)}, extra...)
}

// Status reports whether the service is up.
func (s *CaptionService) Status(ctx context.Context) (*APIStatus, error) {
	var status APIStatus
	if err := s.client.GetJSON(ctx, EndpointStatus, nil, &status, s.opts(WithoutCache())...); err != nil {
		return nil, err
	}
	return &status, nil
}

// AnalyzeMedia uploads m for analysis.
func (s *CaptionService) AnalyzeMedia(ctx context.Context, m Media) (*MediaAnalysis, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}
	var result MediaAnalysis
	if err := s.client.UploadFileJSON(ctx, EndpointAnalyzeMedia, m.file(), nil, &result, s.opts()...); err != nil {
		return nil, err
	}
	return &result, nil
}

// GenerateCaption asks for a caption.
func (s *CaptionService) GenerateCaption(ctx context.Context, req CaptionRequest) (*Caption, error) {
	var caption Caption
	if err := s.client.PostJSON(ctx, EndpointGenerateCaption, req, &caption, s.opts()...); err != nil {
		return nil, err
	}
	return &caption, nil
}

// AnalyzeAndGenerate uploads m and returns its analysis and a caption in
// one call. Musicians, venue and style travel as query parameters.
func (s *CaptionService) AnalyzeAndGenerate(ctx context.Context, m Media, req CaptionRequest) (*AnalyzeAndGenerateResult, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}

	endpoint := withQuery(EndpointAnalyzeAndGenerate, Params{
		P("musicians", joinedOrNil(req.Musicians)),
		P("venue", stringOrNil(req.Venue)),
		P("style", stringOrNil(req.Style)),
	})

	var result AnalyzeAndGenerateResult
	if err := s.client.UploadFileJSON(ctx, endpoint, m.file(), nil, &result, s.opts()...); err != nil {
		return nil, err
	}
	return &result, nil
}

// BatchResult is the outcome for one file of a batch.
type BatchResult struct {
	Name   string
	Result *AnalyzeAndGenerateResult
	Err    error
}

// BatchOptions controls AnalyzeBatch.
type BatchOptions struct {
	// Concurrency bounds parallel uploads. Zero means 1.
	Concurrency int
	// Request is applied to every file.
	Request CaptionRequest
	// Progress, if set, is called after each file with the number done.
	Progress func(done, total int)
}

// AnalyzeBatch runs AnalyzeAndGenerate over media. One file failing does not
// stop the others; results are returned in input order. The returned error
// is non-nil only when ctx ends before every file was attempted.
func (s *CaptionService) AnalyzeBatch(ctx context.Context, media []Media, opts BatchOptions) ([]BatchResult, error) {
	results := make([]BatchResult, len(media))
	limit := opts.Concurrency
	if limit <= 0 {
		limit = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	var (
		mu   sync.Mutex
		done int
	)
	for i, m := range media {
		results[i].Name = m.Name
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i].Err = err
				return err
			}
			results[i].Result, results[i].Err = s.AnalyzeAndGenerate(gctx, m, opts.Request)

			mu.Lock()
			done++
			n := done
			mu.Unlock()
			if opts.Progress != nil {
				opts.Progress(n, len(media))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, fmt.Errorf("captionkit: batch interrupted: %w", err)
	}
	return results, nil
}

// Musicians lists musicians. The list is cached for CacheLong.
func (s *CaptionService) Musicians(ctx context.Context, opts ...RequestOption) (*MusicianList, error) {
	var list MusicianList
	o := s.opts(append([]RequestOption{WithCacheMaxAge(CacheLong)}, opts...)...)
	if err := s.client.GetJSON(ctx, EndpointMusicians, nil, &list, o...); err != nil {
		return nil, err
	}
	return &list, nil
}

// CreateMusician adds a musician and drops cached musician lists.
func (s *CaptionService) CreateMusician(ctx context.Context, m Musician) (*Musician, error) {
	var created Musician
	if err := s.client.PostJSON(ctx, EndpointMusicians, m, &created, s.opts()...); err != nil {
		return nil, err
	}
	if err := s.client.ClearCache(ctx, EndpointMusicians); err != nil {
		return &created, err
	}
	return &created, nil
}

// Venues lists venues. The list is cached for CacheLong.
func (s *CaptionService) Venues(ctx context.Context, opts ...RequestOption) (*VenueList, error) {
	var list VenueList
	o := s.opts(append([]RequestOption{WithCacheMaxAge(CacheLong)}, opts...)...)
	if err := s.client.GetJSON(ctx, EndpointVenues, nil, &list, o...); err != nil {
		return nil, err
	}
	return &list, nil
}

// CreateVenue adds a venue and drops cached venue lists.
func (s *CaptionService) CreateVenue(ctx context.Context, v Venue) (*Venue, error) {
	var created Venue
	if err := s.client.PostJSON(ctx, EndpointVenues, v, &created, s.opts()...); err != nil {
		return nil, err
	}
	if err := s.client.ClearCache(ctx, EndpointVenues); err != nil {
		return &created, err
	}
	return &created, nil
}

// Analytics returns the caller's statistics, cached for CacheShort.
func (s *CaptionService) Analytics(ctx context.Context, opts ...RequestOption) (*Analytics, error) {
	var a Analytics
	o := s.opts(append([]RequestOption{WithCacheMaxAge(CacheShort)}, opts...)...)
	if err := s.client.GetJSON(ctx, EndpointAnalytics, nil, &a, o...); err != nil {
		return nil, err
	}
	return &a, nil
}

// Templates lists templates matching params (for example category).
func (s *CaptionService) Templates(ctx context.Context, params Params) ([]Template, error) {
	var list []Template
	if err := s.client.GetJSON(ctx, EndpointTemplates, params, &list, s.opts()...); err != nil {
		return nil, err
	}
	return list, nil
}

// Template fetches one template.
func (s *CaptionService) Template(ctx context.Context, id int) (*Template, error) {
	var t Template
	if err := s.client.GetJSON(ctx, TemplatePath(id), nil, &t, s.opts()...); err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTemplate stores a template and drops cached template reads.
func (s *CaptionService) CreateTemplate(ctx context.Context, t Template) (*Template, error) {
	var created Template
	if err := s.client.PostJSON(ctx, EndpointTemplates, t, &created, s.opts()...); err != nil {
		return nil, err
	}
	if err := s.client.ClearCache(ctx, EndpointTemplates); err != nil {
		return &created, err
	}
	return &created, nil
}

// RenderTemplate has the service fill a template with variables.
func (s *CaptionService) RenderTemplate(ctx context.Context, id int, variables map[string]string) (*RenderedTemplate, error) {
	var r RenderedTemplate
	if err := s.client.PostJSON(ctx, TemplateRenderPath(id), variables, &r, s.opts()...); err != nil {
		return nil, err
	}
	return &r, nil
}

// SuggestTemplates returns templates fitting an analysis.
func (s *CaptionService) SuggestTemplates(ctx context.Context, analysis Analysis) ([]Template, error) {
	var list []Template
	if err := s.client.PostJSON(ctx, EndpointTemplateSuggest, analysis, &list, s.opts()...); err != nil {
		return nil, err
	}
	return list, nil
}

// TemplatePerformance returns usage statistics for a template.
func (s *CaptionService) TemplatePerformance(ctx context.Context, id int) (*TemplatePerformance, error) {
	var p TemplatePerformance
	if err := s.client.GetJSON(ctx, TemplatePerformancePath(id), nil, &p, s.opts(WithCacheMaxAge(CacheShort))...); err != nil {
		return nil, err
	}
	return &p, nil
}

// Register creates an account.
func (s *CaptionService) Register(ctx context.Context, u NewUser) (*User, error) {
	var user User
	if err := s.client.PostJSON(ctx, EndpointRegister, u, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Login exchanges credentials for a bearer token and keeps it for later calls.
func (s *CaptionService) Login(ctx context.Context, username, password string) (*Token, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	var token Token
	if err := s.client.PostJSON(ctx, EndpointToken, FormBody(form), &token); err != nil {
		return nil, err
	}
	s.SetToken(token.AccessToken)
	return &token, nil
}

// Me returns the signed-in user.
func (s *CaptionService) Me(ctx context.Context) (*User, error) {
	var user User
	if err := s.client.GetJSON(ctx, EndpointMe, nil, &user, s.opts(WithoutCache())...); err != nil {
		return nil, err
	}
	return &user, nil
}

// MyCaptions returns the signed-in user's caption history.
func (s *CaptionService) MyCaptions(ctx context.Context, skip, limit int) ([]CaptionRecord, error) {
	params := Params{P("skip", skip)}
	if limit > 0 {
		params = append(params, P("limit", limit))
	}
	var records []CaptionRecord
	if err := s.client.GetJSON(ctx, EndpointMyCaptions, params, &records, s.opts(WithCacheMaxAge(CacheShort))...); err != nil {
		return nil, err
	}
	return records, nil
}

// withQuery appends params to endpoint for calls whose body is not the
// place for them.
func withQuery(endpoint string, params Params) string {
	if q := encodeParams(params); q != "" {
		return endpoint + "?" + q
	}
	return endpoint
}

func stringOrNil(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}

func joinedOrNil(values []string) interface{} {
	if len(values) == 0 {
		return nil
	}
	return strings.Join(values, ",")
}

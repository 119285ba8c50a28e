package captionkit

import "time"

// APIStatus is returned by the service root.
type APIStatus struct {
	Message string `json:"message"`
	Status  string `json:"status"`
	Version string `json:"version"`
}

// Analysis is the result of analysing one media file.
type Analysis struct {
	DetectedObjects []string `json:"detected_objects"`
	SuggestedTags   []string `json:"suggested_tags"`
	Confidence      float64  `json:"confidence"`
	Instruments     []string `json:"instruments,omitempty"`
	SceneType       string   `json:"scene_type,omitempty"`
	Mood            string   `json:"mood,omitempty"`
}

// MediaAnalysis wraps an Analysis with the file it describes.
type MediaAnalysis struct {
	Filename    string   `json:"filename"`
	ContentType string   `json:"content_type"`
	Analysis    Analysis `json:"analysis"`
}

// CaptionRequest asks the service for a caption.
type CaptionRequest struct {
	Musicians []string `json:"musicians,omitempty"`
	Venue     string   `json:"venue,omitempty"`
	Style     string   `json:"style,omitempty"`
	Language  string   `json:"language,omitempty"`
}

// Caption is a generated caption.
type Caption struct {
	Caption  string   `json:"caption"`
	Hashtags []string `json:"hashtags"`
	Language string   `json:"language,omitempty"`
}

// AnalyzeAndGenerateResult combines analysis and caption generation.
type AnalyzeAndGenerateResult struct {
	Filename string   `json:"filename"`
	Analysis Analysis `json:"analysis"`
	Caption  string   `json:"caption"`
	Hashtags []string `json:"hashtags"`
}

// Musician is a performer known to the service.
type Musician struct {
	ID         int    `json:"id,omitempty"`
	Name       string `json:"name"`
	Instrument string `json:"instrument"`
	Style      string `json:"style"`
	Bio        string `json:"bio,omitempty"`
	ImageURL   string `json:"image_url,omitempty"`
}

// MusicianList is the /musicians collection.
type MusicianList struct {
	Musicians []Musician `json:"musicians"`
	Count     int        `json:"count"`
}

// Venue is a place where performances happen.
type Venue struct {
	ID          int    `json:"id,omitempty"`
	Name        string `json:"name"`
	City        string `json:"city"`
	Type        string `json:"type"`
	Address     string `json:"address,omitempty"`
	Description string `json:"description,omitempty"`
	Website     string `json:"website,omitempty"`
}

// VenueList is the /venues collection.
type VenueList struct {
	Venues []Venue `json:"venues"`
	Count  int     `json:"count"`
}

// StyleCount is one entry of the style distribution.
type StyleCount struct {
	Style string `json:"style"`
	Count int    `json:"count"`
}

// VenueCount is one entry of the top venues list.
type VenueCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Analytics aggregates a user's caption activity.
type Analytics struct {
	TotalCaptionsGenerated int          `json:"total_captions_generated"`
	TotalMediaAnalyzed     int          `json:"total_media_analyzed"`
	MostUsedStyles         []StyleCount `json:"most_used_styles"`
	TopVenues              []VenueCount `json:"top_venues"`
	AvgCaptionLength       float64      `json:"avg_caption_length"`
	TotalHashtagsUsed      int          `json:"total_hashtags_used"`
}

// Template is a reusable caption template. Its text is rendered by the
// service; the client never interprets it.
type Template struct {
	ID                int      `json:"id,omitempty"`
	Name              string   `json:"name"`
	Category          string   `json:"category,omitempty"`
	TemplateText      string   `json:"template_text"`
	RequiredVariables []string `json:"required_variables,omitempty"`
	OptionalVariables []string `json:"optional_variables,omitempty"`
	DefaultHashtags   []string `json:"default_hashtags,omitempty"`
	UsageCount        int      `json:"usage_count,omitempty"`
	AverageEngagement float64  `json:"average_engagement,omitempty"`
}

// RenderedTemplate is the output of rendering a template.
type RenderedTemplate struct {
	Caption  string   `json:"caption"`
	Hashtags []string `json:"hashtags,omitempty"`
}

// TemplatePerformance reports how a template is used.
type TemplatePerformance struct {
	TemplateID        int     `json:"template_id"`
	UsageCount        int     `json:"usage_count"`
	AverageEngagement float64 `json:"average_engagement"`
}

// NewUser registers an account.
type NewUser struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	FullName string `json:"full_name,omitempty"`
	Password string `json:"password"`
}

// User is an account as returned by the service.
type User struct {
	ID        int       `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	FullName  string    `json:"full_name,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Token is an OAuth2 bearer token.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// CaptionRecord is one entry of a user's caption history.
type CaptionRecord struct {
	ID            int       `json:"id"`
	UserID        int       `json:"user_id"`
	CaptionText   string    `json:"caption_text"`
	MediaFilename string    `json:"media_filename,omitempty"`
	Style         string    `json:"style,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// AIOption is one selectable model, style or language.
type AIOption struct {
	Value       string `json:"value"`
	Name        string `json:"name"`
	Provider    string `json:"provider,omitempty"`
	Description string `json:"description,omitempty"`
	Flag        string `json:"flag,omitempty"`
}

// AvailableOptions lists the models, styles and languages the service offers.
type AvailableOptions struct {
	Models struct {
		Analysis []AIOption `json:"analysis"`
		Caption  []AIOption `json:"caption"`
	} `json:"models"`
	Styles    []AIOption `json:"styles"`
	Languages []AIOption `json:"languages"`
}

// AdvancedAnalysis is an analysis made with a chosen model.
type AdvancedAnalysis struct {
	Filename    string   `json:"filename"`
	ContentType string   `json:"content_type"`
	ModelUsed   string   `json:"model_used"`
	Analysis    Analysis `json:"analysis"`
}

// StyledCaptionRequest selects the model, style and language of a caption.
// Empty fields leave the service defaults in place.
type StyledCaptionRequest struct {
	Model         string
	Style         string
	Language      string
	Musicians     []string
	Venue         string
	CustomContext string
}

// StyledCaption is a caption generated with an explicit style and language.
type StyledCaption struct {
	Caption   string   `json:"caption"`
	Hashtags  []string `json:"hashtags"`
	Style     string   `json:"style"`
	Language  string   `json:"language"`
	ModelUsed string   `json:"model_used,omitempty"`
}

// ProRequest configures AnalyzeAndGeneratePro.
type ProRequest struct {
	AnalysisModel string
	CaptionModel  string
	Style         string
	Language      string
	Musicians     []string
	Venue         string
	CustomContext string
	// SaveToDB is sent only when non-nil; the service saves by default.
	SaveToDB *bool
}

// ProAnalysis is an analysis tagged with the model that produced it.
type ProAnalysis struct {
	Analysis
	ModelUsed string `json:"model_used"`
}

// ProResult is the outcome of AnalyzeAndGeneratePro.
type ProResult struct {
	Filename   string      `json:"filename"`
	Analysis   ProAnalysis `json:"analysis"`
	Caption    string      `json:"caption"`
	Hashtags   []string    `json:"hashtags"`
	Style      string      `json:"style"`
	Language   string      `json:"language"`
	ModelsUsed struct {
		Analysis string `json:"analysis"`
		Caption  string `json:"caption"`
	} `json:"models_used"`
	SavedToDB bool `json:"saved_to_db"`
}

// ModelAnalysis is one model's entry in a comparison. Error is set when
// that model failed.
type ModelAnalysis struct {
	Analysis
	Error string `json:"error,omitempty"`
}

// ModelComparison holds the analyses of one file by several models.
type ModelComparison struct {
	Filename       string                   `json:"filename"`
	Comparisons    map[string]ModelAnalysis `json:"comparisons"`
	ModelsCompared []string                 `json:"models_compared"`
}

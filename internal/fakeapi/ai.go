package fakeapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// Model identifiers accepted by the /ai endpoints.
const (
	ModelGPT4Vision   = "gpt-4-vision-preview"
	ModelGPT4         = "gpt-4"
	ModelClaudeSonnet = "claude-3-5-sonnet-20241022"
	ModelClaudeHaiku  = "claude-3-5-haiku-20241022"
)

var (
	aiModels    = []string{ModelGPT4Vision, ModelGPT4, ModelClaudeSonnet, ModelClaudeHaiku}
	aiStyles    = []string{"professional", "casual", "poetic", "energetic", "minimal", "storytelling"}
	aiLanguages = []string{"fr", "en", "es", "de", "it"}
)

func (s *Server) mountAI(r chi.Router) {
	r.Post("/analyze-advanced", s.handleAnalyzeAdvanced)
	r.Post("/generate-styled-caption", s.handleGenerateStyled)
	r.Post("/analyze-and-generate-pro", s.handleAnalyzeAndGeneratePro)
	r.Get("/compare-models", s.handleCompareModels)
	r.Get("/available-options", s.handleAvailableOptions)
}

// choice reads query parameter name, falling back to def, and rejects
// values outside allowed the way the service's enum validation does.
func choice(w http.ResponseWriter, r *http.Request, name, def string, allowed []string) (string, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, true
	}
	for _, a := range allowed {
		if v == a {
			return v, true
		}
	}
	writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
		"detail": []map[string]interface{}{
			{"loc": []string{"query", name}, "msg": "Input should be one of " + strings.Join(allowed, ", "), "type": "enum"},
		},
	})
	return "", false
}

func splitMusicians(r *http.Request) []string {
	if m := r.URL.Query().Get("musicians"); m != "" {
		return strings.Split(m, ",")
	}
	return nil
}

func (s *Server) handleAnalyzeAdvanced(w http.ResponseWriter, r *http.Request) {
	model, ok := choice(w, r, "model", ModelGPT4Vision, aiModels)
	if !ok {
		return
	}
	u, ok := readUpload(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"filename":     u.filename,
		"content_type": u.contentType,
		"model_used":   model,
		"analysis":     analysisFor(u),
	})
}

func (s *Server) handleGenerateStyled(w http.ResponseWriter, r *http.Request) {
	style, ok := choice(w, r, "style", "casual", aiStyles)
	if !ok {
		return
	}
	language, ok := choice(w, r, "language", "fr", aiLanguages)
	if !ok {
		return
	}
	model, ok := choice(w, r, "model", ModelGPT4, aiModels)
	if !ok {
		return
	}
	var analysis map[string]interface{}
	if !decodeBody(w, r, &analysis) {
		return
	}
	caption, hashtags := captionFor(splitMusicians(r), r.URL.Query().Get("venue"), style)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"caption":    caption,
		"hashtags":   hashtags,
		"style":      style,
		"language":   language,
		"model_used": model,
	})
}

func (s *Server) handleAnalyzeAndGeneratePro(w http.ResponseWriter, r *http.Request) {
	analysisModel, ok := choice(w, r, "analysis_model", ModelGPT4Vision, aiModels)
	if !ok {
		return
	}
	captionModel, ok := choice(w, r, "caption_model", ModelGPT4, aiModels)
	if !ok {
		return
	}
	style, ok := choice(w, r, "style", "casual", aiStyles)
	if !ok {
		return
	}
	language, ok := choice(w, r, "language", "fr", aiLanguages)
	if !ok {
		return
	}
	u, ok := readUpload(w, r)
	if !ok {
		return
	}

	analysis := analysisFor(u)
	analysis["model_used"] = analysisModel
	caption, hashtags := captionFor(splitMusicians(r), r.URL.Query().Get("venue"), style)
	save := r.URL.Query().Get("save_to_db") != "false"
	_, authenticated := s.tokenUser(r)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"filename": u.filename,
		"analysis": analysis,
		"caption":  caption,
		"hashtags": hashtags,
		"style":    style,
		"language": language,
		"models_used": map[string]string{
			"analysis": analysisModel,
			"caption":  captionModel,
		},
		"saved_to_db": save && authenticated,
	})
}

func (s *Server) handleCompareModels(w http.ResponseWriter, r *http.Request) {
	models := r.URL.Query()["models"]
	if len(models) == 0 {
		models = []string{ModelGPT4Vision, ModelClaudeSonnet}
	}
	for _, m := range models {
		if !contains(aiModels, m) {
			writeDetail(w, http.StatusUnprocessableEntity, "unknown model: "+m)
			return
		}
	}
	u, ok := readUpload(w, r)
	if !ok {
		return
	}

	comparisons := make(map[string]interface{}, len(models))
	for _, m := range models {
		if m == ModelGPT4 {
			comparisons[m] = map[string]string{"error": "model does not accept images"}
			continue
		}
		comparisons[m] = analysisFor(u)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"filename":        u.filename,
		"comparisons":     comparisons,
		"models_compared": models,
	})
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func (s *Server) handleAvailableOptions(w http.ResponseWriter, r *http.Request) {
	option := func(value, name, provider, description string) map[string]string {
		return map[string]string{"value": value, "name": name, "provider": provider, "description": description}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"models": map[string]interface{}{
			"analysis": []map[string]string{
				option(ModelGPT4Vision, "GPT-4 Vision", "OpenAI", "Best for detailed visual analysis"),
				option(ModelClaudeSonnet, "Claude 3.5 Sonnet", "Anthropic", "Excellent reasoning and understanding"),
				option(ModelClaudeHaiku, "Claude 3.5 Haiku", "Anthropic", "Fast and efficient"),
			},
			"caption": []map[string]string{
				option(ModelGPT4, "GPT-4", "OpenAI", "Creative and engaging captions"),
				option(ModelClaudeSonnet, "Claude 3.5 Sonnet", "Anthropic", "Sophisticated and nuanced writing"),
				option(ModelClaudeHaiku, "Claude 3.5 Haiku", "Anthropic", "Quick caption generation"),
			},
		},
		"styles": []map[string]string{
			{"value": "professional", "name": "Professional", "description": "Formal and polished"},
			{"value": "casual", "name": "Casual", "description": "Friendly and relatable"},
			{"value": "poetic", "name": "Poetic", "description": "Artistic and lyrical"},
			{"value": "energetic", "name": "Energetic", "description": "High-energy and enthusiastic"},
			{"value": "minimal", "name": "Minimal", "description": "Short and concise"},
			{"value": "storytelling", "name": "Storytelling", "description": "Narrative and engaging"},
		},
		"languages": []map[string]string{
			{"value": "fr", "name": "Français", "flag": "🇫🇷"},
			{"value": "en", "name": "English", "flag": "🇬🇧"},
			{"value": "es", "name": "Español", "flag": "🇪🇸"},
			{"value": "de", "name": "Deutsch", "flag": "🇩🇪"},
			{"value": "it", "name": "Italiano", "flag": "🇮🇹"},
		},
	})
}

package captionkit

import (
	"net/url"
	"strconv"
)

// Caption service endpoints.
const (
	EndpointStatus             = "/"
	EndpointAnalyzeMedia       = "/analyze-media"
	EndpointGenerateCaption    = "/generate-caption"
	EndpointAnalyzeAndGenerate = "/analyze-and-generate"
	EndpointMusicians          = "/musicians"
	EndpointVenues             = "/venues"
	EndpointAnalytics          = "/analytics"
	EndpointTemplates          = "/templates"
	EndpointTemplateSuggest    = "/templates/suggest"
	EndpointRegister           = "/register"
	EndpointToken              = "/token"
	EndpointMe                 = "/me"
	EndpointMyCaptions         = "/my-captions"

	EndpointAIAnalyzeAdvanced       = "/ai/analyze-advanced"
	EndpointAIGenerateStyled        = "/ai/generate-styled-caption"
	EndpointAIAnalyzeAndGeneratePro = "/ai/analyze-and-generate-pro"
	EndpointAIAvailableOptions      = "/ai/available-options"
	EndpointAICompareModels         = "/ai/compare-models"
)

// TemplatePath returns the endpoint of a single template.
func TemplatePath(id int) string {
	return EndpointTemplates + "/" + url.PathEscape(strconv.Itoa(id))
}

// TemplateRenderPath returns the render endpoint of a template.
func TemplateRenderPath(id int) string {
	return TemplatePath(id) + "/render"
}

// TemplatePerformancePath returns the performance endpoint of a template.
func TemplatePerformancePath(id int) string {
	return TemplatePath(id) + "/performance"
}

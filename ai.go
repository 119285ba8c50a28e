package captionkit

import (
	"context"
	"net/http"
)

// AvailableOptions lists the models, styles and languages offered by the
// advanced endpoints. The list is cached for CacheVeryLong.
func (s *CaptionService) AvailableOptions(ctx context.Context, opts ...RequestOption) (*AvailableOptions, error) {
	var options AvailableOptions
	o := s.opts(append([]RequestOption{WithCacheMaxAge(CacheVeryLong)}, opts...)...)
	if err := s.client.GetJSON(ctx, EndpointAIAvailableOptions, nil, &options, o...); err != nil {
		return nil, err
	}
	return &options, nil
}

// AnalyzeAdvanced uploads m for analysis by model. An empty model lets the
// service choose.
func (s *CaptionService) AnalyzeAdvanced(ctx context.Context, m Media, model string) (*AdvancedAnalysis, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}
	endpoint := withQuery(EndpointAIAnalyzeAdvanced, Params{P("model", stringOrNil(model))})

	var result AdvancedAnalysis
	if err := s.client.UploadFileJSON(ctx, endpoint, m.file(), nil, &result, s.opts()...); err != nil {
		return nil, err
	}
	return &result, nil
}

// GenerateStyledCaption writes a caption for an existing analysis. The
// analysis is the body; the remaining choices travel in the query.
func (s *CaptionService) GenerateStyledCaption(ctx context.Context, analysis Analysis, req StyledCaptionRequest) (*StyledCaption, error) {
	endpoint := withQuery(EndpointAIGenerateStyled, Params{
		P("style", stringOrNil(req.Style)),
		P("language", stringOrNil(req.Language)),
		P("model", stringOrNil(req.Model)),
		P("musicians", joinedOrNil(req.Musicians)),
		P("venue", stringOrNil(req.Venue)),
		P("custom_context", stringOrNil(req.CustomContext)),
	})

	var caption StyledCaption
	if err := s.client.PostJSON(ctx, endpoint, analysis, &caption, s.opts()...); err != nil {
		return nil, err
	}
	return &caption, nil
}

// AnalyzeAndGeneratePro analyses m with one model and captions it with
// another.
func (s *CaptionService) AnalyzeAndGeneratePro(ctx context.Context, m Media, req ProRequest) (*ProResult, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}

	var save interface{}
	if req.SaveToDB != nil {
		save = *req.SaveToDB
	}
	endpoint := withQuery(EndpointAIAnalyzeAndGeneratePro, Params{
		P("analysis_model", stringOrNil(req.AnalysisModel)),
		P("caption_model", stringOrNil(req.CaptionModel)),
		P("style", stringOrNil(req.Style)),
		P("language", stringOrNil(req.Language)),
		P("musicians", joinedOrNil(req.Musicians)),
		P("venue", stringOrNil(req.Venue)),
		P("custom_context", stringOrNil(req.CustomContext)),
		P("save_to_db", save),
	})

	var result ProResult
	if err := s.client.UploadFileJSON(ctx, endpoint, m.file(), nil, &result, s.opts()...); err != nil {
		return nil, err
	}
	return &result, nil
}

// CompareModels has each of models analyse m. The service takes the file on
// a GET, so the call is neither cached nor coalesced.
func (s *CaptionService) CompareModels(ctx context.Context, m Media, models ...string) (*ModelComparison, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}
	params := make(Params, 0, len(models))
	for _, model := range models {
		params = append(params, P("models", model))
	}

	data, err := s.client.upload(ctx, http.MethodGet, withQuery(EndpointAICompareModels, params), m.file(), nil, s.opts())
	if err != nil {
		return nil, err
	}
	var result ModelComparison
	if err := decodeJSON(data, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

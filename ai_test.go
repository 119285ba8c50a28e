package captionkit

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ambiyansyah-risyal/captionkit/internal/fakeapi"
)

func TestAvailableOptionsCached(t *testing.T) {
	svc, srv := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		options, err := svc.AvailableOptions(ctx)
		if err != nil {
			t.Fatalf("AvailableOptions() returned error: %v", err)
		}
		if len(options.Styles) != 6 || len(options.Languages) != 5 {
			t.Errorf("Unexpected options %+v", options)
		}
		if len(options.Models.Analysis) == 0 || options.Models.Analysis[0].Value != fakeapi.ModelGPT4Vision {
			t.Errorf("Unexpected analysis models %+v", options.Models.Analysis)
		}
	}
	if n := srv.Calls(http.MethodGet, EndpointAIAvailableOptions); n != 1 {
		t.Errorf(expectedCallCountMsg, 1, n)
	}
}

func TestAnalyzeAdvanced(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	result, err := svc.AnalyzeAdvanced(ctx, jpeg("stage.jpg"), fakeapi.ModelClaudeSonnet)
	if err != nil {
		t.Fatalf("AnalyzeAdvanced() returned error: %v", err)
	}
	if result.ModelUsed != fakeapi.ModelClaudeSonnet || result.Filename != "stage.jpg" {
		t.Errorf("Unexpected result %+v", result)
	}
	if result.Analysis.SceneType != "concert" {
		t.Errorf("Unexpected analysis %+v", result.Analysis)
	}

	result, err = svc.AnalyzeAdvanced(ctx, jpeg("stage.jpg"), "")
	if err != nil {
		t.Fatalf("AnalyzeAdvanced() with default model returned error: %v", err)
	}
	if result.ModelUsed != fakeapi.ModelGPT4Vision {
		t.Errorf("Expected the service default model, got %q", result.ModelUsed)
	}
}

func TestAnalyzeAdvancedUnknownModel(t *testing.T) {
	svc, srv := newTestService(t)

	_, err := svc.AnalyzeAdvanced(context.Background(), jpeg("stage.jpg"), "gpt-2")
	if !IsKind(err, KindUnknown) {
		t.Fatalf(expectedKindMsg, KindUnknown, KindOf(err), err)
	}
	var cerr *Error
	if !errors.As(err, &cerr) || cerr.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("Expected a 422 error, got %v", err)
	}
	if !strings.Contains(cerr.Message, "Input should be one of") {
		t.Errorf("Expected the validation detail as message, got %q", cerr.Message)
	}
	if n := srv.Calls(http.MethodPost, EndpointAIAnalyzeAdvanced); n != 1 {
		t.Errorf(expectedCallCountMsg, 1, n)
	}
}

func TestGenerateStyledCaption(t *testing.T) {
	svc, _ := newTestService(t)

	caption, err := svc.GenerateStyledCaption(context.Background(), Analysis{SceneType: "concert"}, StyledCaptionRequest{
		Style:     "poetic",
		Language:  "en",
		Model:     fakeapi.ModelClaudeHaiku,
		Musicians: []string{"Ana", "Bo"},
		Venue:     "Sunset",
	})
	if err != nil {
		t.Fatalf("GenerateStyledCaption() returned error: %v", err)
	}
	if caption.Style != "poetic" || caption.Language != "en" || caption.ModelUsed != fakeapi.ModelClaudeHaiku {
		t.Errorf("Unexpected caption %+v", caption)
	}
	if !strings.Contains(caption.Caption, "Ana, Bo") || !strings.Contains(caption.Caption, "Sunset") {
		t.Errorf("Expected musicians and venue in %q", caption.Caption)
	}
}

func TestGenerateStyledCaptionDefaults(t *testing.T) {
	svc, _ := newTestService(t)

	caption, err := svc.GenerateStyledCaption(context.Background(), Analysis{}, StyledCaptionRequest{})
	if err != nil {
		t.Fatalf("GenerateStyledCaption() returned error: %v", err)
	}
	if caption.Style != "casual" || caption.Language != "fr" {
		t.Errorf("Expected service defaults, got %+v", caption)
	}
}

func TestAnalyzeAndGeneratePro(t *testing.T) {
	svc, srv := newTestService(t)
	ctx := context.Background()
	req := ProRequest{
		AnalysisModel: fakeapi.ModelClaudeSonnet,
		CaptionModel:  fakeapi.ModelGPT4,
		Style:         "energetic",
		Language:      "es",
		Musicians:     []string{"Ana"},
	}

	result, err := svc.AnalyzeAndGeneratePro(ctx, jpeg("gig.jpg"), req)
	if err != nil {
		t.Fatalf("AnalyzeAndGeneratePro() returned error: %v", err)
	}
	if result.Analysis.ModelUsed != fakeapi.ModelClaudeSonnet || result.ModelsUsed.Caption != fakeapi.ModelGPT4 {
		t.Errorf("Unexpected models %+v / %+v", result.Analysis, result.ModelsUsed)
	}
	if result.Style != "energetic" || result.Language != "es" || result.SavedToDB {
		t.Errorf("Unexpected result %+v", result)
	}
	if result.Analysis.Confidence == 0 {
		t.Errorf("Expected embedded analysis fields, got %+v", result.Analysis)
	}

	loggedIn(t, svc)
	result, err = svc.AnalyzeAndGeneratePro(ctx, jpeg("gig.jpg"), req)
	if err != nil {
		t.Fatalf("AnalyzeAndGeneratePro() returned error: %v", err)
	}
	if !result.SavedToDB {
		t.Error("Expected an authenticated call to be saved")
	}

	save := false
	req.SaveToDB = &save
	result, err = svc.AnalyzeAndGeneratePro(ctx, jpeg("gig.jpg"), req)
	if err != nil {
		t.Fatalf("AnalyzeAndGeneratePro() returned error: %v", err)
	}
	if result.SavedToDB {
		t.Error("Expected save_to_db=false to be honoured")
	}
	if n := srv.Calls(http.MethodPost, EndpointAIAnalyzeAndGeneratePro); n != 3 {
		t.Errorf(expectedCallCountMsg, 3, n)
	}
}

func TestAdvancedEndpointsValidateMedia(t *testing.T) {
	svc, srv := newTestService(t)
	ctx := context.Background()
	text := Media{Name: "notes.txt", ContentType: "text/plain", Data: []byte("hi")}

	if _, err := svc.AnalyzeAdvanced(ctx, text, ""); !errors.Is(err, ErrUnsupportedMedia) {
		t.Errorf("AnalyzeAdvanced: expected ErrUnsupportedMedia, got %v", err)
	}
	if _, err := svc.AnalyzeAndGeneratePro(ctx, text, ProRequest{}); !errors.Is(err, ErrUnsupportedMedia) {
		t.Errorf("AnalyzeAndGeneratePro: expected ErrUnsupportedMedia, got %v", err)
	}
	if _, err := svc.CompareModels(ctx, text); !errors.Is(err, ErrUnsupportedMedia) {
		t.Errorf("CompareModels: expected ErrUnsupportedMedia, got %v", err)
	}
	if n := srv.TotalCalls(); n != 0 {
		t.Errorf(expectedCallCountMsg, 0, n)
	}
}

func TestCompareModels(t *testing.T) {
	svc, _ := newTestService(t)

	result, err := svc.CompareModels(context.Background(), jpeg("stage.jpg"), fakeapi.ModelClaudeHaiku, fakeapi.ModelGPT4)
	if err != nil {
		t.Fatalf("CompareModels() returned error: %v", err)
	}
	if len(result.ModelsCompared) != 2 || result.ModelsCompared[0] != fakeapi.ModelClaudeHaiku {
		t.Errorf("Unexpected models %v", result.ModelsCompared)
	}
	if got := result.Comparisons[fakeapi.ModelClaudeHaiku]; got.Error != "" || got.SceneType != "concert" {
		t.Errorf("Unexpected analysis %+v", got)
	}
	if got := result.Comparisons[fakeapi.ModelGPT4]; got.Error == "" {
		t.Errorf("Expected a per-model error entry, got %+v", got)
	}
}

func TestCompareModelsNotCachedOrCoalesced(t *testing.T) {
	svc, srv := newTestService(t)
	srv.SetDelay(100 * time.Millisecond)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.CompareModels(ctx, jpeg("stage.jpg"))
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("CompareModels() call %d returned error: %v", i, err)
		}
	}

	if _, err := svc.CompareModels(ctx, jpeg("stage.jpg")); err != nil {
		t.Fatalf("CompareModels() returned error: %v", err)
	}
	if n := srv.Calls(http.MethodGet, EndpointAICompareModels); n != 3 {
		t.Errorf(expectedCallCountMsg, 3, n)
	}
	if svc.Client().PendingRequests() != 0 {
		t.Errorf("Expected no pending entries, got %d", svc.Client().PendingRequests())
	}
}

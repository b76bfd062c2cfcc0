package ai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nijaru/vidqa/config"
	"github.com/nijaru/vidqa/errors"
	"github.com/nijaru/vidqa/models"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

type fileService interface {
	Upload(ctx context.Context, r io.Reader, config *genai.UploadFileConfig) (*genai.File, error)
	Get(ctx context.Context, name string, config *genai.GetFileConfig) (*genai.File, error)
}

type modelService interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

var _ Backend = (*Gemini)(nil)

// Gemini is the Backend backed by the Gemini API file and model services.
type Gemini struct {
	files        fileService
	models       modelService
	model        string
	limiter      *rate.Limiter
	pollInterval time.Duration
	pollTimeout  time.Duration
	logger       *logrus.Entry
}

func NewGemini(ctx context.Context, cfg config.AIConfig, logger *logrus.Logger) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.Configuration("ai.NewGemini", err, "failed to create Gemini client")
	}
	return newGemini(client.Files, client.Models, cfg, logger), nil
}

func newGemini(files fileService, models modelService, cfg config.AIConfig, logger *logrus.Logger) *Gemini {
	return &Gemini{
		files:        files,
		models:       models,
		model:        cfg.Model,
		limiter:      rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		pollInterval: cfg.PollInterval,
		pollTimeout:  cfg.PollTimeout,
		logger:       logger.WithField("component", "gemini"),
	}
}

// RegisterMedia uploads the video and waits until Gemini has finished
// processing it.
func (g *Gemini) RegisterMedia(ctx context.Context, media Media) (*models.AIReference, error) {
	const op = "Gemini.RegisterMedia"

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	file, err := g.files.Upload(ctx, media.Reader, &genai.UploadFileConfig{
		MIMEType:    media.MIMEType,
		DisplayName: media.DisplayName,
	})
	if err != nil {
		return nil, classify(op, err)
	}

	log := g.logger.WithField("file", file.Name)
	log.Info("Uploaded media, waiting for processing")

	file, err = g.waitActive(ctx, file)
	if err != nil {
		return nil, err
	}

	log.Info("Media is active")
	mimeType := file.MIMEType
	if mimeType == "" {
		mimeType = media.MIMEType
	}
	return &models.AIReference{Name: file.Name, URI: file.URI, MIMEType: mimeType}, nil
}

func (g *Gemini) waitActive(ctx context.Context, file *genai.File) (*genai.File, error) {
	const op = "Gemini.waitActive"

	if g.pollTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.pollTimeout)
		defer cancel()
	}

	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	for {
		switch file.State {
		case genai.FileStateActive:
			return file, nil
		case genai.FileStateFailed:
			msg := "media processing failed"
			if file.Error != nil && file.Error.Message != "" {
				msg = fmt.Sprintf("media processing failed: %s", file.Error.Message)
			}
			return nil, errors.Terminal(op, nil, msg)
		}

		select {
		case <-ctx.Done():
			return nil, errors.Terminal(op, ctx.Err(), "timed out waiting for media processing")
		case <-ticker.C:
		}

		next, err := g.files.Get(ctx, file.Name, nil)
		if err != nil {
			return nil, classify(op, err)
		}
		file = next
	}
}

func (g *Gemini) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	const op = "Gemini.Generate"

	if req.Ref == nil || req.Ref.Name == "" {
		return "", errors.Terminal(op, nil, "video has no AI reference")
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}

	// The remote copy expires; check it before spending a generation call.
	if _, err := g.files.Get(ctx, req.Ref.Name, nil); err != nil {
		if appErr := classify(op, err); errors.IsTransient(appErr) {
			return "", appErr
		}
		return "", errors.Terminal(op, err, "Video file expired or not found")
	}

	parts := []*genai.Part{genai.NewPartFromURI(req.Ref.URI, req.Ref.MIMEType)}
	for _, text := range req.Parts {
		parts = append(parts, genai.NewPartFromText(text))
	}

	var cfg *genai.GenerateContentConfig
	if schema := responseSchema(req.Schema); schema != nil {
		cfg = &genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   schema,
		}
	}

	resp, err := g.models.GenerateContent(ctx, g.model, []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}, cfg)
	if err != nil {
		return "", classify(op, err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", errors.Malformed(op, nil, "empty response from model")
	}
	return text, nil
}

// classify maps a Gemini error onto the retry taxonomy: rate limiting and
// resource exhaustion are transient, everything else is terminal.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var code int
	var status string
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case pkgerrors.As(err, &apiErr):
		code, status = apiErr.Code, apiErr.Status
	case pkgerrors.As(err, &apiErrPtr):
		code, status = apiErrPtr.Code, apiErrPtr.Status
	}

	msg := err.Error()
	if code == http.StatusTooManyRequests ||
		status == "RESOURCE_EXHAUSTED" ||
		strings.Contains(msg, "429") ||
		strings.Contains(strings.ToLower(msg), "resource exhausted") {
		return errors.Transient(op, err, "AI backend is rate limited")
	}
	return errors.Terminal(op, err, "AI backend request failed")
}

func responseSchema(s Schema) *genai.Schema {
	switch s {
	case SchemaTranscript:
		return transcriptSchema
	case SchemaQuiz:
		return quizSchema
	default:
		return nil
	}
}

var transcriptSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"segments": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"start": {Type: genai.TypeNumber, Description: "Start time in seconds"},
					"end":   {Type: genai.TypeNumber, Description: "End time in seconds"},
					"text":  {Type: genai.TypeString},
				},
				Required: []string{"start", "end", "text"},
			},
		},
	},
	Required: []string{"segments"},
}

var quizSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"questions": {
			Type:     genai.TypeArray,
			MinItems: int64Ptr(models.QuizQuestionCount),
			MaxItems: int64Ptr(models.QuizQuestionCount),
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"id":       {Type: genai.TypeInteger},
					"question": {Type: genai.TypeString},
					"options": {
						Type:     genai.TypeArray,
						Items:    &genai.Schema{Type: genai.TypeString},
						MinItems: int64Ptr(models.QuizOptionCount),
						MaxItems: int64Ptr(models.QuizOptionCount),
					},
					"correct_answer": {Type: genai.TypeInteger, Description: "Zero-based index of the correct option"},
				},
				Required: []string{"id", "question", "options", "correct_answer"},
			},
		},
	},
	Required: []string{"questions"},
}

func int64Ptr(v int64) *int64 { return &v }

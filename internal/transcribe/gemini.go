package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the Gemini API endpoint
const DefaultBaseURL = "https://generativelanguage.googleapis.com"

// Headers used by the resumable upload protocol
const (
	headerAPIKey           = "x-goog-api-key"
	headerUploadProtocol   = "X-Goog-Upload-Protocol"
	headerUploadCommand    = "X-Goog-Upload-Command"
	headerUploadOffset     = "X-Goog-Upload-Offset"
	headerUploadURL        = "X-Goog-Upload-URL"
	headerUploadByteLength = "X-Goog-Upload-Header-Content-Length"
	headerUploadMIMEType   = "X-Goog-Upload-Header-Content-Type"
)

// States a file moves through while the provider ingests it
const (
	fileStateProcessing = "PROCESSING"
	fileStateActive     = "ACTIVE"
	fileStateFailed     = "FAILED"
)

// Retry policy for generation calls
const (
	maxGenerateAttempts = 3
	retryBaseDelay      = 2 * time.Second
)

// Default timings, overridable via setters
const (
	defaultPollInterval   = 2 * time.Second
	defaultProcessTimeout = 10 * time.Minute
	defaultRequestTimeout = 4 * time.Minute
)

// Gemini talks to the Gemini API over plain HTTP: resumable file upload,
// file state polling, and generateContent.
type Gemini struct {
	apiKey         string
	model          string
	baseURL        string
	httpClient     *http.Client
	pollInterval   time.Duration
	processTimeout time.Duration
}

// NewGemini creates a provider for the given API key and model ID
// (e.g. "gemini-2.5-pro").
func NewGemini(apiKey, model string) *Gemini {
	return &Gemini{
		apiKey:         apiKey,
		model:          model,
		baseURL:        DefaultBaseURL,
		httpClient:     &http.Client{Timeout: defaultRequestTimeout},
		pollInterval:   defaultPollInterval,
		processTimeout: defaultProcessTimeout,
	}
}

// Name identifies the provider
func (g *Gemini) Name() string {
	return "gemini"
}

// ModelID returns the configured model
func (g *Gemini) ModelID() string {
	return g.model
}

// SetBaseURL overrides the API endpoint
func (g *Gemini) SetBaseURL(baseURL string) {
	g.baseURL = strings.TrimSuffix(baseURL, "/")
}

// SetPollInterval sets how often file state is polled during ingestion
func (g *Gemini) SetPollInterval(d time.Duration) {
	if d > 0 {
		g.pollInterval = d
	}
}

// SetProcessTimeout sets how long to wait for the provider to ingest a file
func (g *Gemini) SetProcessTimeout(d time.Duration) {
	if d > 0 {
		g.processTimeout = d
	}
}

// SetRequestTimeout sets the per-request HTTP timeout
func (g *Gemini) SetRequestTimeout(d time.Duration) {
	if d > 0 {
		g.httpClient = &http.Client{Timeout: d}
	}
}

// geminiFile mirrors the API's File resource
type geminiFile struct {
	Name     string `json:"name"` // e.g. "files/abc-123"
	URI      string `json:"uri"`
	MIMEType string `json:"mimeType"`
	State    string `json:"state"`
}

type fileEnvelope struct {
	File geminiFile `json:"file"`
}

// generateContent request/response shapes, camelCase per the REST API
type generateRequest struct {
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	Contents          []content         `json:"contents"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text     string    `json:"text,omitempty"`
	FileData *fileData `json:"fileData,omitempty"`
}

type fileData struct {
	MIMEType string `json:"mimeType"`
	FileURI  string `json:"fileUri"`
}

type generationConfig struct {
	ResponseMIMEType string `json:"responseMimeType,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

type modelsPage struct {
	Models []struct {
		Name                       string   `json:"name"`
		DisplayName                string   `json:"displayName"`
		Description                string   `json:"description"`
		SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
	} `json:"models"`
	NextPageToken string `json:"nextPageToken"`
}

type apiErrorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Transcribe uploads the audio, waits until the provider has ingested it,
// asks the model for a road map, and decodes the reply. The uploaded file is
// deleted afterwards on a best effort basis.
func (g *Gemini) Transcribe(ctx context.Context, in Input, onStage StageFunc) (*Result, error) {
	if g.apiKey == "" {
		return nil, fmt.Errorf("missing API key")
	}

	notify := func(stage Stage, fraction float64) {
		if onStage != nil {
			onStage(stage, fraction)
		}
	}

	notify(StageUploading, 0)
	file, err := g.uploadFile(ctx, in, notify)
	if err != nil {
		return nil, fmt.Errorf("upload audio: %w", err)
	}
	uploaded := file.Name
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := g.deleteFile(cleanupCtx, uploaded); err != nil {
			log.Printf("Delete uploaded file %s: %v", uploaded, err)
		}
	}()

	notify(StageProcessing, 0)
	file, err = g.waitForProcessing(ctx, file)
	if err != nil {
		return nil, err
	}

	notify(StageGenerating, 0)
	text, err := g.generateChart(ctx, file)
	if err != nil {
		return nil, err
	}

	sections, err := DecodeSections(text)
	if err != nil {
		// Hand back the raw reply so callers can keep it for debugging.
		return &Result{ModelUsed: g.model, RawText: text}, err
	}
	notify(StageGenerating, 1)

	return &Result{
		Sections:  sections,
		ModelUsed: g.model,
		RawText:   text,
	}, nil
}

// uploadFile runs the two-step resumable upload: a start request that
// returns the upload URL, then the bytes with an "upload, finalize" command.
func (g *Gemini) uploadFile(ctx context.Context, in Input, notify StageFunc) (*geminiFile, error) {
	info, err := os.Stat(in.AudioPath)
	if err != nil {
		return nil, err
	}
	size := info.Size()

	display := in.TitleHint
	if display == "" {
		display = filepath.Base(in.AudioPath)
	}

	startBody, err := json.Marshal(map[string]any{
		"file": map[string]any{"display_name": display},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/upload/v1beta/files", bytes.NewReader(startBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set(headerAPIKey, g.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerUploadProtocol, "resumable")
	req.Header.Set(headerUploadCommand, "start")
	req.Header.Set(headerUploadByteLength, strconv.FormatInt(size, 10))
	req.Header.Set(headerUploadMIMEType, in.MIMEType)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, parseAPIError(resp)
	}
	uploadURL := resp.Header.Get(headerUploadURL)
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if uploadURL == "" {
		return nil, fmt.Errorf("upload start: response carries no %s header", headerUploadURL)
	}

	f, err := os.Open(in.AudioPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var body io.Reader = f
	if size > 0 {
		body = &progressReader{r: f, total: size, report: func(done int64) {
			notify(StageUploading, float64(done)/float64(size))
		}}
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, body)
	if err != nil {
		return nil, err
	}
	req.ContentLength = size
	req.Header.Set(headerUploadOffset, "0")
	req.Header.Set(headerUploadCommand, "upload, finalize")

	resp, err = g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, parseAPIError(resp)
	}

	var env fileEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	if env.File.Name == "" {
		return nil, fmt.Errorf("upload finalize: response carries no file name")
	}
	return &env.File, nil
}

// waitForProcessing polls the file until the provider has listened to the
// whole track and marked it ACTIVE.
func (g *Gemini) waitForProcessing(ctx context.Context, file *geminiFile) (*geminiFile, error) {
	deadline := time.Now().Add(g.processTimeout)
	current := file

	for current.State == fileStateProcessing {
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("file %s still processing after %v", file.Name, g.processTimeout)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(g.pollInterval):
		}

		refreshed, err := g.getFile(ctx, current.Name)
		if err != nil {
			return nil, fmt.Errorf("poll file state: %w", err)
		}
		current = refreshed
	}

	if current.State != fileStateActive {
		return nil, fmt.Errorf("file %s finished in state %s", current.Name, current.State)
	}
	return current, nil
}

func (g *Gemini) getFile(ctx context.Context, name string) (*geminiFile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/v1beta/"+name, nil)
	if err != nil {
		return nil, err
	}

	var file geminiFile
	if err := g.doJSON(req, &file); err != nil {
		return nil, err
	}
	return &file, nil
}

func (g *Gemini) deleteFile(ctx context.Context, name string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, g.baseURL+"/v1beta/"+name, nil)
	if err != nil {
		return err
	}
	return g.doJSON(req, nil)
}

// generateChart sends the prompt plus a reference to the uploaded audio and
// returns the raw model text. Rate limits and server errors are retried with
// exponential backoff.
func (g *Gemini) generateChart(ctx context.Context, file *geminiFile) (string, error) {
	reqBody := generateRequest{
		SystemInstruction: &content{Parts: []part{{Text: systemInstruction}}},
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{Text: goldenExample},
				{Text: analyzePrompt},
				{FileData: &fileData{MIMEType: file.MIMEType, FileURI: file.URI}},
			},
		}},
		GenerationConfig: &generationConfig{ResponseMIMEType: "application/json"},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	var lastErr error
	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		if attempt > 0 {
			delay := time.Duration(float64(retryBaseDelay) * math.Pow(2, float64(attempt-1)))
			log.Printf("Retrying generation, attempt %d of %d after %v", attempt+1, maxGenerateAttempts, delay)

			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		text, err := g.generateOnce(ctx, payload)
		if err == nil {
			return text, nil
		}
		lastErr = err

		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.Temporary() {
			return "", err
		}
		log.Printf("Generation attempt %d failed: %v", attempt+1, err)
	}

	return "", lastErr
}

func (g *Gemini) generateOnce(ctx context.Context, payload []byte) (string, error) {
	endpoint := g.baseURL + "/v1beta/models/" + g.model + ":generateContent"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var out generateResponse
	if err := g.doJSON(req, &out); err != nil {
		return "", err
	}

	if len(out.Candidates) == 0 {
		if out.PromptFeedback != nil && out.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("prompt blocked: %s", out.PromptFeedback.BlockReason)
		}
		return "", fmt.Errorf("model returned no candidates")
	}

	var b strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	text := b.String()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("model returned an empty reply")
	}
	return text, nil
}

// ListModels returns every model that supports generateContent, with the
// "models/" prefix stripped so names are usable as model IDs.
func (g *Gemini) ListModels(ctx context.Context) ([]ModelInfo, error) {
	if g.apiKey == "" {
		return nil, fmt.Errorf("missing API key")
	}

	var models []ModelInfo
	pageToken := ""

	for {
		endpoint := g.baseURL + "/v1beta/models?pageSize=50"
		if pageToken != "" {
			endpoint += "&pageToken=" + url.QueryEscape(pageToken)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}

		var page modelsPage
		if err := g.doJSON(req, &page); err != nil {
			return nil, err
		}

		for _, m := range page.Models {
			if !supportsGenerate(m.SupportedGenerationMethods) {
				continue
			}
			models = append(models, ModelInfo{
				Name:        strings.TrimPrefix(m.Name, "models/"),
				DisplayName: m.DisplayName,
				Description: m.Description,
			})
		}

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	return models, nil
}

func supportsGenerate(methods []string) bool {
	for _, m := range methods {
		if m == "generateContent" {
			return true
		}
	}
	return false
}

// doJSON sends the request with the API key attached and decodes a JSON
// answer into out. A nil out discards the body.
func (g *Gemini) doJSON(req *http.Request, out any) error {
	req.Header.Set(headerAPIKey, g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseAPIError(resp)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// parseAPIError turns a non-2xx response into an *APIError, using the
// structured error body when the API sent one.
func parseAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	var env apiErrorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error.Message != "" {
		return &APIError{
			StatusCode: resp.StatusCode,
			Status:     env.Error.Status,
			Message:    env.Error.Message,
		}
	}

	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}

// progressReader reports cumulative bytes read through it.
type progressReader struct {
	r      io.Reader
	done   int64
	total  int64
	report func(done int64)
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.r.Read(p)
	if n > 0 {
		pr.done += int64(n)
		pr.report(pr.done)
	}
	return n, err
}

package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/invoice-approval/internal/config"
	"github.com/garyjia/invoice-approval/internal/domain/workflow"
)

type fakeEngine struct {
	text   string
	err    error
	images [][]byte
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Recognize(ctx context.Context, img []byte) (string, error) {
	f.images = append(f.images, img)
	return f.text, f.err
}

type fakeDoc struct {
	texts  []string
	closed bool
}

func (d *fakeDoc) NumPage() int { return len(d.texts) }

func (d *fakeDoc) Text(n int) (string, error) { return d.texts[n], nil }

func (d *fakeDoc) Image(n int) (*image.RGBA, error) {
	return image.NewRGBA(image.Rect(0, 0, 8, 8)), nil
}

func (d *fakeDoc) Close() error {
	d.closed = true
	return nil
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for x := 0; x < 16; x++ {
		for y := 0; y < 16; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 16), G: 120, B: uint8(y * 16), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func withDoc(r *Router, doc *fakeDoc) *Router {
	r.openPDF = func(string) (document, error) { return doc, nil }
	return r
}

func TestRouter_UnsupportedExtension(t *testing.T) {
	r := NewRouter(&fakeEngine{}, Options{}, zap.NewNop())
	_, err := r.ExtractText(context.Background(), "invoice.docx")
	assert.ErrorIs(t, err, workflow.ErrInvalidPayload)
}

func TestRouter_Image(t *testing.T) {
	data := testPNG(t)
	path := writeFile(t, "scan.PNG", data)

	t.Run("raw image goes to the engine", func(t *testing.T) {
		engine := &fakeEngine{text: "Invoice 42"}
		r := NewRouter(engine, Options{}, zap.NewNop())

		text, err := r.ExtractText(context.Background(), path)
		require.NoError(t, err)
		assert.Equal(t, "Invoice 42", text)
		require.Len(t, engine.images, 1)
		assert.Equal(t, data, engine.images[0])
	})

	t.Run("preprocessed image is a jpeg", func(t *testing.T) {
		engine := &fakeEngine{text: "Invoice 42"}
		r := NewRouter(engine, Options{Preprocess: true}, zap.NewNop())

		_, err := r.ExtractText(context.Background(), path)
		require.NoError(t, err)
		require.Len(t, engine.images, 1)
		assert.Equal(t, "image/jpeg", http.DetectContentType(engine.images[0]))
	})

	t.Run("no engine configured", func(t *testing.T) {
		r := NewRouter(nil, Options{}, zap.NewNop())
		_, err := r.ExtractText(context.Background(), path)
		assert.ErrorIs(t, err, workflow.ErrInvalidPayload)
	})

	t.Run("engine failure", func(t *testing.T) {
		r := NewRouter(&fakeEngine{err: errors.New("quota exceeded")}, Options{}, zap.NewNop())
		_, err := r.ExtractText(context.Background(), path)
		require.Error(t, err)
		assert.NotErrorIs(t, err, workflow.ErrInvalidPayload)
		assert.Contains(t, err.Error(), "fake ocr: quota exceeded")
	})

	t.Run("missing file", func(t *testing.T) {
		r := NewRouter(&fakeEngine{}, Options{}, zap.NewNop())
		_, err := r.ExtractText(context.Background(), filepath.Join(t.TempDir(), "gone.jpg"))
		assert.Error(t, err)
	})
}

func TestRouter_PDF(t *testing.T) {
	t.Run("text layer", func(t *testing.T) {
		engine := &fakeEngine{}
		doc := &fakeDoc{texts: []string{"ACME Corp\nFactura: F-1\n", "  ", "Total 10,00"}}
		r := withDoc(NewRouter(engine, Options{}, zap.NewNop()), doc)

		text, err := r.ExtractText(context.Background(), "a.pdf")
		require.NoError(t, err)
		assert.Equal(t, "ACME Corp\nFactura: F-1\nTotal 10,00", text)
		assert.Empty(t, engine.images)
		assert.True(t, doc.closed)
	})

	t.Run("scanned pages fall back to OCR", func(t *testing.T) {
		engine := &fakeEngine{text: "page"}
		doc := &fakeDoc{texts: []string{"", "", "", "", ""}}
		r := withDoc(NewRouter(engine, Options{MaxOCRPages: 2}, zap.NewNop()), doc)

		text, err := r.ExtractText(context.Background(), "scan.pdf")
		require.NoError(t, err)
		assert.Equal(t, "page\npage", text)
		require.Len(t, engine.images, 2)
		assert.Equal(t, "image/jpeg", http.DetectContentType(engine.images[0]))
	})

	t.Run("scanned without OCR yields empty text", func(t *testing.T) {
		doc := &fakeDoc{texts: []string{""}}
		r := withDoc(NewRouter(nil, Options{}, zap.NewNop()), doc)

		text, err := r.ExtractText(context.Background(), "scan.pdf")
		require.NoError(t, err)
		assert.Empty(t, text)
	})

	t.Run("unreadable pdf", func(t *testing.T) {
		r := NewRouter(nil, Options{}, zap.NewNop())
		r.openPDF = func(string) (document, error) { return nil, errors.New("no objects found") }

		_, err := r.ExtractText(context.Background(), "broken.pdf")
		assert.ErrorIs(t, err, workflow.ErrInvalidPayload)
	})
}

func TestEnhance(t *testing.T) {
	out, err := Enhance(testPNG(t))
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", http.DetectContentType(out))

	_, err = Enhance([]byte("not an image"))
	assert.Error(t, err)
}

func TestOpenAIVision_Recognize(t *testing.T) {
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	defer httpmock.DeactivateAndReset()

	var body map[string]interface{}
	httpmock.RegisterResponder(http.MethodPost, "https://openai.test/v1/chat/completions",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "Bearer sk-test", req.Header.Get("Authorization"))
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				return nil, err
			}
			return httpmock.NewJsonResponse(http.StatusOK, map[string]interface{}{
				"choices": []map[string]interface{}{
					{"index": 0, "message": map[string]string{"role": "assistant", "content": "  ACME Corp\nInvoice 7  "}},
				},
				"usage": map[string]int{"total_tokens": 120},
			})
		})

	engine := NewOpenAIVision("sk-test", "gpt-4o-mini", "https://openai.test/v1", client, zap.NewNop())
	text, err := engine.Recognize(context.Background(), testPNG(t))
	require.NoError(t, err)
	assert.Equal(t, "ACME Corp\nInvoice 7", text)

	assert.Equal(t, "gpt-4o-mini", body["model"])
	raw, err := json.Marshal(body["messages"])
	require.NoError(t, err)
	assert.Contains(t, string(raw), "data:image/png;base64,")
}

func TestOpenAIVision_EmptyChoices(t *testing.T) {
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, "https://openai.test/v1/chat/completions",
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]interface{}{"choices": []interface{}{}}))

	engine := NewOpenAIVision("sk-test", "gpt-4o-mini", "https://openai.test/v1", client, zap.NewNop())
	_, err := engine.Recognize(context.Background(), testPNG(t))
	assert.ErrorContains(t, err, "no response")
}

func TestAzureOCR_Recognize(t *testing.T) {
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterRegexpResponder(http.MethodPost, regexp.MustCompile(`^https://vision\.test/.*ocr`),
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "azure-key", req.Header.Get("Ocp-Apim-Subscription-Key"))
			assert.Equal(t, "unk", req.URL.Query().Get("language"))
			assert.Equal(t, "true", req.URL.Query().Get("detectOrientation"))
			return httpmock.NewJsonResponse(http.StatusOK, map[string]interface{}{
				"language": "en",
				"regions": []interface{}{
					map[string]interface{}{
						"boundingBox": "0,0,10,10",
						"lines": []interface{}{
							map[string]interface{}{"words": []interface{}{
								map[string]string{"text": "ACME"}, map[string]string{"text": "Corp"},
							}},
							map[string]interface{}{"words": []interface{}{
								map[string]string{"text": "Total"}, map[string]string{"text": "10,00"},
							}},
						},
					},
				},
			})
		})

	engine := NewAzureOCR("https://vision.test", "azure-key", client, zap.NewNop())
	text, err := engine.Recognize(context.Background(), testPNG(t))
	require.NoError(t, err)
	assert.Equal(t, "ACME Corp\nTotal 10,00", text)
}

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine(&config.ExtractionConfig{OCRProvider: config.OCRProviderNone}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, engine)

	engine, err = NewEngine(&config.ExtractionConfig{OCRProvider: config.OCRProviderOpenAI, OpenAIAPIKey: "k", OpenAIModel: "m"}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "openai", engine.Name())

	engine, err = NewEngine(&config.ExtractionConfig{OCRProvider: config.OCRProviderAzure, AzureEndpoint: "https://vision.test", AzureKey: "k"}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "azure", engine.Name())

	_, err = NewEngine(&config.ExtractionConfig{OCRProvider: "tesseract"}, zap.NewNop())
	assert.Error(t, err)

	src, err := NewTextSource(&config.ExtractionConfig{OCRProvider: config.OCRProviderNone}, zap.NewNop())
	require.NoError(t, err)
	_, err = src.ExtractText(context.Background(), "x.tiff")
	assert.True(t, strings.Contains(err.Error(), "unsupported file type"))
}

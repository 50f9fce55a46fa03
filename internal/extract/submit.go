// internal/extract/submit.go
package extract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/quizlens/client/internal/apierr"
	"github.com/quizlens/client/internal/transport"
)

// Doer issues one HTTP request. Satisfied by *transport.Client; tests plug
// in fakes.
type Doer interface {
	Do(ctx context.Context, req transport.Request) (*transport.Response, error)
}

// FileRef is the file being uploaded: raw bytes plus the display name and
// MIME type the backend expects in the multipart part.
type FileRef struct {
	Name string
	MIME string
	Data []byte
}

// allowedMIME is the set of types the extraction service can process.
var allowedMIME = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"image/heic":      true,
	"application/pdf": true,
}

// Validate rejects obviously unusable file references before any network
// traffic happens.
func (f FileRef) Validate() error {
	if len(f.Data) == 0 {
		return apierr.New(apierr.KindInvalidInput, "The selected file is empty.")
	}
	if f.Name == "" {
		return apierr.New(apierr.KindInvalidInput, "The selected file has no name.")
	}
	if !allowedMIME[f.MIME] {
		return apierr.New(apierr.KindInvalidInput, "Unsupported file type. Use a photo or a PDF.")
	}
	return nil
}

// Submitter sends a file to the job-creation endpoint and returns the
// issued job identifier.
type Submitter struct {
	client    Doer
	uploadURL string
	timeout   time.Duration
	logger    *slog.Logger
}

// NewSubmitter creates a Submitter posting to uploadURL.
func NewSubmitter(client Doer, uploadURL string, logger *slog.Logger) *Submitter {
	return &Submitter{
		client:    client,
		uploadURL: uploadURL,
		timeout:   60 * time.Second,
		logger:    logger,
	}
}

// Submit uploads the file and returns the new job's identifier. A missing
// credential fails before the request is sent; transport errors pass
// through; a non-2xx response becomes RemoteRejected with the server's
// message when one is available.
func (s *Submitter) Submit(ctx context.Context, file FileRef, token string) (string, error) {
	if token == "" {
		return "", apierr.New(apierr.KindUnauthenticated, "Please sign in to upload images.")
	}
	if err := file.Validate(); err != nil {
		return "", err
	}

	body, contentType, err := buildMultipart(file)
	if err != nil {
		return "", apierr.Wrap(apierr.KindInvalidInput, apierr.GenericMessage, err)
	}

	resp, err := s.client.Do(ctx, transport.Request{
		Method: http.MethodPost,
		URL:    s.uploadURL,
		Header: http.Header{
			"Authorization": []string{"Bearer " + token},
			"Content-Type":  []string{contentType},
		},
		Body:    body,
		Timeout: s.timeout,
	})
	if err != nil {
		return "", err
	}
	if !resp.OK() {
		return "", apierr.Remote(resp.Status, resp.ServerMessage())
	}

	var parsed uploadResponse
	if err := resp.DecodeJSON(&parsed); err != nil {
		return "", err
	}
	if parsed.JobID == "" {
		return "", apierr.New(apierr.KindMalformedResponse, apierr.GenericMessage)
	}

	// The processed image is produced by a secondary remote step; when it
	// is absent the job may still complete, so this is only a warning.
	if parsed.ProcessedImage == "" {
		s.logger.Warn("upload accepted without processed image",
			"job_id", parsed.JobID,
			"lambda_message", parsed.LambdaMessage)
	}

	s.logger.Info("extraction job submitted", "job_id", parsed.JobID, "file", file.Name)
	return parsed.JobID, nil
}

// buildMultipart renders the single-field form body the upload endpoint
// expects: field name "file" with the part's own content type.
func buildMultipart(file FileRef) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, file.Name))
	header.Set("Content-Type", file.MIME)

	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(file.Data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

package client

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"sync"
)

// VideoUpload describes one video sent for motion extraction.
type VideoUpload struct {
	Video io.Reader
	// Filename is sent with the video part; the backend requires .mp4.
	Filename string
	// Size is the video length in bytes. Progress is only reported when it is known.
	Size int64

	ProjectName string
	UserID      string
	// Sensitivities are on the 0-1 scale.
	XSensitivity float64
	YSensitivity float64
	Stationary   bool
	OutputFormat string
}

// UploadResult is returned once the backend has produced the animations.
type UploadResult struct {
	ProjectID    string   `json:"projectId"`
	BVHFilenames []string `json:"bvh_filenames"`
}

// ProgressFunc receives upload progress in whole percent.
type ProgressFunc func(percent int)

// UploadVideo streams the video as multipart/form-data and waits for processing to finish.
func (c *Client) UploadVideo(ctx context.Context, upload VideoUpload, progress ProgressFunc) Response[UploadResult] {
	if upload.Video == nil {
		return Failed[UploadResult]("video is required")
	}

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)

	req, err := c.newRequest(ctx, http.MethodPost, "/pose/process-video", nil, pr)
	if err != nil {
		return Failed[UploadResult](fmt.Sprintf("build request: %v", err))
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		pw.CloseWithError(writeUploadForm(form, upload, progress))
	}()

	resp := send[UploadResult](c, req)
	// Unblocks the writer if the request ended before the body was consumed.
	_ = pr.Close()
	wg.Wait()
	return resp
}

func writeUploadForm(form *multipart.Writer, upload VideoUpload, progress ProgressFunc) error {
	fields := []struct{ name, value string }{
		{"projectName", upload.ProjectName},
		{"userId", upload.UserID},
		{"xSensitivity", strconv.FormatFloat(upload.XSensitivity, 'f', -1, 64)},
		{"ySensitivity", strconv.FormatFloat(upload.YSensitivity, 'f', -1, 64)},
		{"stationary", strconv.FormatBool(upload.Stationary)},
		{"outputFormat", upload.OutputFormat},
	}
	for _, f := range fields {
		if err := form.WriteField(f.name, f.value); err != nil {
			return fmt.Errorf("write %s: %w", f.name, err)
		}
	}

	part, err := form.CreateFormFile("video", filepath.Base(upload.Filename))
	if err != nil {
		return fmt.Errorf("create video part: %w", err)
	}

	var src io.Reader = upload.Video
	if progress != nil && upload.Size > 0 {
		src = &progressReader{r: upload.Video, total: upload.Size, report: progress, last: -1}
	}
	if _, err := io.Copy(part, src); err != nil {
		return fmt.Errorf("copy video: %w", err)
	}
	return form.Close()
}

// progressReader reports whole-percent progress as bytes are read.
type progressReader struct {
	r      io.Reader
	total  int64
	read   int64
	last   int
	report ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	if pct := percent(p.read, p.total); pct != p.last {
		p.last = pct
		p.report(pct)
	}
	return n, err
}

func percent(done, total int64) int {
	if total <= 0 {
		return 0
	}
	pct := int(done * 100 / total)
	if pct > 100 {
		pct = 100
	}
	return pct
}

// Package attach converts file payloads between base64, data URLs and bytes
// and enforces the size ceilings shared by task submissions, company
// documents and ticket attachments.
package attach

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"gigline/internal/config"
)

type Kind string

const (
	KindTaskFile        Kind = "task_file"
	KindCompanyDocument Kind = "company_document"
	KindTicket          Kind = "ticket"
)

const genericContentType = "application/octet-stream"

// File is a decoded upload.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// TooLargeError reports an upload above its ceiling.
type TooLargeError struct {
	Name  string
	Size  int64
	Limit int64
}

func (e TooLargeError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("attachments total %d bytes exceeds limit of %d bytes", e.Size, e.Limit)
	}
	return fmt.Sprintf("file %s is %d bytes; limit is %d bytes", e.Name, e.Size, e.Limit)
}

// DecodeBase64 accepts raw base64 or a data URL (data:<mime>;base64,<payload>)
// and returns the bytes plus the content type carried by the URL, if any.
func DecodeBase64(in string) ([]byte, string, error) {
	s := strings.TrimSpace(in)
	contentType := ""
	if strings.HasPrefix(s, "data:") {
		comma := strings.IndexByte(s, ',')
		if comma < 0 {
			return nil, "", fmt.Errorf("invalid data url")
		}
		meta := s[len("data:"):comma]
		if !strings.HasSuffix(meta, ";base64") {
			return nil, "", fmt.Errorf("data url is not base64 encoded")
		}
		contentType = strings.TrimSuffix(meta, ";base64")
		s = s[comma+1:]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		// some browsers strip padding
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
		if err != nil {
			return nil, "", fmt.Errorf("invalid base64 payload: %w", err)
		}
	}
	return data, contentType, nil
}

func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

func DataURL(contentType string, data []byte) string {
	if contentType == "" {
		contentType = genericContentType
	}
	return "data:" + contentType + ";base64," + EncodeBase64(data)
}

// Sniff resolves a content type, detecting it from the bytes when the declared
// type is missing or generic.
func Sniff(declared string, data []byte) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && declared != genericContentType {
		return declared
	}
	return mimetype.Detect(data).String()
}

// Limit returns the per-file ceiling for a kind and content type. Task files
// carry one ceiling whatever their type; elsewhere images and videos get their
// own.
func Limit(kind Kind, contentType string, limits config.Limits) int64 {
	if kind == KindTaskFile {
		return limits.TaskFileBytes
	}
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return limits.ImageBytes
	case strings.HasPrefix(contentType, "video/"):
		return limits.VideoBytes
	}
	switch kind {
	case KindCompanyDocument:
		return limits.CompanyDocumentBytes
	case KindTicket:
		return limits.TicketAttachmentsTotalBytes
	default:
		return limits.TaskFileBytes
	}
}

// CheckFile enforces the per-file ceiling.
func CheckFile(kind Kind, f File, limits config.Limits) error {
	size := int64(len(f.Data))
	if size == 0 {
		return fmt.Errorf("file %s is empty", f.Name)
	}
	limit := Limit(kind, f.ContentType, limits)
	if size > limit {
		return TooLargeError{Name: f.Name, Size: size, Limit: limit}
	}
	return nil
}

// CheckAggregate enforces a ceiling on the combined size of files.
func CheckAggregate(files []File, limit int64) error {
	var total int64
	for _, f := range files {
		total += int64(len(f.Data))
	}
	if total > limit {
		return TooLargeError{Size: total, Limit: limit}
	}
	return nil
}

// Prepare normalizes names and content types and checks every file.
func Prepare(kind Kind, files []File, limits config.Limits) ([]File, error) {
	out := make([]File, 0, len(files))
	for i, f := range files {
		f.Name = strings.TrimSpace(f.Name)
		if f.Name == "" {
			f.Name = fmt.Sprintf("file-%d", i+1)
		}
		f.ContentType = Sniff(f.ContentType, f.Data)
		if err := CheckFile(kind, f, limits); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	if kind == KindTicket {
		if err := CheckAggregate(out, limits.TicketAttachmentsTotalBytes); err != nil {
			return nil, err
		}
	}
	return out, nil
}

package server

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"gigline/internal/attach"
	"gigline/internal/domain"
	"gigline/internal/engine"
)

const (
	maxUploadBytes  = 64 << 20
	multipartMemory = 32 << 20
)

// registerFileRoutes mounts the multipart upload and raw download endpoints,
// which sit outside huma's JSON operations.
func registerFileRoutes(r chi.Router, basePath string, e engine.Engine) {
	r.Post(path.Join(basePath, "tasks/submit"), func(w http.ResponseWriter, req *http.Request) {
		actorID, form, ok := parseUpload(w, req)
		if !ok {
			return
		}
		taskID, err := formTaskID(form)
		if err != nil {
			respondStatusError(w, handleError(err))
			return
		}
		files, err := formFiles(form, "files")
		if err != nil {
			respondStatusError(w, handleError(err))
			return
		}
		t, err := e.SubmitTask(req.Context(), engine.SubmitOptions{
			TaskID:  taskID,
			Note:    form.Value.Get("note"),
			Files:   files,
			ActorID: actorID,
		})
		if err != nil {
			respondStatusError(w, handleError(err))
			return
		}
		respondJSON(w, http.StatusOK, t)
	})

	r.Post(path.Join(basePath, "tasks/update-submission"), func(w http.ResponseWriter, req *http.Request) {
		actorID, form, ok := parseUpload(w, req)
		if !ok {
			return
		}
		taskID, err := formTaskID(form)
		if err != nil {
			respondStatusError(w, handleError(err))
			return
		}
		files, err := formFiles(form, "files")
		if err != nil {
			respondStatusError(w, handleError(err))
			return
		}
		t, err := e.UpdateSubmission(req.Context(), engine.UpdateSubmissionOptions{
			TaskID:      taskID,
			Note:        form.Value.Get("note"),
			KeepFileIDs: splitList(form.Value["keep_file_ids"]),
			Files:       files,
			ActorID:     actorID,
		})
		if err != nil {
			respondStatusError(w, handleError(err))
			return
		}
		respondJSON(w, http.StatusOK, t)
	})

	r.Get(path.Join(basePath, "tasks/files/{fileId}"), func(w http.ResponseWriter, req *http.Request) {
		actorID, authErr := actorIDFromContext(req.Context())
		if authErr != nil {
			respondStatusError(w, authErr)
			return
		}
		a, err := e.TaskFile(req.Context(), chi.URLParam(req, "fileId"), actorID)
		if err != nil {
			respondStatusError(w, handleError(err))
			return
		}
		writeDownload(w, a)
	})

	r.Post(path.Join(basePath, "company/{ownerId}/documents"), func(w http.ResponseWriter, req *http.Request) {
		actorID, form, ok := parseUpload(w, req)
		if !ok {
			return
		}
		files, err := formFiles(form, "file")
		if err != nil {
			respondStatusError(w, handleError(err))
			return
		}
		if len(files) != 1 {
			respondStatusError(w, handleError(engine.ValidationError{Field: "file", Reason: "exactly one file is required"}))
			return
		}
		doc, err := e.AddCompanyDocument(req.Context(), chi.URLParam(req, "ownerId"), files[0], actorID)
		if err != nil {
			respondStatusError(w, handleError(err))
			return
		}
		respondJSON(w, http.StatusCreated, doc)
	})

	r.Get(path.Join(basePath, "company/documents/{fileId}"), func(w http.ResponseWriter, req *http.Request) {
		actorID, authErr := actorIDFromContext(req.Context())
		if authErr != nil {
			respondStatusError(w, authErr)
			return
		}
		a, err := e.CompanyDocument(req.Context(), chi.URLParam(req, "fileId"), actorID)
		if err != nil {
			respondStatusError(w, handleError(err))
			return
		}
		writeDownload(w, a)
	})
}

type uploadForm struct {
	Value formValues
	File  map[string][]attach.File
}

type formValues map[string][]string

func (v formValues) Get(key string) string {
	if vs := v[key]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// parseUpload authenticates and decodes a multipart request, answering the
// error itself when it returns false.
func parseUpload(w http.ResponseWriter, req *http.Request) (string, uploadForm, bool) {
	actorID, authErr := actorIDFromContext(req.Context())
	if authErr != nil {
		respondStatusError(w, authErr)
		return "", uploadForm{}, false
	}
	req.Body = http.MaxBytesReader(w, req.Body, maxUploadBytes)
	if err := req.ParseMultipartForm(multipartMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			respondStatusError(w, newAPIError(http.StatusRequestEntityTooLarge, "validation_failed", "request body too large", map[string]any{"limit": mbe.Limit}))
			return "", uploadForm{}, false
		}
		respondStatusError(w, newAPIError(http.StatusBadRequest, "bad_request", "multipart form-data body required", nil))
		return "", uploadForm{}, false
	}
	defer req.MultipartForm.RemoveAll()
	form := uploadForm{Value: formValues(req.MultipartForm.Value), File: map[string][]attach.File{}}
	for field, headers := range req.MultipartForm.File {
		for _, fh := range headers {
			f, err := fh.Open()
			if err != nil {
				respondStatusError(w, newAPIError(http.StatusBadRequest, "bad_request", "unreadable file part", nil))
				return "", uploadForm{}, false
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				respondStatusError(w, newAPIError(http.StatusBadRequest, "bad_request", "unreadable file part", nil))
				return "", uploadForm{}, false
			}
			form.File[field] = append(form.File[field], attach.File{
				Name:        fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Data:        data,
			})
		}
	}
	return actorID, form, true
}

func formTaskID(form uploadForm) (int64, error) {
	raw := strings.TrimSpace(form.Value.Get("task_id"))
	if raw == "" {
		return 0, engine.ValidationError{Field: "task_id", Reason: "is required"}
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, engine.ValidationError{Field: "task_id", Reason: "must be a positive integer"}
	}
	return id, nil
}

// formFiles takes file parts, plus base64 values sent under the same field
// name by clients that cannot stream files.
func formFiles(form uploadForm, field string) ([]attach.File, error) {
	files := append([]attach.File(nil), form.File[field]...)
	for i, v := range form.Value[field] {
		data, ct, err := attach.DecodeBase64(v)
		if err != nil {
			return nil, engine.ValidationError{Field: field, Reason: err.Error()}
		}
		files = append(files, attach.File{Name: "file-" + strconv.Itoa(len(form.File[field])+i+1), ContentType: ct, Data: data})
	}
	return files, nil
}

// splitList accepts repeated values and comma-separated lists.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func writeDownload(w http.ResponseWriter, a domain.Attachment) {
	ct := a.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.Name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(a.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(a.Data)
}

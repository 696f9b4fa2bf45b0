package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"modelhub/internal/logger"
	"modelhub/internal/service"
	"modelhub/internal/storage"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

const (
	modelFormField = "model"
	// multipartOverhead leaves room for the text fields next to the file.
	multipartOverhead int64 = 1 << 20
	multipartMemory   int64 = 32 << 20
)

var contentTypes = map[string]string{
	"gltf": "model/gltf+json",
	"glb":  "model/gltf-binary",
	"obj":  "model/obj",
}

func contentTypeOf(name string) string {
	if ct, ok := contentTypes[storage.FormatOf(name)]; ok {
		return ct
	}
	return "application/octet-stream"
}

// @Summary      List models
// @Description  Paginated catalog, newest first, with optional category and search filters.
// @Tags         models
// @Produce      json
// @Param        category  query     int     false  "Category ID"
// @Param        search    query     string  false  "Search text"
// @Param        page      query     int     false  "Page, from 1"
// @Param        limit     query     int     false  "Page size, at most 100"
// @Success      200       {object}  models.ModelPage
// @Router       /models [get]
func (s *Server) ListModelsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := s.services.Models.List(r.Context(), service.ListModelsInput{
		Category: q.Get("category"),
		Search:   q.Get("search"),
		Page:     q.Get("page"),
		Limit:    q.Get("limit"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// @Summary      Get a model
// @Description  Returns the model and counts one view.
// @Tags         models
// @Produce      json
// @Param        id   path      string  true  "Model ID"
// @Success      200  {object}  models.Model
// @Failure      404  {object}  messageResponse
// @Router       /models/{id} [get]
func (s *Server) GetModelHandler(w http.ResponseWriter, r *http.Request) {
	model, err := s.services.Models.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model)
}

// @Summary      Upload a model
// @Tags         models
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        model         formData  file    true   "Model file"
// @Param        title         formData  string  true   "Title"
// @Param        category      formData  int     true   "Category ID"
// @Param        description   formData  string  false  "Description"
// @Param        license       formData  string  false  "CC0, CC4, Attribution or Non-commercial"
// @Param        tags          formData  string  false  "Comma separated tags"
// @Param        hasAnimation  formData  string  false  "\"true\" when the model is animated"
// @Success      201           {object}  models.Model
// @Failure      400           {object}  messageResponse
// @Router       /models [post]
func (s *Server) CreateModelHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.files.MaxBytes()+multipartOverhead)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeError(w, r, &service.Error{Kind: service.ErrValidation, Message: "file is too large", Err: err})
			return
		}
		s.writeError(w, r, &service.Error{Kind: service.ErrValidation, Message: "invalid multipart form", Err: err})
		return
	}
	defer r.MultipartForm.RemoveAll()

	var upload *service.UploadedFile
	file, header, err := r.FormFile(modelFormField)
	switch {
	case err == nil:
		defer file.Close()
		upload = &service.UploadedFile{Name: header.Filename, Size: header.Size, Reader: file}
	case !errors.Is(err, http.ErrMissingFile):
		s.writeError(w, r, &service.Error{Kind: service.ErrValidation, Message: "invalid model file", Err: err})
		return
	}

	model, err := s.services.Models.Create(r.Context(), user, service.CreateModelInput{
		Title:        r.FormValue("title"),
		Description:  r.FormValue("description"),
		Category:     r.FormValue("category"),
		License:      r.FormValue("license"),
		Tags:         r.FormValue("tags"),
		HasAnimation: r.FormValue("hasAnimation"),
	}, upload)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	modelUploadBytes.Add(float64(model.FileSize))
	writeJSON(w, http.StatusCreated, model)
}

// updateModelRequest accepts both typed JSON values and the string forms a
// form-encoding client sends: category as number or string, tags as array
// or comma separated string, hasAnimation as bool or "true"/"false".
type updateModelRequest map[string]json.RawMessage

func (req updateModelRequest) input() (service.UpdateModelInput, error) {
	var in service.UpdateModelInput
	var err error

	if in.Title, err = req.str("title"); err != nil {
		return in, err
	}
	if in.Description, err = req.str("description"); err != nil {
		return in, err
	}
	if in.License, err = req.str("license"); err != nil {
		return in, err
	}
	if in.Category, err = req.category(); err != nil {
		return in, err
	}
	if in.Tags, err = req.tags(); err != nil {
		return in, err
	}
	if in.HasAnimation, err = req.hasAnimation(); err != nil {
		return in, err
	}
	return in, nil
}

func invalidField(field string) error {
	return &service.Error{Kind: service.ErrValidation, Message: field + " is invalid"}
}

func (req updateModelRequest) raw(field string) (json.RawMessage, bool) {
	raw, ok := req[field]
	if !ok || string(raw) == "null" {
		return nil, false
	}
	return raw, true
}

func (req updateModelRequest) str(field string) (*string, error) {
	raw, ok := req.raw(field)
	if !ok {
		return nil, nil
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, invalidField(field)
	}
	return &v, nil
}

func (req updateModelRequest) category() (*string, error) {
	raw, ok := req.raw("category")
	if !ok {
		return nil, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		v := n.String()
		return &v, nil
	}
	return req.str("category")
}

func (req updateModelRequest) tags() (*[]string, error) {
	raw, ok := req.raw("tags")
	if !ok {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return &list, nil
	}
	var joined string
	if err := json.Unmarshal(raw, &joined); err != nil {
		return nil, invalidField("tags")
	}
	list = service.SplitTags(joined)
	return &list, nil
}

func (req updateModelRequest) hasAnimation() (*bool, error) {
	raw, ok := req.raw("hasAnimation")
	if !ok {
		return nil, nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return &b, nil
	}
	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return nil, invalidField("hasAnimation")
	}
	b, err := strconv.ParseBool(str)
	if err != nil {
		return nil, invalidField("hasAnimation")
	}
	return &b, nil
}

// @Summary      Update a model
// @Description  Partial update by the author. Only the fields present are changed.
// @Tags         models
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Model ID"
// @Success      200  {object}  models.Model
// @Failure      400  {object}  messageResponse
// @Failure      403  {object}  messageResponse
// @Failure      404  {object}  messageResponse
// @Router       /models/{id} [put]
func (s *Server) UpdateModelHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	var req updateModelRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	in, err := req.input()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	model, err := s.services.Models.Update(r.Context(), chi.URLParam(r, "id"), user, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model)
}

// @Summary      Delete a model
// @Description  Deletes the model and its likes, then removes the stored file.
// @Tags         models
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Model ID"
// @Success      200  {object}  messageResponse
// @Failure      401  {object}  messageResponse
// @Failure      403  {object}  messageResponse
// @Failure      404  {object}  messageResponse
// @Router       /models/{id} [delete]
func (s *Server) DeleteModelHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	if err := s.services.Models.Delete(r.Context(), chi.URLParam(r, "id"), user); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Model deleted")
}

// @Summary      Like a model
// @Tags         models
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Model ID"
// @Success      200  {object}  service.LikeResult
// @Failure      401  {object}  messageResponse
// @Failure      404  {object}  messageResponse
// @Failure      409  {object}  messageResponse
// @Router       /models/{id}/like [post]
func (s *Server) LikeModelHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	result, err := s.services.Models.Like(r.Context(), chi.URLParam(r, "id"), user)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// @Summary      Unlike a model
// @Description  Removing a like that does not exist succeeds.
// @Tags         models
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Model ID"
// @Success      200  {object}  service.LikeResult
// @Failure      401  {object}  messageResponse
// @Failure      404  {object}  messageResponse
// @Router       /models/{id}/unlike [post]
func (s *Server) UnlikeModelHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	result, err := s.services.Models.Unlike(r.Context(), chi.URLParam(r, "id"), user)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// attachmentName strips what would break out of the quoted filename.
func attachmentName(name string) string {
	return strings.Map(func(r rune) rune {
		if r == '"' || r == '\\' || r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
}

// @Summary      Download a model
// @Description  Streams the stored file as an attachment and counts one download.
// @Tags         models
// @Produce      octet-stream
// @Param        id   path  string  true  "Model ID"
// @Success      200
// @Failure      404  {object}  messageResponse
// @Router       /models/{id}/download [get]
func (s *Server) DownloadModelHandler(w http.ResponseWriter, r *http.Request) {
	dl, err := s.services.Models.Download(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer dl.Reader.Close()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", attachmentName(dl.FileName)))
	w.Header().Set("Content-Type", "application/octet-stream")
	if dl.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(dl.Size, 10))
	}

	if _, err := io.Copy(w, dl.Reader); err != nil {
		logger.FromContext(r.Context()).Warn().Err(err).Msg("model download interrupted")
	}
}

// ServeUploadHandler serves a stored model file by its storage name.
func (s *Server) ServeUploadHandler(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	reader, size, err := s.files.OpenName(r.Context(), name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidName) {
			writeMessage(w, http.StatusNotFound, "file not found")
			return
		}
		s.writeError(w, r, err)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", contentTypeOf(name))
	if size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	if _, err := io.Copy(w, reader); err != nil {
		logger.FromContext(r.Context()).Warn().Err(err).Str("name", name).Msg("serving upload interrupted")
	}
}
